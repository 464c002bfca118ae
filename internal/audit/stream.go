package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	streamBuffer       = 64
	streamWriteTimeout = 5 * time.Second
)

// StreamMessage is one frame on the live audit stream. The first frame has
// type "ready"; each audit event follows as type "event".
type StreamMessage struct {
	Type  string `json:"type"`
	Event *Event `json:"event,omitempty"`
}

// HandleStream upgrades to a WebSocket and pushes audit events as they are
// logged. Client frames are ignored; a client close ends the stream.
// GET /api/v1/audit/stream
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeAuditJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "stream unavailable"})
		return
	}

	opts := &websocket.AcceptOptions{}
	if len(h.origins) > 0 {
		opts.OriginPatterns = h.origins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// Long-lived connection; lift the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sub := h.hub.Subscribe(streamBuffer)
	defer h.hub.Unsubscribe(sub)

	ctx := conn.CloseRead(r.Context())

	if err := write(ctx, conn, StreamMessage{Type: "ready"}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case evt, ok := <-sub:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			}
			if err := write(ctx, conn, StreamMessage{Type: "event", Event: &evt}); err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg StreamMessage) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
