package access

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/valinor-ai/hrgate/internal/auth"
	"github.com/valinor-ai/hrgate/internal/platform/middleware"
)

// LabelField is the request body key that carries a sensitivity label.
const LabelField = "sensitivity_level"

const maxGuardedBody = 1 << 20

type principalContextKey struct{}

// WithPrincipal stores p in ctx. Require does this for handlers it admits.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal admitted by Require.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// Require returns middleware that authorizes the request against route.
// The resource id comes from the {id} path value; its absence means a
// collection or create request.
func Require(c *Composer, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.GetIdentity(r.Context())
			if identity == nil {
				writeError(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
				return
			}

			p, err := c.PrincipalFor(identity)
			if err != nil {
				writeError(w, http.StatusUnauthorized, map[string]string{"error": "invalid principal"})
				return
			}

			var resourceID int64
			if raw := r.PathValue("id"); raw != "" {
				resourceID, err = strconv.ParseInt(raw, 10, 64)
				if err != nil || resourceID <= 0 {
					writeError(w, http.StatusBadRequest, map[string]string{"error": "invalid resource id"})
					return
				}
			}

			client := middleware.GetClientInfo(r.Context())
			req := Request{
				Route:      route,
				Principal:  p,
				ResourceID: resourceID,
				Client: Client{
					IP:        client.IP,
					UserAgent: client.UserAgent,
					Country:   client.Country,
				},
			}

			if rt, ok := c.Route(route); ok && rt.LabelGuard {
				requested, err := bodySetsLabel(r)
				if err != nil {
					writeError(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
					return
				}
				if d, ok := c.AuthorizeLabelChange(r.Context(), req, requested); !ok {
					writeDecision(w, d)
					return
				}
			}

			d := c.Authorize(r.Context(), req)
			if !d.Allowed() {
				writeDecision(w, d)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// bodySetsLabel reports whether the JSON body has a sensitivity label key.
// The body is restored for the next handler.
func bodySetsLabel(r *http.Request) (bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return false, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxGuardedBody))
	_ = r.Body.Close()
	if err != nil {
		return false, err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	if len(bytes.TrimSpace(raw)) == 0 {
		return false, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false, err
	}
	// Field matching in encoding/json ignores case, so the guard must too.
	for k := range fields {
		if strings.EqualFold(k, LabelField) {
			return true, nil
		}
	}
	return false, nil
}

func writeDecision(w http.ResponseWriter, d Decision) {
	switch d.Verdict {
	case VerdictDeny:
		writeError(w, http.StatusForbidden, map[string]string{
			"error":  "forbidden",
			"gate":   string(d.Gate),
			"reason": d.Reason,
		})
	case VerdictNotFound:
		writeError(w, http.StatusNotFound, map[string]string{"error": d.Reason})
	default:
		writeError(w, http.StatusInternalServerError, map[string]string{"error": faultReason})
	}
}

func writeError(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
