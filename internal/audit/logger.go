package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/valinor-ai/hrgate/internal/platform/database"
)

const (
	defaultBufferSize    = 4096
	defaultBatchSize     = 100
	defaultFlushInterval = 500 * time.Millisecond
	defaultFlushTimeout  = 5 * time.Second
)

// LoggerConfig configures the async audit logger. Zero values take defaults.
type LoggerConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	FlushTimeout  time.Duration
	// Hub, when set, receives every accepted event as it is logged.
	Hub *Hub
	// OnDrop is called for each event dropped on a full buffer.
	OnDrop func()
}

func (c LoggerConfig) withDefaults() LoggerConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = defaultFlushTimeout
	}
	return c
}

// AsyncLogger queues events in memory and writes them to audit_events in
// batches from a single goroutine. Log never blocks.
type AsyncLogger struct {
	queue   chan Event
	store   *Store
	db      database.Querier
	cfg     LoggerConfig
	dropped atomic.Int64
	closed  atomic.Bool

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewAsyncLogger starts the batch writer.
func NewAsyncLogger(db database.Querier, store *Store, cfg LoggerConfig) *AsyncLogger {
	cfg = cfg.withDefaults()
	l := &AsyncLogger{
		queue: make(chan Event, cfg.BufferSize),
		store: store,
		db:    db,
		cfg:   cfg,
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

// Log stamps the event and queues it. Events arriving on a full queue or
// after Close are dropped.
func (l *AsyncLogger) Log(_ context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if l.closed.Load() {
		l.drop(event)
		return
	}

	select {
	case l.queue <- event:
		if l.cfg.Hub != nil {
			l.cfg.Hub.Publish(event)
		}
	default:
		l.drop(event)
	}
}

func (l *AsyncLogger) drop(event Event) {
	l.dropped.Add(1)
	if l.cfg.OnDrop != nil {
		l.cfg.OnDrop()
	}
	slog.Warn("audit event dropped", "action", event.Action)
}

// Dropped reports how many events never reached the queue.
func (l *AsyncLogger) Dropped() int64 {
	return l.dropped.Load()
}

// Close writes whatever is queued and stops the writer. Calling it again
// is a no-op.
func (l *AsyncLogger) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.quit)
		<-l.done
	})
	return nil
}

func (l *AsyncLogger) run() {
	defer close(l.done)

	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, l.cfg.BatchSize)
	for {
		select {
		case e := <-l.queue:
			batch = append(batch, e)
			if len(batch) < l.cfg.BatchSize {
				continue
			}
		case <-ticker.C:
		case <-l.quit:
			l.write(append(batch, l.drain()...))
			return
		}
		l.write(batch)
		batch = batch[:0]
	}
}

func (l *AsyncLogger) write(events []Event) {
	if len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.FlushTimeout)
	defer cancel()

	if err := l.store.InsertBatch(ctx, l.db, events); err != nil {
		slog.Error("audit batch insert failed", "error", err, "events", len(events))
	}
}

// drain empties the queue without blocking.
func (l *AsyncLogger) drain() []Event {
	var events []Event
	for {
		select {
		case e := <-l.queue:
			events = append(events, e)
		default:
			return events
		}
	}
}
