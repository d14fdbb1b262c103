package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/tradevoice/internal/domain"
)

// Sink persists entry records somewhere durable.
type Sink interface {
	Name() string
	WriteEntry(ctx context.Context, rec domain.EntryRecord) error
}

// DispatchStats counts sink outcomes since startup.
type DispatchStats struct {
	Written int64 `json:"written"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

const (
	defaultQueueSize = 1000
	sinkWriteTimeout = 5 * time.Second
)

// Dispatcher delivers entry records to sinks from a single background
// worker, in enqueue order. A full queue drops the record; a failing sink is
// logged and counted. Neither ever reaches the appender.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
	queue  chan domain.EntryRecord
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	written atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewDispatcher starts a dispatcher for sinks.
func NewDispatcher(queueSize int, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		sinks:  sinks,
		logger: logger,
		queue:  make(chan domain.EntryRecord, queueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue hands rec to the worker without blocking. It reports false if the
// record was dropped.
func (d *Dispatcher) Enqueue(rec domain.EntryRecord) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return false
	}
	select {
	case d.queue <- rec:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("conversation sink queue full, dropping entry",
			"conversation_id", rec.ConversationID,
			"seq", rec.Seq,
		)
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for rec := range d.queue {
		for _, s := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
			err := s.WriteEntry(ctx, rec)
			cancel()
			if err != nil {
				d.failed.Add(1)
				d.logger.Warn("conversation sink write failed",
					"sink", s.Name(),
					"conversation_id", rec.ConversationID,
					"seq", rec.Seq,
					"error", err,
				)
				continue
			}
			d.written.Add(1)
		}
	}
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Written: d.written.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}

// Close drains the queue, stops the worker and closes sinks that implement
// io.Closer.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done

	var errs []error
	for _, s := range d.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
