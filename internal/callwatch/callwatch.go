// Package callwatch follows a call's status by polling the platform until
// the call completes. Polling backs off while nothing changes.
package callwatch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/ashureev/tradevoice/internal/domain"
)

// Defaults used when a Poller field is zero.
const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxInterval = 15 * time.Second
	DefaultTimeout     = 45 * time.Minute
)

// ErrTimeout is yielded when a call has not completed within the watch
// timeout.
var ErrTimeout = errors.New("call watch timed out")

// StatusSource fetches one status snapshot per call.
type StatusSource interface {
	GetStatus(ctx context.Context, callID string) (*domain.CallStatus, error)
}

// Poller watches calls through a StatusSource.
type Poller struct {
	Source      StatusSource
	Interval    time.Duration
	MaxInterval time.Duration
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Watch yields the first snapshot of callID and then every snapshot that
// differs from the previous one. The sequence ends after a terminal
// snapshot, after yielding an error, when Timeout elapses (yielding
// ErrTimeout) or when ctx is done.
func (p *Poller) Watch(ctx context.Context, callID string) iter.Seq2[domain.CallStatus, error] {
	return func(yield func(domain.CallStatus, error) bool) {
		interval, maxInterval, timeout := p.settings()
		logger := p.Logger
		if logger == nil {
			logger = slog.Default()
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var last *domain.CallStatus
		delay := interval
		for {
			status, err := p.Source.GetStatus(ctx, callID)
			if err != nil {
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					yield(domain.CallStatus{}, fmt.Errorf("%w after %s", ErrTimeout, timeout))
					return
				}
				if ctx.Err() != nil {
					return
				}
				yield(domain.CallStatus{}, err)
				return
			}

			if last == nil || changed(*last, *status) {
				logger.Debug("call status changed", "call_id", callID, "status", status.Status, "completed", status.Completed)
				if !yield(*status, nil) {
					return
				}
				delay = interval
			} else {
				delay = min(delay*2, maxInterval)
			}
			last = status

			if status.IsTerminal() {
				return
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					yield(domain.CallStatus{}, fmt.Errorf("%w after %s", ErrTimeout, timeout))
				}
				return
			case <-timer.C:
			}
		}
	}
}

func (p *Poller) settings() (interval, maxInterval, timeout time.Duration) {
	interval, maxInterval, timeout = p.Interval, p.MaxInterval, p.Timeout
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxInterval < interval {
		maxInterval = max(DefaultMaxInterval, interval)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return interval, maxInterval, timeout
}

func changed(a, b domain.CallStatus) bool {
	return a.Status != b.Status || a.Completed != b.Completed
}
