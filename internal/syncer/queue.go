package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// flushTimeout bounds the final flush when Run is stopped.
const flushTimeout = 30 * time.Second

// Schedule marks targets dirty and wakes the worker. It never blocks;
// bursts of calls collapse into one save per target.
func (s *Syncer) Schedule(targets Target) {
	s.pending.Or(uint32(targets))
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run is the single background writer. It returns when ctx is done, after
// one last flush of anything still pending.
func (s *Syncer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
			s.flush(flushCtx)
			cancel()
			return nil
		case <-s.wake:
			s.flush(ctx)
		}
	}
}

// Flush synchronously writes whatever is pending.
func (s *Syncer) Flush(ctx context.Context) error {
	targets := Target(s.pending.Swap(0))
	if targets == 0 {
		return nil
	}
	return s.Save(ctx, targets)
}

func (s *Syncer) flush(ctx context.Context) {
	targets := Target(s.pending.Load())
	if err := s.Flush(ctx); err != nil {
		s.log.Error("background save failed", zap.Stringer("targets", targets), zap.Error(err))
	}
}
