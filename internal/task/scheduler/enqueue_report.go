package scheduler

import (
	"errors"
	"time"

	"mediafetch/internal/task/engine"
	logx "mediafetch/pkg/logx"
)

const enqueueWarnThrottle = 5 * time.Second

func (s *Service) reportEnqueueError(name string, err error) {
	if err == nil {
		return
	}
	// A tick landing on a long job is the normal case.
	if errors.Is(err, engine.ErrOverlapSkip) {
		s.log.Debug("tick skipped, previous run still active", logx.String("schedule", name))
		return
	}

	now := time.Now()
	s.enqMu.Lock()
	last := s.lastEnqWarn[name]
	if !last.IsZero() && now.Sub(last) < enqueueWarnThrottle {
		s.enqMu.Unlock()
		return
	}
	s.lastEnqWarn[name] = now
	s.enqMu.Unlock()

	s.log.Warn("schedule failed to enqueue", logx.String("schedule", name), logx.Err(err))
}
