package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediafetch/internal/eventbus"
	"mediafetch/internal/task/runner"
	logx "mediafetch/pkg/logx"
)

// Run forwards job outcomes from bus into the queue until ctx is done.
func (s *Service) Run(ctx context.Context, bus eventbus.Bus) error {
	if bus == nil {
		return nil
	}
	ch, unsub := bus.Subscribe(32)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			text := FormatJobEvent(ev)
			if text == "" {
				continue
			}
			err := s.Notify(ctx, Notification{Text: text})
			if err != nil && !errors.Is(err, ErrDisabled) {
				s.log.Warn("job notification not queued", logx.Err(err), logx.String("event", ev.Type))
			}
		}
	}
}

// FormatJobEvent renders a job outcome. Other events render as "".
func FormatJobEvent(ev eventbus.Event) string {
	je, ok := ev.Data.(runner.JobEvent)
	if !ok {
		return ""
	}
	var b strings.Builder
	switch ev.Type {
	case eventbus.JobCompleted:
		fmt.Fprintf(&b, "✅ Task %s completed", je.TaskID)
	case eventbus.JobFailed:
		fmt.Fprintf(&b, "❌ Task %s failed", je.TaskID)
	default:
		return ""
	}
	if je.Catalogue != "" {
		fmt.Fprintf(&b, "\ncatalogue: %s", je.Catalogue)
	}
	fmt.Fprintf(&b, "\nstrategy: %s → %s", je.Download, je.Save)
	if ev.Type == eventbus.JobCompleted {
		fmt.Fprintf(&b, "\nfiles: %d", je.Files)
	}
	fmt.Fprintf(&b, "\ntook: %s", je.Duration.Round(time.Second))
	if je.Error != "" {
		fmt.Fprintf(&b, "\nerror: %s", truncate(je.Error, 1500))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
