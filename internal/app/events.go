package app

import (
	"context"
	"fmt"
	"time"

	"mediafetch/internal/eventbus"
	"mediafetch/internal/storage"
	"mediafetch/internal/task/runner"
	logx "mediafetch/pkg/logx"
)

const (
	eventTaskCompleted = "task_completed"
	eventTaskFailed    = "task_failed"
)

// feedEvent maps a job outcome onto an event feed entry.
func feedEvent(ev eventbus.Event) (storage.Event, bool) {
	je, ok := ev.Data.(runner.JobEvent)
	if !ok {
		return storage.Event{}, false
	}
	name := je.TaskID
	if je.Catalogue != "" {
		name = je.Catalogue + " (" + je.TaskID + ")"
	}
	switch ev.Type {
	case eventbus.JobCompleted:
		return storage.Event{
			Kind:      eventTaskCompleted,
			Level:     "info",
			TaskID:    je.TaskID,
			Message:   fmt.Sprintf("Task %s completed: %d file(s) saved with %s", name, je.Files, je.Save),
			CreatedAt: ev.Time,
		}, true
	case eventbus.JobFailed:
		return storage.Event{
			Kind:      eventTaskFailed,
			Level:     "error",
			TaskID:    je.TaskID,
			Message:   fmt.Sprintf("Task %s failed: %s", name, je.Error),
			CreatedAt: ev.Time,
		}, true
	default:
		return storage.Event{}, false
	}
}

// recordJobEvents appends job outcomes to the event feed until ctx is done.
func recordJobEvents(ctx context.Context, bus eventbus.Bus, store storage.Store, log logx.Logger) {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			fe, ok := feedEvent(ev)
			if !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if _, err := store.AppendEvent(wctx, fe); err != nil {
				log.Warn("event feed append failed", logx.Err(err), logx.String("task_id", fe.TaskID))
			}
			cancel()
		}
	}
}
