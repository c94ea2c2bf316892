package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mediafetch/internal/eventbus"
	"mediafetch/internal/task/runner"
	logx "mediafetch/pkg/logx"
)

type sent struct {
	chatID   int64
	threadID int
	text     string
}

type fakeSender struct {
	mu    sync.Mutex
	fails int
	calls int
	out   []sent
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, threadID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fails != 0 {
		if f.fails > 0 {
			f.fails--
		}
		return errors.New("telegram: 502 bad gateway")
	}
	f.out = append(f.out, sent{chatID: chatID, threadID: threadID, text: text})
	return nil
}

func (f *fakeSender) snapshot() (int, []sent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]sent(nil), f.out...)
}

func testConfig() Config {
	return Config{
		Enabled:       true,
		ChatID:        7,
		ThreadID:      3,
		RatePerSec:    100,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
	}
}

func startService(t *testing.T, cfg Config, snd Sender, bus eventbus.Bus) *Service {
	t.Helper()
	s := New(cfg, snd, logx.Nop(), bus)
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitEvent(t *testing.T, ch <-chan eventbus.Event, typ string) eventbus.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", typ)
		}
	}
}

func TestNotifyDeliversToDefaultChat(t *testing.T) {
	t.Parallel()

	snd := &fakeSender{}
	s := startService(t, testConfig(), snd, nil)

	if err := s.Notify(context.Background(), Notification{Text: "hello"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitFor(t, "history", func() bool { return len(s.Snapshot()) == 1 })

	_, out := snd.snapshot()
	if len(out) != 1 || out[0] != (sent{chatID: 7, threadID: 3, text: "hello"}) {
		t.Fatalf("sent=%+v", out)
	}
}

func TestRetryThenSucceed(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RetryMax = 2
	snd := &fakeSender{fails: 2}
	s := startService(t, cfg, snd, nil)

	if err := s.Notify(context.Background(), Notification{Text: "retry me"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitFor(t, "delivery", func() bool { return len(s.Snapshot()) == 1 })
	if calls, _ := snd.snapshot(); calls != 3 {
		t.Fatalf("calls=%d, want 3", calls)
	}
}

func TestGiveUpPublishesFailure(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	ch, unsub := bus.Subscribe(32)
	defer unsub()

	cfg := testConfig()
	cfg.RetryMax = 1
	snd := &fakeSender{fails: -1}
	s := startService(t, cfg, snd, bus)

	if err := s.Notify(context.Background(), Notification{Text: "never"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	ev := waitEvent(t, ch, eventbus.NotifyFailed)
	ne, ok := ev.Data.(NotificationEvent)
	if !ok || !strings.Contains(ne.Error, "bad gateway") {
		t.Fatalf("event data=%#v", ev.Data)
	}
	if calls, _ := snd.snapshot(); calls != 2 {
		t.Fatalf("calls=%d, want 2", calls)
	}
}

func TestDedupSuppressesRepeats(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	ch, unsub := bus.Subscribe(32)
	defer unsub()

	cfg := testConfig()
	cfg.DedupWindow = time.Minute
	snd := &fakeSender{}
	s := startService(t, cfg, snd, bus)

	for i := 0; i < 2; i++ {
		if err := s.Notify(context.Background(), Notification{Text: "same"}); err != nil {
			t.Fatalf("Notify %d: %v", i, err)
		}
	}
	waitEvent(t, ch, eventbus.NotifyDeduped)
	if err := s.Notify(context.Background(), Notification{Text: "other"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitFor(t, "two deliveries", func() bool { return len(s.Snapshot()) == 2 })
}

func TestNotifyDisabledAndStopped(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Enabled = false
	s := New(cfg, &fakeSender{}, logx.Nop(), nil)
	s.Start(context.Background())
	if err := s.Notify(context.Background(), Notification{Text: "x"}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err=%v, want ErrDisabled", err)
	}
	if s.Supervisor() != nil {
		t.Fatalf("disabled service started workers")
	}

	s2 := New(testConfig(), &fakeSender{}, logx.Nop(), nil)
	if err := s2.Notify(context.Background(), Notification{Text: "x"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err=%v, want ErrStopped", err)
	}
	s2.Start(context.Background())
	s2.Stop(context.Background())
	if err := s2.Notify(context.Background(), Notification{Text: "x"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("after stop err=%v, want ErrStopped", err)
	}
}

func TestRunForwardsJobOutcomes(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	snd := &fakeSender{}
	s := startService(t, testConfig(), snd, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx, bus)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	ev := eventbus.Event{Type: eventbus.JobFailed, Data: runner.JobEvent{
		TaskID: "t-1", Download: "video_highest", Save: "LOCAL_FILESYSTEM_SAVE", Error: "404 not found",
	}}
	// Run subscribes asynchronously; publish until the first delivery lands.
	waitFor(t, "job notification", func() bool {
		if _, out := snd.snapshot(); len(out) > 0 {
			return true
		}
		bus.Publish(ev)
		return false
	})

	_, out := snd.snapshot()
	if !strings.Contains(out[0].text, "Task t-1 failed") || !strings.Contains(out[0].text, "error: 404 not found") {
		t.Fatalf("text=%q", out[0].text)
	}
}

func TestFormatJobEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ev   eventbus.Event
		want []string
	}{
		{
			name: "completed",
			ev: eventbus.Event{Type: eventbus.JobCompleted, Data: runner.JobEvent{
				TaskID: "a", Catalogue: "music", Download: "audio_highest", Save: "s3_save", Files: 2, Duration: 3 * time.Second,
			}},
			want: []string{"✅ Task a completed", "catalogue: music", "audio_highest → s3_save", "files: 2", "took: 3s"},
		},
		{
			name: "failed",
			ev: eventbus.Event{Type: eventbus.JobFailed, Data: runner.JobEvent{
				TaskID: "b", Download: "video_highest", Save: "LOCAL_FILESYSTEM_SAVE", Error: "no sources",
			}},
			want: []string{"❌ Task b failed", "error: no sources"},
		},
		{name: "other type", ev: eventbus.Event{Type: eventbus.TaskStarted, Data: runner.JobEvent{TaskID: "c"}}},
		{name: "foreign data", ev: eventbus.Event{Type: eventbus.JobCompleted, Data: "x"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FormatJobEvent(tt.ev)
			if len(tt.want) == 0 {
				if got != "" {
					t.Fatalf("got %q, want empty", got)
				}
				return
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Fatalf("%q does not contain %q", got, w)
				}
			}
		})
	}
}
