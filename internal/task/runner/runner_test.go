package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediafetch/internal/eventbus"
	"mediafetch/internal/sink"
	"mediafetch/internal/storage"
	"mediafetch/internal/strategy"
	logx "mediafetch/pkg/logx"
)

func newStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "runner.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func create(t *testing.T, st storage.Store, download, save string, sources ...string) storage.Task {
	t.Helper()
	task, err := st.CreateTask(context.Background(), storage.NewTask{
		Sources:          sources,
		DownloadStrategy: download,
		SaveStrategy:     save,
		CatalogueName:    "music",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task
}

func get(t *testing.T, st storage.Store, id string) storage.Task {
	t.Helper()
	task, err := st.GetTask(context.Background(), id)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	return task
}

func pendingPriorities(t *testing.T, st storage.Store, ids ...string) []int {
	t.Helper()
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		p := get(t, st, id).Priority
		if p == nil {
			t.Fatalf("task %s has no priority", id)
		}
		out = append(out, *p)
	}
	return out
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	dest := t.TempDir()
	fetched := filepath.Join(t.TempDir(), "song.mp3")

	reg := strategy.New()
	var gotSources []string
	reg.RegisterDownload(strategy.AudioHighest, "", func(ctx context.Context, sources []string) ([]string, error) {
		gotSources = sources
		return []string{fetched}, os.WriteFile(fetched, []byte("audio"), 0o644)
	})
	reg.RegisterSave(strategy.LocalFilesystemSave, "", sink.NewLocal(dest, "", logx.Nop()).Save)

	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	a := create(t, st, strategy.AudioHighest, strategy.LocalFilesystemSave, "http://x/1")
	if a.State != storage.StatePending || a.Priority == nil || *a.Priority != 1 {
		t.Fatalf("created task = %+v", a)
	}

	if err := New(st, reg, logx.Nop(), bus).Run(context.Background(), a.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	done := get(t, st, a.ID)
	if done.State != storage.StateCompleted || done.Priority != nil || done.ErrorMessage != "" {
		t.Fatalf("task after run = %+v", done)
	}
	if len(gotSources) != 1 || gotSources[0] != "http://x/1" {
		t.Fatalf("fetch sources = %v", gotSources)
	}
	if _, err := os.Stat(filepath.Join(dest, "music", "song.mp3")); err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	if _, err := os.Stat(fetched); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("local artifact should be removed, stat err = %v", err)
	}

	ev := <-events
	job, ok := ev.Data.(JobEvent)
	if ev.Type != eventbus.JobCompleted || !ok || job.TaskID != a.ID || job.Files != 1 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestRunFetchFailure(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	reg := strategy.New()
	reg.RegisterDownload(strategy.AudioHighest, "", func(context.Context, []string) ([]string, error) {
		return nil, &strategy.FetchError{Reason: "404 not found"}
	})
	saved := false
	reg.RegisterSave(strategy.LocalFilesystemSave, "", func(context.Context, []string, string) error {
		saved = true
		return nil
	})

	b := create(t, st, strategy.AudioHighest, strategy.LocalFilesystemSave, "http://x/b")
	c := create(t, st, strategy.AudioHighest, strategy.LocalFilesystemSave, "http://x/c")
	a := create(t, st, strategy.AudioHighest, strategy.LocalFilesystemSave, "http://x/1")

	err := New(st, reg, logx.Nop(), nil).Run(context.Background(), a.ID)
	var fe *strategy.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Run err = %v, want FetchError", err)
	}
	if saved {
		t.Fatal("save must not run after a failed fetch")
	}

	failed := get(t, st, a.ID)
	if failed.State != storage.StateFailed || failed.ErrorMessage != "404 not found" || failed.Priority != nil {
		t.Fatalf("task after run = %+v", failed)
	}
	if got := pendingPriorities(t, st, b.ID, c.ID); got[0] != 1 || got[1] != 2 {
		t.Fatalf("other priorities = %v, want [1 2]", got)
	}
}

func TestRunFailureMessages(t *testing.T) {
	t.Parallel()
	ok := func(context.Context, []string, string) error { return nil }
	tests := []struct {
		name     string
		download strategy.FetchFunc
		save     strategy.SaveFunc
		sources  []string
		dlName   string
		want     string
	}{
		{
			name:     "plain fetch error",
			download: func(context.Context, []string) ([]string, error) { return nil, errors.New("network unreachable") },
			save:     ok,
			sources:  []string{"http://x"},
			want:     "network unreachable",
		},
		{
			name:     "empty fetch result",
			download: func(context.Context, []string) ([]string, error) { return nil, nil },
			save:     ok,
			sources:  []string{"http://x"},
			want:     "Unknown error during download.",
		},
		{
			name:     "no sources",
			download: func(context.Context, []string) ([]string, error) { return []string{"/tmp/x"}, nil },
			save:     ok,
			want:     "no sources",
		},
		{
			name:     "per-file save reasons",
			download: func(context.Context, []string) ([]string, error) { return []string{"/tmp/a.mp4", "/tmp/b.mp4"}, nil },
			save: func(context.Context, []string, string) error {
				return &strategy.SaveError{Reasons: []string{"a.mp4: access denied", "b.mp4: access denied"}}
			},
			sources: []string{"http://x"},
			want:    "a.mp4: access denied; b.mp4: access denied",
		},
		{
			name:     "unknown download strategy",
			download: func(context.Context, []string) ([]string, error) { return nil, nil },
			save:     ok,
			sources:  []string{"http://x"},
			dlName:   "gopher_highest",
			want:     "Unknown download strategy: gopher_highest",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := newStore(t)
			reg := strategy.New()
			reg.RegisterDownload(strategy.VideoHighest, "", tt.download)
			reg.RegisterSave(strategy.LocalFilesystemSave, "", tt.save)

			dl := strategy.VideoHighest
			if tt.dlName != "" {
				dl = tt.dlName
			}
			task := create(t, st, dl, strategy.LocalFilesystemSave, tt.sources...)
			if err := New(st, reg, logx.Nop(), nil).Run(context.Background(), task.ID); err == nil {
				t.Fatal("expected job error")
			}
			got := get(t, st, task.ID)
			if got.State != storage.StateFailed || got.ErrorMessage != tt.want {
				t.Fatalf("task = %s %q, want FAILED %q", got.State, got.ErrorMessage, tt.want)
			}
		})
	}
}

func TestRunSkipsNonPending(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	calls := 0
	reg := strategy.New()
	reg.RegisterDownload(strategy.VideoHighest, "", func(context.Context, []string) ([]string, error) {
		calls++
		return nil, errors.New("should not run")
	})
	reg.RegisterSave(strategy.LocalFilesystemSave, "", func(context.Context, []string, string) error { return nil })

	task := create(t, st, strategy.VideoHighest, strategy.LocalFilesystemSave, "http://x")
	if _, _, err := st.ClaimTask(context.Background(), task.ID); err != nil {
		t.Fatalf("ClaimTask: %v", err)
	}
	r := New(st, reg, logx.Nop(), nil)
	if err := r.Run(context.Background(), task.ID); err != nil {
		t.Fatalf("Run on in-progress task: %v", err)
	}
	if err := r.Run(context.Background(), "missing"); err != nil {
		t.Fatalf("Run on missing task: %v", err)
	}
	if calls != 0 {
		t.Fatalf("fetch called %d times", calls)
	}
	if got := get(t, st, task.ID); got.State != storage.StateInProgress {
		t.Fatalf("state = %s, want IN_PROGRESS", got.State)
	}
}

func TestRunPanickingStrategyFailsTask(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		download strategy.FetchFunc
		save     strategy.SaveFunc
	}{
		{
			name: "fetch",
			download: func(context.Context, []string) ([]string, error) {
				var m map[string]int
				m["x"] = 1
				return nil, nil
			},
			save: func(context.Context, []string, string) error { return nil },
		},
		{
			name:     "save",
			download: func(context.Context, []string) ([]string, error) { return []string{"/tmp/a.mp4"}, nil },
			save:     func(context.Context, []string, string) error { panic("bucket gone") },
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := newStore(t)
			reg := strategy.New()
			reg.RegisterDownload(strategy.AudioHighest, "", tt.download)
			reg.RegisterSave(strategy.LocalFilesystemSave, "", tt.save)
			a := create(t, st, strategy.AudioHighest, strategy.LocalFilesystemSave, "http://x/1")
			next := create(t, st, strategy.AudioHighest, strategy.LocalFilesystemSave, "http://x/2")

			bus := eventbus.New()
			events, unsub := bus.Subscribe(4)
			defer unsub()

			var err error
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						t.Fatalf("panic escaped Run: %v", rec)
					}
				}()
				err = New(st, reg, logx.Nop(), bus).Run(context.Background(), a.ID)
			}()
			if err == nil || !strings.HasPrefix(err.Error(), "panic: ") {
				t.Fatalf("Run err = %v, want panic error", err)
			}

			failed := get(t, st, a.ID)
			if failed.State != storage.StateFailed || failed.Priority != nil || !strings.HasPrefix(failed.ErrorMessage, "panic: ") {
				t.Fatalf("task after run = %+v", failed)
			}
			busy, herr := st.HasInProgress(context.Background())
			if herr != nil || busy {
				t.Fatalf("HasInProgress = %v, %v; want false", busy, herr)
			}
			if got := pendingPriorities(t, st, next.ID); got[0] != 1 {
				t.Fatalf("next priority = %v, want [1]", got)
			}
			if ev := <-events; ev.Type != eventbus.JobFailed {
				t.Fatalf("event = %+v, want %s", ev, eventbus.JobFailed)
			}
		})
	}
}

func TestRunDiscardsFetchedFiles(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		saveErr error
		want    storage.State
	}{
		{name: "save failed", saveErr: errors.New("disk full"), want: storage.StateFailed},
		{name: "save ok", want: storage.StateCompleted},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := newStore(t)
			fetched := filepath.Join(t.TempDir(), "clip.mp4")
			reg := strategy.New()
			reg.RegisterDownload(strategy.AudioHighest, "", func(context.Context, []string) ([]string, error) {
				return []string{fetched}, os.WriteFile(fetched, []byte("v"), 0o644)
			})
			reg.RegisterSave(strategy.LocalFilesystemSave, "", func(context.Context, []string, string) error { return tt.saveErr })

			var discarded []string
			r := New(st, reg, logx.Nop(), nil).WithDiscard(func(paths []string) error {
				discarded = append(discarded, paths...)
				return os.Remove(paths[0])
			})
			a := create(t, st, strategy.AudioHighest, strategy.LocalFilesystemSave, "http://x/1")
			_ = r.Run(context.Background(), a.ID)

			if got := get(t, st, a.ID).State; got != tt.want {
				t.Fatalf("state = %s, want %s", got, tt.want)
			}
			if len(discarded) != 1 || discarded[0] != fetched {
				t.Fatalf("discarded = %v, want [%s]", discarded, fetched)
			}
			if _, err := os.Stat(fetched); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("fetched file should be gone, stat err = %v", err)
			}
		})
	}
}
