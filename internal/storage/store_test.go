package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mediafetch/internal/window"
	logx "mediafetch/pkg/logx"
)

func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T, cfg Config) *sqlStore {
	t.Helper()
	cfg.Driver = "sqlite"
	cfg.Path = filepath.Join(t.TempDir(), "mediafetch.db")
	if cfg.Now == nil {
		cfg.Now = steppingClock()
	}
	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st.(*sqlStore)
}

func intp(v int) *int { return &v }

func mustCreate(t *testing.T, st Store, prio *int) Task {
	t.Helper()
	task, err := st.CreateTask(context.Background(), NewTask{
		Sources:          []string{"http://x/1"},
		DownloadStrategy: "video_highest",
		SaveStrategy:     "LOCAL_FILESYSTEM_SAVE",
		CatalogueName:    "music",
		Priority:         prio,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task
}

// priorities returns id -> priority for pending tasks and fails on any
// broken invariant.
func priorities(t *testing.T, st Store) map[string]int {
	t.Helper()
	tasks, err := st.ListTasks(context.Background(), TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	out := map[string]int{}
	seen := map[int]bool{}
	for _, task := range tasks {
		if (task.Priority != nil) != (task.State == StatePending) {
			t.Fatalf("task %s: state %s with priority %v", task.ID, task.State, task.Priority)
		}
		if task.Priority == nil {
			continue
		}
		p := *task.Priority
		if seen[p] {
			t.Fatalf("duplicate priority %d", p)
		}
		seen[p] = true
		out[task.ID] = p
	}
	for i := 1; i <= len(out); i++ {
		if !seen[i] {
			t.Fatalf("priorities not dense: missing %d in %v", i, out)
		}
	}
	return out
}

func TestCreateAppends(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, Config{})
	for i := 1; i <= 3; i++ {
		task := mustCreate(t, st, nil)
		if task.State != StatePending || task.Priority == nil || *task.Priority != i {
			t.Fatalf("task %d: state=%s priority=%v", i, task.State, task.Priority)
		}
	}
	priorities(t, st)
}

func TestCreateInsertShifts(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, Config{})
	a := mustCreate(t, st, nil)
	b := mustCreate(t, st, nil)
	c := mustCreate(t, st, nil)

	n := mustCreate(t, st, intp(2))
	if *n.Priority != 2 {
		t.Fatalf("new priority = %d, want 2", *n.Priority)
	}
	got := priorities(t, st)
	want := map[string]int{a.ID: 1, n.ID: 2, b.ID: 3, c.ID: 4}
	for id, p := range want {
		if got[id] != p {
			t.Fatalf("priorities = %v, want %v", got, want)
		}
	}
}

func TestCreateClampsRequestedPriority(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{name: "below one", requested: -4, want: 1},
		{name: "zero", requested: 0, want: 1},
		{name: "at max appends", requested: 3, want: 4},
		{name: "above max appends", requested: 99, want: 4},
		{name: "inside", requested: 2, want: 2},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := newTestStore(t, Config{})
			for i := 0; i < 3; i++ {
				mustCreate(t, st, nil)
			}
			task := mustCreate(t, st, intp(tt.requested))
			if *task.Priority != tt.want {
				t.Fatalf("priority = %d, want %d", *task.Priority, tt.want)
			}
			if got := priorities(t, st); got[task.ID] != tt.want || len(got) != 4 {
				t.Fatalf("priorities = %v", got)
			}
		})
	}
}

func TestNextPendingHighestPriorityFirst(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, Config{})
	ctx := context.Background()

	if _, ok, err := st.NextPending(ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	// Built to end up as a:3, b:1, c:2 with a oldest.
	a := mustCreate(t, st, nil)
	b := mustCreate(t, st, intp(1))
	c := mustCreate(t, st, intp(2))
	got := priorities(t, st)
	if got[a.ID] != 3 || got[b.ID] != 1 || got[c.ID] != 2 {
		t.Fatalf("setup priorities = %v", got)
	}

	next, ok, err := st.NextPending(ctx)
	if err != nil || !ok {
		t.Fatalf("NextPending: ok=%v err=%v", ok, err)
	}
	if next.ID != a.ID {
		t.Fatalf("NextPending = %s, want %s", next.ID, a.ID)
	}
}

func TestDeleteCompacts(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, Config{})
	ctx := context.Background()
	a := mustCreate(t, st, nil)
	b := mustCreate(t, st, nil)
	c := mustCreate(t, st, nil)

	if err := st.DeleteTask(ctx, b.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	got := priorities(t, st)
	if len(got) != 2 || got[a.ID] != 1 || got[c.ID] != 2 {
		t.Fatalf("priorities after delete = %v", got)
	}
	if err := st.DeleteTask(ctx, b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestClaimCompleteFail(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, Config{})
	ctx := context.Background()
	a := mustCreate(t, st, nil)
	b := mustCreate(t, st, nil)
	c := mustCreate(t, st, nil)

	claimed, ok, err := st.ClaimTask(ctx, b.ID)
	if err != nil || !ok {
		t.Fatalf("ClaimTask: ok=%v err=%v", ok, err)
	}
	if claimed.State != StateInProgress || claimed.Priority != nil {
		t.Fatalf("claimed = %+v", claimed)
	}
	got := priorities(t, st)
	if got[a.ID] != 1 || got[c.ID] != 2 {
		t.Fatalf("priorities after claim = %v", got)
	}
	if busy, err := st.HasInProgress(ctx); err != nil || !busy {
		t.Fatalf("HasInProgress = %v, %v", busy, err)
	}

	if _, ok, err := st.ClaimTask(ctx, b.ID); err != nil || ok {
		t.Fatalf("second claim: ok=%v err=%v", ok, err)
	}

	if err := st.FailTask(ctx, b.ID, "404 not found"); err != nil {
		t.Fatalf("FailTask: %v", err)
	}
	failed, err := st.GetTask(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if failed.State != StateFailed || failed.ErrorMessage != "404 not found" || failed.Priority != nil {
		t.Fatalf("failed = %+v", failed)
	}
	if got := priorities(t, st); got[a.ID] != 1 || got[c.ID] != 2 {
		t.Fatalf("priorities after fail = %v", got)
	}

	if err := st.CompleteTask(ctx, a.ID); !IsValidation(err) {
		t.Fatalf("completing a pending task: err = %v, want validation error", err)
	}
	if _, _, err := st.ClaimTask(ctx, c.ID); err != nil {
		t.Fatalf("ClaimTask: %v", err)
	}
	if err := st.CompleteTask(ctx, c.ID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	done, _ := st.GetTask(ctx, c.ID)
	if done.State != StateCompleted || done.Priority != nil || done.ErrorMessage != "" {
		t.Fatalf("done = %+v", done)
	}
	if got := priorities(t, st); len(got) != 1 || got[a.ID] != 1 {
		t.Fatalf("priorities after complete = %v", got)
	}
}

func TestUpdateMovesTask(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		move int // index into the created tasks
		to   int
		want []int // final priorities of tasks 0..3
	}{
		{name: "down", move: 3, to: 1, want: []int{2, 3, 4, 1}},
		{name: "up to top appends", move: 0, to: 4, want: []int{4, 1, 2, 3}},
		{name: "middle", move: 0, to: 2, want: []int{2, 1, 3, 4}},
		{name: "at max appends", move: 0, to: 3, want: []int{4, 1, 2, 3}},
		{name: "same slot", move: 1, to: 2, want: []int{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := newTestStore(t, Config{})
			var tasks []Task
			for i := 0; i < 4; i++ {
				tasks = append(tasks, mustCreate(t, st, nil))
			}
			updated, err := st.UpdateTask(context.Background(), tasks[tt.move].ID, TaskPatch{Priority: intp(tt.to)})
			if err != nil {
				t.Fatalf("UpdateTask: %v", err)
			}
			if *updated.Priority != tt.want[tt.move] {
				t.Fatalf("moved priority = %d, want %d", *updated.Priority, tt.want[tt.move])
			}
			got := priorities(t, st)
			for i, task := range tasks {
				if got[task.ID] != tt.want[i] {
					t.Fatalf("task %d priority = %d, want %d (all %v)", i, got[task.ID], tt.want[i], got)
				}
			}
		})
	}
}

func TestUpdateFields(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, Config{StrategyCheck: func(d, s string) error {
		if d == "bogus" {
			return fmt.Errorf("unknown download strategy %q", d)
		}
		return nil
	}})
	ctx := context.Background()
	a := mustCreate(t, st, nil)

	name := "podcasts"
	src := []string{"http://a, http://b", "", "http://c"}
	up, err := st.UpdateTask(ctx, a.ID, TaskPatch{CatalogueName: &name, Sources: &src})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if up.CatalogueName != "podcasts" || len(up.Sources) != 3 || up.Sources[1] != "http://b" {
		t.Fatalf("updated = %+v", up)
	}

	bogus := "bogus"
	if _, err := st.UpdateTask(ctx, a.ID, TaskPatch{DownloadStrategy: &bogus}); !IsValidation(err) {
		t.Fatalf("bogus strategy err = %v", err)
	}
	bad := "Bad Name"
	if _, err := st.UpdateTask(ctx, a.ID, TaskPatch{CatalogueName: &bad}); !IsValidation(err) {
		t.Fatalf("bad catalogue err = %v", err)
	}
	if _, err := st.UpdateTask(ctx, "missing", TaskPatch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}

	if _, _, err := st.ClaimTask(ctx, a.ID); err != nil {
		t.Fatalf("ClaimTask: %v", err)
	}
	if _, err := st.UpdateTask(ctx, a.ID, TaskPatch{Priority: intp(1)}); !IsValidation(err) {
		t.Fatalf("reprioritizing in-progress task err = %v", err)
	}
}

func TestRequeue(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, Config{})
	ctx := context.Background()
	a := mustCreate(t, st, nil)
	b := mustCreate(t, st, nil)

	if _, err := st.RequeueTask(ctx, a.ID); !IsValidation(err) {
		t.Fatalf("requeue pending err = %v", err)
	}
	if _, _, err := st.ClaimTask(ctx, a.ID); err != nil {
		t.Fatalf("ClaimTask: %v", err)
	}
	if err := st.FailTask(ctx, a.ID, "boom"); err != nil {
		t.Fatalf("FailTask: %v", err)
	}

	re, err := st.RequeueTask(ctx, a.ID)
	if err != nil {
		t.Fatalf("RequeueTask: %v", err)
	}
	if re.State != StatePending || re.ErrorMessage != "" || re.Priority == nil || *re.Priority != 2 {
		t.Fatalf("requeued = %+v", re)
	}
	if got := priorities(t, st); got[b.ID] != 1 || got[a.ID] != 2 {
		t.Fatalf("priorities = %v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, Config{
		RejectEmptySources: true,
		StrategyCheck: func(d, s string) error {
			if s != "LOCAL_FILESYSTEM_SAVE" {
				return fmt.Errorf("unknown save strategy %q", s)
			}
			return nil
		},
	})
	long := make([]byte, maxCatalogueLen+1)
	for i := range long {
		long[i] = 'a'
	}
	tests := []struct {
		name  string
		in    NewTask
		field string
	}{
		{name: "uppercase catalogue", in: NewTask{Sources: []string{"u"}, DownloadStrategy: "d", SaveStrategy: "LOCAL_FILESYSTEM_SAVE", CatalogueName: "Music"}, field: "catalogue_name"},
		{name: "long catalogue", in: NewTask{Sources: []string{"u"}, DownloadStrategy: "d", SaveStrategy: "LOCAL_FILESYSTEM_SAVE", CatalogueName: string(long)}, field: "catalogue_name"},
		{name: "empty sources", in: NewTask{Sources: []string{" ", ","}, DownloadStrategy: "d", SaveStrategy: "LOCAL_FILESYSTEM_SAVE"}, field: "sources"},
		{name: "missing download", in: NewTask{Sources: []string{"u"}, SaveStrategy: "LOCAL_FILESYSTEM_SAVE"}, field: "download_strategy"},
		{name: "unknown save", in: NewTask{Sources: []string{"u"}, DownloadStrategy: "d", SaveStrategy: "ftp"}, field: "strategy"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := st.CreateTask(context.Background(), tt.in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Fatalf("field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
	if got := priorities(t, st); len(got) != 0 {
		t.Fatalf("rejected tasks were stored: %v", got)
	}
}

func TestEmptySourcesAllowedByDefault(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, Config{})
	task, err := st.CreateTask(context.Background(), NewTask{DownloadStrategy: "d", SaveStrategy: "s"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	got, err := st.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if len(got.Sources) != 0 {
		t.Fatalf("sources = %v", got.Sources)
	}
}

func TestConcurrentCreatesStayDense(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, Config{})
	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var prio *int
			if i%3 == 0 {
				prio = intp(1)
			}
			_, err := st.CreateTask(context.Background(), NewTask{
				Sources: []string{"u"}, DownloadStrategy: "d", SaveStrategy: "s", Priority: prio,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}
	if got := priorities(t, st); len(got) != n {
		t.Fatalf("got %d pending, want %d", len(got), n)
	}
}

func TestCompactIsIdempotent(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, Config{})
	for i := 0; i < 3; i++ {
		mustCreate(t, st, nil)
	}
	n, err := st.Compact(context.Background())
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if n != 0 {
		t.Fatalf("Compact on dense set wrote %d rows", n)
	}
}

func TestWindows(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, Config{})
	ctx := context.Background()

	if _, ok, err := st.CurrentWindow(ctx); err != nil || ok {
		t.Fatalf("CurrentWindow empty: ok=%v err=%v", ok, err)
	}
	first, err := st.CreateWindow(ctx, window.MustParse("22:00"), window.MustParse("06:00"))
	if err != nil {
		t.Fatalf("CreateWindow: %v", err)
	}
	if _, err := st.CreateWindow(ctx, window.MustParse("09:00"), window.MustParse("10:00")); err != nil {
		t.Fatalf("CreateWindow: %v", err)
	}
	if _, err := st.CreateWindow(ctx, window.TimeOfDay(-1), 0); !IsValidation(err) {
		t.Fatalf("invalid window err = %v", err)
	}

	cur, ok, err := st.CurrentWindow(ctx)
	if err != nil || !ok {
		t.Fatalf("CurrentWindow: ok=%v err=%v", ok, err)
	}
	if cur.ID != first.ID || cur.Start.String() != "22:00" || cur.End.String() != "06:00" {
		t.Fatalf("current = %+v", cur)
	}

	all, err := st.ListWindows(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListWindows = %v, %v", all, err)
	}
	if err := st.DeleteWindow(ctx, first.ID); err != nil {
		t.Fatalf("DeleteWindow: %v", err)
	}
	cur, _, _ = st.CurrentWindow(ctx)
	if cur.Start.String() != "09:00" {
		t.Fatalf("current after delete = %+v", cur)
	}
	if err := st.DeleteWindow(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestEvents(t *testing.T) {
	t.Parallel()
	st := newTestStore(t, Config{})
	ctx := context.Background()

	a, err := st.AppendEvent(ctx, Event{Kind: "job.failed", Level: "error", TaskID: "t1", Message: "404 not found"})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if _, err := st.AppendEvent(ctx, Event{Kind: "job.completed", TaskID: "t2", Message: "ok"}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if _, err := st.AppendEvent(ctx, Event{}); !IsValidation(err) {
		t.Fatalf("empty kind err = %v", err)
	}

	evs, err := st.ListEvents(ctx, EventFilter{})
	if err != nil || len(evs) != 2 {
		t.Fatalf("ListEvents = %v, %v", evs, err)
	}
	if evs[0].Kind != "job.completed" || evs[0].Level != "info" {
		t.Fatalf("newest = %+v", evs[0])
	}

	if err := st.DismissEvent(ctx, a.ID); err != nil {
		t.Fatalf("DismissEvent: %v", err)
	}
	evs, _ = st.ListEvents(ctx, EventFilter{})
	if len(evs) != 1 {
		t.Fatalf("open events = %d, want 1", len(evs))
	}
	evs, _ = st.ListEvents(ctx, EventFilter{IncludeDismissed: true})
	if len(evs) != 2 || evs[1].DismissedAt == nil {
		t.Fatalf("all events = %+v", evs)
	}
	if err := st.DismissEvent(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("dismiss missing err = %v", err)
	}
}

func TestParseSources(t *testing.T) {
	t.Parallel()
	got := ParseSources(" http://a ,http://b\n\n http://c\r\n,")
	want := []string{"http://a", "http://b", "http://c"}
	if len(got) != len(want) {
		t.Fatalf("ParseSources = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ParseSources = %q, want %q", got, want)
		}
	}
}
