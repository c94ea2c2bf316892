package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mediafetch/internal/storage"
	"mediafetch/internal/window"
)

func execute(t *testing.T, srvURL string, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	if srvURL != "" {
		args = append(args, "--url", srvURL)
	}
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestTaskAddSendsPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tasks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		var in taskPayload
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(in.Sources) != 2 || in.Sources[0] != "https://a" || in.Sources[1] != "https://b" {
			t.Errorf("sources = %v", in.Sources)
		}
		if in.CatalogueName != "music" || in.DownloadStrategy != "audio_highest" {
			t.Errorf("payload = %+v", in)
		}
		if in.Priority == nil || *in.Priority != 2 {
			t.Errorf("priority = %v", in.Priority)
		}
		p := 2
		writeJSON(w, http.StatusCreated, storage.Task{ID: "t-1", State: storage.StatePending, Priority: &p})
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, "", "task", "add", "https://a", "https://b",
		"--catalogue", "music", "--download", "audio_highest", "--priority", "2", "--token", "test-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Task t-1 queued at priority 2") {
		t.Fatalf("output = %q", out)
	}
}

func TestTaskAddOmitsPriorityAndReadsStdin(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode: %v", err)
		}
		if _, ok := raw["priority"]; ok {
			t.Errorf("priority sent without --priority: %v", raw)
		}
		src, _ := raw["sources"].([]any)
		if len(src) != 3 {
			t.Errorf("sources = %v", raw["sources"])
		}
		p := 4
		writeJSON(w, http.StatusCreated, storage.Task{ID: "t-2", Priority: &p})
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, "https://a\nhttps://b, https://c\n\n", "task", "add", "--file", "-", "--catalogue", "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "priority 4") {
		t.Fatalf("output = %q", out)
	}
}

func TestTaskAddRequiresSource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	if _, err := execute(t, srv.URL, "", "task", "add", "--catalogue", "x"); err == nil {
		t.Fatalf("expected error without sources")
	}
}

func TestTaskListPrintsTable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("state"); got != "PENDING" {
			t.Errorf("state = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q", got)
		}
		p := 1
		writeJSON(w, http.StatusOK, []storage.Task{{
			ID: "t-9", State: storage.StatePending, Priority: &p, CatalogueName: "talks",
			DownloadStrategy: "video_highest", SaveStrategy: "LOCAL_FILESYSTEM_SAVE",
			Sources: []string{"https://a"}, CreatedAt: time.Now(),
		}})
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, "", "task", "ls", "--state", "pending", "--limit", "5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"ID", "t-9", "PENDING", "talks", "video_highest"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTaskEditSendsOnlyChangedFields(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/tasks/t-3" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var raw map[string]any
		_ = json.NewDecoder(r.Body).Decode(&raw)
		if len(raw) != 1 || raw["priority"] != float64(1) {
			t.Errorf("body = %v", raw)
		}
		p := 1
		writeJSON(w, http.StatusOK, storage.Task{ID: "t-3", State: storage.StatePending, Priority: &p})
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, "", "task", "edit", "t-3", "--priority", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Priority:   1") {
		t.Fatalf("output = %q", out)
	}
}

func TestTaskEditWithoutFlags(t *testing.T) {
	t.Parallel()

	if _, err := execute(t, "http://127.0.0.1:1", "", "task", "edit", "t-3"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Unknown download strategy: nope",
			"field": "download_strategy",
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").CreateTask(t.Context(), taskPayload{Sources: []string{"x"}, CatalogueName: "c", DownloadStrategy: "nope"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Field != "download_strategy" {
		t.Fatalf("err = %+v", apiErr)
	}
	if !strings.Contains(err.Error(), "Unknown download strategy: nope") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestTaskRemoveReportsEachFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path == "/api/tasks/gone" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, "", "task", "rm", "a", "gone")
	if err == nil || !strings.Contains(err.Error(), "gone") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out, "Task a deleted") {
		t.Fatalf("output = %q", out)
	}
}

func TestWindowAdd(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]string
		_ = json.NewDecoder(r.Body).Decode(&raw)
		if raw["start"] != "23:00" || raw["end"] != "06:30" {
			t.Errorf("body = %v", raw)
		}
		start, _ := window.Parse(raw["start"])
		end, _ := window.Parse(raw["end"])
		writeJSON(w, http.StatusCreated, storage.Window{ID: "w-1", Start: start, End: end})
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, "", "window", "add", "23:00", "6:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Window w-1 created: 23:00 - 06:30") {
		t.Fatalf("output = %q", out)
	}
}

func TestWindowAddRejectsBadTime(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	if _, err := execute(t, srv.URL, "", "window", "add", "25:00", "06:00"); err == nil {
		t.Fatalf("expected error for 25:00")
	}
}

func TestEventsDismiss(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/events/12/dismiss" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, "", "events", "dismiss", "12")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Event 12 dismissed") {
		t.Fatalf("output = %q", out)
	}
	if _, err := execute(t, srv.URL, "", "events", "dismiss", "abc"); err == nil {
		t.Fatalf("expected error for non-numeric id")
	}
}

func TestTokenFromEnvironment(t *testing.T) {
	t.Setenv("MEDIAFETCH_TOKEN", "env-token")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer env-token" {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(w, http.StatusOK, []storage.Window{})
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, "", "window", "ls")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No windows") {
		t.Fatalf("output = %q", out)
	}
}

func TestClip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"a  b\nc", 10, "a b c"},
		{"abcdefghij", 5, "abcd…"},
	}
	for _, tt := range tests {
		tt := tt
		if got := clip(tt.in, tt.n); got != tt.want {
			t.Fatalf("clip(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
