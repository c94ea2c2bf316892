package fetch

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// Runner executes yt-dlp with args so that its output lands in dir, and
// returns stdout. Runners prepend the output directory argument themselves.
type Runner interface {
	Run(ctx context.Context, dir string, args []string) ([]byte, error)
}

// RunError is a yt-dlp invocation that exited unsuccessfully.
type RunError struct {
	Err    error
	Stderr string
}

// Error returns the last yt-dlp ERROR line when there is one.
func (e *RunError) Error() string {
	lines := strings.Split(strings.TrimSpace(e.Stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if rest, ok := strings.CutPrefix(l, "ERROR:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	if l := strings.TrimSpace(lines[len(lines)-1]); l != "" {
		return l
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "yt-dlp failed"
}

func (e *RunError) Unwrap() error { return e.Err }

// ExecRunner runs a local yt-dlp binary.
type ExecRunner struct {
	Binary string
}

func (r ExecRunner) binary() string {
	if b := strings.TrimSpace(r.Binary); b != "" {
		return b
	}
	return "yt-dlp"
}

func (r ExecRunner) Run(ctx context.Context, dir string, args []string) ([]byte, error) {
	full := append([]string{"-P", dir}, args...)
	cmd := exec.CommandContext(ctx, r.binary(), full...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return stdout.Bytes(), ctx.Err()
		}
		return stdout.Bytes(), &RunError{Err: err, Stderr: stderr.String()}
	}
	return stdout.Bytes(), nil
}
