package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "mediafetch/pkg/logx"
)

var ErrNoSources = errors.New("no sources")

// dirPattern names the per-fetch temporary directories.
const dirPattern = "mediafetch-"

type Options struct {
	// TempDir is the parent of per-fetch directories. Empty uses os.TempDir.
	TempDir string
	// Timeout bounds a whole fetch. Zero means no limit.
	Timeout time.Duration
}

type Downloader struct {
	runner  Runner
	tempDir string
	timeout time.Duration
	log     logx.Logger
}

func NewDownloader(r Runner, opts Options, log logx.Logger) *Downloader {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Downloader{
		runner:  r,
		tempDir: opts.TempDir,
		timeout: opts.Timeout,
		log:     log.With(logx.String("comp", "fetch")),
	}
}

// Strategy binds media and mode into a fetch function.
func (d *Downloader) Strategy(media Media, mode Mode) func(ctx context.Context, sources []string) ([]string, error) {
	return func(ctx context.Context, sources []string) ([]string, error) {
		return d.Fetch(ctx, media, mode, sources)
	}
}

// Fetch downloads sources into a fresh temporary directory and returns the
// produced files in yt-dlp's output order.
func (d *Downloader) Fetch(ctx context.Context, media Media, mode Mode, sources []string) (paths []string, err error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	if d.tempDir != "" {
		if err := os.MkdirAll(d.tempDir, 0o755); err != nil {
			return nil, err
		}
	}
	dir, err := os.MkdirTemp(d.tempDir, dirPattern)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	what := describe(media, mode)
	base := Args(media, mode)
	start := time.Now()
	d.log.Info("fetch started", logx.String("kind", what), logx.Int("sources", len(sources)), logx.String("dir", dir))

	seen := map[string]bool{}
	collect := func(out []byte) {
		for _, p := range parsePaths(out, dir) {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}

	switch mode {
	case List:
		if err := os.WriteFile(filepath.Join(dir, batchFile), []byte(strings.Join(sources, "\n")+"\n"), 0o644); err != nil {
			return nil, err
		}
		out, runErr := d.runner.Run(ctx, dir, append(base, "--batch-file", batchFile))
		_ = os.Remove(filepath.Join(dir, batchFile))
		if runErr != nil {
			return nil, fmt.Errorf("error downloading %s: %w", what, runErr)
		}
		collect(out)
	default:
		for _, src := range sources {
			args := append(append([]string(nil), base...), "--", src)
			out, runErr := d.runner.Run(ctx, dir, args)
			if runErr != nil {
				return nil, fmt.Errorf("error downloading %s: %w", what, runErr)
			}
			collect(out)
		}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("failed to retrieve %s information", what)
	}
	d.log.Info("fetch finished", logx.String("kind", what), logx.Int("files", len(paths)), logx.Duration("took", time.Since(start)))
	return paths, nil
}

// parsePaths maps printed file paths onto dir. yt-dlp prints paths as the
// runner sees them, which differs from the host view for containers.
func parsePaths(out []byte, dir string) []string {
	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paths = append(paths, filepath.Join(dir, filepath.Base(line)))
	}
	return paths
}

// Discard removes the fetch directories that hold paths. Paths outside a
// fetch directory are left alone.
func Discard(paths []string) error {
	var errs []error
	seen := map[string]bool{}
	for _, p := range paths {
		dir := filepath.Dir(p)
		if seen[dir] || !strings.HasPrefix(filepath.Base(dir), dirPattern) {
			continue
		}
		seen[dir] = true
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
