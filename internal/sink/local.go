package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	logx "mediafetch/pkg/logx"
)

// Local copies files into Root/<prefix><catalogue>.
type Local struct {
	Root   string
	Prefix string
	log    logx.Logger
}

func NewLocal(root, prefix string, log logx.Logger) *Local {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Local{Root: root, Prefix: prefix, log: log.With(logx.String("comp", "sink.local"))}
}

func (l *Local) Save(ctx context.Context, paths []string, catalogue string) error {
	if strings.TrimSpace(l.Root) == "" {
		return errors.New("local sink: destination root is not configured")
	}
	dest := filepath.Join(l.Root, l.Prefix+catalogue)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create destination %s: %w", dest, err)
	}

	var f failures
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			f.add(p, err)
			continue
		}
		if err := copyFile(p, filepath.Join(dest, filepath.Base(p))); err != nil {
			f.add(p, err)
		}
	}
	if err := f.err(); err != nil {
		l.log.Warn("local save incomplete", logx.String("dest", dest), logx.Int("failed", len(f.reasons)), logx.Int("files", len(paths)))
		return err
	}
	l.log.Info("local save finished", logx.String("dest", dest), logx.Int("files", len(paths)))
	return removeLocal(paths)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
