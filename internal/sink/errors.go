package sink

import (
	"fmt"
	"os"
	"path/filepath"

	"mediafetch/internal/strategy"
)

// failures collects per-file reasons into a strategy.SaveError.
type failures struct {
	reasons []string
}

func (f *failures) add(path string, err error) {
	f.reasons = append(f.reasons, fmt.Sprintf("%s: %v", filepath.Base(path), err))
}

func (f *failures) err() error {
	if len(f.reasons) == 0 {
		return nil
	}
	return &strategy.SaveError{Reasons: f.reasons}
}

// removeLocal deletes persisted files and then their directories when those
// are left empty.
func removeLocal(paths []string) error {
	var f failures
	dirs := map[string]bool{}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			f.add(p, err)
			continue
		}
		dirs[filepath.Dir(p)] = true
	}
	for d := range dirs {
		_ = os.Remove(d)
	}
	return f.err()
}
