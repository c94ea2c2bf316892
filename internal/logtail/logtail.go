// Package logtail reads the last lines of the execution log.
package logtail

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
)

// DefaultLines is how much of the log the API shows.
const DefaultLines = 500

const chunkSize = 32 << 10

// Read returns up to n trailing lines of path, oldest first. A missing file
// yields no lines.
func Read(path string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultLines
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return tail(f, st.Size(), n)
}

// tail reads backwards in chunks until it has seen n+1 newlines or the
// start of the file.
func tail(r io.ReaderAt, size int64, n int) ([]string, error) {
	var (
		buf []byte
		off = size
	)
	for off > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		step := int64(chunkSize)
		if step > off {
			step = off
		}
		off -= step
		chunk := make([]byte, step)
		if _, err := r.ReadAt(chunk, off); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		buf = append(chunk, buf...)
	}

	text := strings.TrimRight(string(buf), "\n")
	if text == "" {
		return []string{}, nil
	}
	lines := strings.Split(text, "\n")
	if off > 0 {
		// The first line is partial.
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, ln := range lines {
		lines[i] = strings.TrimSuffix(ln, "\r")
	}
	return lines, nil
}
