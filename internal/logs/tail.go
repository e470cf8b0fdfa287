package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	maxLineBytes = 1024 * 1024
	// followPoll re-reads the file even without events, which covers pointer
	// links swapped to a new run log and filesystems without inotify.
	followPoll = time.Second
)

// Window is the tail of a log file.
type Window struct {
	Lines []string
	// Offset is the file size at read time; Follow resumes from it.
	Offset int64
}

// Tail returns up to limit trailing lines of path. A missing file yields an
// empty window.
func Tail(path string, limit int) (Window, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Window{}, nil
		}
		return Window{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Window{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Window{}, fmt.Errorf("log path %q is a directory", path)
	}
	if limit <= 0 {
		return Window{Offset: info.Size()}, nil
	}

	scanner := newScanner(file)
	ring := make([]string, limit)
	count, idx := 0, 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return Window{}, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return Window{}, fmt.Errorf("determine log offset: %w", err)
	}

	lines := make([]string, count)
	if count == limit {
		for i := range count {
			lines[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return Window{Lines: lines, Offset: offset}, nil
}

// Follow calls emit for every complete line written to path after offset and
// returns when ctx is cancelled. A file that shrinks below the offset is read
// again from the start.
func Follow(ctx context.Context, path string, offset int64, emit func(string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create log watcher: %w", err)
	}
	defer watcher.Close()
	// The file may not exist yet; the poll ticker picks it up once created.
	_ = watcher.Add(path)

	ticker := time.NewTicker(followPoll)
	defer ticker.Stop()

	for {
		next, err := readForward(path, offset, emit)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch log file: %w", err)
		case <-ticker.C:
		}
	}
}

// readForward emits complete lines from offset and returns the offset after
// the last newline, so a partially written line is re-read on the next pass.
func readForward(path string, offset int64, emit func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		emit(line[:len(line)-1])
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}
