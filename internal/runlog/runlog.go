// Package runlog writes the per-run append-only text log. One timestamped
// line per event; the file is rotated once it grows past the size
// threshold. These logs are the only observability surface for a run, so
// they are plain files a person can tail, not structured process logs.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const defaultMaxBytes = 1 << 20

type Log struct {
	path     string
	maxBytes int64
	mu       sync.Mutex
}

func New(path string) *Log {
	return &Log{path: path, maxBytes: defaultMaxBytes}
}

// Open makes the log for a run id inside a logs directory.
func Open(logsDir, runID string) *Log {
	return New(filepath.Join(logsDir, runID+".log"))
}

func (l *Log) Path() string {
	return l.path
}

// Append writes one timestamped line, rotating first if the file is over
// the threshold.
func (l *Log) Append(message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	if err := l.rotateIfNeeded(); err != nil {
		return err
	}

	line := fmt.Sprintf("[%s] %s\n", time.Now().UTC().Format(time.RFC3339), message)
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.WriteString(line); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (l *Log) Appendf(format string, args ...any) error {
	return l.Append(fmt.Sprintf(format, args...))
}

// rotateIfNeeded moves the current file aside, replacing any previous
// rotation. Only one generation is kept.
func (l *Log) rotateIfNeeded() error {
	info, err := os.Stat(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() < l.maxBytes {
		return nil
	}
	return os.Rename(l.path, l.path+".1")
}
