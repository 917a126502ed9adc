package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/newtron-network/gns3cp/pkg/util"
)

// Logger records and queries events.
type Logger interface {
	Log(event *Event) error
	Query(filter Filter) ([]*Event, error)
	Close() error
}

// FileLogger appends events to a JSON-lines file. Rotated generations are
// kept beside it as path.1 (newest) to path.N and stay visible to Query.
type FileLogger struct {
	path     string
	rotation RotationConfig

	mu   sync.RWMutex
	file *os.File
	size int64
}

// RotationConfig configures size-based rotation. A zero MaxSize disables
// rotation; MaxBackups below one keeps a single generation.
type RotationConfig struct {
	MaxSize    int64 // bytes before the file is rotated
	MaxBackups int   // rotated generations to keep
}

func (r RotationConfig) generations() int {
	if r.MaxBackups < 1 {
		return 1
	}
	return r.MaxBackups
}

// NewFileLogger opens (or creates) the log at path.
func NewFileLogger(path string, rotation RotationConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("audit: create log directory: %w", err)
	}
	l := &FileLogger{path: path, rotation: rotation}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("audit: open log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("audit: stat log: %w", err)
	}
	l.file, l.size = file, info.Size()
	return nil
}

// Log appends event as one line, rotating first when the file is full.
func (l *FileLogger) Log(event *Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: encode event %s: %w", event.ID, err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("audit: log %s is closed", l.path)
	}
	if l.rotation.MaxSize > 0 && l.size > 0 && l.size+int64(len(line)) > l.rotation.MaxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("audit: rotate %s: %w", l.path, err)
		}
	}
	n, err := l.file.Write(line)
	l.size += int64(n)
	return err
}

// Query returns the events matching filter across the current file and its
// rotated generations, oldest first. Offset and Limit apply after filtering.
func (l *FileLogger) Query(filter Filter) ([]*Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	events := []*Event{}
	for _, path := range l.generationPaths() {
		var err error
		if events, err = readEvents(path, filter, events); err != nil {
			return nil, err
		}
	}
	return page(events, filter.Offset, filter.Limit), nil
}

// generationPaths lists the log files from oldest to newest.
func (l *FileLogger) generationPaths() []string {
	var paths []string
	for i := l.rotation.generations(); i >= 1; i-- {
		paths = append(paths, l.backup(i))
	}
	return append(paths, l.path)
}

func (l *FileLogger) backup(i int) string {
	return l.path + "." + strconv.Itoa(i)
}

// readEvents appends the matching events of path to out. A missing file
// contributes nothing; malformed lines are skipped.
func readEvents(path string, filter Filter, out []*Event) ([]*Event, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("audit: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for line := 1; scanner.Scan(); line++ {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			util.Warnf("audit: skipping malformed entry in %s at line %d: %v", path, line, err)
			continue
		}
		if filter.matches(&ev) {
			out = append(out, &ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: read %s: %w", path, err)
	}
	return out, nil
}

// maxLine bounds a single encoded event.
const maxLine = 1 << 20

func page(events []*Event, offset, limit int) []*Event {
	if offset > 0 {
		if offset >= len(events) {
			return []*Event{}
		}
		events = events[offset:]
	}
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events
}

// Close closes the file. Further Log calls fail.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (f Filter) matches(ev *Event) bool {
	switch {
	case f.Reservation != "" && ev.Reservation != f.Reservation:
		return false
	case f.Operation != "" && ev.Operation != f.Operation:
		return false
	case f.NodeID != "" && ev.NodeID != f.NodeID:
		return false
	case !f.StartTime.IsZero() && ev.Timestamp.Before(f.StartTime):
		return false
	case !f.EndTime.IsZero() && ev.Timestamp.After(f.EndTime):
		return false
	case f.FailureOnly && ev.Success:
		return false
	}
	return true
}

// rotate shifts path.i to path.i+1, dropping the oldest generation, and
// moves the current file to path.1.
func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	l.file = nil

	keep := l.rotation.generations()
	if err := os.Remove(l.backup(keep)); err != nil && !os.IsNotExist(err) {
		util.WithField("path", l.backup(keep)).WithError(err).Warn("audit: failed to remove oldest log")
	}
	for i := keep - 1; i >= 1; i-- {
		if err := os.Rename(l.backup(i), l.backup(i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := os.Rename(l.path, l.backup(1)); err != nil {
		return err
	}
	return l.open()
}

// Discard is a Logger that records nothing.
var Discard Logger = discard{}

type discard struct{}

func (discard) Log(*Event) error                { return nil }
func (discard) Query(Filter) ([]*Event, error) { return []*Event{}, nil }
func (discard) Close() error                   { return nil }
