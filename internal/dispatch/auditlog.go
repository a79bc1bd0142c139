package dispatch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"segcut/internal/label"

	"github.com/gofrs/flock"
)

// AuditLog is an append-only record of completed classifications, one
// "NNN: label" line per chunk with a 1-based index.
type AuditLog struct {
	path string
	mu   sync.Mutex
	f    *os.File
	lock *flock.Flock
}

// OpenAuditLog opens path for appending, creating parent directories. Appends
// are serialized within the process and, through an advisory lock on
// path+".lock", across processes sharing the file.
func OpenAuditLog(path string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &AuditLog{path: path, f: f, lock: flock.New(path + ".lock")}, nil
}

// Path returns the log location.
func (a *AuditLog) Path() string { return a.path }

// Append writes one line for the chunk at zero-based index.
func (a *AuditLog) Append(index int, l label.Label) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.lock.Lock(); err != nil {
		return fmt.Errorf("lock audit log: %w", err)
	}
	defer func() { _ = a.lock.Unlock() }()
	_, err := fmt.Fprintf(a.f, "%s\n", FormatEntry(index, l))
	return err
}

// Close flushes and closes the log.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.f.Close()
}

// FormatEntry renders the audit line for a zero-based index.
func FormatEntry(index int, l label.Label) string {
	return fmt.Sprintf("%03d: %s", index+1, l)
}

// ReadAuditLog rebuilds a label sequence from an audit log. When an index
// appears more than once the last entry wins; indices never logged are
// Unknown.
func ReadAuditLog(r io.Reader) ([]label.Label, error) {
	byIndex := map[int]label.Label{}
	maxIndex := -1
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		num, val, ok := strings.Cut(text, ":")
		if !ok {
			return nil, fmt.Errorf("audit log line %d: missing ':' in %q", line, text)
		}
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("audit log line %d: bad index %q", line, num)
		}
		l, err := label.Parse(val)
		if err != nil {
			return nil, fmt.Errorf("audit log line %d: %w", line, err)
		}
		byIndex[n-1] = l
		maxIndex = max(maxIndex, n-1)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if maxIndex < 0 {
		return nil, errors.New("audit log has no entries")
	}
	out := make([]label.Label, maxIndex+1)
	for i, l := range byIndex {
		out[i] = l
	}
	return out, nil
}
