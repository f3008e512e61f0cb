// Package audit keeps an append-only trail of payment activity. Insertion
// order is the sole replay mechanism for reconciling disputed payments, so
// records are never mutated, deleted, or batched.
package audit

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Trail appends timestamped line records to a local file. Each append is a
// single atomic write, safe for concurrent payment attempts. Append failures
// never reach the caller; they go to the diagnostic logger only.
type Trail struct {
	mu       sync.Mutex
	f        *os.File
	observer func(line string)
	now      func() time.Time
}

func Open(path string) (*Trail, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit trail: %w", err)
	}
	return &Trail{f: f, now: time.Now}, nil
}

// SetObserver registers a hook that sees each appended line (used by the
// live trail feed). Must be called before the trail is in use; the observer
// must not block.
func (t *Trail) SetObserver(fn func(line string)) {
	t.observer = fn
}

// Append writes one timestamped record. Fire-and-forget: a storage failure
// is reported to the diagnostic log and swallowed so it can never alter a
// payment outcome.
func (t *Trail) Append(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	line := t.now().Format(time.RFC3339Nano) + " " + msg + "\n"
	t.mu.Lock()
	_, err := t.f.WriteString(line)
	t.mu.Unlock()
	if err != nil {
		log.Printf("[audit] append failed: %v (record: %s)", err, msg)
	}
	if t.observer != nil {
		t.observer(line)
	}
}

func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.f.Close()
}
