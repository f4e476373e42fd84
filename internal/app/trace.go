package app

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// tracer appends one CSV line per handled event with its handling time.
// Pause events include the wait for the audio loop to exit.
type tracer struct {
	mu   sync.Mutex
	file *os.File
}

func newTracer(path string, logger *log.Logger) *tracer {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if logger != nil {
			logger.Printf("event trace disabled: %v", err)
		}
		return nil
	}
	t := &tracer{file: f}
	fmt.Fprintln(t.file, "timestamp,event,duration_ms")
	return t
}

func (t *tracer) record(event string, d time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return
	}
	timestamp := time.Now().Format(time.RFC3339Nano)
	fmt.Fprintf(t.file, "%s,%s,%.3f\n", timestamp, event, d.Seconds()*1000)
}

func (t *tracer) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}
