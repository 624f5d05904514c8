// Package journal keeps a bounded, in-memory record of pipeline activity for
// the /logs endpoint. It is a fixed-capacity ring buffer: once full, the
// oldest entries are overwritten.
package journal

import (
	"fmt"
	"sync"
	"time"
)

// Level classifies a journal entry.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Entry is a single timestamped journal line.
type Entry struct {
	Time    time.Time `json:"ts"`
	Level   Level     `json:"level"`
	Message string    `json:"text"`
}

// Journal is safe for concurrent use.
type Journal struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	size    int
}

// New creates a journal with the given capacity. Capacity must be positive;
// a non-positive value falls back to 1000.
func New(capacity int) *Journal {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Journal{entries: make([]Entry, capacity)}
}

// Record appends a formatted entry, evicting the oldest when full.
func (j *Journal) Record(level Level, format string, args ...any) {
	entry := Entry{
		Time:    time.Now(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[(j.head+j.size)%len(j.entries)] = entry
	if j.size < len(j.entries) {
		j.size++
	} else {
		j.head = (j.head + 1) % len(j.entries)
	}
}

// Infof records an info-level entry.
func (j *Journal) Infof(format string, args ...any) { j.Record(LevelInfo, format, args...) }

// Warnf records a warn-level entry.
func (j *Journal) Warnf(format string, args ...any) { j.Record(LevelWarn, format, args...) }

// Errorf records an error-level entry.
func (j *Journal) Errorf(format string, args ...any) { j.Record(LevelError, format, args...) }

// Tail returns up to limit entries, oldest first, ending at the newest.
// A non-positive limit returns everything retained.
func (j *Journal) Tail(limit int) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	n := j.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	start := j.size - n
	for i := start; i < j.size; i++ {
		out = append(out, j.entries[(j.head+i)%len(j.entries)])
	}
	return out
}

// Since returns all retained entries recorded strictly after t, oldest first.
func (j *Journal) Since(t time.Time) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Entry
	for i := 0; i < j.size; i++ {
		e := j.entries[(j.head+i)%len(j.entries)]
		if e.Time.After(t) {
			out = append(out, e)
		}
	}
	return out
}

// Len reports how many entries are currently retained.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.size
}
