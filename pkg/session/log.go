package session

import (
	"iter"
	"sync"
	"sync/atomic"

	"github.com/itohio/godaq/pkg/sample"
)

// Log is an append-only table of per-cycle readings.
//
// It has a single writer: the acquisition loop. Any number of readers may
// call Snapshot, Latest, Len or Rows concurrently with Append without
// blocking the writer. Readers see the table either before or after an
// append, never a partially written row.
type Log struct {
	mu   sync.Mutex                      // Serializes appends
	rows atomic.Pointer[[]sample.Reading] // Published rows, never modified in place
}

// New creates an empty log.
func New() *Log {
	l := &Log{}
	l.rows.Store(&[]sample.Reading{})
	return l
}

// Append stores a copy of r and returns its cycle index. Indices start at 0
// and grow by one per call.
func (l *Log) Append(r sample.Reading) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows := append(*l.rows.Load(), r.Clone())
	l.rows.Store(&rows)
	return len(rows) - 1
}

// Snapshot returns the rows appended so far, oldest first. The returned
// slice is stable: later appends do not change it. Rows must not be modified.
func (l *Log) Snapshot() []sample.Reading {
	rows := *l.rows.Load()
	return rows[:len(rows):len(rows)]
}

// Latest returns the newest row and true, or nil and false when the log is empty.
func (l *Log) Latest() (sample.Reading, bool) {
	rows := *l.rows.Load()
	if len(rows) == 0 {
		return nil, false
	}
	return rows[len(rows)-1], true
}

// Len returns the number of rows.
func (l *Log) Len() int {
	return len(*l.rows.Load())
}

// Rows iterates over a snapshot of the log as (cycle index, reading) pairs.
// Each call to the iterator restarts from the first row.
func (l *Log) Rows() iter.Seq2[int, sample.Reading] {
	rows := l.Snapshot()
	return func(yield func(int, sample.Reading) bool) {
		for i, r := range rows {
			if !yield(i, r) {
				return
			}
		}
	}
}
