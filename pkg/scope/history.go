package scope

import "github.com/itohio/godaq/pkg/sample"

// history is a fixed-size ring of the newest readings.
type history struct {
	rows  []sample.Reading
	start int // Index of the oldest row
	count int
	first int // Cycle index of the oldest row
}

func newHistory(size int) *history {
	if size < 2 {
		size = 2
	}
	return &history{rows: make([]sample.Reading, size)}
}

// push stores a copy of r as cycle. Cycles must be pushed in increasing order.
func (h *history) push(cycle int, r sample.Reading) {
	size := len(h.rows)
	if h.count < size {
		h.rows[(h.start+h.count)%size] = r.Clone()
		h.count++
	} else {
		// Reuse the oldest row's backing array
		old := h.rows[h.start]
		if cap(old) >= len(r) {
			old = old[:len(r)]
			copy(old, r)
		} else {
			old = r.Clone()
		}
		h.rows[h.start] = old
		h.start = (h.start + 1) % size
	}
	h.first = cycle - h.count + 1
}

// values appends the stored rows oldest first to dst.
func (h *history) values(dst []sample.Reading) []sample.Reading {
	dst = dst[:0]
	for i := range h.count {
		dst = append(dst, h.rows[(h.start+i)%len(h.rows)])
	}
	return dst
}

func (h *history) len() int { return h.count }

// firstCycle returns the cycle index of the oldest row.
func (h *history) firstCycle() int { return h.first }

func (h *history) reset() {
	clear(h.rows)
	h.start, h.count, h.first = 0, 0, 0
}
