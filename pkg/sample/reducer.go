package sample

import "fmt"

// Reading holds one scalar value per channel for one acquisition cycle.
type Reading []float64

// Clone returns a copy of r that does not share its backing array.
func (r Reading) Clone() Reading {
	if r == nil {
		return nil
	}
	out := make(Reading, len(r))
	copy(out, r)
	return out
}

// MalformedBurstError is returned when a burst cannot be split into equal
// channel segments.
type MalformedBurstError struct {
	Length   int
	Channels int
}

func (e *MalformedBurstError) Error() string {
	return fmt.Sprintf("malformed burst: length %d is not a positive multiple of %d channels", e.Length, e.Channels)
}

// Reduce converts a de-interleaved burst into a Reading by taking the last
// (freshest) sample of every channel segment.
func Reduce(burst []float64, channels int) (Reading, error) {
	if channels < 1 || len(burst) == 0 || len(burst)%channels != 0 {
		return nil, &MalformedBurstError{Length: len(burst), Channels: channels}
	}

	perChannel := len(burst) / channels
	r := make(Reading, channels)
	for c := range channels {
		r[c] = burst[(c+1)*perChannel-1]
	}
	return r, nil
}
