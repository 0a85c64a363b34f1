// Package baseline removes the zero offset of every channel of a session.
package baseline

import "github.com/itohio/godaq/pkg/sample"

// DefaultWindow is the number of leading rows averaged into the baseline.
const DefaultWindow = 20

// Estimate returns the per-channel mean of the first min(window, len(series))
// rows. A window below 1 is treated as 1. An empty series yields nil.
// Rows of uneven width are averaged per channel over the rows that have it.
func Estimate(series []sample.Reading, window int) sample.Reading {
	if len(series) == 0 {
		return nil
	}
	window = min(max(window, 1), len(series))

	channels := 0
	for _, row := range series[:window] {
		channels = max(channels, len(row))
	}
	est := make(sample.Reading, channels)
	counts := make([]int, channels)
	for _, row := range series[:window] {
		for c, v := range row {
			est[c] += v
			counts[c]++
		}
	}
	for c := range est {
		est[c] /= float64(counts[c])
	}
	return est
}

// Correct subtracts the baseline estimate from every row of series and
// returns the corrected copy. The input is not modified. Channels with no
// value inside the window have no baseline and are copied unchanged.
func Correct(series []sample.Reading, window int) []sample.Reading {
	est := Estimate(series, window)
	out := make([]sample.Reading, len(series))
	for i, row := range series {
		corrected := make(sample.Reading, len(row))
		for c, v := range row {
			if c < len(est) {
				v -= est[c]
			}
			corrected[c] = v
		}
		out[i] = corrected
	}
	return out
}
