package daq

// Mode selects the sensing type of a burst.
type Mode int

const (
	Voltage Mode = iota
	Current
)

func (m Mode) String() string {
	switch m {
	case Voltage:
		return "voltage"
	case Current:
		return "current"
	default:
		return "unknown"
	}
}

// Burst is one bounded batch of samples, de-interleaved: all samples of
// channel 0, then channel 1, and so on. len(Samples) == PerChannel*Channels.
type Burst struct {
	Mode       Mode
	Channels   int
	PerChannel int
	Samples    []float64
}

// Segment returns the samples of channel ch.
func (b Burst) Segment(ch int) []float64 {
	return b.Samples[ch*b.PerChannel : (ch+1)*b.PerChannel]
}

// Deinterleave converts scan-ordered samples (ch0,ch1,..,ch0,ch1,..) into
// channel-grouped order in dst. Both slices hold scans*channels values.
func Deinterleave(dst, src []float64, channels int) {
	if channels <= 0 {
		return
	}
	scans := len(src) / channels
	for s := range scans {
		for c := range channels {
			dst[c*scans+s] = src[s*channels+c]
		}
	}
}

// truncate compacts a channel-grouped buffer sized for requested samples per
// channel down to the first read samples of every channel.
func truncate(buf []float64, channels, requested, read int) []float64 {
	if read >= requested {
		return buf
	}
	if read <= 0 {
		return buf[:0]
	}
	for c := 1; c < channels; c++ {
		copy(buf[c*read:(c+1)*read], buf[c*requested:c*requested+read])
	}
	return buf[:channels*read]
}
