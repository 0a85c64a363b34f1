package daq

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelSpec identifies a device and a contiguous range of analog input
// channels, e.g. "Dev1/ai0:3". It is immutable once parsed.
type ChannelSpec struct {
	device string
	prefix string
	first  int
	last   int
}

// ParseChannelSpec parses the compact notation "<device>/<prefix><first>[:<last>]".
func ParseChannelSpec(s string) (ChannelSpec, error) {
	s = strings.TrimSpace(s)
	device, lines, ok := strings.Cut(s, "/")
	if !ok || device == "" || lines == "" {
		return ChannelSpec{}, fmt.Errorf("invalid channel spec %q: expected <device>/<channels>", s)
	}

	// Split the line prefix from the first index
	i := strings.IndexFunc(lines, func(r rune) bool { return r >= '0' && r <= '9' })
	if i < 0 {
		return ChannelSpec{}, fmt.Errorf("invalid channel spec %q: missing channel index", s)
	}
	prefix := lines[:i]
	first, rest, isRange := strings.Cut(lines[i:], ":")

	firstIdx, err := strconv.Atoi(first)
	if err != nil {
		return ChannelSpec{}, fmt.Errorf("invalid channel spec %q: %w", s, err)
	}
	lastIdx := firstIdx
	if isRange {
		// Accept both "ai0:3" and "ai0:ai3"
		rest = strings.TrimPrefix(rest, prefix)
		lastIdx, err = strconv.Atoi(rest)
		if err != nil {
			return ChannelSpec{}, fmt.Errorf("invalid channel spec %q: %w", s, err)
		}
	}
	if lastIdx < firstIdx {
		return ChannelSpec{}, fmt.Errorf("invalid channel spec %q: range end %d before start %d", s, lastIdx, firstIdx)
	}

	return ChannelSpec{device: device, prefix: prefix, first: firstIdx, last: lastIdx}, nil
}

// Device returns the device name, e.g. "Dev1".
func (c ChannelSpec) Device() string { return c.device }

// First returns the first channel index.
func (c ChannelSpec) First() int { return c.first }

// Count returns the number of channels in the range (always >= 1 for a parsed spec).
func (c ChannelSpec) Count() int { return c.last - c.first + 1 }

// Names returns the line names of every channel, e.g. ["ai0", "ai1"].
func (c ChannelSpec) Names() []string {
	names := make([]string, 0, c.Count())
	for i := c.first; i <= c.last; i++ {
		names = append(names, c.prefix+strconv.Itoa(i))
	}
	return names
}

// String returns the physical channel string in compact notation.
func (c ChannelSpec) String() string {
	if c.first == c.last {
		return fmt.Sprintf("%s/%s%d", c.device, c.prefix, c.first)
	}
	return fmt.Sprintf("%s/%s%d:%d", c.device, c.prefix, c.first, c.last)
}
