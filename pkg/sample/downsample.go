package sample

// Downsample reduces src to at most maxPoints values by simple decimation.
// Destination-based: reuses dst if it has sufficient capacity, otherwise allocates new.
// Returns the destination slice (may be dst if reused, or a new slice if dst was too small).
// If len(src) <= maxPoints, copies all values to dst.
func Downsample[T any](dst []T, src []T, maxPoints int) []T {
	if maxPoints <= 0 || len(src) <= maxPoints {
		if cap(dst) >= len(src) {
			dst = dst[:len(src)]
			copy(dst, src)
			return dst
		}
		result := make([]T, len(src))
		copy(result, src)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]T, 0, maxPoints)
	}

	if maxPoints == 1 {
		return append(dst, src[len(src)-1])
	}

	// Keep the newest value so the display always ends at the latest reading
	step := float64(len(src)-1) / float64(maxPoints-1)
	for i := range maxPoints {
		idx := int(float64(i)*step + 0.5)
		if idx >= len(src) {
			idx = len(src) - 1
		}
		dst = append(dst, src[idx])
	}

	return dst
}
