package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownsample_NoDownsampling(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 0.4, 0.5}

	// Test with nil dst
	result := Downsample(nil, values, 10)
	require.Equal(t, 5, len(result))
	assert.Equal(t, values, result)

	// Test with sufficient capacity dst
	dst := make([]float64, 0, 10)
	result = Downsample(dst, values, 10)
	require.Equal(t, 5, len(result))
	assert.Equal(t, values, result)
	// Should reuse dst
	assert.Equal(t, cap(dst), cap(result))
}

func TestDownsample_WithDownsampling(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i)
	}

	dst := make([]float64, 0, 20)
	result := Downsample(dst, values, 10)
	require.Equal(t, 10, len(result))

	// First and newest values are always kept
	assert.Equal(t, 0.0, result[0])
	assert.Equal(t, 99.0, result[9])
	for i := 1; i < len(result); i++ {
		assert.Greater(t, result[i], result[i-1])
	}
	assert.Equal(t, cap(dst), cap(result))
}

func TestDownsample_DestinationReuse(t *testing.T) {
	dst := make([]Reading, 0, 10)
	result1 := Downsample(dst, []Reading{{1}, {2}}, 10)
	require.Equal(t, 2, len(result1))

	result2 := Downsample(result1, []Reading{{3}, {4}, {5}}, 10)
	require.Equal(t, 3, len(result2))
	assert.Equal(t, Reading{5}, result2[2])

	// Should reuse same underlying array
	assert.Equal(t, cap(result1), cap(result2))
}

func TestDownsample_EmptyInput(t *testing.T) {
	result := Downsample(nil, []float64{}, 10)
	require.Equal(t, 0, len(result))
}

func TestDownsample_SinglePoint(t *testing.T) {
	result := Downsample(nil, []float64{1, 2, 3}, 1)
	assert.Equal(t, []float64{3}, result)
}

func TestDownsample_ExactMaxPoints(t *testing.T) {
	values := make([]float64, 10)
	for i := range values {
		values[i] = float64(i) * 0.01
	}

	result := Downsample(nil, values, 10)
	assert.Equal(t, values, result)
}
