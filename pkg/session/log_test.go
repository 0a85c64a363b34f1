package session

import (
	"sync"
	"testing"

	"github.com/itohio/godaq/pkg/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_Empty(t *testing.T) {
	l := New()

	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Snapshot())
	latest, ok := l.Latest()
	assert.False(t, ok)
	assert.Nil(t, latest)
}

func TestLog_AppendIsMonotonic(t *testing.T) {
	l := New()

	for i := range 50 {
		idx := l.Append(sample.Reading{float64(i), float64(-i)})
		require.Equal(t, i, idx)
	}

	assert.Equal(t, 50, l.Len())
	snap := l.Snapshot()
	require.Len(t, snap, 50)
	for i, r := range snap {
		assert.Equal(t, sample.Reading{float64(i), float64(-i)}, r)
	}

	latest, ok := l.Latest()
	require.True(t, ok)
	assert.Equal(t, sample.Reading{49, -49}, latest)
}

func TestLog_AppendCopiesReading(t *testing.T) {
	l := New()
	r := sample.Reading{1, 2, 3}
	l.Append(r)
	r[0] = 100

	latest, _ := l.Latest()
	assert.Equal(t, sample.Reading{1, 2, 3}, latest)
}

func TestLog_SnapshotIsStable(t *testing.T) {
	l := New()
	l.Append(sample.Reading{1})
	l.Append(sample.Reading{2})

	snap := l.Snapshot()
	l.Append(sample.Reading{3})

	assert.Len(t, snap, 2)
	assert.Equal(t, 3, l.Len())

	// Appending to a snapshot must not leak into the log
	_ = append(snap, sample.Reading{99})
	assert.Equal(t, sample.Reading{3}, l.Snapshot()[2])
}

func TestLog_RowsIsRestartable(t *testing.T) {
	l := New()
	for i := range 5 {
		l.Append(sample.Reading{float64(i)})
	}

	rows := l.Rows()
	for pass := range 2 {
		count := 0
		for i, r := range rows {
			assert.Equal(t, count, i, "pass %d", pass)
			assert.Equal(t, sample.Reading{float64(i)}, r)
			count++
		}
		assert.Equal(t, 5, count)
	}

	// Early break
	count := 0
	for range rows {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestLog_ConcurrentReaders(t *testing.T) {
	l := New()
	const appends = 2000

	var wg sync.WaitGroup
	done := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := l.Snapshot()
				for i, r := range snap {
					// Rows are never torn: both values belong to the same cycle
					if !assert.Equal(t, float64(i), r[0]) || !assert.Equal(t, float64(i), r[1]) {
						return
					}
				}
				if latest, ok := l.Latest(); ok {
					assert.Equal(t, latest[0], latest[1])
				}
			}
		}()
	}

	for i := range appends {
		l.Append(sample.Reading{float64(i), float64(i)})
	}
	close(done)
	wg.Wait()

	assert.Equal(t, appends, l.Len())
}
