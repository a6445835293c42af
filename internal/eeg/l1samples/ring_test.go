package l1samples

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRing(capacity int, channels int) *SampleRing {
	// WindowSeconds * SampleRate == capacity exactly
	return NewSampleRing(Config{
		SampleRate:    float64(capacity),
		ChannelCount:  channels,
		WindowSeconds: 1.0,
	})
}

func pushN(r *SampleRing, n int, channels int) {
	for i := 0; i < n; i++ {
		ch := make([]float32, channels)
		for c := range ch {
			ch[c] = float32(i*100 + c)
		}
		r.Push(Sample{Timestamp: float64(i) * 4.0, Channels: ch})
	}
}

func TestPushAssignsMonotonicIndices(t *testing.T) {
	r := testRing(4, 2)
	for i := 0; i < 10; i++ {
		idx := r.Push(Sample{Timestamp: float64(i), Channels: []float32{1, 2}})
		assert.Equal(t, int64(i), idx)
	}
	assert.Equal(t, int64(10), r.Head())
	assert.Equal(t, int64(6), r.Oldest())
	assert.Equal(t, 4, r.Count())
}

func TestExtractWindowReturnsValuesInOrder(t *testing.T) {
	r := testRing(100, 3)
	pushN(r, 250, 3)

	// Any range fully inside the last 100 pushed samples must succeed and
	// return exactly those values.
	win, err := r.ExtractWindow(200, 30)
	require.NoError(t, err)
	require.Len(t, win, 30)
	for i, row := range win {
		require.Len(t, row, 3)
		for c, v := range row {
			assert.Equal(t, float32((200+i)*100+c), v)
		}
	}
}

func TestExtractWindowFailures(t *testing.T) {
	r := testRing(100, 1)
	pushN(r, 1000, 1)

	tests := []struct {
		name   string
		start  int64
		length int
	}{
		{"negative start", -1, 10},
		{"evicted range", 0, 10},
		{"straddles eviction boundary", 899, 10},
		{"past head", 995, 10},
		{"zero length", 950, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ExtractWindow(tt.start, tt.length)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInsufficientData))
		})
	}

	// The retained tail still extracts cleanly.
	win, err := r.ExtractWindow(950, 10)
	require.NoError(t, err)
	assert.Equal(t, float32(95000), win[0][0])
}

func TestExtractWindowCopiesData(t *testing.T) {
	r := testRing(10, 1)
	r.Push(Sample{Timestamp: 0, Channels: []float32{42}})
	win, err := r.ExtractWindow(0, 1)
	require.NoError(t, err)

	win[0][0] = 99
	again, err := r.ExtractWindow(0, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(42), again[0][0])
}

func TestPushCopiesCallerSlice(t *testing.T) {
	r := testRing(10, 1)
	ch := []float32{7}
	r.Push(Sample{Timestamp: 0, Channels: ch})
	ch[0] = 13

	win, err := r.ExtractWindow(0, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(7), win[0][0])
}

func TestRebuildResetsIndices(t *testing.T) {
	r := testRing(10, 2)
	pushN(r, 25, 2)
	require.Equal(t, int64(25), r.Head())

	r.Rebuild(Config{SampleRate: 500, ChannelCount: 4, WindowSeconds: 2})
	assert.Equal(t, int64(0), r.Head())
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 1000, r.Capacity())

	_, err := r.ExtractWindow(0, 1)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestTimestampLookup(t *testing.T) {
	r := testRing(4, 1)
	pushN(r, 6, 1)

	_, ok := r.Timestamp(1) // evicted
	assert.False(t, ok)

	ts, ok := r.Timestamp(5)
	require.True(t, ok)
	assert.Equal(t, 20.0, ts)

	_, ok = r.Timestamp(6) // not yet pushed
	assert.False(t, ok)
}
