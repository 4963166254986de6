package kaiku_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsariola/kaiku"
)

func TestNewSampleValidation(t *testing.T) {
	_, err := kaiku.NewSample([]float32{1, 2, 3}, 2, 48000)
	assert.Error(t, err, "odd data length for stereo")
	_, err = kaiku.NewSample([]float32{1, 2}, 0, 48000)
	assert.Error(t, err, "zero channels")
	_, err = kaiku.NewSample([]float32{1, 2}, 1, 0)
	assert.Error(t, err, "zero rate")

	s, err := kaiku.NewSample([]float32{1, 2, 3, 4}, 2, 44100)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Frames)
	assert.Equal(t, float32(3), s.At(1, 0))
	assert.Equal(t, float32(0), s.At(2, 0), "out of bounds reads zero")
}

func TestInterpolated(t *testing.T) {
	s, err := kaiku.NewSample([]float32{0, 1, 2, 3}, 1, 48000)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, s.Interpolated(1.5, 0), 1e-6)
	assert.Equal(t, float32(0), s.Interpolated(-0.5, 0))
	assert.Equal(t, float32(0), s.Interpolated(4.5, 0))
}

func TestInterpolatedWrappedSeam(t *testing.T) {
	// one exact cycle of a sine; the loop continuation is the same sine
	const frames = 100
	data := make([]float32, frames)
	for i := range data {
		data[i] = float32(math.Sin(2 * math.Pi * float64(i) / frames))
	}
	s, err := kaiku.NewSample(data, 1, 48000)
	require.NoError(t, err)

	// reading across the boundary interpolates toward frame 0, not zero
	assert.InDelta(t, 0.5*(float64(data[frames-1])+float64(data[0])),
		float64(s.InterpolatedWrapped(frames-0.5, 0, frames)), 1e-6)

	// approaching the wrap from below converges on the loop start value
	just := s.InterpolatedWrapped(frames-1e-4, 0, frames)
	assert.InDelta(t, float64(data[0]), float64(just), 1e-5)

	// positions past the loop length wrap around
	assert.InDelta(t, float64(data[3]), float64(s.InterpolatedWrapped(frames+3, 0, frames)), 1e-6)
}
