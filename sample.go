package kaiku

import "fmt"

// Sample is immutable multi-channel audio data at a declared source sample
// rate. The playback opcodes advance a fractional frame position at an
// arbitrary ratio relative to the VM's sample rate and interpolate linearly.
type Sample struct {
	Data       []float32 // interleaved
	Channels   int
	Frames     int
	SampleRate float32
}

// NewSample validates and wraps interleaved audio data. The data slice is
// retained, not copied; callers must not mutate it afterwards.
func NewSample(data []float32, channels int, sampleRate float32) (*Sample, error) {
	if channels < 1 {
		return nil, fmt.Errorf("sample must have at least one channel, got %d", channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate %v is not positive", sampleRate)
	}
	if len(data)%channels != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of %d channels", len(data), channels)
	}
	return &Sample{
		Data:       data,
		Channels:   channels,
		Frames:     len(data) / channels,
		SampleRate: sampleRate,
	}, nil
}

// At returns the sample at an integer frame and channel, zero out of bounds.
func (s *Sample) At(frame, channel int) float32 {
	if frame < 0 || frame >= s.Frames || channel >= s.Channels {
		return 0
	}
	return s.Data[frame*s.Channels+channel]
}

// Interpolated reads a fractional frame position with linear interpolation.
// Positions past the last frame return the last frame's value scaled toward
// zero; positions outside the data return zero.
func (s *Sample) Interpolated(position float32, channel int) float32 {
	if position < 0 || position >= float32(s.Frames) {
		return 0
	}
	frame := int(position)
	frac := position - float32(frame)
	s0 := s.At(frame, channel)
	if frame+1 >= s.Frames {
		return s0
	}
	s1 := s.At(frame+1, channel)
	return s0 + (s1-s0)*frac
}

// InterpolatedWrapped reads a fractional position with linear interpolation,
// treating the data as circular over loopFrames: the read one past the loop
// end continues from the loop start, so a loop wrap has no seam.
func (s *Sample) InterpolatedWrapped(position float32, channel, loopFrames int) float32 {
	if loopFrames <= 0 || loopFrames > s.Frames {
		return 0
	}
	for position >= float32(loopFrames) {
		position -= float32(loopFrames)
	}
	for position < 0 {
		position += float32(loopFrames)
	}
	frame := int(position)
	frac := position - float32(frame)
	next := frame + 1
	if next >= loopFrames {
		next = 0
	}
	s0 := s.At(frame, channel)
	s1 := s.At(next, channel)
	return s0 + (s1-s0)*frac
}

// Duration returns the sample length in seconds at its source rate.
func (s *Sample) Duration() float32 {
	return float32(s.Frames) / s.SampleRate
}
