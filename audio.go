package kaiku

import (
	"errors"
	"fmt"
)

// AudioBuffer is stereo audio: the left and right channel of each frame.
type AudioBuffer [][2]float32

// Synth renders blocks of stereo audio. The vm package provides the
// implementation; the interface lives here so hosts and sinks need not
// depend on the DSP code.
type Synth interface {
	// Render fills as much of the buffer as possible in whole blocks and
	// returns the number of frames written. Partial trailing blocks are the
	// caller's concern (pad and truncate).
	Render(buffer AudioBuffer) (int, error)
}

// Fill renders until the buffer is full, in whole blocks.
func (buffer AudioBuffer) Fill(synth Synth) error {
	frames, err := synth.Render(buffer)
	if err != nil {
		return fmt.Errorf("synth.Render failed: %v", err)
	}
	if frames != len(buffer) {
		return errors.New("synth.Render should have filled the whole buffer but did not")
	}
	return nil
}

type AudioSink interface {
	WriteAudio(buffer AudioBuffer) error
	Close() error
}

type AudioContext interface {
	Output() AudioSink
	Close() error
}
