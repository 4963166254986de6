package vm

import (
	"github.com/chewxy/math32"

	"github.com/vsariola/kaiku"
)

// Ring buffer capacities, sized for the worst case at 192 kHz: 2 s for the
// plain delay (4 beats at 120 bpm fits in the same window), 100 ms for the
// comb, 10 ms for the flanger and 30 ms for the chorus.
const (
	delayBufSize   = 1 << 19
	combBufSize    = 1 << 15
	modBufSize     = 1 << 12
	chorusBufSize  = 1 << 13
	chorusVoices   = 3
	maxDelaySec    = 2.0
	maxDelayBeats  = 4.0
	flangerMinMs   = 0.1
	flangerMaxMs   = 10.0
	chorusBaseMs   = 20.0
	chorusRangeMs  = 10.0
	phaserMinFreq  = 200.0
	phaserMaxFreq  = 4000.0
	phaserMaxStage = 12
)

type delayState struct {
	buffer   []float32
	writePos int
}

// opDelay is a feedback delay with fractional read position. in1 is the
// delay time in seconds, or in beats for the tempo-synced variant. The
// optional in3 sets the wet mix; omitting it outputs fully wet.
func (v *VM) opDelay(instr *kaiku.Instruction, sync bool) {
	s, ok := getState[delayState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, time, feedback := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2)
	var mix []float32
	if instr.In[3] != kaiku.BufferUnused {
		mix = v.in(instr, 3)
	}
	var toSamples float32
	var maxTime float32
	if sync {
		toSamples = float32(v.samplesPerBeat())
		maxTime = maxDelayBeats
	} else {
		toSamples = v.sampleRate
		maxTime = maxDelaySec
	}
	limit := float32(len(s.buffer) - 2)
	for i := range out {
		delaySamples := clampf(time[i], 0, maxTime) * toSamples
		if delaySamples > limit {
			delaySamples = limit
		}
		delayed := delayReadLinear(s.buffer, s.writePos, delaySamples)
		fb := clampf(feedback[i], 0, 0.99)
		s.buffer[s.writePos] = in[i] + delayed*fb
		s.writePos++
		if s.writePos >= len(s.buffer) {
			s.writePos = 0
		}
		if mix != nil {
			m := clampf(mix[i], 0, 1)
			out[i] = in[i]*(1-m) + delayed*m
		} else {
			out[i] = delayed
		}
	}
}

type combState struct {
	buffer      []float32
	writePos    int
	filterState float32
}

// opComb is a feedback comb with a one-pole lowpass in the feedback path.
// Resonates at multiples of 1000/delay_ms Hz.
// Operands: in, delay ms, feedback, damping.
func (v *VM) opComb(instr *kaiku.Instruction) {
	s, ok := getState[combState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, delayMs, feedback, damp := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2), v.in(instr, 3)
	limit := float32(len(s.buffer) - 2)
	for i := range out {
		delaySamples := clampf(delayMs[i], 0.1, 100) * 0.001 * v.sampleRate
		if delaySamples > limit {
			delaySamples = limit
		}
		delayed := delayReadLinear(s.buffer, s.writePos, delaySamples)
		fb := clampf(feedback[i], -0.99, 0.99)
		d := clampf(damp[i], 0, 1)
		s.filterState = delayed*(1-d) + s.filterState*d
		s.buffer[s.writePos] = in[i] + fb*s.filterState
		s.writePos++
		if s.writePos >= len(s.buffer) {
			s.writePos = 0
		}
		out[i] = delayed
	}
}

type flangerState struct {
	buffer   []float32
	writePos int
	lfoPhase float32
}

// opFlanger sweeps a short delay between 0.1 and 10 ms. Output is fully
// wet; programs mix dry back in themselves.
// Operands: in, lfo rate Hz, depth, feedback.
func (v *VM) opFlanger(instr *kaiku.Instruction) {
	s, ok := getState[flangerState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, rate, depth, feedback := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2), v.in(instr, 3)
	const centerMs = (flangerMinMs + flangerMaxMs) * 0.5
	const rangeMs = (flangerMaxMs - flangerMinMs) * 0.5
	limit := float32(len(s.buffer) - 2)
	for i := range out {
		s.lfoPhase += clampf(rate[i], 0.1, 10) * v.invSampleRate
		if s.lfoPhase >= 1 {
			s.lfoPhase--
		}
		lfo := lfoSine(s.lfoPhase)
		d := clampf(depth[i], 0, 1)
		delaySamples := (centerMs + lfo*d*rangeMs) * 0.001 * v.sampleRate
		if delaySamples > limit {
			delaySamples = limit
		}
		delayed := delayReadLinear(s.buffer, s.writePos, delaySamples)
		fb := clampf(feedback[i], -0.99, 0.99)
		s.buffer[s.writePos] = in[i] + fb*delayed
		s.writePos++
		if s.writePos >= len(s.buffer) {
			s.writePos = 0
		}
		out[i] = delayed
	}
}

type chorusState struct {
	buffer   []float32
	writePos int
	lfoPhase float32
}

func newChorusState() *chorusState {
	return &chorusState{buffer: make([]float32, chorusBufSize)}
}

var chorusPhaseOffsets = [chorusVoices]float32{0, 0.33, 0.67}

// opChorus reads three modulated taps at offset LFO phases from one delay
// line. in3 overrides the 20 ms base delay; zero keeps the default.
func (v *VM) opChorus(instr *kaiku.Instruction) {
	s, ok := getState[chorusState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, rate, depth, baseIn := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2), v.in(instr, 3)
	limit := float32(len(s.buffer) - 2)
	for i := range out {
		baseMs := float32(chorusBaseMs)
		if baseIn[i] > 0 {
			baseMs = baseIn[i]
		}
		s.lfoPhase += clampf(rate[i], 0.1, 5) * v.invSampleRate
		if s.lfoPhase >= 1 {
			s.lfoPhase--
		}
		d := clampf(depth[i], 0, 1)
		var wet float32
		for voice := 0; voice < chorusVoices; voice++ {
			phase := s.lfoPhase + chorusPhaseOffsets[voice]
			if phase >= 1 {
				phase--
			}
			delaySamples := (baseMs + lfoSine(phase)*d*chorusRangeMs) * 0.001 * v.sampleRate
			delaySamples = clampf(delaySamples, 1, limit)
			wet += delayReadLinear(s.buffer, s.writePos, delaySamples)
		}
		s.buffer[s.writePos] = in[i]
		s.writePos++
		if s.writePos >= len(s.buffer) {
			s.writePos = 0
		}
		out[i] = wet / chorusVoices
	}
}

type phaserState struct {
	allpassIn    [phaserMaxStage]float32
	allpassOut   [phaserMaxStage]float32
	lfoPhase     float32
	lastOutput   float32
}

// opPhaser cascades Aux.A first-order allpasses whose corner sweeps
// logarithmically around sqrt(200*4000) Hz.
// Operands: in, lfo rate Hz, depth, feedback.
func (v *VM) opPhaser(instr *kaiku.Instruction) {
	s, ok := getState[phaserState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, rate, depth, feedback := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2), v.in(instr, 3)
	stages := instr.Aux.A
	if stages < 2 {
		stages = 2
	} else if stages > phaserMaxStage {
		stages = phaserMaxStage
	}
	centerBase := math32.Sqrt(phaserMinFreq * phaserMaxFreq)
	for i := range out {
		s.lfoPhase += clampf(rate[i], 0.1, 5) * v.invSampleRate
		if s.lfoPhase >= 1 {
			s.lfoPhase--
		}
		lfo := lfoSine(s.lfoPhase)
		d := clampf(depth[i], 0, 1)
		center := clampf(centerBase*math32.Exp(lfo*d*2), phaserMinFreq, phaserMaxFreq)
		tanVal := math32.Tan(pi * center * v.invSampleRate)
		a := (tanVal - 1) / (tanVal + 1)

		fb := clampf(feedback[i], 0, 0.99)
		x := in[i] + fb*s.lastOutput
		for st := 0; st < stages; st++ {
			y := a*x + s.allpassIn[st] - a*s.allpassOut[st]
			s.allpassIn[st] = x
			s.allpassOut[st] = y
			x = y
		}
		s.lastOutput = x
		out[i] = x
	}
}
