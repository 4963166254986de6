package vm

import (
	"math"

	"github.com/vsariola/kaiku"
)

// Sequencing opcodes derive every phase from the absolute sample counter,
// never from accumulated increments, so two primitives on the same transport
// stay aligned at every beat boundary no matter how long the VM runs.

// opClock outputs the continuous transport phase. Aux.A selects beat phase,
// bar phase or cycle phase (cycle is the bar alias, one bar = 4 beats).
func (v *VM) opClock(instr *kaiku.Instruction) {
	out := v.out(instr)
	period := v.samplesPerBeat()
	if instr.Aux.A != kaiku.ClockBeat {
		period *= 4
	}
	for i := range out {
		sample := float64(v.sampleCounter + uint64(i))
		out[i] = float32(math.Mod(sample, period) / period)
	}
}

type lfoState struct {
	prevPhase float32
	held      float32
}

// opLFO is the beat-locked modulator: in0 gives the rate in cycles per beat,
// Aux.A the shape, and the optional in1 the duty cycle for the pwm shape.
// Sample-and-hold draws its value from a hash of the cycle index and the
// state id, so a given instance repeats its sequence exactly on every run.
func (v *VM) opLFO(instr *kaiku.Instruction) {
	s, ok := getState[lfoState](v, instr.StateID)
	if !ok {
		return
	}
	out, rate := v.out(instr), v.in(instr, 0)
	var duty []float32
	if instr.In[1] != kaiku.BufferUnused {
		duty = v.in(instr, 1)
	}
	spb := v.samplesPerBeat()
	for i := range out {
		sample := float64(v.sampleCounter + uint64(i))
		cycles := sample * float64(rate[i]) / spb
		phase := float32(cycles - math.Floor(cycles))

		var value float32
		switch instr.Aux.A {
		case kaiku.LFOTriangle:
			value = lfoTriangle(phase)
		case kaiku.LFOSaw:
			value = 2*phase - 1
		case kaiku.LFORamp:
			value = 1 - 2*phase
		case kaiku.LFOSquare:
			if phase < 0.5 {
				value = 1
			} else {
				value = -1
			}
		case kaiku.LFOPWM:
			d := float32(0.5)
			if duty != nil {
				d = clampf(duty[i], 0, 1)
			}
			if phase < d {
				value = 1
			} else {
				value = -1
			}
		case kaiku.LFOSampleHold:
			if phase < s.prevPhase && s.prevPhase > 0.5 {
				idx := uint64(cycles)
				s.held = hashToUnit(hashMix(idx ^ uint64(instr.StateID)))
			}
			value = s.held
		default:
			value = lfoSine(phase)
		}
		out[i] = value
		s.prevPhase = phase
	}
}

type triggerState struct {
	prevPhase float32
}

// opTrigger emits a one-sample pulse at every division boundary; Value is
// the number of pulses per beat. The first pulse lands on sample zero of the
// transport.
func (v *VM) opTrigger(instr *kaiku.Instruction) {
	s, ok := getState[triggerState](v, instr.StateID)
	if !ok {
		return
	}
	out := v.out(instr)
	division := clampf(instr.Aux.Value, 1.0/64, 64)
	period := v.samplesPerBeat() / float64(division)
	for i := range out {
		sample := float64(v.sampleCounter + uint64(i))
		phase := float32(math.Mod(sample, period) / period)
		fired := phase < s.prevPhase && s.prevPhase > 0.5
		if s.prevPhase < 0 && phase < 0.5 {
			fired = true
		}
		if fired {
			out[i] = 1
		} else {
			out[i] = 0
		}
		s.prevPhase = phase
	}
}

type euclidState struct {
	prevStep int
}

// euclidPattern spreads hits across steps with an integer running bucket.
// The accumulator is primed so step zero always lands a hit: E(3,8) comes
// out as 10010010. Rotation shifts the pattern right, cyclically.
func euclidPattern(hits, steps, rotation int) uint64 {
	if hits <= 0 {
		return 0
	}
	if hits >= steps {
		return (uint64(1) << steps) - 1
	}
	var pattern uint64
	bucket := steps - hits
	for i := 0; i < steps; i++ {
		bucket += hits
		if bucket >= steps {
			bucket -= steps
			pattern |= uint64(1) << i
		}
	}
	if rotation %= steps; rotation > 0 {
		mask := (uint64(1) << steps) - 1
		pattern = ((pattern >> rotation) | (pattern << (steps - rotation))) & mask
	}
	return pattern
}

// opEuclid walks the hit pattern across one 4-beat bar, emitting a
// one-sample pulse when the transport enters a hit step. Aux.A/B/C are
// hits, steps and rotation.
func (v *VM) opEuclid(instr *kaiku.Instruction) {
	s, ok := getState[euclidState](v, instr.StateID)
	if !ok {
		return
	}
	out := v.out(instr)
	steps := instr.Aux.B
	if steps < 1 {
		steps = 1
	} else if steps > 64 {
		steps = 64
	}
	pattern := euclidPattern(instr.Aux.A, steps, instr.Aux.C)
	spbar := v.samplesPerBeat() * 4
	for i := range out {
		sample := float64(v.sampleCounter + uint64(i))
		barPhase := math.Mod(sample, spbar) / spbar
		step := int(barPhase*float64(steps)) % steps
		hit := pattern>>step&1 == 1
		if step != s.prevStep && hit {
			out[i] = 1
		} else {
			out[i] = 0
		}
		s.prevStep = step
	}
}
