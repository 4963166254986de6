package vm

import (
	"github.com/chewxy/math32"

	"github.com/vsariola/kaiku"
)

// oscCore is the phase accumulator shared by every oscillator flavor.
// initialized is false until the first sample after creation or a trigger
// reset, so the anti-aliasing correction never fires across a discontinuity
// the oscillator did not itself produce.
type oscCore struct {
	phase       float32
	prevPhase   float32
	prevTrigger float32
	initialized bool
}

type oscState struct {
	oscCore
}

// checkReset resets phase to the offset on a rising trigger edge. Returns
// true when a reset happened.
func (o *oscCore) checkReset(trigger, offset float32) bool {
	triggered := trigger > 0 && o.prevTrigger <= 0
	o.prevTrigger = trigger
	if !triggered {
		return false
	}
	o.phase = math32.Mod(offset, 1)
	if o.phase < 0 {
		o.phase++
	}
	o.initialized = false
	return true
}

func (o *oscCore) advance(dt float32) {
	o.prevPhase = o.phase
	o.phase += dt
	if o.phase >= 1 {
		o.phase--
	} else if o.phase < 0 {
		o.phase++
	}
	o.initialized = true
}

// polyBLEP is the two-sample polynomial band-limited step residual around
// a downward discontinuity at phase 0.
func polyBLEP(t, dt float32) float32 {
	dt = math32.Abs(dt)
	if dt < 1e-8 {
		return 0
	}
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

// polyBLEPDistance is the signed-distance form, used for edges that move
// (the PWM falling edge) so rising and falling edges are treated alike.
func polyBLEPDistance(dist, dt float32) float32 {
	if dt < 1e-8 {
		return 0
	}
	if dist >= 0 && dist < dt {
		t := dist / dt
		return t + t - t*t - 1
	}
	if dist < 0 && dist > -dt {
		t := dist / dt
		return t*t + t + t + 1
	}
	return 0
}

// polyBLAMP is the integrated residual for slope discontinuities (triangle
// corners).
func polyBLAMP(t, dt float32) float32 {
	dt = math32.Abs(dt)
	if dt < 1e-8 {
		return 0
	}
	if t < dt {
		t = t/dt - 1
		return -t * t * t / 3
	}
	if t > 1-dt {
		t = (t-1)/dt + 1
		return t * t * t / 3
	}
	return 0
}

func wrapPhase(p float32) float32 {
	if p >= 1 {
		return p - 1
	}
	return p
}

// pwmDuty maps a -1..1 modulation value to a duty cycle, clamped away from
// the degenerate all-high/all-low cases.
func pwmDuty(pwm float32) float32 {
	duty := 0.5 + clampf(pwm, -1, 1)*0.5
	return clampf(duty, 0.001, 0.999)
}

// oscSample computes one naive-plus-correction sample for the given basic
// waveform at the core's current phase. Shared between the single-rate and
// oversampled oscillators.
func oscSample(op kaiku.Op, o *oscCore, dt float32) float32 {
	switch op {
	case kaiku.OscSin:
		return math32.Sin(o.phase * twoPi)
	case kaiku.OscTri:
		value := 4*math32.Abs(o.phase-0.5) - 1
		if o.initialized {
			blamp := polyBLAMP(o.phase, dt)
			blamp -= polyBLAMP(wrapPhase(o.phase+0.5), dt)
			value += 4 * dt * blamp
		}
		return value
	case kaiku.OscSaw:
		value := 2*o.phase - 1
		if o.initialized {
			value -= polyBLEP(o.phase, dt)
		}
		return value
	case kaiku.OscSqr:
		var value float32 = -1
		if o.phase < 0.5 {
			value = 1
		}
		if o.initialized {
			value += polyBLEP(o.phase, dt)
			value -= polyBLEP(wrapPhase(o.phase+0.5), dt)
		}
		return value
	case kaiku.OscRamp:
		value := 1 - 2*o.phase
		if o.initialized {
			value += polyBLEP(o.phase, dt)
		}
		return value
	}
	// phasor: raw phase, the wrap discontinuity is the point
	return o.phase
}

// oscPWMSample computes one sample of the variable-pulse square or the
// variable-slope saw at the current phase.
func oscPWMSample(op kaiku.Op, o *oscCore, dt, pwm float32) float32 {
	if op == kaiku.OscSqrPWM || op == kaiku.OscSqrPWM4x {
		duty := pwmDuty(pwm)
		var value float32 = -1
		if o.phase < duty {
			value = 1
		}
		if o.initialized {
			value += polyBLEP(o.phase, dt)
			dist := o.phase - duty
			if dist > 0.5 {
				dist--
			} else if dist < -0.5 {
				dist++
			}
			value -= polyBLEPDistance(dist, dt)
		}
		return value
	}
	// saw_pwm morphs rising ramp through triangle to falling ramp; pwm moves
	// the apex from phase 0.01 to 0.99.
	mid := clampf((1+clampf(pwm, -1, 1))*0.5, 0.01, 0.99)
	var value float32
	if o.phase < mid {
		value = 2*o.phase/mid - 1
	} else {
		value = 1 - 2*(o.phase-mid)/(1-mid)
	}
	if o.initialized {
		blamp := polyBLAMP(o.phase, dt)
		atMid := o.phase - mid
		if atMid < 0 {
			atMid++
		}
		blamp -= polyBLAMP(atMid, dt)
		slopeDiff := 2/mid + 2/(1-mid)
		value += slopeDiff * dt * blamp
	}
	return value
}

// opOsc runs the single-rate oscillators. Operands: freq, then for the PWM
// variants a pulse width, then optional phase offset and trigger.
func (v *VM) opOsc(instr *kaiku.Instruction) {
	s, ok := getState[oscState](v, instr.StateID)
	if !ok {
		return
	}
	out, freq := v.out(instr), v.in(instr, 0)
	pwmOp := instr.Op == kaiku.OscSawPWM || instr.Op == kaiku.OscSqrPWM
	var pwm, offset, trigger []float32
	if pwmOp {
		pwm, offset, trigger = v.in(instr, 1), v.in(instr, 2), v.in(instr, 3)
	} else {
		offset, trigger = v.in(instr, 1), v.in(instr, 2)
	}
	for i := range out {
		s.checkReset(trigger[i], offset[i])
		dt := freq[i] * v.invSampleRate
		if pwmOp {
			out[i] = oscPWMSample(instr.Op, &s.oscCore, dt, pwm[i])
		} else {
			out[i] = oscSample(instr.Op, &s.oscCore, dt)
		}
		if instr.Op == kaiku.OscPhasor {
			// phasor never gates its output on initialized
			s.prevPhase = s.phase
			s.phase += dt
			if s.phase >= 1 {
				s.phase--
			} else if s.phase < 0 {
				s.phase++
			}
		} else {
			s.advance(dt)
		}
	}
}
