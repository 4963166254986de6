package vm

import (
	"sync"

	"github.com/chewxy/math32"

	"github.com/vsariola/kaiku"
)

// MinBLEP square oscillators place each edge with sub-sample accuracy by
// mixing a precomputed band-limited step residual into the next 64 output
// samples. The residual table holds 64 fractional-offset phases.
const (
	minblepPhases  = 64
	minblepSamples = 64
	minblepBufSize = 128
)

var (
	minblepTable     [minblepPhases * minblepSamples]float32
	minblepTableOnce sync.Once
)

// buildMinblepTable integrates a Hann-windowed sinc into a band-limited
// step and stores step-minus-one residuals for each fractional edge offset.
// Only the causal half is kept, so edges land with no pre-ringing.
func buildMinblepTable() {
	const (
		oversampling  = 32
		cutoff        = 0.9
		zeroCrossings = 8
		sincLen       = zeroCrossings * 2 * oversampling
		center        = zeroCrossings * oversampling
	)
	var blStep [sincLen]float32
	sum := float32(0)
	for i := 0; i < sincLen; i++ {
		t := float32(i-center) / oversampling
		var sinc float32
		if math32.Abs(t) < 1e-7 {
			sinc = cutoff
		} else {
			sinc = math32.Sin(pi*cutoff*t) / (pi * t)
		}
		n := float32(i) / (sincLen - 1)
		window := 0.5 * (1 - math32.Cos(twoPi*n))
		sum += sinc * window
		blStep[i] = sum
	}
	if math32.Abs(sum) > 1e-6 {
		for i := range blStep {
			blStep[i] /= sum
		}
	}
	for p := 0; p < minblepPhases; p++ {
		fracPos := float32(p) / minblepPhases
		for i := 0; i < minblepSamples; i++ {
			samplePos := float32(i) - fracPos
			if samplePos < 0 {
				samplePos = 0
			}
			osPos := center + int(math32.Round(samplePos*oversampling))
			if osPos < sincLen {
				minblepTable[p*minblepSamples+i] = blStep[osPos] - 1
			}
		}
	}
}

// minblepState carries the oscillator phase plus a ring of pending residual
// corrections scheduled by past edges.
type minblepState struct {
	osc      oscCore
	buffer   [minblepBufSize]float32
	writePos int
}

func newMinblepState() *minblepState {
	minblepTableOnce.Do(buildMinblepTable)
	return &minblepState{}
}

// addStep schedules a band-limited step of the given amplitude. fracPos is
// the sub-sample position of the edge within the current sample, 0..1.
func (s *minblepState) addStep(amplitude, fracPos float32) {
	phase := int(fracPos * minblepPhases)
	if phase > minblepPhases-1 {
		phase = minblepPhases - 1
	}
	row := minblepTable[phase*minblepSamples : (phase+1)*minblepSamples]
	for i, r := range row {
		s.buffer[(s.writePos+i)%minblepBufSize] += amplitude * r
	}
}

// getAndAdvance pops the residual correction for the current sample.
func (s *minblepState) getAndAdvance() float32 {
	v := s.buffer[s.writePos]
	s.buffer[s.writePos] = 0
	s.writePos = (s.writePos + 1) % minblepBufSize
	return v
}

func (s *minblepState) reset() {
	s.buffer = [minblepBufSize]float32{}
	s.writePos = 0
}

// opOscMinblep runs the fixed-duty and PWM minBLEP squares. Unlike the
// polyBLEP squares the naive value snaps to the post-edge level as soon as
// the edge falls inside the sample; the residual supplies the transition.
func (v *VM) opOscMinblep(instr *kaiku.Instruction) {
	s, ok := getState[minblepState](v, instr.StateID)
	if !ok {
		return
	}
	out, freq := v.out(instr), v.in(instr, 0)
	pwmOp := instr.Op == kaiku.OscSqrPWMMinblep
	var pwm, offset, trigger []float32
	if pwmOp {
		pwm, offset, trigger = v.in(instr, 1), v.in(instr, 2), v.in(instr, 3)
	} else {
		offset, trigger = v.in(instr, 1), v.in(instr, 2)
	}
	for i := range out {
		if trigger[i] > 0 && s.osc.prevTrigger <= 0 {
			s.osc.phase = math32.Mod(offset[i], 1)
			if s.osc.phase < 0 {
				s.osc.phase++
			}
			s.osc.initialized = false
			s.reset()
		}
		s.osc.prevTrigger = trigger[i]

		dt := freq[i] * v.invSampleRate
		duty := float32(0.5)
		if pwmOp {
			duty = pwmDuty(pwm[i])
		}
		var naive float32 = -1
		if s.osc.phase < duty {
			naive = 1
		}
		nextPhase := s.osc.phase + dt

		if s.osc.initialized {
			if nextPhase >= 1 {
				frac := float32(0)
				if pwmOp && dt > 1e-8 {
					frac = (nextPhase - 1) / dt
				}
				s.addStep(2, frac)
				naive = 1
			}
			if s.osc.phase < duty && nextPhase >= duty {
				frac := float32(0)
				if pwmOp && dt > 1e-8 {
					frac = (nextPhase - duty) / dt
				}
				s.addStep(-2, frac)
				naive = -1
			}
		}

		out[i] = naive + s.getAndAdvance()

		s.osc.phase = nextPhase
		if s.osc.phase >= 1 {
			s.osc.phase--
		}
		s.osc.initialized = true
	}
}
