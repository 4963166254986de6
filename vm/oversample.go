package vm

import "github.com/vsariola/kaiku"

// 7-tap halfband FIR, ~80 dB stopband. Odd taps other than the center are
// zero, so only four coefficients are stored.
const (
	halfbandC0 float32 = 0.07322047
	halfbandC2 float32 = 0.30677953
	halfbandC3 float32 = 0.5

	// normalizes the filter to unity gain at DC
	halfbandNorm = 1 / (2*halfbandC0 + 2*halfbandC2 + halfbandC3)
)

// halfband runs the decimation filter over a 2x-rate stream; feeding two
// samples and keeping the second output gives one anti-aliased 1x sample.
type halfband struct {
	hist [7]float32
}

func (h *halfband) process(x float32) float32 {
	copy(h.hist[:6], h.hist[1:])
	h.hist[6] = x
	sum := halfbandC0*(h.hist[0]+h.hist[6]) + halfbandC2*(h.hist[2]+h.hist[4]) + halfbandC3*h.hist[3]
	return sum * halfbandNorm
}

func (h *halfband) decimate2(s0, s1 float32) float32 {
	h.process(s0)
	return h.process(s1)
}

// oscOverState runs one oscillator at 2x or 4x the engine rate and filters
// back down. stage2 only engages for the 4x variants.
type oscOverState struct {
	osc    oscCore
	stage1 halfband
	stage2 halfband
}

// overWaveform maps an oversampled opcode to its single-rate waveform.
func overWaveform(op kaiku.Op) kaiku.Op {
	switch op {
	case kaiku.OscSin2x, kaiku.OscSin4x:
		return kaiku.OscSin
	case kaiku.OscSaw2x, kaiku.OscSaw4x:
		return kaiku.OscSaw
	case kaiku.OscSqr2x, kaiku.OscSqr4x:
		return kaiku.OscSqr
	case kaiku.OscTri2x, kaiku.OscTri4x:
		return kaiku.OscTri
	}
	return op
}

// opOscOver runs the 2x/4x oversampled oscillators. The frequency input is
// linearly interpolated across the substeps so audio-rate FM stays sample
// accurate at the inner rate.
func (v *VM) opOscOver(instr *kaiku.Instruction, factor int) {
	s, ok := getState[oscOverState](v, instr.StateID)
	if !ok {
		return
	}
	out, freq := v.out(instr), v.in(instr, 0)
	pwmOp := instr.Op == kaiku.OscSawPWM4x || instr.Op == kaiku.OscSqrPWM4x
	var pwm, offset, trigger []float32
	if pwmOp {
		pwm, offset, trigger = v.in(instr, 1), v.in(instr, 2), v.in(instr, 3)
	} else {
		offset, trigger = v.in(instr, 1), v.in(instr, 2)
	}
	wave := overWaveform(instr.Op)
	invSub := v.invSampleRate / float32(factor)
	step := 1 / float32(factor)

	var sub [4]float32
	for i := range out {
		s.osc.checkReset(trigger[i], offset[i])
		fCurr := freq[i]
		fNext := fCurr
		if i+1 < len(freq) {
			fNext = freq[i+1]
		}
		for j := 0; j < factor; j++ {
			t := float32(j) * step
			dt := (fCurr + t*(fNext-fCurr)) * invSub
			if pwmOp {
				sub[j] = oscPWMSample(instr.Op, &s.osc, dt, pwm[i])
			} else {
				sub[j] = oscSample(wave, &s.osc, dt)
			}
			s.osc.advance(dt)
		}
		if factor == 2 {
			out[i] = s.stage1.decimate2(sub[0], sub[1])
		} else {
			a := s.stage2.decimate2(sub[0], sub[1])
			b := s.stage2.decimate2(sub[2], sub[3])
			out[i] = s.stage1.decimate2(a, b)
		}
	}
}

// saturate2x applies a memoryless shaper at 2x rate: linear interpolation
// up, shape both substeps, plain average down. Good enough against the
// gentle spectra a saturator produces.
type saturate2x struct {
	prev float32
}

func (s *saturate2x) process(x float32, shape func(float32) float32) float32 {
	u0 := 0.5 * (s.prev + x)
	s.prev = x
	return 0.5 * (shape(u0) + shape(x))
}
