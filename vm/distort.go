package vm

import (
	"github.com/chewxy/math32"

	"github.com/vsariola/kaiku"
)

type saturatorState struct {
	os saturate2x
}

// opSaturate covers tanh and cubic soft clipping, run at 2x rate to keep
// the folded harmonics below the aliasing floor.
// dist_tanh: in, drive. dist_soft: in, threshold.
func (v *VM) opSaturate(instr *kaiku.Instruction) {
	s, ok := getState[saturatorState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, amount := v.out(instr), v.in(instr, 0), v.in(instr, 1)
	if instr.Op == kaiku.DistTanh {
		for i := range out {
			d := math32.Max(0.1, amount[i])
			out[i] = s.os.process(in[i]*d, math32.Tanh)
		}
		return
	}
	for i := range out {
		t := clampf(amount[i], 0.1, 2)
		x := in[i] / t
		out[i] = s.os.process(x, fastTanh) * t
	}
}

// opFold reflects the signal back at the threshold, west coast style.
// Stateless and memoryless; programs wanting asymmetry add a dc offset
// in front.
// Operands: in, threshold.
func (v *VM) opFold(instr *kaiku.Instruction) {
	out, in, threshold := v.out(instr), v.in(instr, 0), v.in(instr, 1)
	for i := range out {
		t := clampf(threshold[i], 0.1, 2)
		folded := math32.Mod(in[i]/t+1, 4)
		if folded < 0 {
			folded += 4
		}
		switch {
		case folded > 3:
			folded -= 4
		case folded > 2:
			folded = -(folded - 2)
		case folded > 1:
			folded = 2 - folded
		}
		out[i] = folded * t
	}
}

type crushState struct {
	phase float32
	held  float32
}

// opCrush reduces the effective sample rate and quantizes the level.
// Operands: in, bit depth 1..16 (fractional allowed), rate factor 0.01..1.
func (v *VM) opCrush(instr *kaiku.Instruction) {
	s, ok := getState[crushState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, bits, rate := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2)
	for i := range out {
		s.phase += clampf(rate[i], 0.01, 1)
		if s.phase >= 1 {
			s.phase--
			levels := math32.Pow(2, clampf(bits[i], 1, 16))
			s.held = math32.Round(in[i]*levels) / levels
		}
		out[i] = s.held
	}
}
