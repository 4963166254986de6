package vm

import (
	"github.com/chewxy/math32"
	"github.com/viterin/vek/vek32"

	"github.com/vsariola/kaiku"
)

// logicEpsilon is the tolerance of the eq/neq comparisons.
const logicEpsilon = 1e-6

func (v *VM) opConst(instr *kaiku.Instruction) {
	out := v.out(instr)
	value := instr.Aux.Value
	for i := range out {
		out[i] = value
	}
}

func (v *VM) opCopy(instr *kaiku.Instruction) {
	copy(v.out(instr), v.in(instr, 0))
}

func (v *VM) opOutput(instr *kaiku.Instruction) {
	in := v.in(instr, 0)
	vek32.Add_Inplace(v.outL[:], in)
	vek32.Add_Inplace(v.outR[:], in)
}

type noiseState struct {
	seed uint32
}

// opNoise is a plain LCG noise source; the seed derives from the state id so
// separate noise instructions decorrelate while staying deterministic.
func (v *VM) opNoise(instr *kaiku.Instruction) {
	out := v.out(instr)
	s, ok := getState[noiseState](v, instr.StateID)
	if !ok {
		return
	}
	for i := range out {
		s.seed = s.seed*1103515245 + 12345
		out[i] = float32(int32(s.seed)) / 2147483648.0
	}
}

func (v *VM) opMToF(instr *kaiku.Instruction) {
	out, note := v.out(instr), v.in(instr, 0)
	for i := range out {
		out[i] = 440 * math32.Pow(2, (note[i]-69)/12)
	}
}

func (v *VM) opDC(instr *kaiku.Instruction) {
	out, in := v.out(instr), v.in(instr, 0)
	vek32.AddNumber_Into(out, in, instr.Aux.Value)
}

type slewState struct {
	current float32
}

// opSlew limits the rate of change toward the target; Aux.Value is the
// number of samples to (mostly) reach it.
func (v *VM) opSlew(instr *kaiku.Instruction) {
	out, target := v.out(instr), v.in(instr, 0)
	s, ok := getState[slewState](v, instr.StateID)
	if !ok {
		return
	}
	coeff := float32(1)
	if instr.Aux.Value > 0 {
		coeff = 1 / instr.Aux.Value
	}
	for i := range out {
		s.current += (target[i] - s.current) * coeff
		out[i] = s.current
	}
}

type sahState struct {
	held        float32
	prevTrigger float32
}

func (v *VM) opSAH(instr *kaiku.Instruction) {
	out, in, trigger := v.out(instr), v.in(instr, 0), v.in(instr, 1)
	s, ok := getState[sahState](v, instr.StateID)
	if !ok {
		return
	}
	for i := range out {
		if s.prevTrigger <= 0 && trigger[i] > 0 {
			s.held = in[i]
		}
		s.prevTrigger = trigger[i]
		out[i] = s.held
	}
}

// opParam reads a host parameter into the signal path, advancing its slew
// per sample so parameter motion is smooth inside the block.
func (v *VM) opParam(instr *kaiku.Instruction) {
	out := v.out(instr)
	e, ok := v.params[instr.StateID]
	if !ok {
		for i := range out {
			out[i] = 0
		}
		return
	}
	for i := range out {
		e.current += (e.target - e.current) * e.coeff
		out[i] = e.current
	}
}

// Arithmetic. Division guards zero denominators with a zero result instead
// of letting Inf/NaN into the block path.

func (v *VM) opAdd(instr *kaiku.Instruction) {
	vek32.Add_Into(v.out(instr), v.in(instr, 0), v.in(instr, 1))
}

func (v *VM) opSub(instr *kaiku.Instruction) {
	vek32.Sub_Into(v.out(instr), v.in(instr, 0), v.in(instr, 1))
}

func (v *VM) opMul(instr *kaiku.Instruction) {
	vek32.Mul_Into(v.out(instr), v.in(instr, 0), v.in(instr, 1))
}

func (v *VM) opDiv(instr *kaiku.Instruction) {
	out, a, b := v.out(instr), v.in(instr, 0), v.in(instr, 1)
	for i := range out {
		if b[i] != 0 {
			out[i] = a[i] / b[i]
		} else {
			out[i] = 0
		}
	}
}

func (v *VM) opPow(instr *kaiku.Instruction) {
	out, a, b := v.out(instr), v.in(instr, 0), v.in(instr, 1)
	for i := range out {
		out[i] = math32.Pow(a[i], b[i])
	}
}

func (v *VM) opNeg(instr *kaiku.Instruction) {
	vek32.MulNumber_Into(v.out(instr), v.in(instr, 0), -1)
}

// Pure math. Domain edges are clamped so the block path stays NaN-free.

func (v *VM) opAbs(instr *kaiku.Instruction) {
	vek32.Abs_Into(v.out(instr), v.in(instr, 0))
}

func (v *VM) opSqrt(instr *kaiku.Instruction) {
	out := v.out(instr)
	vek32.MaximumNumber_Into(out, v.in(instr, 0), 0)
	vek32.Sqrt_Inplace(out)
}

func (v *VM) opLog(instr *kaiku.Instruction) {
	out, a := v.out(instr), v.in(instr, 0)
	for i := range out {
		out[i] = math32.Log(math32.Max(1e-10, a[i]))
	}
}

func (v *VM) opExp(instr *kaiku.Instruction) {
	out, a := v.out(instr), v.in(instr, 0)
	for i := range out {
		out[i] = math32.Exp(clampf(a[i], -87, 87))
	}
}

func (v *VM) opMin(instr *kaiku.Instruction) {
	vek32.Minimum_Into(v.out(instr), v.in(instr, 0), v.in(instr, 1))
}

func (v *VM) opMax(instr *kaiku.Instruction) {
	vek32.Maximum_Into(v.out(instr), v.in(instr, 0), v.in(instr, 1))
}

func (v *VM) opClamp(instr *kaiku.Instruction) {
	out, a, lo, hi := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2)
	for i := range out {
		out[i] = clampf(a[i], lo[i], hi[i])
	}
}

func (v *VM) opWrap(instr *kaiku.Instruction) {
	out, a, lo, hi := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2)
	for i := range out {
		r := hi[i] - lo[i]
		if r > 0 {
			x := a[i] - lo[i]
			out[i] = lo[i] + x - r*math32.Floor(x/r)
		} else {
			out[i] = lo[i]
		}
	}
}

func (v *VM) opFloor(instr *kaiku.Instruction) {
	vek32.Floor_Into(v.out(instr), v.in(instr, 0))
}

func (v *VM) opCeil(instr *kaiku.Instruction) {
	vek32.Ceil_Into(v.out(instr), v.in(instr, 0))
}

func (v *VM) opMath1(instr *kaiku.Instruction, f func(float32) float32) {
	out, a := v.out(instr), v.in(instr, 0)
	for i := range out {
		out[i] = f(a[i])
	}
}

func mathAsin(x float32) float32 { return math32.Asin(clampf(x, -1, 1)) }
func mathAcos(x float32) float32 { return math32.Acos(clampf(x, -1, 1)) }
func mathSinh(x float32) float32 { return math32.Sinh(clampf(x, -87, 87)) }
func mathCosh(x float32) float32 { return math32.Cosh(clampf(x, -87, 87)) }

func (v *VM) opAtan2(instr *kaiku.Instruction) {
	out, y, x := v.out(instr), v.in(instr, 0), v.in(instr, 1)
	for i := range out {
		out[i] = math32.Atan2(y[i], x[i])
	}
}

// Logic. Signals above zero count as true; outputs are 0 or 1.

func (v *VM) opSelect(instr *kaiku.Instruction) {
	out, cond, a, b := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2)
	for i := range out {
		if cond[i] > 0 {
			out[i] = a[i]
		} else {
			out[i] = b[i]
		}
	}
}

func (v *VM) opCompare(instr *kaiku.Instruction, f func(a, b float32) bool) {
	out, a, b := v.out(instr), v.in(instr, 0), v.in(instr, 1)
	for i := range out {
		if f(a[i], b[i]) {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
}

func cmpGt(a, b float32) bool  { return a > b }
func cmpLt(a, b float32) bool  { return a < b }
func cmpGte(a, b float32) bool { return a >= b }
func cmpLte(a, b float32) bool { return a <= b }
func cmpEq(a, b float32) bool  { return math32.Abs(a-b) < logicEpsilon }
func cmpNeq(a, b float32) bool { return math32.Abs(a-b) >= logicEpsilon }

func logicAnd(a, b float32) bool { return a > 0 && b > 0 }
func logicOr(a, b float32) bool  { return a > 0 || b > 0 }

func (v *VM) opNot(instr *kaiku.Instruction) {
	out, a := v.out(instr), v.in(instr, 0)
	for i := range out {
		if a[i] > 0 {
			out[i] = 0
		} else {
			out[i] = 1
		}
	}
}
