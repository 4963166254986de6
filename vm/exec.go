package vm

import (
	"github.com/chewxy/math32"

	"github.com/vsariola/kaiku"
)

// exec runs one instruction over the current block. Unknown opcodes cannot
// reach here: LoadProgram validates against the catalog.
func (v *VM) exec(instr *kaiku.Instruction) {
	switch instr.Op {
	case kaiku.Nop:
	case kaiku.Const:
		v.opConst(instr)
	case kaiku.Copy:
		v.opCopy(instr)

	case kaiku.Add:
		v.opAdd(instr)
	case kaiku.Sub:
		v.opSub(instr)
	case kaiku.Mul:
		v.opMul(instr)
	case kaiku.Div:
		v.opDiv(instr)
	case kaiku.Pow:
		v.opPow(instr)
	case kaiku.Neg:
		v.opNeg(instr)

	case kaiku.OscSin, kaiku.OscTri, kaiku.OscSaw, kaiku.OscSqr,
		kaiku.OscRamp, kaiku.OscPhasor, kaiku.OscSawPWM, kaiku.OscSqrPWM:
		v.opOsc(instr)
	case kaiku.OscSin2x, kaiku.OscSaw2x, kaiku.OscSqr2x, kaiku.OscTri2x:
		v.opOscOver(instr, 2)
	case kaiku.OscSin4x, kaiku.OscSaw4x, kaiku.OscSqr4x, kaiku.OscTri4x,
		kaiku.OscSawPWM4x, kaiku.OscSqrPWM4x:
		v.opOscOver(instr, 4)
	case kaiku.OscSqrMinblep, kaiku.OscSqrPWMMinblep:
		v.opOscMinblep(instr)

	case kaiku.FilterSVFLP, kaiku.FilterSVFHP, kaiku.FilterSVFBP:
		v.opSVF(instr)
	case kaiku.FilterMoog:
		v.opMoog(instr)
	case kaiku.FilterDiode:
		v.opDiode(instr)
	case kaiku.FilterSallenKey:
		v.opSallenKey(instr)
	case kaiku.FilterFormant:
		v.opFormant(instr)

	case kaiku.Abs:
		v.opAbs(instr)
	case kaiku.Sqrt:
		v.opSqrt(instr)
	case kaiku.Log:
		v.opLog(instr)
	case kaiku.Exp:
		v.opExp(instr)
	case kaiku.Min:
		v.opMin(instr)
	case kaiku.Max:
		v.opMax(instr)
	case kaiku.Clamp:
		v.opClamp(instr)
	case kaiku.Wrap:
		v.opWrap(instr)
	case kaiku.Floor:
		v.opFloor(instr)
	case kaiku.Ceil:
		v.opCeil(instr)

	case kaiku.Output:
		v.opOutput(instr)
	case kaiku.Noise:
		v.opNoise(instr)
	case kaiku.MToF:
		v.opMToF(instr)
	case kaiku.DC:
		v.opDC(instr)
	case kaiku.Slew:
		v.opSlew(instr)
	case kaiku.SAH:
		v.opSAH(instr)
	case kaiku.Param:
		v.opParam(instr)

	case kaiku.Compressor:
		v.opCompressor(instr)
	case kaiku.Limiter:
		v.opLimiter(instr)
	case kaiku.Gate:
		v.opGate(instr)

	case kaiku.EnvADSR:
		v.opADSR(instr)
	case kaiku.EnvAR:
		v.opAR(instr)
	case kaiku.EnvFollower:
		v.opFollower(instr)

	case kaiku.Delay:
		v.opDelay(instr, false)
	case kaiku.DelaySync:
		v.opDelay(instr, true)
	case kaiku.Comb:
		v.opComb(instr)
	case kaiku.Flanger:
		v.opFlanger(instr)
	case kaiku.Chorus:
		v.opChorus(instr)
	case kaiku.Phaser:
		v.opPhaser(instr)

	case kaiku.ReverbFreeverb:
		v.opFreeverb(instr)
	case kaiku.ReverbDattorro:
		v.opDattorro(instr)
	case kaiku.ReverbFDN:
		v.opFDN(instr)

	case kaiku.DistTanh, kaiku.DistSoft:
		v.opSaturate(instr)
	case kaiku.DistFold:
		v.opFold(instr)
	case kaiku.DistCrush:
		v.opCrush(instr)

	case kaiku.ClockOp:
		v.opClock(instr)
	case kaiku.LFO:
		v.opLFO(instr)
	case kaiku.Euclid:
		v.opEuclid(instr)
	case kaiku.TriggerOp:
		v.opTrigger(instr)

	case kaiku.SamplePlay:
		v.opSamplePlay(instr)
	case kaiku.SampleLoop:
		v.opSampleLoop(instr)

	case kaiku.MathSin:
		v.opMath1(instr, math32.Sin)
	case kaiku.MathCos:
		v.opMath1(instr, math32.Cos)
	case kaiku.MathTan:
		v.opMath1(instr, math32.Tan)
	case kaiku.MathAsin:
		v.opMath1(instr, mathAsin)
	case kaiku.MathAcos:
		v.opMath1(instr, mathAcos)
	case kaiku.MathAtan:
		v.opMath1(instr, math32.Atan)
	case kaiku.MathAtan2:
		v.opAtan2(instr)
	case kaiku.MathSinh:
		v.opMath1(instr, mathSinh)
	case kaiku.MathCosh:
		v.opMath1(instr, mathCosh)
	case kaiku.MathTanh:
		v.opMath1(instr, math32.Tanh)

	case kaiku.Select:
		v.opSelect(instr)
	case kaiku.CmpGt:
		v.opCompare(instr, cmpGt)
	case kaiku.CmpLt:
		v.opCompare(instr, cmpLt)
	case kaiku.CmpGte:
		v.opCompare(instr, cmpGte)
	case kaiku.CmpLte:
		v.opCompare(instr, cmpLte)
	case kaiku.CmpEq:
		v.opCompare(instr, cmpEq)
	case kaiku.CmpNeq:
		v.opCompare(instr, cmpNeq)
	case kaiku.And:
		v.opCompare(instr, logicAnd)
	case kaiku.Or:
		v.opCompare(instr, logicOr)
	case kaiku.Not:
		v.opNot(instr)
	}
}
