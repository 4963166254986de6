package vm_test

import (
	"math"
	"testing"

	"github.com/vsariola/kaiku"
	"github.com/vsariola/kaiku/vm"
)

func oscProgram(op kaiku.Op, freq float32) kaiku.Program {
	return kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.ConstInstr(1, freq),
		kaiku.Unary(op, 2, 1, "osc"),
	}}
}

func TestOscillatorFrequency(t *testing.T) {
	for _, tt := range []struct {
		name string
		op   kaiku.Op
	}{
		{"sin", kaiku.OscSin},
		{"tri", kaiku.OscTri},
		{"saw", kaiku.OscSaw},
		{"sqr", kaiku.OscSqr},
		{"ramp", kaiku.OscRamp},
		{"sin_2x", kaiku.OscSin2x},
		{"saw_2x", kaiku.OscSaw2x},
		{"sqr_4x", kaiku.OscSqr4x},
		{"tri_4x", kaiku.OscTri4x},
		{"sqr_minblep", kaiku.OscSqrMinblep},
	} {
		t.Run(tt.name, func(t *testing.T) {
			v := vm.New(testRate)
			out := render(t, v, oscProgram(tt.op, 440), 375, 2)
			got := measureFreq(out[kaiku.BlockSize:], testRate)
			if math.Abs(got-440)/440 > 0.005 {
				t.Fatalf("measured %.2f Hz, want 440 within 0.5%%", got)
			}
		})
	}
}

func TestOscillatorDC(t *testing.T) {
	for _, tt := range []struct {
		name string
		op   kaiku.Op
	}{
		{"sqr", kaiku.OscSqr},
		{"saw", kaiku.OscSaw},
		{"tri", kaiku.OscTri},
	} {
		t.Run(tt.name, func(t *testing.T) {
			v := vm.New(testRate)
			out := render(t, v, oscProgram(tt.op, 441.4), 375, 2)
			if dc := mean(out); math.Abs(dc) > 0.02 {
				t.Fatalf("dc offset %.4f, want near zero", dc)
			}
		})
	}
}

func TestPhasorRange(t *testing.T) {
	v := vm.New(testRate)
	out := render(t, v, oscProgram(kaiku.OscPhasor, 1234.5), 100, 2)
	for i, x := range out {
		if x < 0 || x >= 1 {
			t.Fatalf("sample %d: phasor output %v outside [0,1)", i, x)
		}
	}
	if got := measureRampRate(out); math.Abs(got-1234.5)/1234.5 > 0.005 {
		t.Fatalf("phasor wraps at %.2f Hz, want 1234.5", got)
	}
}

// measureRampRate counts phasor wraps per second.
func measureRampRate(signal []float32) float64 {
	wraps := 0
	for i := 1; i < len(signal); i++ {
		if signal[i] < signal[i-1]-0.5 {
			wraps++
		}
	}
	return float64(wraps) * testRate / float64(len(signal))
}

func TestOscillatorTriggerReset(t *testing.T) {
	p := kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.ConstInstr(1, 100),
		kaiku.Ternary(kaiku.OscPhasor, 2, 1, kaiku.BufferZero, 10, "osc"),
	}}
	v := vm.New(testRate)
	if err := v.LoadProgram(p); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	v.Process()
	// raise the trigger buffer: phase must snap back to the zero offset
	high := make([]float32, kaiku.BlockSize)
	for i := range high {
		high[i] = 1
	}
	if err := v.SetBuffer(10, high); err != nil {
		t.Fatalf("SetBuffer failed: %v", err)
	}
	v.Process()
	out := v.Buffer(2)
	if out[0] != 0 {
		t.Fatalf("phase %v after trigger, want 0", out[0])
	}
	if out[1] <= out[0] {
		t.Fatal("phase not advancing after reset")
	}
}

func TestPWMDutyCycle(t *testing.T) {
	// pwm +0.5 maps to a 75% duty square
	p := kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.ConstInstr(1, 200),
		kaiku.ConstInstr(3, 0.5),
		kaiku.Binary(kaiku.OscSqrPWM, 2, 1, 3, "pwm"),
	}}
	v := vm.New(testRate)
	out := render(t, v, p, 375, 2)
	highs := 0
	for _, x := range out {
		if x > 0 {
			highs++
		}
	}
	duty := float64(highs) / float64(len(out))
	if math.Abs(duty-0.75) > 0.02 {
		t.Fatalf("duty %.3f, want 0.75 within 2%%", duty)
	}
}

func TestOversampledMatchesSingleRateFrequency(t *testing.T) {
	// same program at 1x and 4x: pitch identical, only the aliasing differs
	single := render(t, vm.New(testRate), oscProgram(kaiku.OscSaw, 2000), 375, 2)
	over := render(t, vm.New(testRate), oscProgram(kaiku.OscSaw4x, 2000), 375, 2)
	f1 := measureFreq(single[kaiku.BlockSize:], testRate)
	f4 := measureFreq(over[kaiku.BlockSize:], testRate)
	if math.Abs(f1-f4) > 2 {
		t.Fatalf("1x measures %.2f Hz but 4x measures %.2f Hz", f1, f4)
	}
}

// fmSawProgram frequency-modulates a saw: 2 kHz carrier swung 1.5 kHz either
// way by a 600 Hz sine.
func fmSawProgram(op kaiku.Op) kaiku.Program {
	return kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.ConstInstr(1, 600),
		kaiku.Unary(kaiku.OscSin, 2, 1, "mod"),
		kaiku.ConstInstr(3, 1500),
		kaiku.Binary(kaiku.Mul, 4, 2, 3, ""),
		kaiku.ConstInstr(5, 2000),
		kaiku.Binary(kaiku.Add, 6, 4, 5, ""),
		kaiku.Unary(op, 7, 6, "car"),
	}}
}

// bandEnergy sums Goertzel bin power over [lo, hi) Hz in 50 Hz steps.
func bandEnergy(signal []float32, rate, lo, hi float64) float64 {
	var energy float64
	for f := lo; f < hi; f += 50 {
		w := 2 * math.Pi * f / rate
		coeff := 2 * math.Cos(w)
		var s1, s2 float64
		for _, x := range signal {
			s0 := float64(x) + coeff*s1 - s2
			s2, s1 = s1, s0
		}
		energy += s1*s1 + s2*s2 - coeff*s1*s2
	}
	return energy
}

func TestOversamplingLowersFMAliasing(t *testing.T) {
	// deep audio-rate FM folds the saw's upper harmonics back below Nyquist;
	// the 4x variant's decimation filter must leave much less energy up there
	single := render(t, vm.New(testRate), fmSawProgram(kaiku.OscSaw), 375, 7)
	over := render(t, vm.New(testRate), fmSawProgram(kaiku.OscSaw4x), 375, 7)
	e1 := bandEnergy(single[kaiku.BlockSize:], testRate, 20000, 23500)
	e4 := bandEnergy(over[kaiku.BlockSize:], testRate, 20000, 23500)
	if e1 <= 0 {
		t.Fatal("no high-band energy measured for the 1x render")
	}
	if e4 >= 0.5*e1 {
		t.Fatalf("4x high-band energy %.3g not below half of 1x %.3g", e4, e1)
	}
}

func TestOscillatorLongRunPhaseStability(t *testing.T) {
	// ten seconds of 440 Hz: the last rising zero crossing must land where an
	// ideal oscillator would put it
	out := render(t, vm.New(testRate), oscProgram(kaiku.OscSin, 440), 3750, 2)
	var crossings []float64
	for i := 1; i < len(out); i++ {
		if out[i-1] < 0 && out[i] >= 0 {
			frac := float64(out[i-1]) / float64(out[i-1]-out[i])
			crossings = append(crossings, float64(i-1)+frac)
		}
	}
	if len(crossings) < 4000 {
		t.Fatalf("only %d rising crossings in ten seconds", len(crossings))
	}
	span := crossings[len(crossings)-1] - crossings[0]
	ideal := float64(len(crossings)-1) * testRate / 440
	if drift := math.Abs(span - ideal); drift > 2 {
		t.Fatalf("phase drifted %.2f samples over ten seconds", drift)
	}
}

func TestMinblepLongRunStaysBounded(t *testing.T) {
	out := render(t, vm.New(testRate), oscProgram(kaiku.OscSqrMinblep, 440), 3750, 2)
	if got := peak(out); got > 1.5 {
		t.Fatalf("peak %v after ten seconds, corrections are accumulating", got)
	}
	second := int(testRate)
	early := rms(out[second : 2*second])
	late := rms(out[len(out)-second:])
	if math.Abs(late-early) > 0.15*early {
		t.Fatalf("rms moved from %.3f to %.3f over ten seconds", early, late)
	}
}
