package vm_test

import (
	"math"
	"testing"

	"github.com/vsariola/kaiku"
	"github.com/vsariola/kaiku/vm"
)

func db(linear float64) float64 {
	return 20 * math.Log10(math.Max(linear, 1e-12))
}

func linear(db float64) float64 {
	return math.Pow(10, db/20)
}

// feedSine pushes a 1 kHz sine of the given amplitude through buffer 10 and
// returns the watched buffer contents.
func feedSine(t *testing.T, v *vm.VM, amplitude float64, blocks, startSample int) []float32 {
	t.Helper()
	var out []float32
	n := startSample
	for b := 0; b < blocks; b++ {
		block := make([]float32, kaiku.BlockSize)
		for i := range block {
			block[i] = float32(amplitude * math.Sin(2*math.Pi*1000*float64(n)/testRate))
			n++
		}
		if err := v.SetBuffer(10, block); err != nil {
			t.Fatalf("SetBuffer failed: %v", err)
		}
		v.Process()
		out = append(out, v.Buffer(1)...)
	}
	return out
}

func TestCompressorStaticCurve(t *testing.T) {
	program := kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.ConstInstr(2, -20), // threshold dB
		kaiku.ConstInstr(3, 4),   // ratio
		func() kaiku.Instruction {
			i := kaiku.Ternary(kaiku.Compressor, 1, 10, 2, 3, "comp")
			i.Aux.A = 0 // fastest attack
			i.Aux.B = 0 // fastest release
			return i
		}(),
	}}
	for _, inDB := range []float64{-50, -40, -30, -20, -10, 0} {
		v := vm.New(testRate)
		if err := v.LoadProgram(program); err != nil {
			t.Fatalf("LoadProgram failed: %v", err)
		}
		out := feedSine(t, v, linear(inDB), 200, 0)
		outDB := db(float64(peak(out[len(out)/2:])))
		want := inDB
		if inDB > -20 {
			want = -20 + (inDB+20)/4
		}
		if math.Abs(outDB-want) > 3 {
			t.Errorf("input %v dB: output %.1f dB, want %.1f within 3 dB", inDB, outDB, want)
		}
	}
}

func TestLimiterCeiling(t *testing.T) {
	program := kaiku.Program{Instructions: []kaiku.Instruction{
		func() kaiku.Instruction {
			i := kaiku.Unary(kaiku.Limiter, 1, 10, "lim")
			i.Aux.Value = -6 // ceiling dB
			i.Aux.A = 15     // slow release
			return i
		}(),
	}}
	v := vm.New(testRate)
	if err := v.LoadProgram(program); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	out := feedSine(t, v, 1, 375, 0)
	// transients may overshoot by at most 1 dB, steady state by 0.5 dB
	if got := db(float64(peak(out))); got > -6+1 {
		t.Fatalf("transient peak %.2f dB above -5 dB", got)
	}
	if got := db(float64(peak(out[len(out)/2:]))); got > -6+0.5 {
		t.Fatalf("steady-state peak %.2f dB above -5.5 dB", got)
	}
}

func TestGateClosesFastDespiteLongRelease(t *testing.T) {
	program := kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.ConstInstr(2, -30), // threshold dB
		kaiku.ConstInstr(3, -60), // range dB
		func() kaiku.Instruction {
			i := kaiku.Ternary(kaiku.Gate, 1, 10, 2, 3, "gate")
			i.Aux.A = 15 // 500 ms release
			i.Aux.B = 0  // shortest hold
			return i
		}(),
	}}
	v := vm.New(testRate)
	if err := v.LoadProgram(program); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	// loud passage opens the gate
	loud := feedSine(t, v, 0.5, 200, 0)
	if db(float64(peak(loud[len(loud)/2:]))) < -8 {
		t.Fatal("gate did not open for a -6 dB signal")
	}
	// quiet passage: the gate must close within 200 ms even though the
	// configured release is 500 ms
	quiet := feedSine(t, v, 0.01, 150, 200*kaiku.BlockSize)
	window := quiet[int(0.2*testRate):]
	limit := 0.01 * linear(-60+10)
	if got := float64(peak(window)); got > limit {
		t.Fatalf("output %.2e after 200 ms, want below %.2e", got, limit)
	}
}

func TestGateHoversAtThresholdWithoutChatter(t *testing.T) {
	program := kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.ConstInstr(2, -30), // threshold dB
		kaiku.ConstInstr(3, -60), // range dB
		func() kaiku.Instruction {
			i := kaiku.Ternary(kaiku.Gate, 1, 10, 2, 3, "gate")
			i.Aux.A = 4
			i.Aux.B = 0
			return i
		}(),
	}}
	v := vm.New(testRate)
	if err := v.LoadProgram(program); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	// amplitude wobbles 1 dB either side of the threshold at 2 Hz, well
	// inside the 6 dB hysteresis band
	const blocks = 750
	open := make([]bool, 0, blocks)
	n := 0
	for b := 0; b < blocks; b++ {
		block := make([]float32, kaiku.BlockSize)
		for i := range block {
			amp := linear(-30 + math.Sin(2*math.Pi*2*float64(n)/testRate))
			block[i] = float32(amp * math.Sin(2*math.Pi*1000*float64(n)/testRate))
			n++
		}
		if err := v.SetBuffer(10, block); err != nil {
			t.Fatalf("SetBuffer failed: %v", err)
		}
		v.Process()
		open = append(open, peak(v.Buffer(1))/peak(block) > 0.5)
	}
	flips := 0
	for i := 1; i < len(open); i++ {
		if open[i] != open[i-1] {
			flips++
		}
	}
	if flips > 4 {
		t.Fatalf("gate toggled %d times on a signal hovering at the threshold", flips)
	}
	if !open[len(open)-1] {
		t.Fatal("gate never settled open for a signal crossing the threshold")
	}
}

func TestGateReopens(t *testing.T) {
	program := kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.ConstInstr(2, -30),
		kaiku.ConstInstr(3, -60),
		func() kaiku.Instruction {
			i := kaiku.Ternary(kaiku.Gate, 1, 10, 2, 3, "gate")
			i.Aux.A = 4
			i.Aux.B = 2
			return i
		}(),
	}}
	v := vm.New(testRate)
	if err := v.LoadProgram(program); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	n := 0
	feedSine(t, v, 0.5, 100, n)
	n += 100 * kaiku.BlockSize
	feedSine(t, v, 0.001, 100, n)
	n += 100 * kaiku.BlockSize
	reopened := feedSine(t, v, 0.5, 100, n)
	if got := db(float64(peak(reopened[len(reopened)/2:]))); got < -8 {
		t.Fatalf("gate stuck closed: %.1f dB after signal returned", got)
	}
}
