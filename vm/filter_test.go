package vm_test

import (
	"math"
	"testing"

	"github.com/vsariola/kaiku"
	"github.com/vsariola/kaiku/vm"
)

func filterProgram(op kaiku.Op, cutoff, res float32) kaiku.Program {
	return kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.ConstInstr(2, cutoff),
		kaiku.ConstInstr(3, res),
		kaiku.Ternary(op, 1, 10, 2, 3, "filt"),
	}}
}

// setInput fills the filter input buffer for the following blocks.
func setInput(t *testing.T, v *vm.VM, samples []float32) {
	t.Helper()
	if err := v.SetBuffer(10, samples); err != nil {
		t.Fatalf("SetBuffer failed: %v", err)
	}
}

func constBlock(value float32) []float32 {
	out := make([]float32, kaiku.BlockSize)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestSVFLowpassPassesDC(t *testing.T) {
	v := vm.New(testRate)
	if err := v.LoadProgram(filterProgram(kaiku.FilterSVFLP, 1000, 0.7)); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	setInput(t, v, constBlock(1))
	out := renderMore(v, 100, 1)
	got := out[len(out)-1]
	if math.Abs(float64(got)-1) > 0.02 {
		t.Fatalf("lowpass settled at %v for unit DC input, want 1", got)
	}
}

func TestSVFLowpassAttenuatesHighFrequencies(t *testing.T) {
	run := func(cutoff float32) float64 {
		v := vm.New(testRate)
		if err := v.LoadProgram(filterProgram(kaiku.FilterSVFLP, cutoff, 0.7)); err != nil {
			t.Fatalf("LoadProgram failed: %v", err)
		}
		var out []float32
		n := 0
		for b := 0; b < 200; b++ {
			block := make([]float32, kaiku.BlockSize)
			for i := range block {
				block[i] = float32(math.Sin(2 * math.Pi * 8000 * float64(n) / testRate))
				n++
			}
			setInput(t, v, block)
			v.Process()
			out = append(out, v.Buffer(1)...)
		}
		return rms(out[len(out)/2:])
	}
	wideOpen := run(20000)
	closed := run(200)
	if closed > wideOpen*0.05 {
		t.Fatalf("8 kHz leaks through a 200 Hz lowpass: rms %.4f vs %.4f open", closed, wideOpen)
	}
}

func TestHighpassBlocksDC(t *testing.T) {
	v := vm.New(testRate)
	if err := v.LoadProgram(filterProgram(kaiku.FilterSVFHP, 500, 0.7)); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	setInput(t, v, constBlock(1))
	out := renderMore(v, 200, 1)
	if got := math.Abs(float64(out[len(out)-1])); got > 0.01 {
		t.Fatalf("highpass passes DC: %v", got)
	}
}

func TestSelfOscillationTracksCutoff(t *testing.T) {
	for _, tt := range []struct {
		name string
		op   kaiku.Op
		res  float32
	}{
		{"moog", kaiku.FilterMoog, 4.2},
		{"diode", kaiku.FilterDiode, 1.05},
		{"sallenkey", kaiku.FilterSallenKey, 2.2},
	} {
		t.Run(tt.name, func(t *testing.T) {
			const cutoff = 500
			v := vm.New(testRate)
			if err := v.LoadProgram(filterProgram(tt.op, cutoff, tt.res)); err != nil {
				t.Fatalf("LoadProgram failed: %v", err)
			}
			// kick the filter with a single impulse, then let it ring
			impulse := make([]float32, kaiku.BlockSize)
			impulse[0] = 1
			setInput(t, v, impulse)
			v.Process()
			setInput(t, v, make([]float32, kaiku.BlockSize))
			out := renderMore(v, 750, 1)

			tail := out[len(out)/2:]
			if rms(tail) < 0.01 {
				t.Fatalf("no self-oscillation at resonance %v", tt.res)
			}
			got := measureFreq(tail, testRate)
			if math.Abs(got-cutoff)/cutoff > 0.05 {
				t.Fatalf("oscillates at %.1f Hz, want %d within 5%%", got, cutoff)
			}
		})
	}
}

func TestFormantEmphasizesVowelBand(t *testing.T) {
	program := kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.Binary(kaiku.FilterFormant, 1, 10, kaiku.BufferZero, "vowel"),
	}}
	run := func(freq float64) float64 {
		v := vm.New(testRate)
		if err := v.LoadProgram(program); err != nil {
			t.Fatalf("LoadProgram failed: %v", err)
		}
		var out []float32
		n := 0
		for b := 0; b < 150; b++ {
			block := make([]float32, kaiku.BlockSize)
			for i := range block {
				block[i] = float32(math.Sin(2 * math.Pi * freq * float64(n) / testRate))
				n++
			}
			setInput(t, v, block)
			v.Process()
			out = append(out, v.Buffer(1)...)
		}
		return rms(out[len(out)/2:])
	}
	// vowel A has a formant peak at 800 Hz; 2 kHz sits between its peaks
	onPeak := run(800)
	offPeak := run(2000)
	if onPeak < offPeak*2 {
		t.Fatalf("formant peak response %.4f not above off-peak %.4f", onPeak, offPeak)
	}
}
