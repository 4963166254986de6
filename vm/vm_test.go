package vm_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/vsariola/kaiku"
	"github.com/vsariola/kaiku/vm"
)

const testRate = 48000

// render loads a program and collects the watched buffer over n blocks.
func render(t *testing.T, v *vm.VM, p kaiku.Program, blocks, watch int) []float32 {
	t.Helper()
	if err := v.LoadProgram(p); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	return renderMore(v, blocks, watch)
}

// renderMore continues processing an already loaded program.
func renderMore(v *vm.VM, blocks, watch int) []float32 {
	out := make([]float32, 0, blocks*kaiku.BlockSize)
	for b := 0; b < blocks; b++ {
		v.Process()
		out = append(out, v.Buffer(watch)...)
	}
	return out
}

func peak(signal []float32) float32 {
	var p float32
	for _, x := range signal {
		if x < 0 {
			x = -x
		}
		if x > p {
			p = x
		}
	}
	return p
}

func rms(signal []float32) float64 {
	var sum float64
	for _, x := range signal {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum / float64(len(signal)))
}

func mean(signal []float32) float64 {
	var sum float64
	for _, x := range signal {
		sum += float64(x)
	}
	return sum / float64(len(signal))
}

// measureFreq estimates frequency from interpolated rising zero crossings.
func measureFreq(signal []float32, rate float64) float64 {
	first, last := -1.0, -1.0
	count := 0
	for i := 1; i < len(signal); i++ {
		if signal[i-1] < 0 && signal[i] >= 0 {
			pos := float64(i-1) + float64(signal[i-1])/float64(signal[i-1]-signal[i])
			if first < 0 {
				first = pos
			} else {
				last = pos
			}
			count++
		}
	}
	if count < 2 {
		return 0
	}
	return float64(count-1) * rate / (last - first)
}

func pulseIndices(signal []float32) []int {
	var idx []int
	for i, x := range signal {
		if x > 0.5 {
			idx = append(idx, i)
		}
	}
	return idx
}

func TestOutputAccumulates(t *testing.T) {
	p := kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.ConstInstr(1, 0.25),
		kaiku.OutputInstr(1),
		kaiku.OutputInstr(1),
	}}
	v := vm.New(testRate)
	if err := v.LoadProgram(p); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	l, r := v.Process()
	for i := range l {
		if l[i] != 0.5 || r[i] != 0.5 {
			t.Fatalf("sample %d: got %v/%v, want 0.5 on both channels", i, l[i], r[i])
		}
	}
}

func TestLoadProgramRejectsInvalid(t *testing.T) {
	bad := kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.Binary(kaiku.Add, kaiku.BufferZero, 1, 2, ""),
	}}
	if err := vm.New(testRate).LoadProgram(bad); err == nil {
		t.Fatal("expected an error for a program writing the zero buffer")
	}
}

func TestSetBufferBounds(t *testing.T) {
	v := vm.New(testRate)
	if err := v.SetBuffer(kaiku.BufferZero, []float32{1}); err == nil {
		t.Error("expected an error writing the reserved zero buffer")
	}
	if err := v.SetBuffer(kaiku.MaxBuffers, []float32{1}); err == nil {
		t.Error("expected an error for an out of range index")
	}
	if err := v.SetBuffer(10, []float32{1, 2, 3}); err != nil {
		t.Errorf("valid SetBuffer failed: %v", err)
	}
}

func TestParamReachesTarget(t *testing.T) {
	p := kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.ParamInstr(1, "cutoff"),
	}}
	v := vm.New(testRate)
	v.SetParam("cutoff", 880)
	out := render(t, v, p, 1, 1)
	if out[0] != 880 {
		t.Fatalf("fresh param read %v, want 880 (first set is instantaneous)", out[0])
	}
	// a later change slews instead of jumping
	v.SetParamSlew("cutoff", 440, 2)
	out = renderMore(v, 9, 1)
	if out[0] >= 880 || out[0] <= 440 {
		t.Fatalf("first slewed sample %v, want between 440 and 880", out[0])
	}
	got := out[len(out)-1]
	if math.Abs(float64(got)-440) > 1 {
		t.Fatalf("param settled at %v, want 440", got)
	}
}

func TestParamInstantWithoutSlew(t *testing.T) {
	p := kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.ParamInstr(1, "level"),
	}}
	v := vm.New(testRate)
	v.SetParamSlew("level", 0.5, 0)
	out := render(t, v, p, 1, 1)
	if out[0] != 0.5 {
		t.Fatalf("instant param read %v, want 0.5", out[0])
	}
}

func TestDeterminism(t *testing.T) {
	program := testdataProgram(t, "beat.yml")
	run := func() []float32 {
		v := vm.New(testRate)
		if err := v.LoadProgram(program); err != nil {
			t.Fatalf("LoadProgram failed: %v", err)
		}
		var out []float32
		for b := 0; b < 200; b++ {
			l, _ := v.Process()
			out = append(out, l...)
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs between runs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestStatePersistsAcrossReload(t *testing.T) {
	p := kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.ConstInstr(1, 100),
		kaiku.Unary(kaiku.OscPhasor, 2, 1, "ramp"),
	}}
	v := vm.New(testRate)
	before := render(t, v, p, 4, 2)
	// reloading the same program must not reset the phase
	after := render(t, v, p, 1, 2)
	lastPhase := float64(before[len(before)-1])
	dt := 100.0 / testRate
	want := math.Mod(lastPhase+dt, 1)
	if math.Abs(float64(after[0])-want) > 1e-4 {
		t.Fatalf("phase %v after reload, want %v: state was reset", after[0], want)
	}
}

func TestRenderFillsBuffer(t *testing.T) {
	p := kaiku.Program{Instructions: []kaiku.Instruction{
		kaiku.ConstInstr(1, 440),
		kaiku.Unary(kaiku.OscSin, 2, 1, "tone"),
		kaiku.OutputInstr(2),
	}}
	v := vm.New(testRate)
	if err := v.LoadProgram(p); err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	buffer := make(kaiku.AudioBuffer, 1000)
	if err := buffer.Fill(v); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if rms(flattenLeft(buffer)) < 0.1 {
		t.Fatal("rendered buffer is silent")
	}
}

func flattenLeft(buffer kaiku.AudioBuffer) []float32 {
	out := make([]float32, len(buffer))
	for i, frame := range buffer {
		out[i] = frame[0]
	}
	return out
}

func testdataProgram(t *testing.T, name string) kaiku.Program {
	t.Helper()
	text, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("cannot read %s: %v", name, err)
	}
	var p kaiku.Program
	if err := yaml.Unmarshal(text, &p); err != nil {
		t.Fatalf("cannot parse %s: %v", name, err)
	}
	return p
}

func TestPrograms(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yml"))
	if err != nil {
		t.Fatalf("cannot glob testdata: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no testdata programs found")
	}
	for _, filename := range files {
		name := strings.TrimSuffix(filepath.Base(filename), ".yml")
		t.Run(name, func(t *testing.T) {
			program := testdataProgram(t, filepath.Base(filename))
			v := vm.New(testRate)
			if err := v.LoadProgram(program); err != nil {
				t.Fatalf("LoadProgram failed: %v", err)
			}
			var energy float64
			for b := 0; b < 375; b++ {
				l, r := v.Process()
				for i := range l {
					if math.IsNaN(float64(l[i])) || math.IsInf(float64(l[i]), 0) {
						t.Fatalf("block %d sample %d: left output is %v", b, i, l[i])
					}
					if math.IsNaN(float64(r[i])) || math.IsInf(float64(r[i]), 0) {
						t.Fatalf("block %d sample %d: right output is %v", b, i, r[i])
					}
					energy += float64(l[i]) * float64(l[i])
				}
			}
			if energy == 0 {
				t.Fatal("program rendered pure silence")
			}
		})
	}
}
