// Package vm implements the kaiku interpreter: a block-based virtual machine
// that executes a program of DSP instructions over float32 sample buffers.
// All per-sample logic (phase accumulation, gate edges, envelope stages) runs
// at single-sample resolution inside each opcode; the host-visible granularity
// is one block of kaiku.BlockSize frames.
package vm

import (
	"fmt"
	"sync"

	"github.com/vsariola/kaiku"
)

type (
	// VM owns the buffer bank, parameter table, state arena, sample bank and
	// transport. Process is meant to be called from a single audio goroutine;
	// SetParam, LoadProgram and LoadSample may be called from elsewhere and
	// take effect at the next block boundary.
	VM struct {
		program    kaiku.Program
		buffers    [kaiku.MaxBuffers][kaiku.BlockSize]float32
		outL, outR [kaiku.BlockSize]float32

		states      map[uint32]stateEntry
		params      map[uint32]*paramEntry
		samples     sampleBank
		sampleTable []*kaiku.Sample // block-path view of the bank, refreshed in beginBlock

		sampleRate    float32
		invSampleRate float32
		bpm           float32

		sampleCounter uint64
		blockCounter  uint64

		mu           sync.Mutex
		pending      *kaiku.Program
		staged       []stagedParam
		samplesDirty bool
	}

	stagedParam struct {
		hash   uint32
		target float32
		coeff  float32
	}

	paramEntry struct {
		target  float32
		current float32
		coeff   float32
	}
)

const defaultParamSlewMs = 5

// New creates a VM at the given sample rate (0 picks the default) with an
// empty program.
func New(sampleRate float32) *VM {
	if sampleRate <= 0 {
		sampleRate = kaiku.DefaultSampleRate
	}
	v := &VM{
		states: make(map[uint32]stateEntry),
		params: make(map[uint32]*paramEntry),
		bpm:    kaiku.DefaultBPM,
	}
	v.samples.init()
	v.setRate(sampleRate)
	return v
}

func (v *VM) setRate(rate float32) {
	v.sampleRate = rate
	v.invSampleRate = 1 / rate
}

// SetSampleRate changes the engine rate. Coefficients derived from the rate
// are recomputed by each opcode on its next block.
func (v *VM) SetSampleRate(rate float32) {
	if rate <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setRate(rate)
}

// SetBPM changes the tempo. All musical phases derive from the absolute
// sample counter, so a tempo change re-anchors phase without drift.
func (v *VM) SetBPM(bpm float32) {
	if bpm <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bpm = bpm
}

// SampleRate returns the current engine rate.
func (v *VM) SampleRate() float32 { return v.sampleRate }

// BPM returns the current tempo.
func (v *VM) BPM() float32 { return v.bpm }

// SetParam upserts a named host parameter with the default 5 ms slew.
func (v *VM) SetParam(name string, value float32) {
	v.SetParamSlew(name, value, defaultParamSlewMs)
}

// SetParamSlew upserts a parameter with an explicit slew time. slewMs <= 0
// makes the change instantaneous at the next block.
func (v *VM) SetParamSlew(name string, value, slewMs float32) {
	coeff := float32(1)
	if slewMs > 0 {
		samples := slewMs * v.sampleRate / 1000
		coeff = clampf(1/samples, 1e-4, 1)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.staged = append(v.staged, stagedParam{hash: kaiku.Hash(name), target: value, coeff: coeff})
}

// LoadProgram validates the program and stages it for an atomic swap at the
// next block boundary. States whose id and kind match the previous program
// persist; an id reused by a different kind of opcode is reset to its
// initial condition.
func (v *VM) LoadProgram(p kaiku.Program) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("vm.LoadProgram: %v", err)
	}
	c := p.Copy()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = &c
	return nil
}

// SetBuffer stages external input samples into a buffer for the next block.
// Shorter slices fill the head of the buffer; the rest keeps its old values.
func (v *VM) SetBuffer(index int, samples []float32) error {
	if index < 0 || index >= kaiku.MaxBuffers {
		return fmt.Errorf("vm.SetBuffer: buffer %d out of range", index)
	}
	if index == kaiku.BufferZero {
		return fmt.Errorf("vm.SetBuffer: buffer %d is the reserved zero buffer", index)
	}
	if len(samples) > kaiku.BlockSize {
		samples = samples[:kaiku.BlockSize]
	}
	copy(v.buffers[index][:], samples)
	return nil
}

// Buffer returns a copy-free view of a buffer's current contents. Intended
// for hosts reading results after Process; mutating it mid-block is a bug.
func (v *VM) Buffer(index int) []float32 {
	if index < 0 || index >= kaiku.MaxBuffers {
		return nil
	}
	return v.buffers[index][:]
}

// LoadSample registers immutable sample data under a name and returns its id.
// The block path sees the new data at the next block boundary.
func (v *VM) LoadSample(name string, data []float32, channels int, rate float32) (int, error) {
	sample, err := kaiku.NewSample(data, channels, rate)
	if err != nil {
		return 0, fmt.Errorf("vm.LoadSample %q: %v", name, err)
	}
	id := v.samples.add(name, sample)
	v.mu.Lock()
	v.samplesDirty = true
	v.mu.Unlock()
	return id, nil
}

// SampleID returns the id for a loaded sample name, 0 if unknown.
func (v *VM) SampleID(name string) int { return v.samples.id(name) }

// Process executes one block and returns views over the stereo output
// accumulators. It never fails: numerical edge cases are clamped and missing
// resources play silence.
func (v *VM) Process() (left, right []float32) {
	v.beginBlock()
	for i := range v.program.Instructions {
		v.exec(&v.program.Instructions[i])
	}
	v.sampleCounter += kaiku.BlockSize
	v.blockCounter++
	return v.outL[:], v.outR[:]
}

// beginBlock applies pending host changes and clears the per-block
// accumulators. The mutex is held only here, never during instruction
// execution.
func (v *VM) beginBlock() {
	v.mu.Lock()
	if v.pending != nil {
		v.adoptProgram(v.pending)
		v.pending = nil
	}
	for _, s := range v.staged {
		e, ok := v.params[s.hash]
		if !ok {
			e = &paramEntry{current: s.target}
			v.params[s.hash] = e
		}
		e.target = s.target
		e.coeff = s.coeff
	}
	v.staged = v.staged[:0]
	if v.samplesDirty {
		v.sampleTable = v.samples.snapshot()
		v.samplesDirty = false
	}
	v.mu.Unlock()

	for i := range v.outL {
		v.outL[i] = 0
		v.outR[i] = 0
	}
	zero := &v.buffers[kaiku.BufferZero]
	for i := range zero {
		zero[i] = 0
	}
}

// adoptProgram swaps in a validated program and rebuilds the state arena:
// states are pre-created here so the block path never allocates.
func (v *VM) adoptProgram(p *kaiku.Program) {
	v.program = *p
	if p.BPM > 0 {
		v.bpm = p.BPM
	}
	for i := range v.program.Instructions {
		instr := &v.program.Instructions[i]
		if kaiku.OpcodeTypes[instr.Op].Stateful {
			v.ensureState(instr)
		}
	}
}

// Render fills a stereo buffer by repeatedly processing blocks; a partial
// final block is rendered fully and truncated. Handy for offline use; the
// real-time path is Process.
func (v *VM) Render(buffer kaiku.AudioBuffer) (int, error) {
	frames := 0
	for frames < len(buffer) {
		l, r := v.Process()
		n := copy(buffer[frames:], zipStereo(l, r))
		frames += n
	}
	return frames, nil
}

func zipStereo(l, r []float32) kaiku.AudioBuffer {
	var out [kaiku.BlockSize][2]float32
	for i := range l {
		out[i][0] = l[i]
		out[i][1] = r[i]
	}
	return out[:]
}

// Transport helpers. Musical phase is always derived from the absolute
// sample position, never from accumulated increments, so there is no drift.

func (v *VM) samplesPerBeat() float64 {
	return 60 / float64(v.bpm) * float64(v.sampleRate)
}

// beatPos returns the continuous beat position at sample i of this block.
func (v *VM) beatPos(i int) float64 {
	return float64(v.sampleCounter+uint64(i)) / v.samplesPerBeat()
}

// sampleAt reads the block-path sample table without touching the bank lock.
// Id 0 and ids never loaded resolve to nil.
func (v *VM) sampleAt(id int) *kaiku.Sample {
	if id <= 0 || id >= len(v.sampleTable) {
		return nil
	}
	return v.sampleTable[id]
}

func (v *VM) buf(index uint16) []float32 {
	return v.buffers[index][:]
}

func (v *VM) in(instr *kaiku.Instruction, n int) []float32 {
	if instr.In[n] == kaiku.BufferUnused {
		return v.buffers[kaiku.BufferZero][:]
	}
	return v.buffers[instr.In[n]][:]
}

func (v *VM) out(instr *kaiku.Instruction) []float32 {
	return v.buffers[instr.Out][:]
}

func clampf(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
