package vm

import (
	"sync"

	"github.com/chewxy/math32"

	"github.com/vsariola/kaiku"
)

// sampleBank maps names to immutable sample data. Id 0 is reserved for
// "unknown" and always plays silence; real ids start at 1. Re-adding a name
// swaps the data but keeps the id, so running programs pick up the new
// sample at the next block without editing their instructions.
type sampleBank struct {
	mu      sync.RWMutex
	byName  map[string]int
	samples []*kaiku.Sample
}

func (b *sampleBank) init() {
	b.byName = make(map[string]int)
	b.samples = []*kaiku.Sample{nil}
}

func (b *sampleBank) add(name string, sample *kaiku.Sample) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.byName[name]; ok {
		b.samples[id] = sample
		return id
	}
	id := len(b.samples)
	b.samples = append(b.samples, sample)
	b.byName[name] = id
	return id
}

func (b *sampleBank) id(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.byName[name]
}

// snapshot copies the id-indexed slice so the block path can read it without
// holding the bank lock.
func (b *sampleBank) snapshot() []*kaiku.Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*kaiku.Sample, len(b.samples))
	copy(out, b.samples)
	return out
}

const (
	samplerVoices        = 16
	samplerAttackSamples = 5
	samplerFadeSamples   = 5
)

type samplerVoice struct {
	position  float32
	speed     float32
	active    bool
	fadingOut bool
	attack    int
	fade      int
}

type samplerState struct {
	voices      [samplerVoices]samplerVoice
	nextVoice   int
	prevTrigger float32
}

// allocate returns a free voice, stealing round-robin when all are busy.
func (s *samplerState) allocate() *samplerVoice {
	for i := range s.voices {
		if !s.voices[i].active {
			return &s.voices[i]
		}
	}
	voice := &s.voices[s.nextVoice]
	s.nextVoice = (s.nextVoice + 1) % samplerVoices
	return voice
}

func (s *samplerState) start(pitch float32, firstSample float32) {
	voice := s.allocate()
	voice.position = 0
	voice.speed = math32.Max(0.01, pitch)
	voice.active = true
	voice.fadingOut = false
	voice.fade = 0
	// Skip the anti-click ramp when the sample already starts at zero.
	if math32.Abs(firstSample) > 0.01 {
		voice.attack = 0
	} else {
		voice.attack = samplerAttackSamples
	}
}

// voiceRead mixes the channels of one interpolated frame down to mono.
func voiceRead(sample *kaiku.Sample, position float32, looped bool) float32 {
	var sum float32
	for ch := 0; ch < sample.Channels; ch++ {
		if looped {
			sum += sample.InterpolatedWrapped(position, ch, sample.Frames)
		} else {
			sum += sample.Interpolated(position, ch)
		}
	}
	return sum / float32(sample.Channels)
}

// opSamplePlay is the one-shot polyphonic sampler: a rising edge on in0
// starts a new voice at the pitch ratio from in1; Value selects the sample.
// Voices play to completion and a short ramp suppresses the onset click on
// samples that do not start at zero. Unknown ids play silence.
func (v *VM) opSamplePlay(instr *kaiku.Instruction) {
	s, ok := getState[samplerState](v, instr.StateID)
	if !ok {
		return
	}
	out, trigger, pitch := v.out(instr), v.in(instr, 0), v.in(instr, 1)
	sample := v.sampleAt(int(instr.Aux.Value))
	if sample == nil || sample.Frames == 0 {
		for i := range out {
			s.prevTrigger = trigger[i]
			out[i] = 0
		}
		return
	}
	rateRatio := sample.SampleRate * v.invSampleRate
	for i := range out {
		t := trigger[i]
		if t > 0 && s.prevTrigger <= 0 {
			s.start(pitch[i], sample.At(0, 0))
		}
		s.prevTrigger = t

		var output float32
		for n := range s.voices {
			voice := &s.voices[n]
			if !voice.active {
				continue
			}
			value := voiceRead(sample, voice.position, false)
			env := float32(1)
			if voice.attack < samplerAttackSamples {
				env = float32(voice.attack) / samplerAttackSamples
				voice.attack++
			}
			output += value * env
			voice.position += voice.speed * rateRatio
			if voice.position >= float32(sample.Frames) {
				voice.active = false
			}
		}
		out[i] = clampf(output, -2, 2)
	}
}

// opSampleLoop holds a voice while the gate on in0 is high, wrapping the
// position modulo the sample length. The interpolator reads across the loop
// seam so the wrap itself is inaudible; gate-off fades the voice out over a
// few samples instead of cutting it.
func (v *VM) opSampleLoop(instr *kaiku.Instruction) {
	s, ok := getState[samplerState](v, instr.StateID)
	if !ok {
		return
	}
	out, gate, pitch := v.out(instr), v.in(instr, 0), v.in(instr, 1)
	sample := v.sampleAt(int(instr.Aux.Value))
	if sample == nil || sample.Frames == 0 {
		for i := range out {
			s.prevTrigger = gate[i]
			out[i] = 0
		}
		return
	}
	rateRatio := sample.SampleRate * v.invSampleRate
	frames := float32(sample.Frames)
	for i := range out {
		g := gate[i]
		gateOn := g > 0 && s.prevTrigger <= 0
		gateOff := g <= 0 && s.prevTrigger > 0
		s.prevTrigger = g

		if gateOn {
			s.start(pitch[i], sample.At(0, 0))
		}
		if gateOff {
			for n := range s.voices {
				if s.voices[n].active && !s.voices[n].fadingOut {
					s.voices[n].fadingOut = true
					s.voices[n].fade = 0
				}
			}
		}

		var output float32
		for n := range s.voices {
			voice := &s.voices[n]
			if !voice.active {
				continue
			}
			value := voiceRead(sample, voice.position, true)
			var env float32
			if voice.fadingOut {
				env = 1 - float32(voice.fade)/samplerFadeSamples
				voice.fade++
				if voice.fade >= samplerFadeSamples {
					voice.active = false
					voice.fadingOut = false
				}
			} else {
				env = 1
				if voice.attack < samplerAttackSamples {
					env = float32(voice.attack) / samplerAttackSamples
					voice.attack++
				}
			}
			output += value * env
			voice.position += voice.speed * rateRatio
			for voice.position >= frames {
				voice.position -= frames
			}
		}
		out[i] = clampf(output, -2, 2)
	}
}
