package vm

import "github.com/vsariola/kaiku"

// stateKind tags what family of state lives behind a state id. LoadProgram
// records the kind per id; a program that reuses an id for a different kind
// of opcode gets a fresh state instead of misreading another opcode's memory.
type stateKind uint8

const (
	kindNone stateKind = iota
	kindOsc
	kindOscOver
	kindMinblep
	kindNoise
	kindSlew
	kindSAH
	kindSVF
	kindMoog
	kindDiode
	kindSallenKey
	kindFormant
	kindCompressor
	kindLimiter
	kindGate
	kindADSR
	kindAR
	kindFollower
	kindDelay
	kindComb
	kindFlanger
	kindChorus
	kindPhaser
	kindFreeverb
	kindDattorro
	kindFDN
	kindSaturator
	kindCrush
	kindLFO
	kindTrigger
	kindEuclid
	kindSampler
)

type stateEntry struct {
	kind stateKind
	data any
}

// opStateKind maps an opcode to the state family it needs; kindNone for
// stateless opcodes and for param, whose persistent memory lives in the
// parameter table instead.
func opStateKind(op kaiku.Op) stateKind {
	switch op {
	case kaiku.OscSin, kaiku.OscTri, kaiku.OscSaw, kaiku.OscSqr, kaiku.OscRamp,
		kaiku.OscPhasor, kaiku.OscSawPWM, kaiku.OscSqrPWM:
		return kindOsc
	case kaiku.OscSin2x, kaiku.OscSin4x, kaiku.OscSaw2x, kaiku.OscSaw4x,
		kaiku.OscSqr2x, kaiku.OscSqr4x, kaiku.OscTri2x, kaiku.OscTri4x,
		kaiku.OscSawPWM4x, kaiku.OscSqrPWM4x:
		return kindOscOver
	case kaiku.OscSqrMinblep, kaiku.OscSqrPWMMinblep:
		return kindMinblep
	case kaiku.Noise:
		return kindNoise
	case kaiku.Slew:
		return kindSlew
	case kaiku.SAH:
		return kindSAH
	case kaiku.FilterSVFLP, kaiku.FilterSVFHP, kaiku.FilterSVFBP:
		return kindSVF
	case kaiku.FilterMoog:
		return kindMoog
	case kaiku.FilterDiode:
		return kindDiode
	case kaiku.FilterSallenKey:
		return kindSallenKey
	case kaiku.FilterFormant:
		return kindFormant
	case kaiku.Compressor:
		return kindCompressor
	case kaiku.Limiter:
		return kindLimiter
	case kaiku.Gate:
		return kindGate
	case kaiku.EnvADSR:
		return kindADSR
	case kaiku.EnvAR:
		return kindAR
	case kaiku.EnvFollower:
		return kindFollower
	case kaiku.Delay, kaiku.DelaySync:
		return kindDelay
	case kaiku.Comb:
		return kindComb
	case kaiku.Flanger:
		return kindFlanger
	case kaiku.Chorus:
		return kindChorus
	case kaiku.Phaser:
		return kindPhaser
	case kaiku.ReverbFreeverb:
		return kindFreeverb
	case kaiku.ReverbDattorro:
		return kindDattorro
	case kaiku.ReverbFDN:
		return kindFDN
	case kaiku.DistTanh, kaiku.DistSoft:
		return kindSaturator
	case kaiku.DistCrush:
		return kindCrush
	case kaiku.LFO:
		return kindLFO
	case kaiku.TriggerOp:
		return kindTrigger
	case kaiku.Euclid:
		return kindEuclid
	case kaiku.SamplePlay, kaiku.SampleLoop:
		return kindSampler
	}
	return kindNone
}

// newState allocates the initial state for a kind. Buffer-carrying states
// get their full capacity here so Process never allocates.
func newState(kind stateKind, id uint32) any {
	switch kind {
	case kindOsc:
		return &oscState{}
	case kindOscOver:
		return &oscOverState{}
	case kindMinblep:
		return newMinblepState()
	case kindNoise:
		return &noiseState{seed: id*2654435761 + 1}
	case kindSlew:
		return &slewState{}
	case kindSAH:
		return &sahState{}
	case kindSVF:
		return &svfState{}
	case kindMoog:
		return &moogState{}
	case kindDiode:
		return &diodeState{}
	case kindSallenKey:
		return &sallenKeyState{}
	case kindFormant:
		return &formantState{}
	case kindCompressor:
		return &compressorState{}
	case kindLimiter:
		return newLimiterState()
	case kindGate:
		return &gateState{gain: 1}
	case kindADSR:
		return &adsrState{}
	case kindAR:
		return &arState{}
	case kindFollower:
		return &followerState{}
	case kindDelay:
		return &delayState{buffer: make([]float32, delayBufSize)}
	case kindComb:
		return &combState{buffer: make([]float32, combBufSize)}
	case kindFlanger:
		return &flangerState{buffer: make([]float32, modBufSize)}
	case kindChorus:
		return newChorusState()
	case kindPhaser:
		return &phaserState{}
	case kindFreeverb:
		return newFreeverbState()
	case kindDattorro:
		return newDattorroState()
	case kindFDN:
		return newFDNState()
	case kindSaturator:
		return &saturatorState{}
	case kindCrush:
		return &crushState{}
	case kindLFO:
		return &lfoState{}
	case kindTrigger:
		return &triggerState{prevPhase: -1}
	case kindEuclid:
		return &euclidState{prevStep: -1}
	case kindSampler:
		return &samplerState{}
	}
	return nil
}

// ensureState makes sure the arena holds a state of the right kind for the
// instruction, creating or resetting as needed. Called only at program-swap
// time.
func (v *VM) ensureState(instr *kaiku.Instruction) {
	kind := opStateKind(instr.Op)
	if kind == kindNone {
		return
	}
	if e, ok := v.states[instr.StateID]; ok && e.kind == kind {
		return
	}
	v.states[instr.StateID] = stateEntry{kind: kind, data: newState(kind, instr.StateID)}
}

// state fetches the pre-created state for an instruction. The arena is built
// at load time, so a missing entry can only mean an internal bug; returning
// the zero entry keeps the block path panic-free regardless.
func (v *VM) state(id uint32) any {
	return v.states[id].data
}
