package vm

import (
	"github.com/chewxy/math32"

	"github.com/vsariola/kaiku"
)

// Envelope stages. AR reuses the ADSR numbering so both share envStage.
type envStage uint8

const (
	stageIdle envStage = iota
	stageAttack
	stageDecay
	stageSustain
	stageRelease
)

// envSegments caches the exponential segment coefficients against their
// time inputs so static envelopes pay one exp per changed parameter.
type envSegments struct {
	attackCoeff, decayCoeff, releaseCoeff float32
	lastAttack, lastDecay, lastRelease    float32
}

func (e *envSegments) update(attack, decay, release, sampleRate float32) {
	if attack != e.lastAttack {
		e.lastAttack = attack
		e.attackCoeff = envCoeff(math32.Max(0.001, attack), sampleRate)
	}
	if decay != e.lastDecay {
		e.lastDecay = decay
		e.decayCoeff = envCoeff(math32.Max(0.001, decay), sampleRate)
	}
	if release != e.lastRelease {
		e.lastRelease = release
		e.releaseCoeff = envCoeff(math32.Max(0.001, release), sampleRate)
	}
}

type adsrState struct {
	stage          envStage
	level          float32
	prevGate       float32
	releasePending bool
	seg            envSegments
}

// opADSR: gate in0, attack/decay/sustain/release times in1..in4 (seconds,
// sustain as a 0..1 level). Segments approach their target exponentially,
// reaching ~99% in the configured time. A gate-off during attack or decay
// is deferred until the decay lands on sustain, and a re-gate during
// release restarts the attack from the current level.
func (v *VM) opADSR(instr *kaiku.Instruction) {
	s, ok := getState[adsrState](v, instr.StateID)
	if !ok {
		return
	}
	out, gate := v.out(instr), v.in(instr, 0)
	attack, decay := v.in(instr, 1), v.in(instr, 2)
	sustain, release := v.in(instr, 3), v.in(instr, 4)
	for i := range out {
		g := gate[i]
		gateOn := g > 0 && s.prevGate <= 0
		gateOff := g <= 0 && s.prevGate > 0
		s.prevGate = g

		if gateOn {
			s.stage = stageAttack
			s.releasePending = false
		}
		if gateOff && s.stage != stageIdle {
			switch s.stage {
			case stageSustain:
				s.stage = stageRelease
			case stageAttack, stageDecay:
				s.releasePending = true
			}
		}

		s.seg.update(attack[i], decay[i], release[i], v.sampleRate)
		sus := clampf(sustain[i], 0, 1)

		switch s.stage {
		case stageIdle:
			s.level = 0
		case stageAttack:
			s.level += s.seg.attackCoeff * (1 - s.level)
			if s.level >= 0.999 {
				s.level = 1
				s.stage = stageDecay
			}
		case stageDecay:
			s.level += s.seg.decayCoeff * (sus - s.level)
			if math32.Abs(s.level-sus) < 0.001 {
				s.level = sus
				s.stage = stageSustain
			}
		case stageSustain:
			s.level = sus
			if s.releasePending {
				s.releasePending = false
				s.stage = stageRelease
			}
		case stageRelease:
			s.level -= s.seg.releaseCoeff * s.level
			if s.level < 0.001 {
				s.level = 0
				s.stage = stageIdle
			}
		}

		out[i] = s.level
	}
}

type arState struct {
	stage       envStage
	level       float32
	prevTrigger float32
	seg         envSegments
}

// opAR is the one-shot percussion envelope: a rising edge on in0 starts the
// attack, the release follows automatically, and a new edge retriggers from
// the current level.
func (v *VM) opAR(instr *kaiku.Instruction) {
	s, ok := getState[arState](v, instr.StateID)
	if !ok {
		return
	}
	out, trigger := v.out(instr), v.in(instr, 0)
	attack, release := v.in(instr, 1), v.in(instr, 2)
	for i := range out {
		t := trigger[i]
		if t > 0 && s.prevTrigger <= 0 {
			s.stage = stageAttack
		}
		s.prevTrigger = t

		s.seg.update(attack[i], 0.001, release[i], v.sampleRate)

		switch s.stage {
		case stageIdle:
			s.level = 0
		case stageAttack:
			s.level += s.seg.attackCoeff * (1 - s.level)
			if s.level >= 0.999 {
				s.level = 1
				s.stage = stageRelease
			}
		case stageRelease:
			s.level -= s.seg.releaseCoeff * s.level
			if s.level < 0.001 {
				s.level = 0
				s.stage = stageIdle
			}
		}

		out[i] = s.level
	}
}

type followerState struct {
	level                     float32
	attackCoeff, releaseCoeff float32
	lastAttack, lastRelease   float32
}

// opFollower tracks the rectified input with independent rise and fall
// coefficients. Unlike the envelope segments these use the plain one-pole
// time constant, matching its sidechain/metering role.
func (v *VM) opFollower(instr *kaiku.Instruction) {
	s, ok := getState[followerState](v, instr.StateID)
	if !ok {
		return
	}
	out, in := v.out(instr), v.in(instr, 0)
	attack, release := v.in(instr, 1), v.in(instr, 2)
	for i := range out {
		if attack[i] != s.lastAttack {
			s.lastAttack = attack[i]
			s.attackCoeff = timeToCoeff(math32.Max(0.001, attack[i]), v.sampleRate)
		}
		if release[i] != s.lastRelease {
			s.lastRelease = release[i]
			s.releaseCoeff = timeToCoeff(math32.Max(0.001, release[i]), v.sampleRate)
		}
		absX := math32.Abs(in[i])
		if absX > s.level {
			s.level += s.attackCoeff * (absX - s.level)
		} else {
			s.level += s.releaseCoeff * (absX - s.level)
		}
		out[i] = s.level
	}
}
