package vm

import (
	"github.com/chewxy/math32"

	"github.com/vsariola/kaiku"
)

// Discrete attack/release time tables, log-spaced so the 4-bit indices give
// useful resolution at the fast end.
var (
	compAttackMs  = logTable(0.1, 100)
	compReleaseMs = logTable(10, 1000)
	gateReleaseMs = logTable(10, 500)
	gateHoldMs    = logTable(1, 200)
	limReleaseMs  = logTable(10, 500)
)

func logTable(lo, hi float32) [16]float32 {
	var t [16]float32
	ratio := math32.Log(hi / lo)
	for i := range t {
		t[i] = lo * math32.Exp(ratio*float32(i)/15)
	}
	return t
}

// gateCloseMs is the fast closing transition, deliberately independent of
// the configured release so a long release cannot hold the gate open.
const (
	gateCloseMs      = 5.0
	gateHysteresisDB = 6.0
)

type compressorState struct {
	envelope float32
	gain     float32 // last gain, exposed for metering

	attackCoeff, releaseCoeff float32
	lastRate                  float32
}

// opCompressor is a feedforward compressor with peak envelope detection:
// out_db = threshold + (in_db-threshold)/ratio above threshold.
// Operands: in, threshold dB, ratio; Aux.A/Aux.B index the time tables.
func (v *VM) opCompressor(instr *kaiku.Instruction) {
	s, ok := getState[compressorState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, threshDB, ratio := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2)
	if s.lastRate != v.sampleRate {
		s.lastRate = v.sampleRate
		s.attackCoeff = timeToCoeff(compAttackMs[instr.Aux.A]*0.001, v.sampleRate)
		s.releaseCoeff = timeToCoeff(compReleaseMs[instr.Aux.B]*0.001, v.sampleRate)
	}
	for i := range out {
		x := in[i]
		absX := math32.Abs(x)
		if absX > s.envelope {
			s.envelope += s.attackCoeff * (absX - s.envelope)
		} else {
			s.envelope += s.releaseCoeff * (absX - s.envelope)
		}
		envDB := linearToDB(s.envelope + 1e-10)
		thresh := clampf(threshDB[i], -60, 0)
		r := clampf(ratio[i], 1, 20)
		gainDB := float32(0)
		if envDB > thresh {
			over := envDB - thresh
			gainDB = thresh + over/r - envDB
		}
		s.gain = dbToLinear(gainDB)
		out[i] = x * s.gain
	}
}

// 1 ms of lookahead at rates up to 192 kHz.
const limiterLookaheadCap = 192

type limiterState struct {
	lookahead [limiterLookaheadCap]float32
	writePos  int
	gain      float32
}

func newLimiterState() *limiterState {
	return &limiterState{gain: 1}
}

// opLimiter enforces a ceiling with instant attack and smoothed release.
// The signal is delayed by the 1 ms lookahead so the gain is already down
// when the peak that caused it reaches the output.
// Operands: in; Value = ceiling dB, Aux.A = release index.
func (v *VM) opLimiter(instr *kaiku.Instruction) {
	s, ok := getState[limiterState](v, instr.StateID)
	if !ok {
		return
	}
	out, in := v.out(instr), v.in(instr, 0)
	ceiling := dbToLinear(clampf(instr.Aux.Value, -12, 0))
	releaseCoeff := timeToCoeff(limReleaseMs[instr.Aux.A]*0.001, v.sampleRate)
	la := int(v.sampleRate / 1000)
	if la < 1 {
		la = 1
	} else if la > limiterLookaheadCap {
		la = limiterLookaheadCap
	}
	for i := range out {
		x := in[i]
		delayed := s.lookahead[s.writePos]
		s.lookahead[s.writePos] = x
		s.writePos = (s.writePos + 1) % la

		absX := math32.Abs(x)
		targetGain := float32(1)
		if absX > ceiling {
			targetGain = ceiling / absX
		}
		if targetGain < s.gain {
			s.gain = targetGain
		} else {
			s.gain += releaseCoeff * (targetGain - s.gain)
		}
		out[i] = delayed * s.gain
	}
}

type gateState struct {
	envelope    float32
	gain        float32
	isOpen      bool
	holdCounter float32
}

// opGate attenuates below-threshold input toward the range. Closing uses
// the fixed fast coefficient: release shapes re-opening only, so a slow
// release cannot stretch the close beyond the contract. 6 dB hysteresis
// between open and close thresholds keeps chatter bounded.
// Operands: in, threshold dB, range dB; Aux.A/Aux.B = release/hold indices.
func (v *VM) opGate(instr *kaiku.Instruction) {
	s, ok := getState[gateState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, threshDB, rangeDB := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2)
	// the detector itself is fast both ways; a release-speed detector would
	// stall close detection and break the fast-close contract
	envAttack := timeToCoeff(0.001, v.sampleRate)
	envFall := timeToCoeff(0.010, v.sampleRate)
	releaseCoeff := timeToCoeff(gateReleaseMs[instr.Aux.A]*0.001, v.sampleRate)
	closeCoeff := timeToCoeff(gateCloseMs*0.001, v.sampleRate)
	holdSamples := gateHoldMs[instr.Aux.B] * 0.001 * v.sampleRate
	for i := range out {
		x := in[i]
		absX := math32.Abs(x)
		coeff := envFall
		if absX > s.envelope {
			coeff = envAttack
		}
		s.envelope += coeff * (absX - s.envelope)

		envDB := linearToDB(s.envelope + 1e-10)
		thresh := clampf(threshDB[i], -80, 0)
		rng := clampf(rangeDB[i], -80, 0)

		if s.isOpen {
			if envDB < thresh-gateHysteresisDB {
				s.holdCounter++
				if s.holdCounter > holdSamples {
					s.isOpen = false
					s.holdCounter = 0
				}
			} else {
				s.holdCounter = 0
			}
		} else if envDB > thresh {
			s.isOpen = true
			s.holdCounter = 0
		}

		targetGain := dbToLinear(rng)
		gainCoeff := closeCoeff
		if s.isOpen {
			targetGain = 1
			gainCoeff = releaseCoeff
		}
		s.gain += gainCoeff * (targetGain - s.gain)
		out[i] = x * s.gain
	}
}
