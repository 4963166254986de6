package vm

import "github.com/vsariola/kaiku"

// Freeverb tuning. The comb and allpass lengths are the classic mutually
// coprime set; feedback maps room size onto 0.7..0.98.
const (
	freeverbCombs      = 8
	freeverbAllpasses  = 4
	freeverbRoomScale  = 0.28
	freeverbRoomOffset = 0.7
	freeverbAPGain     = 0.5
)

var (
	freeverbCombSizes     = [freeverbCombs]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
	freeverbAllpassSizes  = [freeverbAllpasses]int{556, 441, 341, 225}
)

type freeverbState struct {
	combBuffers   [freeverbCombs][]float32
	combPos       [freeverbCombs]int
	combFilter    [freeverbCombs]float32
	apBuffers     [freeverbAllpasses][]float32
	apPos         [freeverbAllpasses]int
}

func newFreeverbState() *freeverbState {
	s := &freeverbState{}
	for i := range s.combBuffers {
		s.combBuffers[i] = make([]float32, freeverbCombSizes[i])
	}
	for i := range s.apBuffers {
		s.apBuffers[i] = make([]float32, freeverbAllpassSizes[i])
	}
	return s
}

// opFreeverb is the Schroeder-Moorer algorithm: 8 parallel damped combs
// summed into 4 series allpasses.
// Operands: in, room size 0..1, damping 0..1, wet mix 0..1.
func (v *VM) opFreeverb(instr *kaiku.Instruction) {
	s, ok := getState[freeverbState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, room, damping, mix := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2), v.in(instr, 3)
	for i := range out {
		x := in[i]
		feedback := clampf(room[i], 0, 1)*freeverbRoomScale + freeverbRoomOffset
		damp := clampf(damping[i], 0, 1)

		var combSum float32
		for c := 0; c < freeverbCombs; c++ {
			combSum += combLPProcess(s.combBuffers[c], &s.combPos[c], x, feedback, damp, &s.combFilter[c])
		}
		y := combSum * 0.125

		for a := 0; a < freeverbAllpasses; a++ {
			y = allpassProcess(s.apBuffers[a], &s.apPos[a], y, freeverbAPGain)
		}

		m := clampf(mix[i], 0, 1)
		out[i] = x*(1-m) + y*m
	}
}

// Dattorro plate tuning: diffuser and tank delay lengths from the classic
// 29.8 kHz design, with headroom for the modulated reads.
const (
	dattorroPredelaySize   = 1 << 15 // 100 ms at 192 kHz
	dattorroInputDiffusers = 4
	dattorroInputDiffusion = 0.75
	dattorroDecayDiffusion = 0.625
	dattorroModRate        = 0.5
	dattorroModDepth       = 0.5
	dattorroTankSize       = 1 << 13
)

var (
	dattorroInputSizes = [dattorroInputDiffusers]int{142, 107, 379, 277}
	dattorroDecaySizes = [2]int{672, 1800}
	dattorroTankDelays = [2]float32{4453, 3720}
)

type dattorroState struct {
	predelay    []float32
	predelayPos int

	inputDiffusers [dattorroInputDiffusers][]float32
	inputPos       [dattorroInputDiffusers]int

	decayDiffusers [2][]float32
	decayPos       [2]int

	tanks        [2][]float32
	tankPos      [2]int
	dampState    [2]float32
	tankFeedback [2]float32

	modPhase float32
}

func newDattorroState() *dattorroState {
	s := &dattorroState{predelay: make([]float32, dattorroPredelaySize)}
	for i := range s.inputDiffusers {
		s.inputDiffusers[i] = make([]float32, dattorroInputSizes[i])
	}
	for i := range s.decayDiffusers {
		s.decayDiffusers[i] = make([]float32, dattorroDecaySizes[i])
	}
	for i := range s.tanks {
		s.tanks[i] = make([]float32, dattorroTankSize)
	}
	return s
}

// opDattorro is the plate reverb: pre-delay, four input diffusers, then a
// figure-8 tank whose two branches cross-feed each other through modulated
// delays and damping filters. Output is fully wet.
// Operands: in, decay 0..0.99, pre-delay ms, damping 0..1.
func (v *VM) opDattorro(instr *kaiku.Instruction) {
	s, ok := getState[dattorroState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, decay, predelayMs, damping := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2), v.in(instr, 3)
	for i := range out {
		x := in[i]
		dec := clampf(decay[i], 0, 0.99)
		damp := clampf(damping[i], 0, 1)

		preSamples := int(clampf(predelayMs[i], 0, 100) * 0.001 * v.sampleRate)
		if preSamples > dattorroPredelaySize-1 {
			preSamples = dattorroPredelaySize - 1
		}
		s.predelay[s.predelayPos] = x
		readPos := (s.predelayPos + dattorroPredelaySize - preSamples) % dattorroPredelaySize
		x = s.predelay[readPos]
		s.predelayPos = (s.predelayPos + 1) % dattorroPredelaySize

		for d := 0; d < dattorroInputDiffusers; d++ {
			x = allpassProcess(s.inputDiffusers[d], &s.inputPos[d], x, dattorroInputDiffusion)
		}

		s.modPhase += dattorroModRate * v.invSampleRate
		if s.modPhase >= 1 {
			s.modPhase--
		}

		for branch := 0; branch < 2; branch++ {
			u := x + dec*s.tankFeedback[1-branch]
			u = allpassProcess(s.decayDiffusers[branch], &s.decayPos[branch], u, dattorroDecayDiffusion)

			modPhase := s.modPhase + 0.5*float32(branch)
			if modPhase >= 1 {
				modPhase--
			}
			mod := lfoSine(modPhase) * dattorroModDepth * 8
			delaySamples := clampf(dattorroTankDelays[branch]+mod, 1, dattorroTankSize-1)

			delayed := delayReadLinear(s.tanks[branch], s.tankPos[branch], delaySamples)
			s.tanks[branch][s.tankPos[branch]] = u * dec
			s.tankPos[branch] = (s.tankPos[branch] + 1) % dattorroTankSize

			s.dampState[branch] = delayed*(1-damp) + s.dampState[branch]*damp
			s.tankFeedback[branch] = s.dampState[branch]
		}

		out[i] = (s.tankFeedback[0] + s.tankFeedback[1]) * 0.5
	}
}

// FDN tuning: four mutually prime delay lengths and a normalized Hadamard
// feedback matrix.
const (
	fdnDelays       = 4
	fdnMaxDelaySize = 1 << 12
)

var fdnDelaySizes = [fdnDelays]int{1687, 1601, 2053, 2251}

type fdnState struct {
	buffers   [fdnDelays][]float32
	writePos  [fdnDelays]int
	dampState [fdnDelays]float32
}

func newFDNState() *fdnState {
	s := &fdnState{}
	for i := range s.buffers {
		s.buffers[i] = make([]float32, fdnMaxDelaySize)
	}
	return s
}

// opFDN is a 4x4 feedback delay network with Hadamard mixing. in3 scales
// the delay lengths 0.5..1.5 for room size.
// Operands: in, decay 0..0.99, damping 0..1, size.
func (v *VM) opFDN(instr *kaiku.Instruction) {
	s, ok := getState[fdnState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, decay, damping, size := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2), v.in(instr, 3)
	for i := range out {
		x := in[i]
		dec := clampf(decay[i], 0, 0.99)
		damp := clampf(damping[i], 0, 1)
		sizeMod := clampf(size[i], 0.5, 1.5)

		var delayed [fdnDelays]float32
		for d := 0; d < fdnDelays; d++ {
			actual := int(float32(fdnDelaySizes[d]) * sizeMod)
			if actual < 1 {
				actual = 1
			} else if actual > fdnMaxDelaySize-1 {
				actual = fdnMaxDelaySize - 1
			}
			readPos := (s.writePos[d] + fdnMaxDelaySize - actual) % fdnMaxDelaySize
			s.dampState[d] = s.buffers[d][readPos]*(1-damp) + s.dampState[d]*damp
			delayed[d] = s.dampState[d]
		}

		var mixed [fdnDelays]float32
		mixed[0] = 0.5 * (delayed[0] + delayed[1] + delayed[2] + delayed[3])
		mixed[1] = 0.5 * (delayed[0] - delayed[1] + delayed[2] - delayed[3])
		mixed[2] = 0.5 * (delayed[0] + delayed[1] - delayed[2] - delayed[3])
		mixed[3] = 0.5 * (delayed[0] - delayed[1] - delayed[2] + delayed[3])

		var sum float32
		for d := 0; d < fdnDelays; d++ {
			s.buffers[d][s.writePos[d]] = x + mixed[d]*dec
			s.writePos[d] = (s.writePos[d] + 1) % fdnMaxDelaySize
			sum += delayed[d]
		}
		out[i] = sum * 0.25
	}
}
