package vm

import (
	"github.com/chewxy/math32"

	"github.com/vsariola/kaiku"
)

// Resonance levels at which each topology breaks into self-oscillation.
// Tuned against the acceptance tests, not derived: the moog and sallen-key
// values follow from linear loop-gain analysis, the diode value normalizes
// its weaker inter-stage coupling so the knob range matches the others.
const (
	moogSelfOsc      = 4.0  // raw feedback gain
	diodeFeedback    = 32.0 // internal gain at resonance input 1.0
	sallenKeySelfOsc = 2.0
)

func clampCutoff(freq, sampleRate float32) float32 {
	return clampf(freq, 20, sampleRate*0.49)
}

// svfState is the trapezoidal-integrator state variable filter. Coefficients
// are cached against the last cutoff/q so static settings skip the tan.
type svfState struct {
	ic1eq, ic2eq float32

	g, k, a1, a2, a3 float32
	lastFreq, lastQ  float32
}

func (s *svfState) update(freq, q, sampleRate float32) {
	if freq == s.lastFreq && q == s.lastQ {
		return
	}
	s.lastFreq, s.lastQ = freq, q
	freq = clampCutoff(freq, sampleRate)
	q = math32.Max(0.1, q)
	s.g = math32.Tan(pi * freq / sampleRate)
	s.k = 1 / q
	s.a1 = 1 / (1 + s.g*(s.g+s.k))
	s.a2 = s.g * s.a1
	s.a3 = s.g * s.a2
}

func (v *VM) opSVF(instr *kaiku.Instruction) {
	s, ok := getState[svfState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, freq, q := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2)
	for i := range out {
		s.update(freq[i], q[i], v.sampleRate)
		v3 := in[i] - s.ic2eq
		v1 := s.a1*s.ic1eq + s.a2*v3
		v2 := s.ic2eq + s.a2*s.ic1eq + s.a3*v3
		s.ic1eq = 2*v1 - s.ic1eq
		s.ic2eq = 2*v2 - s.ic2eq
		switch instr.Op {
		case kaiku.FilterSVFLP:
			out[i] = v2
		case kaiku.FilterSVFHP:
			out[i] = in[i] - s.k*v1 - v2
		default:
			out[i] = v1
		}
	}
}

// tptPole is a zero-delay one-pole lowpass section. G and the state scale
// come from the shared ladder coefficient update.
type tptPole struct {
	s float32
}

func (p *tptPole) process(in, bigG float32) float32 {
	v := (in - p.s) * bigG
	y := v + p.s
	p.s = y + v
	return y
}

// moogState is a zero-delay four-stage transistor ladder. The feedback loop
// is solved in closed form, then a soft clip on the loop input bounds the
// oscillation amplitude once resonance passes the linear limit.
type moogState struct {
	stages [4]tptPole

	bigG            float32
	invDenom        float32 // cached 1/(1+g) for the state taps
	lastFreq, lastK float32
	lastRate        float32
	kG4             float32
	k               float32
}

func (m *moogState) update(freq, res, sampleRate float32) {
	if freq == m.lastFreq && res == m.lastK && sampleRate == m.lastRate {
		return
	}
	m.lastFreq, m.lastK, m.lastRate = freq, res, sampleRate
	freq = clampCutoff(freq, sampleRate)
	g := math32.Tan(pi * freq / sampleRate)
	m.bigG = g / (1 + g)
	m.invDenom = 1 / (1 + g)
	m.k = clampf(res, 0, moogSelfOsc+0.5)
	g4 := m.bigG * m.bigG * m.bigG * m.bigG
	m.kG4 = m.k * g4
}

func (m *moogState) process(x float32) float32 {
	bigG := m.bigG
	// state contribution of the open-loop cascade
	s4 := m.stages[3].s * m.invDenom
	s3 := m.stages[2].s * m.invDenom
	s2 := m.stages[1].s * m.invDenom
	s1 := m.stages[0].s * m.invDenom
	S := bigG*bigG*bigG*s1 + bigG*bigG*s2 + bigG*s3 + s4
	u := (x - m.k*S) / (1 + m.kG4)
	u = fastTanh(u)
	y := m.stages[0].process(u, bigG)
	y = m.stages[1].process(y, bigG)
	y = m.stages[2].process(y, bigG)
	return m.stages[3].process(y, bigG)
}

func (v *VM) opMoog(instr *kaiku.Instruction) {
	s, ok := getState[moogState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, freq, res := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2)
	for i := range out {
		s.update(freq[i], res[i], v.sampleRate)
		out[i] = s.process(in[i])
	}
}

// diodeState reuses the ladder structure with half-gain coupling between
// stages, the hallmark of the diode topology: the loop loses 18 dB more
// than the transistor ladder, so the resonance input is normalized 0..1
// and scaled to diodeFeedback internally. Passband loss under resonance is
// compensated at the input.
type diodeState struct {
	stages [4]tptPole

	bigG            float32
	invDenom        float32
	lastFreq, lastK float32
	lastRate        float32
	k               float32
	kA              float32
	comp            float32
}

func (d *diodeState) update(freq, res, sampleRate float32) {
	if freq == d.lastFreq && res == d.lastK && sampleRate == d.lastRate {
		return
	}
	d.lastFreq, d.lastK, d.lastRate = freq, res, sampleRate
	freq = clampCutoff(freq, sampleRate)
	g := math32.Tan(pi * freq / sampleRate)
	d.bigG = g / (1 + g)
	d.invDenom = 1 / (1 + g)
	d.k = clampf(res, 0, 1.1) * diodeFeedback
	g4 := d.bigG * d.bigG * d.bigG * d.bigG
	d.kA = d.k * g4 * 0.125
	d.comp = 1 + 0.5*clampf(res, 0, 1.1)
}

func (d *diodeState) process(x float32) float32 {
	bigG := d.bigG
	s4 := d.stages[3].s * d.invDenom
	s3 := d.stages[2].s * d.invDenom
	s2 := d.stages[1].s * d.invDenom
	s1 := d.stages[0].s * d.invDenom
	// inter-stage gains 1, 0.5, 0.5, 0.5
	S := 0.125*bigG*bigG*bigG*s1 + 0.25*bigG*bigG*s2 + 0.5*bigG*s3 + s4
	u := (x*d.comp - d.k*S) / (1 + d.kA)
	u = fastTanh(u)
	y := d.stages[0].process(u, bigG)
	y = d.stages[1].process(0.5*y, bigG)
	y = d.stages[2].process(0.5*y, bigG)
	return d.stages[3].process(0.5*y, bigG)
}

func (v *VM) opDiode(instr *kaiku.Instruction) {
	s, ok := getState[diodeState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, freq, res := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2)
	for i := range out {
		s.update(freq[i], res[i], v.sampleRate)
		out[i] = s.process(in[i])
	}
}

// diodeClip is the asymmetric clipper in the sallen-key feedback path.
// Positive excursions clip harder than negative ones, which is what gives
// the topology its even harmonics at high resonance.
func diodeClip(x float32) float32 {
	if x >= 0 {
		return fastTanh(x)
	}
	return fastTanh(0.6*x) / 0.6
}

// sallenKeyState is a two-pole lowpass with positive feedback of the
// bandpass node through a diode clipper, MS-20 style.
type sallenKeyState struct {
	y1, y2 float32

	a        float32
	lastFreq float32
	lastRate float32
	k        float32
	lastRes  float32
}

func (s *sallenKeyState) update(freq, res, sampleRate float32) {
	if freq == s.lastFreq && res == s.lastRes && sampleRate == s.lastRate {
		return
	}
	s.lastFreq, s.lastRes, s.lastRate = freq, res, sampleRate
	freq = clampCutoff(freq, sampleRate)
	s.a = 1 - math32.Exp(-twoPi*freq/sampleRate)
	s.k = clampf(res, 0, sallenKeySelfOsc+0.3)
}

func (s *sallenKeyState) process(x float32) float32 {
	u := x + s.k*diodeClip(s.y1-s.y2)
	s.y1 += s.a * (u - s.y1)
	s.y2 += s.a * (s.y1 - s.y2)
	return s.y2
}

func (v *VM) opSallenKey(instr *kaiku.Instruction) {
	s, ok := getState[sallenKeyState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, freq, res := v.out(instr), v.in(instr, 0), v.in(instr, 1), v.in(instr, 2)
	for i := range out {
		s.update(freq[i], res[i], v.sampleRate)
		out[i] = s.process(in[i])
	}
}

// Vowel formant center frequencies, three peaks per vowel.
var vowelFormants = [kaiku.NumVowels][3]float32{
	kaiku.VowelA: {800, 1150, 2900},
	kaiku.VowelE: {400, 1600, 2700},
	kaiku.VowelI: {350, 1700, 2700},
	kaiku.VowelO: {450, 800, 2830},
	kaiku.VowelU: {325, 700, 2700},
}

const formantQ = 8.0

// formantState runs three parallel bandpass resonators whose centers morph
// between two vowel presets.
type formantState struct {
	resonators [3]svfState
}

// opFormant: in0 = signal, in1 = morph 0..1 from vowel Aux.A to Aux.B.
func (v *VM) opFormant(instr *kaiku.Instruction) {
	s, ok := getState[formantState](v, instr.StateID)
	if !ok {
		return
	}
	out, in, morph := v.out(instr), v.in(instr, 0), v.in(instr, 1)
	from := &vowelFormants[instr.Aux.A]
	to := &vowelFormants[instr.Aux.B]
	for i := range out {
		m := clampf(morph[i], 0, 1)
		var sum float32
		for b := 0; b < 3; b++ {
			freq := from[b] + m*(to[b]-from[b])
			r := &s.resonators[b]
			r.update(freq, formantQ, v.sampleRate)
			v3 := in[i] - r.ic2eq
			v1 := r.a1*r.ic1eq + r.a2*v3
			v2 := r.ic2eq + r.a2*r.ic1eq + r.a3*v3
			r.ic1eq = 2*v1 - r.ic1eq
			r.ic2eq = 2*v2 - r.ic2eq
			sum += v1
		}
		out[i] = sum
	}
}
