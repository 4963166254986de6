package vm

import (
	"github.com/chewxy/math32"
)

const (
	pi    = math32.Pi
	twoPi = 2 * math32.Pi
)

// getState fetches a typed state from the arena; ok is false on a kind
// mismatch, which only happens if the arena is out of sync with the program.
// Opcodes skip their work in that case instead of panicking mid-block.
func getState[T any](v *VM, id uint32) (*T, bool) {
	s, ok := v.state(id).(*T)
	return s, ok
}

func dbToLinear(db float32) float32 {
	return math32.Pow(10, db*0.05)
}

func linearToDB(linear float32) float32 {
	return 20 * math32.Log10(math32.Max(linear, 1e-10))
}

// timeToCoeff gives the one-pole coefficient reaching ~63% of target in the
// given time.
func timeToCoeff(seconds, sampleRate float32) float32 {
	if seconds <= 0 {
		return 1
	}
	return 1 - math32.Exp(-1/(seconds*sampleRate))
}

// envCoeff gives the coefficient reaching ~99% of target in the given time
// (time constant = seconds/4.6).
func envCoeff(seconds, sampleRate float32) float32 {
	if seconds <= 0 {
		return 1
	}
	return 1 - math32.Exp(-4.6/(seconds*sampleRate))
}

// fastTanh is a Pade approximant of tanh, good to a few thousandths inside
// +-3 and clamped outside.
func fastTanh(x float32) float32 {
	if x > 3 {
		return 1
	}
	if x < -3 {
		return -1
	}
	x2 := x * x
	return x * (27 + x2) / (27 + 9*x2)
}

// delayReadLinear reads a circular buffer at a fractional delay behind
// writePos with linear interpolation.
func delayReadLinear(buffer []float32, writePos int, delaySamples float32) float32 {
	size := len(buffer)
	delaySamples = clampf(delaySamples, 0, float32(size-1))
	readPos := float32(writePos) - delaySamples
	if readPos < 0 {
		readPos += float32(size)
	}
	pos0 := int(readPos)
	pos1 := pos0 + 1
	if pos1 >= size {
		pos1 = 0
	}
	frac := readPos - float32(pos0)
	return buffer[pos0]*(1-frac) + buffer[pos1]*frac
}

// allpassProcess runs one sample through a Schroeder allpass:
// y[n] = x[n-d] + g*(x[n] - y[n-d]).
func allpassProcess(buffer []float32, writePos *int, input, gain float32) float32 {
	delayed := buffer[*writePos]
	output := delayed - gain*input
	buffer[*writePos] = input + gain*output
	*writePos++
	if *writePos >= len(buffer) {
		*writePos = 0
	}
	return output
}

// combLPProcess runs one sample through a feedback comb with a one-pole
// lowpass in the feedback path (Freeverb-style damping).
func combLPProcess(buffer []float32, writePos *int, input, feedback, damp float32, filterState *float32) float32 {
	delayed := buffer[*writePos]
	*filterState = delayed*(1-damp) + *filterState*damp
	buffer[*writePos] = input + feedback**filterState
	*writePos++
	if *writePos >= len(buffer) {
		*writePos = 0
	}
	return delayed
}

// lfoTriangle maps phase 0..1 to a -1..1 triangle starting at +1.
func lfoTriangle(phase float32) float32 {
	return 4*math32.Abs(phase-0.5) - 1
}

func lfoSine(phase float32) float32 {
	return math32.Sin(phase * twoPi)
}

// hashMix is a splitmix-style integer mix used for deterministic
// sample-and-hold noise.
func hashMix(x uint64) uint64 {
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

// hashToUnit maps a mixed hash to -1..1.
func hashToUnit(x uint64) float32 {
	return float32(int32(uint32(x)))/2147483648.0
}
