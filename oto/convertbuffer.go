package oto

import (
	"encoding/binary"
	"math"

	"github.com/vsariola/kaiku"
)

// appendFloat32LE appends a stereo buffer as interleaved little-endian
// float32, the wire format the oto player was opened with.
func appendFloat32LE(buf []byte, audio kaiku.AudioBuffer) []byte {
	for _, frame := range audio {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(frame[0]))
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(frame[1]))
	}
	return buf
}
