package audio

import (
	"encoding/binary"
	"math"
)

// Samples decodes PCM16LE bytes into int16 samples. A trailing odd byte is ignored.
func Samples(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	return out
}

// Bytes encodes int16 samples as PCM16LE.
func Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:(i+1)*2], uint16(s))
	}
	return out
}

// RMS returns the root-mean-square energy of the samples.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Level maps RMS energy onto 0..1 for meters. 8000 RMS or more reads as full scale.
func Level(samples []int16) float64 {
	l := RMS(samples) / 8000.0
	if l > 1 {
		return 1
	}
	return l
}
