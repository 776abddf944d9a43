package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmSine(sr int, hz float64, durMs int) []byte {
	n := sr * durMs / 1000
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*hz*float64(i)/float64(sr)))
		binary.LittleEndian.PutUint16(out[i*2:(i+1)*2], uint16(v))
	}
	return out
}

func TestSamplesBytes_RoundTripIgnoresOddByte(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	b := append(Bytes(in), 0x7f)
	assert.Equal(t, in, Samples(b))
}

func TestLevel_SilenceAndTone(t *testing.T) {
	assert.Zero(t, Level(nil))
	assert.Zero(t, Level(make([]int16, 160)))

	tone := Samples(pcmSine(16000, 440, 100))
	l := Level(tone)
	assert.Greater(t, l, 0.5)
	assert.LessOrEqual(t, l, 1.0)
}

func TestWAV_HeaderFields(t *testing.T) {
	pcm := make([]byte, 100)
	blob := WAV(pcm, 48000, 1)
	require.Len(t, blob, WAVHeaderSize+100)
	assert.Equal(t, "RIFF", string(blob[0:4]))
	assert.Equal(t, uint32(136), binary.LittleEndian.Uint32(blob[4:8]))
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(blob[24:28]))
	assert.Equal(t, uint32(100), binary.LittleEndian.Uint32(blob[40:44]))
}

func TestPatchWAVSizes(t *testing.T) {
	blob := append(WAVHeader(16000, 1, -1), make([]byte, 64)...)
	assert.Equal(t, uint32(0xFFFFFFFF), binary.LittleEndian.Uint32(blob[40:44]))

	require.NoError(t, PatchWAVSizes(blob))
	assert.Equal(t, uint32(64), binary.LittleEndian.Uint32(blob[40:44]))
	assert.Equal(t, uint32(100), binary.LittleEndian.Uint32(blob[4:8]))

	assert.Error(t, PatchWAVSizes([]byte("short")))
}
