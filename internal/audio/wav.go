package audio

import (
	"encoding/binary"
	"errors"
)

// WAVHeaderSize is the size of the canonical RIFF/WAVE header written by WAVHeader.
const WAVHeaderSize = 44

// streamingSize marks RIFF and data chunk sizes as unknown while streaming.
const streamingSize = 0xFFFFFFFF

// WAVHeader returns a canonical 16-bit PCM header. A negative dataLen writes
// the streaming placeholder, to be fixed later with PatchWAVSizes.
func WAVHeader(sampleRate, channels, dataLen int) []byte {
	h := make([]byte, WAVHeaderSize)
	copy(h[0:4], "RIFF")
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(h[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(h[34:36], 16)
	copy(h[36:40], "data")
	if dataLen < 0 {
		binary.LittleEndian.PutUint32(h[4:8], streamingSize)
		binary.LittleEndian.PutUint32(h[40:44], streamingSize)
	} else {
		binary.LittleEndian.PutUint32(h[4:8], uint32(36+dataLen))
		binary.LittleEndian.PutUint32(h[40:44], uint32(dataLen))
	}
	return h
}

// PatchWAVSizes rewrites the RIFF and data sizes of a complete WAV blob in place.
func PatchWAVSizes(blob []byte) error {
	if len(blob) < WAVHeaderSize || string(blob[0:4]) != "RIFF" || string(blob[36:40]) != "data" {
		return errors.New("audio: not a canonical wav blob")
	}
	dataLen := len(blob) - WAVHeaderSize
	binary.LittleEndian.PutUint32(blob[4:8], uint32(36+dataLen))
	binary.LittleEndian.PutUint32(blob[40:44], uint32(dataLen))
	return nil
}

// WAV wraps PCM16LE bytes in a complete WAV container.
func WAV(pcm []byte, sampleRate, channels int) []byte {
	out := make([]byte, 0, WAVHeaderSize+len(pcm))
	out = append(out, WAVHeader(sampleRate, channels, len(pcm))...)
	return append(out, pcm...)
}
