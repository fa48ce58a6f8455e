package pcm

import (
	"bytes"
	"encoding/binary"
)

// WAV wraps a raw PCM payload in a RIFF/WAVE container (mono, 16-bit,
// 24000 Hz) so external tools like ffmpeg and ffplay can consume it.
func WAV(raw []byte) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := SampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(raw)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(raw)))
	buf.Write(raw)
	return buf.Bytes()
}
