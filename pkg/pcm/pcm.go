// Package pcm handles the raw narration audio produced by the speech
// backend: mono 16-bit little-endian samples at 24000 Hz.
package pcm

import (
	"encoding/binary"
	"errors"
	"time"
)

const (
	// SampleRate is fixed by the speech synthesis contract.
	SampleRate = 24000
	// BytesPerSample for 16-bit mono audio.
	BytesPerSample = 2
)

// Clip is a decoded audio payload.
type Clip struct {
	// Raw is the original little-endian int16 byte stream.
	Raw []byte
	// Samples are the normalized float samples in [-1, 1).
	Samples []float32
}

// Decode converts a raw PCM byte payload into a Clip. Samples are divided by
// 32768 so full-scale negative maps to -1.0.
func Decode(raw []byte) (*Clip, error) {
	if len(raw)%BytesPerSample != 0 {
		return nil, errors.New("pcm: payload length is not sample aligned")
	}
	samples := make([]float32, len(raw)/BytesPerSample)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[i*BytesPerSample:]))
		samples[i] = float32(v) / 32768
	}
	return &Clip{Raw: raw, Samples: samples}, nil
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	if c == nil {
		return 0
	}
	return DurationOf(len(c.Raw))
}

// Seconds returns the playing time as a float, which the compositor uses
// directly as the page render duration.
func (c *Clip) Seconds() float64 {
	if c == nil {
		return 0
	}
	return float64(len(c.Raw)) / BytesPerSample / SampleRate
}

// DurationOf converts a raw payload byte length into a duration.
func DurationOf(rawLen int) time.Duration {
	samples := rawLen / BytesPerSample
	return time.Duration(samples) * time.Second / SampleRate
}

// Silence returns a zeroed raw payload of the given duration, sample aligned.
func Silence(d time.Duration) []byte {
	if d <= 0 {
		return nil
	}
	samples := int(d.Seconds()*SampleRate + 0.5)
	return make([]byte, samples*BytesPerSample)
}
