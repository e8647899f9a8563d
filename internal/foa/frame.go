// Package foa loads First-Order Ambisonics recordings into W, X, Y, Z channel frames
package foa

import (
	"errors"
	"fmt"
	"time"
)

// Mono upmix gains applied to W to synthesize the directional channels
const (
	MonoGainX = 0.5
	MonoGainY = 0.3
	MonoGainZ = 0.2
)

// Channels is the number of FOA channels in a frame (W, X, Y, Z)
const Channels = 4

// Degradation describes how a frame deviates from a native 4-channel recording
type Degradation string

const (
	DegradedNone       Degradation = ""
	DegradedMonoUpmix  Degradation = "mono_upmix"  // X, Y, Z synthesized from W
	DegradedZeroPadded Degradation = "zero_padded" // silent channels appended
)

// ErrEmptyAudio is returned when the decoder yields no samples
var ErrEmptyAudio = errors.New("audio contains no samples")

// Frame is a decoded FOA recording. All four channels have equal, non-zero length.
type Frame struct {
	W []float64
	X []float64
	Y []float64
	Z []float64

	SampleRate     int         // Hz, as reported by the decoder
	SourceChannels int         // channel count before mapping
	Degraded       Degradation // why the frame is not a native FOA frame, if it isn't
}

// Len returns the number of samples per channel
func (f *Frame) Len() int {
	return len(f.W)
}

// Duration returns the playback length of the frame
func (f *Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(f.Len()) / float64(f.SampleRate) * float64(time.Second))
}

// IsDegraded reports whether any channel was synthesized
func (f *Frame) IsDegraded() bool {
	return f.Degraded != DegradedNone
}

// MapChannels builds a frame from decoded channels.
//
//   - 1 channel: W is the input, X/Y/Z are fixed attenuations of W (mono upmix)
//   - 2-3 channels: silent channels are appended after the existing ones
//   - 4+ channels: the first four are used as W, X, Y, Z, the rest dropped
func MapChannels(channels [][]float64, sampleRate int) (*Frame, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels decoded")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	n := len(channels[0])
	if n == 0 {
		return nil, ErrEmptyAudio
	}
	for i, ch := range channels {
		if len(ch) != n {
			return nil, fmt.Errorf("channel %d has %d samples, expected %d", i, len(ch), n)
		}
	}

	frame := &Frame{
		SampleRate:     sampleRate,
		SourceChannels: len(channels),
	}

	switch {
	case len(channels) == 1:
		w := channels[0]
		frame.W = w
		frame.X = scale(w, MonoGainX)
		frame.Y = scale(w, MonoGainY)
		frame.Z = scale(w, MonoGainZ)
		frame.Degraded = DegradedMonoUpmix

	case len(channels) < Channels:
		padded := make([][]float64, Channels)
		copy(padded, channels)
		for i := len(channels); i < Channels; i++ {
			padded[i] = make([]float64, n)
		}
		frame.W, frame.X, frame.Y, frame.Z = padded[0], padded[1], padded[2], padded[3]
		frame.Degraded = DegradedZeroPadded

	default:
		frame.W, frame.X, frame.Y, frame.Z = channels[0], channels[1], channels[2], channels[3]
	}

	return frame, nil
}

func scale(src []float64, gain float64) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = v * gain
	}
	return out
}
