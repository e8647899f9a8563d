// Package foatest writes audio fixtures for tests
package foatest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

// WAV format tags
const (
	FormatPCM        = 1
	FormatFloat      = 3
	FormatExtensible = 0xFFFE
)

// KSDATAFORMAT_SUBTYPE GUID tail shared by the PCM and IEEE float subformats
var subformatGUIDTail = []byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

// WriteWAV encodes channels as 16-bit PCM into dir/name and returns the path.
// Samples are expected in [-1, 1].
func WriteWAV(t testing.TB, dir, name string, channels [][]float64, sampleRate int) string {
	t.Helper()
	return WritePCMWAV(t, dir, name, channels, sampleRate, 16)
}

// WritePCMWAV encodes channels as integer PCM at bitDepth (8, 16, 24 or 32).
// 8-bit output is unsigned.
func WritePCMWAV(t testing.TB, dir, name string, channels [][]float64, sampleRate, bitDepth int) string {
	t.Helper()

	data := interleave(channels, func(v float64) int {
		if bitDepth == 8 {
			return int(math.Round(v*127)) + 128
		}
		return int(math.Round(v * float64(int64(1)<<(bitDepth-1)-1)))
	})
	return encodeWAV(t, dir, name, data, len(channels), sampleRate, bitDepth, FormatPCM)
}

// WriteFloatWAV encodes channels as 32-bit IEEE float with a plain fmt chunk
func WriteFloatWAV(t testing.TB, dir, name string, channels [][]float64, sampleRate int) string {
	t.Helper()

	data := interleave(channels, func(v float64) int {
		return int(int32(math.Float32bits(float32(v))))
	})
	return encodeWAV(t, dir, name, data, len(channels), sampleRate, 32, FormatFloat)
}

// WriteExtensibleWAV writes a WAVE_FORMAT_EXTENSIBLE file whose subformat GUID
// carries subFormat. Float subformats are written as 32-bit IEEE float.
func WriteExtensibleWAV(t testing.TB, dir, name string, channels [][]float64, sampleRate, bitDepth int, subFormat uint16) string {
	t.Helper()

	numChans := len(channels)
	bytesPerSample := bitDepth / 8
	blockAlign := numChans * bytesPerSample

	var pcm bytes.Buffer
	for i := range channels[0] {
		for ch := 0; ch < numChans; ch++ {
			v := channels[ch][i]
			switch {
			case subFormat == FormatFloat:
				binary.Write(&pcm, binary.LittleEndian, float32(v))
			case bitDepth == 16:
				binary.Write(&pcm, binary.LittleEndian, int16(math.Round(v*32767)))
			case bitDepth == 24:
				pcm.Write(audio.Int32toInt24LEBytes(int32(math.Round(v * 8388607))))
			case bitDepth == 32:
				binary.Write(&pcm, binary.LittleEndian, int32(math.Round(v*2147483647)))
			default:
				t.Fatalf("unsupported extensible bit depth %d", bitDepth)
			}
		}
	}

	var out bytes.Buffer
	le := func(v interface{}) {
		if err := binary.Write(&out, binary.LittleEndian, v); err != nil {
			t.Fatalf("failed to write wav header: %v", err)
		}
	}
	const fmtSize = 40
	out.Write(riff.RiffID[:])
	le(uint32(4 + 8 + fmtSize + 8 + pcm.Len()))
	out.Write(riff.WavFormatID[:])
	out.Write(riff.FmtID[:])
	le(uint32(fmtSize))
	le(uint16(FormatExtensible))
	le(uint16(numChans))
	le(uint32(sampleRate))
	le(uint32(sampleRate * blockAlign))
	le(uint16(blockAlign))
	le(uint16(bitDepth))
	le(uint16(22))       // cbSize
	le(uint16(bitDepth)) // valid bits
	le(uint32(0))        // channel mask
	le(subFormat)
	out.Write(subformatGUIDTail)
	out.Write(riff.DataFormatID[:])
	le(uint32(pcm.Len()))
	out.Write(pcm.Bytes())

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, out.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write wav: %v", err)
	}
	return path
}

// WriteRawWAV writes a 16-bit WAV with an arbitrary fmt format tag
func WriteRawWAV(t testing.TB, dir, name string, channels [][]float64, sampleRate int, formatTag int) string {
	t.Helper()

	data := interleave(channels, func(v float64) int {
		return int(math.Round(v * 32767))
	})
	return encodeWAV(t, dir, name, data, len(channels), sampleRate, 16, formatTag)
}

func interleave(channels [][]float64, conv func(float64) int) []int {
	numChans := len(channels)
	n := len(channels[0])
	data := make([]int, 0, n*numChans)
	for i := 0; i < n; i++ {
		for ch := 0; ch < numChans; ch++ {
			data = append(data, conv(channels[ch][i]))
		}
	}
	return data
}

func encodeWAV(t testing.TB, dir, name string, data []int, numChans, sampleRate, bitDepth, formatTag int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, numChans, formatTag)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: numChans, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close wav encoder: %v", err)
	}

	return path
}

// Sine returns n samples of a sine wave at freq Hz with the given amplitude
func Sine(n, sampleRate int, freq, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// Silence returns n zero samples
func Silence(n int) []float64 {
	return make([]float64, n)
}

// Constant returns n samples of value v
func Constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
