package foatest

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const flacBlockSize = 1024

// WriteFLAC encodes channels (1 to 8) as verbatim FLAC frames at bitsPerSample
func WriteFLAC(t testing.TB, dir, name string, channels [][]float64, sampleRate, bitsPerSample int) string {
	t.Helper()

	numChans := len(channels)
	n := len(channels[0])
	scale := float64(int64(1)<<(bitsPerSample-1) - 1)

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create flac: %v", err)
	}

	info := &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     uint8(numChans),
		BitsPerSample: uint8(bitsPerSample),
		NSamples:      uint64(n),
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		f.Close()
		t.Fatalf("failed to create flac encoder: %v", err)
	}

	for start := 0; start < n; start += flacBlockSize {
		end := start + flacBlockSize
		if end > n {
			end = n
		}

		subframes := make([]*frame.Subframe, numChans)
		for ch := range subframes {
			samples := make([]int32, end-start)
			for i := range samples {
				samples[i] = int32(math.Round(channels[ch][start+i] * scale))
			}
			subframes[ch] = &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  len(samples),
			}
		}

		fr := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(end - start),
				SampleRate:        uint32(sampleRate),
				Channels:          frame.Channels(numChans - 1),
				BitsPerSample:     uint8(bitsPerSample),
			},
			Subframes: subframes,
		}
		if err := enc.WriteFrame(fr); err != nil {
			enc.Close()
			t.Fatalf("failed to write flac frame: %v", err)
		}
	}

	// closes f
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close flac encoder: %v", err)
	}
	return path
}
