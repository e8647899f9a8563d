package foatest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// MPEG-1 Layer III, 128 kbps, 44.1 kHz, no CRC, no padding: 417 byte frames
const (
	MP3SampleRate      = 44100
	MP3SamplesPerFrame = 1152
	mp3FrameSize       = 417
)

var (
	mp3MonoHeader   = []byte{0xFF, 0xFB, 0x90, 0xC4}
	mp3StereoHeader = []byte{0xFF, 0xFB, 0x90, 0x04}
)

// WriteSilentMP3 writes frames zero-payload MPEG-1 Layer III frames, which
// decode to silence. With id3 set the stream is prefixed with an empty ID3v2
// tag.
func WriteSilentMP3(t testing.TB, dir, name string, mono bool, frames int, id3 bool) string {
	t.Helper()

	header := mp3StereoHeader
	if mono {
		header = mp3MonoHeader
	}

	var out bytes.Buffer
	if id3 {
		// ID3v2.3 header with a 16 byte syncsafe-sized body of padding
		out.Write([]byte{'I', 'D', '3', 3, 0, 0, 0, 0, 0, 16})
		out.Write(make([]byte, 16))
	}
	for i := 0; i < frames; i++ {
		out.Write(header)
		out.Write(make([]byte, mp3FrameSize-len(header)))
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, out.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write mp3: %v", err)
	}
	return path
}
