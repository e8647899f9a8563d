package foa

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// decodeFunc returns per-channel samples in [-1, 1] and the native sample rate
type decodeFunc func(path string) ([][]float64, int, error)

var decoders = map[string]decodeFunc{
	".wav":  decodeWAV,
	".flac": decodeFLAC,
	".mp3":  decodeMP3,
	".ogg":  decodeOgg,
}

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

func decodeWAV(path string) ([][]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	tag, err := wavSampleFormat(f)
	if err != nil {
		return nil, 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid WAV file")
	}

	bitDepth := int(d.BitDepth)
	switch tag {
	case wavFormatPCM:
		switch bitDepth {
		case 8, 16, 24, 32:
		default:
			return nil, 0, fmt.Errorf("unsupported PCM bit depth: %d", bitDepth)
		}
	case wavFormatFloat:
		if bitDepth != 32 {
			return nil, 0, fmt.Errorf("unsupported float bit depth: %d", bitDepth)
		}
	default:
		return nil, 0, fmt.Errorf("unsupported WAV format tag 0x%04x", tag)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, 0, fmt.Errorf("decode wav: missing format")
	}

	numChans := buf.Format.NumChannels
	if numChans <= 0 {
		return nil, 0, fmt.Errorf("invalid channel count: %d", numChans)
	}

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case tag == wavFormatFloat:
			samples[i] = float64(math.Float32frombits(uint32(v)))
		case bitDepth == 8:
			// 8-bit PCM is unsigned
			samples[i] = (float64(v) - 128) / 128
		default:
			samples[i] = float64(v) / float64(int64(1)<<(bitDepth-1))
		}
	}

	return deinterleave(samples, numChans), buf.Format.SampleRate, nil
}

// wavSampleFormat returns the fmt chunk's format tag, resolved through the
// subformat GUID when the tag is WAVE_FORMAT_EXTENSIBLE
func wavSampleFormat(r io.Reader) (uint16, error) {
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return 0, fmt.Errorf("invalid WAV file: %w", err)
	}
	if p.Format != riff.WavFormatID {
		return 0, fmt.Errorf("invalid WAV file: RIFF form %q", p.Format[:])
	}

	for {
		chunk, err := p.NextChunk()
		if err != nil {
			return 0, fmt.Errorf("invalid WAV file: missing fmt chunk")
		}
		if chunk.ID != riff.FmtID {
			chunk.Drain()
			continue
		}
		if chunk.Size < 16 {
			return 0, fmt.Errorf("invalid WAV file: fmt chunk is %d bytes", chunk.Size)
		}

		body := make([]byte, chunk.Size)
		if _, err := io.ReadFull(chunk, body); err != nil {
			return 0, fmt.Errorf("read fmt chunk: %w", err)
		}
		tag := binary.LittleEndian.Uint16(body[0:2])
		if tag != wavFormatExtensible {
			return tag, nil
		}
		// cbSize(2) validBits(2) channelMask(4) precede the GUID at offset 24
		if len(body) < 26 {
			return 0, fmt.Errorf("invalid WAV file: extensible fmt chunk is %d bytes", len(body))
		}
		return binary.LittleEndian.Uint16(body[24:26]), nil
	}
}

func decodeFLAC(path string) ([][]float64, int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("parse flac: %w", err)
	}
	defer stream.Close()

	numChans := int(stream.Info.NChannels)
	if numChans <= 0 {
		return nil, 0, fmt.Errorf("invalid channel count: %d", numChans)
	}
	if stream.Info.BitsPerSample == 0 || stream.Info.BitsPerSample > 32 {
		return nil, 0, fmt.Errorf("unsupported bit depth: %d", stream.Info.BitsPerSample)
	}
	norm := float64(int64(1) << (stream.Info.BitsPerSample - 1))

	channels := make([][]float64, numChans)
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("decode flac frame: %w", err)
		}
		for ch := 0; ch < numChans && ch < len(frame.Subframes); ch++ {
			for _, s := range frame.Subframes[ch].Samples {
				channels[ch] = append(channels[ch], float64(s)/norm)
			}
		}
	}

	return channels, int(stream.Info.SampleRate), nil
}

// go-mp3 always produces 16-bit little-endian stereo, duplicating mono
// streams into both channels
func decodeMP3(path string) ([][]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	numChans, err := mp3Channels(f)
	if err != nil {
		return nil, 0, fmt.Errorf("decode mp3: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}

	d, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, fmt.Errorf("decode mp3: %w", err)
	}

	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, 0, fmt.Errorf("read mp3: %w", err)
	}

	pcm := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw[:len(pcm)*2]), binary.LittleEndian, pcm); err != nil {
		return nil, 0, fmt.Errorf("read mp3 samples: %w", err)
	}

	samples := make([]float64, len(pcm))
	for i, v := range pcm {
		samples[i] = float64(v) / 32768
	}

	channels := deinterleave(samples, 2)
	if numChans == 1 {
		channels = channels[:1]
	}
	return channels, d.SampleRate(), nil
}

const (
	mp3ModeMono   = 3
	id3HeaderSize = 10
	id3v1TagSize  = 128
)

// mp3Channels reads the channel mode of the first MPEG audio frame header,
// skipping leading ID3 tags
func mp3Channels(r io.Reader) (int, error) {
	br := bufio.NewReader(r)
	if err := skipID3(br); err != nil {
		return 0, err
	}

	var header uint32
	for n := 1; ; n++ {
		b, err := br.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("no MPEG frame header found")
		}
		header = header<<8 | uint32(b)
		if n >= 4 && validMP3Header(header) {
			break
		}
	}

	if (header>>6)&3 == mp3ModeMono {
		return 1, nil
	}
	return 2, nil
}

func skipID3(br *bufio.Reader) error {
	for {
		head, err := br.Peek(3)
		if err != nil {
			return nil
		}
		switch string(head) {
		case "ID3":
			hdr, err := br.Peek(id3HeaderSize)
			if err != nil {
				return fmt.Errorf("truncated ID3 header")
			}
			// syncsafe: 7 bits per byte
			size := int(hdr[6])<<21 | int(hdr[7])<<14 | int(hdr[8])<<7 | int(hdr[9])
			if _, err := br.Discard(id3HeaderSize + size); err != nil {
				return fmt.Errorf("truncated ID3 tag")
			}
		case "TAG":
			if _, err := br.Discard(id3v1TagSize); err != nil {
				return fmt.Errorf("truncated ID3v1 tag")
			}
		default:
			return nil
		}
	}
}

// validMP3Header mirrors the frame header checks go-mp3 applies when syncing
func validMP3Header(h uint32) bool {
	switch {
	case h&0xFFE00000 != 0xFFE00000:
		return false
	case (h>>19)&3 == 1: // reserved version
		return false
	case (h>>17)&3 == 0: // reserved layer
		return false
	case (h>>12)&0xF == 0xF: // bad bitrate
		return false
	case (h>>10)&3 == 3: // reserved sample rate
		return false
	case h&3 == 2: // reserved emphasis
		return false
	}
	return true
}

func decodeOgg(path string) ([][]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	data, format, err := oggvorbis.ReadAll(f)
	if err != nil {
		return nil, 0, fmt.Errorf("decode ogg: %w", err)
	}
	if format.Channels <= 0 {
		return nil, 0, fmt.Errorf("invalid channel count: %d", format.Channels)
	}

	samples := make([]float64, len(data))
	for i, v := range data {
		samples[i] = float64(v)
	}

	return deinterleave(samples, format.Channels), format.SampleRate, nil
}

// deinterleave splits frame-interleaved samples into channels, dropping a trailing partial frame
func deinterleave(samples []float64, numChans int) [][]float64 {
	n := len(samples) / numChans
	channels := make([][]float64, numChans)
	for ch := range channels {
		channels[ch] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for ch := 0; ch < numChans; ch++ {
			channels[ch][i] = samples[i*numChans+ch]
		}
	}
	return channels
}
