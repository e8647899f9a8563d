package foa

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// SupportedExtensions is the upload allow-list, lower case with leading dot
var SupportedExtensions = []string{".wav", ".mp3", ".flac", ".ogg"}

// IsSupported reports whether filename has an allow-listed extension (case-insensitive)
func IsSupported(filename string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// LoadError is returned when an audio file cannot be decoded into a frame
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader decodes audio files into FOA frames
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new channel loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load decodes path at its native sample rate and maps it onto W, X, Y, Z
func (l *Loader) Load(path string) (*Frame, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("unsupported format %q", ext)}
	}

	channels, sampleRate, err := decode(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	frame, err := MapChannels(channels, sampleRate)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	switch frame.Degraded {
	case DegradedMonoUpmix:
		l.logger.Warn("mono file detected, synthesizing FOA channels",
			"file", filepath.Base(path),
		)
	case DegradedZeroPadded:
		l.logger.Warn("expected 4-channel FOA, padding with silent channels",
			"file", filepath.Base(path),
			"channels", frame.SourceChannels,
		)
	default:
		if frame.SourceChannels > Channels {
			l.logger.Debug("discarding channels beyond W, X, Y, Z",
				"file", filepath.Base(path),
				"channels", frame.SourceChannels,
			)
		}
	}

	l.logger.Debug("audio loaded",
		"file", filepath.Base(path),
		"sample_rate", frame.SampleRate,
		"samples", frame.Len(),
		"duration", frame.Duration(),
	)

	return frame, nil
}
