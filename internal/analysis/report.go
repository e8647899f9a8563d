// Package analysis turns an FOA recording into a scene report
package analysis

import (
	"time"

	"github.com/teslashibe/go-foa/internal/classify"
	"github.com/teslashibe/go-foa/internal/foa"
)

// Report is the acoustic scene description produced for one recording
type Report struct {
	Azimuth        float64          `json:"azimuth"`
	Elevation      float64          `json:"elevation"`
	DelaySamples   int              `json:"delay_samples"`
	DelaySeconds   float64          `json:"delay_seconds"`
	Classification []classify.Entry `json:"classification"`
	Transcription  *string          `json:"transcription"`

	Diagnostics Diagnostics `json:"-"`
}

// Diagnostics describes how a report was produced. Not part of the wire format.
type Diagnostics struct {
	Degraded       foa.Degradation
	SourceChannels int
	SampleRate     int
	Duration       time.Duration // audio length
	Elapsed        time.Duration // analysis time

	// Recovered holds the non-fatal failures the report was degraded by
	Recovered []error
}

// HasTranscription reports whether a transcript was produced
func (r *Report) HasTranscription() bool {
	return r.Transcription != nil
}

// TranscriptText returns the transcript or an empty string
func (r *Report) TranscriptText() string {
	if r.Transcription == nil {
		return ""
	}
	return *r.Transcription
}
