package analysis

import (
	"sync"
	"time"

	"github.com/teslashibe/go-foa/internal/foa"
)

// Outcome summarizes one Analyze call for recorders
type Outcome struct {
	Elapsed              time.Duration
	Failed               bool // load failure, no report produced
	Degraded             foa.Degradation
	EstimationFallbacks  int
	ClassificationFailed bool
	TranscriptionFailed  bool
	Transcribed          bool
	ServiceUnavailable   bool // a model step was skipped because its service is not initialized
}

// Recorder receives the outcome of every analysis
type Recorder interface {
	RecordAnalysis(Outcome)
}

// Stats accumulates analysis counters
type Stats struct {
	mu sync.RWMutex

	analyses             int64
	failures             int64
	degraded             int64
	estimationFallbacks  int64
	classificationErrors int64
	transcriptions       int64
	transcriptionErrors  int64
	unavailableSkips     int64
	totalLatencyMs       int64
	lastAnalysisAt       time.Time
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	Analyses             int64     `json:"analyses"`
	LoadFailures         int64     `json:"load_failures"`
	DegradedFrames       int64     `json:"degraded_frames"`
	EstimationFallbacks  int64     `json:"estimation_fallbacks"`
	ClassificationErrors int64     `json:"classification_errors"`
	Transcriptions       int64     `json:"transcriptions"`
	TranscriptionErrors  int64     `json:"transcription_errors"`
	UnavailableSkips     int64     `json:"unavailable_skips"`
	AvgLatencyMs         float64   `json:"avg_latency_ms"`
	LastAnalysisAt       time.Time `json:"last_analysis_at"`
}

// NewStats creates an empty stats accumulator
func NewStats() *Stats {
	return &Stats{}
}

// RecordAnalysis implements Recorder
func (s *Stats) RecordAnalysis(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.analyses++
	s.totalLatencyMs += o.Elapsed.Milliseconds()
	s.lastAnalysisAt = time.Now()

	if o.Failed {
		s.failures++
		return
	}
	if o.Degraded != foa.DegradedNone {
		s.degraded++
	}
	s.estimationFallbacks += int64(o.EstimationFallbacks)
	if o.ClassificationFailed {
		s.classificationErrors++
	}
	if o.Transcribed {
		s.transcriptions++
	}
	if o.TranscriptionFailed {
		s.transcriptionErrors++
	}
	if o.ServiceUnavailable {
		s.unavailableSkips++
	}
}

// Snapshot returns the current counters
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var avgLatency float64
	if s.analyses > 0 {
		avgLatency = float64(s.totalLatencyMs) / float64(s.analyses)
	}

	return StatsSnapshot{
		Analyses:             s.analyses,
		LoadFailures:         s.failures,
		DegradedFrames:       s.degraded,
		EstimationFallbacks:  s.estimationFallbacks,
		ClassificationErrors: s.classificationErrors,
		Transcriptions:       s.transcriptions,
		TranscriptionErrors:  s.transcriptionErrors,
		UnavailableSkips:     s.unavailableSkips,
		AvgLatencyMs:         avgLatency,
		LastAnalysisAt:       s.lastAnalysisAt,
	}
}
