package analysis

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/teslashibe/go-foa/internal/classify"
	"github.com/teslashibe/go-foa/internal/doa"
	"github.com/teslashibe/go-foa/internal/foa"
	"github.com/teslashibe/go-foa/internal/speech"
)

// FrameLoader decodes an audio file into an FOA frame
type FrameLoader interface {
	Load(path string) (*foa.Frame, error)
}

// Services are the model collaborators, created once at startup and shared
// read-only by every analysis. A nil field means the service is unavailable.
type Services struct {
	Classifier classify.Classifier
	Recognizer speech.Recognizer
}

// Config configures the orchestrator
type Config struct {
	// DirectCorrelationLimit is the lenA*lenB product up to which the delay
	// correlation is summed directly (0 = package default)
	DirectCorrelationLimit int
}

// Orchestrator sequences loading, estimation, classification and transcription
type Orchestrator struct {
	loader    FrameLoader
	services  Services
	delay     doa.DelayEstimator
	logger    *slog.Logger
	stats     *Stats
	recorders []Recorder
}

// New creates a new orchestrator. A nil loader uses the FOA file loader.
func New(loader FrameLoader, services Services, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if loader == nil {
		loader = foa.NewLoader(logger)
	}

	stats := NewStats()

	return &Orchestrator{
		loader:    loader,
		services:  services,
		delay:     doa.DelayEstimator{DirectLimit: cfg.DirectCorrelationLimit},
		logger:    logger,
		stats:     stats,
		recorders: []Recorder{stats},
	}
}

// AddRecorder registers an additional outcome recorder. Not safe to call
// concurrently with Analyze.
func (o *Orchestrator) AddRecorder(r Recorder) {
	if r != nil {
		o.recorders = append(o.recorders, r)
	}
}

// Stats returns the orchestrator's running statistics
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

// Services returns the model collaborators
func (o *Orchestrator) Services() Services {
	return o.services
}

// Analyze produces a scene report for the audio file at path.
// Only a load failure aborts the analysis; every other failure degrades the report.
func (o *Orchestrator) Analyze(ctx context.Context, path string) (*Report, error) {
	start := time.Now()
	outcome := Outcome{}
	defer func() {
		outcome.Elapsed = time.Since(start)
		for _, r := range o.recorders {
			r.RecordAnalysis(outcome)
		}
	}()

	logger := o.logger.With("file", filepath.Base(path))

	frame, err := o.loader.Load(path)
	if err != nil {
		outcome.Failed = true
		logger.Error("failed to load audio", "error", err)
		return nil, &AnalysisError{Stage: StageLoad, Err: err}
	}
	outcome.Degraded = frame.Degraded

	var recovered []error

	direction, delay, estErrs := o.estimate(frame)
	for _, err := range estErrs {
		outcome.EstimationFallbacks++
		logger.Warn("estimation fell back to default", "error", err)
		recovered = append(recovered, err)
	}

	logger.Info("spatial estimates",
		"azimuth", direction.Azimuth,
		"elevation", direction.Elevation,
		"delay_samples", delay.Samples,
		"delay_seconds", delay.Seconds,
	)

	raw, err := o.classify(ctx, path)
	if err != nil {
		if Unavailable(err) {
			outcome.ServiceUnavailable = true
		} else {
			outcome.ClassificationFailed = true
		}
		logger.Warn("classification skipped", "error", err)
		recovered = append(recovered, err)
		raw = nil
	}
	ranked := classify.Rank(raw, classify.MinScore, classify.MaxEntries)

	var transcription *string
	if speech.ShouldTranscribe(raw) {
		text, err := o.transcribe(ctx, path)
		if err != nil {
			if Unavailable(err) {
				outcome.ServiceUnavailable = true
			} else {
				outcome.TranscriptionFailed = true
			}
			logger.Warn("transcription skipped", "error", err)
			recovered = append(recovered, err)
		} else {
			outcome.Transcribed = true
			transcription = &text
		}
	}

	report := &Report{
		Azimuth:        direction.Azimuth,
		Elevation:      direction.Elevation,
		DelaySamples:   delay.Samples,
		DelaySeconds:   delay.Seconds,
		Classification: ranked,
		Transcription:  transcription,
		Diagnostics: Diagnostics{
			Degraded:       frame.Degraded,
			SourceChannels: frame.SourceChannels,
			SampleRate:     frame.SampleRate,
			Duration:       frame.Duration(),
			Elapsed:        time.Since(start),
			Recovered:      recovered,
		},
	}

	logger.Info("analysis completed",
		"classes", len(ranked),
		"transcribed", transcription != nil,
		"degraded", string(frame.Degraded),
		"recovered_errors", len(recovered),
		"elapsed", report.Diagnostics.Elapsed,
	)

	return report, nil
}

// estimate runs the direction and delay estimators concurrently. Both always
// produce a value; the returned errors describe any fallback that was used.
func (o *Orchestrator) estimate(frame *foa.Frame) (doa.Direction, doa.Delay, []error) {
	var (
		direction        doa.Direction
		delay            doa.Delay
		dirErr, delayErr error
		wg               conc.WaitGroup
	)

	wg.Go(func() {
		direction, dirErr = guard(StageDirection, doa.FallbackDirection, func() (doa.Direction, error) {
			return doa.EstimateDirection(frame.X, frame.Y, frame.Z)
		})
	})
	wg.Go(func() {
		// X (front-back) against the omnidirectional W reference
		delay, delayErr = guard(StageDelay, doa.FallbackDelay, func() (doa.Delay, error) {
			return o.delay.Estimate(frame.X, frame.W, frame.SampleRate)
		})
	})
	wg.Wait()

	var errs []error
	if dirErr != nil {
		errs = append(errs, dirErr)
	}
	if delayErr != nil {
		errs = append(errs, delayErr)
	}
	return direction, delay, errs
}

// guard runs an estimator and converts a panic into its fallback value
func guard[T any](stage string, fallback T, fn func() (T, error)) (T, error) {
	var (
		value T
		err   error
		pc    panics.Catcher
	)
	pc.Try(func() {
		value, err = fn()
	})
	if r := pc.Recovered(); r != nil {
		return fallback, &doa.EstimationError{Estimator: stage, Err: r.AsError()}
	}
	return value, err
}

func (o *Orchestrator) classify(ctx context.Context, path string) ([]classify.Entry, error) {
	if o.services.Classifier == nil {
		return nil, &ClassificationError{Err: ErrServiceUnavailable}
	}

	entries, err := o.services.Classifier.Classify(ctx, path)
	if err != nil {
		return nil, &ClassificationError{Err: err}
	}
	return entries, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, path string) (string, error) {
	if o.services.Recognizer == nil {
		return "", &TranscriptionError{Err: ErrServiceUnavailable}
	}

	text, err := o.services.Recognizer.Transcribe(ctx, path)
	if err != nil {
		return "", &TranscriptionError{Err: err}
	}
	return text, nil
}

// IsLoadError reports whether err is an analysis failure caused by undecodable input
func IsLoadError(err error) bool {
	var loadErr *foa.LoadError
	return errors.As(err, &loadErr)
}

// Unavailable reports whether err stems from a service that was not initialized
func Unavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}
