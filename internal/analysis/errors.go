package analysis

import (
	"errors"
	"fmt"
)

// Analysis stages, used in AnalysisError and log fields
const (
	StageLoad       = "load"
	StageDirection  = "direction"
	StageDelay      = "delay"
	StageClassify   = "classify"
	StageTranscribe = "transcribe"
)

// ErrServiceUnavailable marks a model service that was not initialized at startup
var ErrServiceUnavailable = errors.New("service unavailable")

// AnalysisError wraps the failure that prevented a report from being built
type AnalysisError struct {
	Stage string
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed at %s: %v", e.Stage, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// ClassificationError is a recovered classifier failure; the report carries no classes
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// TranscriptionError is a recovered recognizer failure; the report carries no transcript
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription: %v", e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}
