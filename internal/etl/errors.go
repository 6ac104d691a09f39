package etl

import (
	"errors"

	"cyberetl/internal/monitor"
)

// Error classes. Every error returned by Pipeline.Run matches ErrETL;
// ErrDataQuality and ErrConnection narrow the cause.
var (
	ErrETL         = errors.New("etl")
	ErrDataQuality = monitor.ErrDataQuality
	ErrConnection  = errors.New("connection")
)

// StepError reports which pipeline step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return "etl: " + e.Step + ": " + e.Err.Error() }

// Unwrap exposes both ErrETL and the cause to errors.Is and errors.As.
func (e *StepError) Unwrap() []error { return []error{ErrETL, e.Err} }
