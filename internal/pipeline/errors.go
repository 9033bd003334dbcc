package pipeline

import "errors"

// Stage names, as reported by Step.Name and StageError.Stage.
const (
	StageFetchHome      = "fetch-home"
	StageExtractLinks   = "extract-links"
	StageWriteLinks     = "write-links"
	StageLocatePolicy   = "locate-policy"
	StageFetchPolicy    = "fetch-policy"
	StageCountWords     = "count-words"
	StageWriteWordCount = "write-word-count"
)

// ErrMissingInput is returned by a step whose input an earlier step should
// have produced. It indicates steps were assembled in the wrong order.
var ErrMissingInput = errors.New("missing input from earlier step")

// ErrOutputDirConflict is returned when two sites of a batch would write
// their files to the same directory.
var ErrOutputDirConflict = errors.New("sites share an output directory")

// StageError records which stage of a scan failed.
type StageError struct {
	// Stage is the name of the failing step.
	Stage string

	// Err is the underlying error.
	Err error
}

// Error implements error.
func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

// Unwrap returns the underlying error so errors.Is and errors.As see
// through the stage.
func (e *StageError) Unwrap() error {
	return e.Err
}
