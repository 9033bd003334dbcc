package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when there is no base URL to scan.
	ErrNoTarget = errors.New("no target specified")

	// ErrInvalidTarget is returned when a target is not an absolute http(s) URL.
	ErrInvalidTarget = errors.New("invalid target: must be an absolute http or https URL")

	// ErrInvalidTimeout is returned when the timeout is negative.
	// Use 0 to disable the timeout.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrEmptyOutputFile is returned when an output file name is empty.
	ErrEmptyOutputFile = errors.New("output file names must not be empty")

	// ErrSameOutputFile is returned when both outputs would go to one file.
	ErrSameOutputFile = errors.New("links file and words file must differ")

	// ErrInvalidLinkTag is returned when a configured link tag is not a
	// valid CSS selector.
	ErrInvalidLinkTag = errors.New("invalid link tag")
)
