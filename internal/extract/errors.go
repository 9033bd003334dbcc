package extract

import "errors"

// Extraction errors.
// These are wrapped by callers with the stage that failed, so check them
// with errors.Is.
var (
	// ErrParse is returned when markup cannot be read or parsed.
	ErrParse = errors.New("failed to parse HTML")

	// ErrMissingHref is returned when the matched anchor has no href attribute.
	ErrMissingHref = errors.New("anchor has no href attribute")

	// ErrInvalidURL is returned when the base URL or an href cannot be parsed
	// as a URL reference.
	ErrInvalidURL = errors.New("invalid URL")
)
