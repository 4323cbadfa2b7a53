package prismic

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedResponse = errors.New("malformed response from content service")
	ErrNoMasterRef       = errors.New("content service returned no master ref")
	ErrEmptyURL          = errors.New("empty page URL")
)

// StatusError is returned when the content service answers with a non-2xx code.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("content service returned status %d for %s", e.Code, e.URL)
}
