package goodsave

import "fmt"

// StatusError reports a non-2xx response. Fatal to the run.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// TransportError reports a connection or timeout failure. Fatal to the run.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %s", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StructureError reports a violated expectation about the form's shape
// (missing child/sibling, malformed embedded state). Fatal to the run,
// a partial payload is never submitted.
type StructureError struct {
	Field  string
	Reason string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("form structure violated at %q: %s", e.Field, e.Reason)
}
