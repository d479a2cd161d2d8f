package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrGone signals that the remote side reports the connection as
// permanently gone. It marks a stale record, not a delivery fault, and is
// matched with errors.Is.
var ErrGone = errors.New("connection gone")

// StatusError represents a non-2xx response from a push endpoint.
type StatusError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push endpoint error %d: %s", e.StatusCode, e.Message)
}

// Is reports 410 responses as ErrGone so call sites never inspect status
// codes directly.
func (e *StatusError) Is(target error) bool {
	return target == ErrGone && e.StatusCode == http.StatusGone
}
