package client

import (
	"errors"
	"fmt"
)

// ErrNoDevices is returned by Session.Connect when the target lists no devices.
var ErrNoDevices = errors.New("no devices found")

// TransportError is a failed exchange with a real device: the network failed, the device answered with a
// non-success status, or its answer could not be understood.
type TransportError struct {
	Op         string // e.g. "GET /devices/0/status"
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s (%s)", e.Op, e.URL)
	if e.StatusCode != 0 && (e.StatusCode < 200 || e.StatusCode > 299) {
		msg = fmt.Sprintf("%s: unexpected status code: %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ConnectionError is a failure to establish a session: the target is unreachable or has no devices.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
