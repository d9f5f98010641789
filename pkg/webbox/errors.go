package webbox

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when the device does not answer within the
// configured bound. Over plain UDP this is the dominant failure mode.
var ErrTimeout = errors.New("webbox: request timed out")

// ErrClosed is returned on any use of a transport after Close.
var ErrClosed = errors.New("webbox: transport closed")

// DeviceError is an RPC error reported by the Webbox itself.
type DeviceError struct {
	Code    int
	Message string
}

func (e *DeviceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("webbox: device error %d", e.Code)
	}
	return fmt.Sprintf("webbox: device error %d: %s", e.Code, e.Message)
}

// ParseError marks a malformed subtree of a response. It is absorbed at
// the subtree that produced it: one bad channel never fails a whole poll.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("webbox: parse error at %s: %s", e.Path, e.Reason)
}

func parseErrorf(path, format string, args ...any) *ParseError {
	return &ParseError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
