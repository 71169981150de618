package connector

import (
	"errors"
	"fmt"
	"strings"
)

// TimeoutError is returned when a single call exceeds its deadline. The
// underlying transport stays usable; only the awaiting call fails.
type TimeoutError struct {
	Connector string
	Method    string
	Timeout   string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("connector %s: %s timed out after %s", e.Connector, e.Method, e.Timeout)
}

// IsTimeoutError returns true if the error is a TimeoutError.
// Uses errors.As to handle wrapped errors.
func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// ProcessExitError is returned to every call that was pending when the
// connector subprocess exited or failed to start.
type ProcessExitError struct {
	Connector string
	Cause     error
}

func (e *ProcessExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connector %s: process exited: %v", e.Connector, e.Cause)
	}
	return fmt.Sprintf("connector %s: process exited", e.Connector)
}

func (e *ProcessExitError) Unwrap() error { return e.Cause }

// IsProcessExitError returns true if the error is a ProcessExitError.
func IsProcessExitError(err error) bool {
	var pe *ProcessExitError
	return errors.As(err, &pe)
}

// RPCError carries a JSON-RPC error reported by the remote side. The
// message is surfaced verbatim.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return e.Message
}

// StatusError carries a non-2xx HTTP status and the response body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsStatusError returns true if the error is a StatusError, exposing it.
func IsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// transientSignatures are the error strings that justify a retry. Anything
// else, including HTTP status errors, propagates immediately.
var transientSignatures = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"timeout",
	"deadline exceeded",
	"unexpected EOF",
	"network is unreachable",
	"no such host",
}

// isTransient reports whether an error matches a known transient-network
// signature and is therefore worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := IsStatusError(err); ok {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
