package services

import (
	"errors"
	"fmt"
)

// ErrServiceUnavailable matches any CallError where the service could not
// be reached or did not answer in time.
var ErrServiceUnavailable = errors.New("service unavailable")

// Kind classifies a failed call.
type Kind string

const (
	// KindUnreachable means the connection failed or was reset.
	KindUnreachable Kind = "unreachable"
	// KindTimeout means the per-call deadline expired.
	KindTimeout Kind = "timeout"
	// KindStatus means the service answered with a non-2xx status.
	KindStatus Kind = "status"
	// KindDecode means the body could not be decoded.
	KindDecode Kind = "decode"
	// KindGraphQL means the gateway returned errors and no data.
	KindGraphQL Kind = "graphql"
)

// CallError describes a failed call to an external service.
type CallError struct {
	Service    string
	Endpoint   string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *CallError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("%s %s: unexpected status %d: %v", e.Service, e.Endpoint, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s %s: %s: %v", e.Service, e.Endpoint, e.Kind, e.Err)
	}
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Is reports whether the error is ErrServiceUnavailable.
func (e *CallError) Is(target error) bool {
	if target != ErrServiceUnavailable {
		return false
	}

	return e.Kind == KindUnreachable || e.Kind == KindTimeout
}
