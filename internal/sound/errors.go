package sound

import (
	"errors"
	"fmt"
)

// Kind classifies why a sound could not be resolved.
type Kind string

const (
	KindInvalidID    Kind = "invalid_id"
	KindConfig       Kind = "config_error"
	KindAPI          Kind = "api_error"
	KindUnauthorized Kind = "unauthorized"
	KindUpstream     Kind = "upstream_error"
)

// Error is the failure returned by the service and the upstream client.
// Status holds the upstream HTTP status when one was observed.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a sound failure, or an empty Kind when err is
// not one.
func KindOf(err error) Kind {
	var soundErr *Error
	if errors.As(err, &soundErr) {
		return soundErr.Kind
	}
	return ""
}

// StatusOf returns the upstream status attached to err, or 0.
func StatusOf(err error) int {
	var soundErr *Error
	if errors.As(err, &soundErr) {
		return soundErr.Status
	}
	return 0
}
