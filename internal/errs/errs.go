// Package errs holds the shared error taxonomy for the message pipeline.
//
// The worker loop classifies failures into three buckets: transient
// infrastructure errors (requeue and retry via redelivery), soft processing
// failures (acknowledged, reported downstream), and fatal errors (reported
// downstream, discarded). Transient errors are tagged explicitly with
// Transient so classification never depends on string matching.
package errs

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrHubClosed is returned when subscribing to a broadcast hub that has
	// been shut down.
	ErrHubClosed = errors.New("paperflow: broadcast hub is closed")

	// ErrConsumerClosed is returned when consuming from a consumer whose
	// channel has been released.
	ErrConsumerClosed = errors.New("paperflow: consumer is closed")
)

// TransientError marks a failure as retryable infrastructure trouble. The
// worker rejects the message with requeue so the broker redelivers it.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so IsTransient reports true for it. A nil err returns
// nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err should be retried via broker redelivery.
// Besides explicitly tagged errors, network timeouts count as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// DecodeError reports a payload that could not be turned into a typed
// message. The consumption engine rejects such deliveries with requeue.
type DecodeError struct {
	Queue string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode payload from %s: %v", e.Queue, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ConfigValidationError describes a single invalid configuration field.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}
