package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "i/o timeout" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return e.timeout }

func TestTransient(t *testing.T) {
	base := errors.New("connection refused")

	assert.Nil(t, Transient(nil))
	assert.True(t, IsTransient(Transient(base)))
	assert.False(t, IsTransient(base))
	assert.False(t, IsTransient(nil))

	// The tag survives further wrapping.
	wrapped := fmt.Errorf("summarize: %w", Transient(base))
	assert.True(t, IsTransient(wrapped))
	assert.ErrorIs(t, wrapped, base)
}

func TestIsTransient_NetworkTimeouts(t *testing.T) {
	assert.True(t, IsTransient(timeoutErr{timeout: true}))
	assert.False(t, IsTransient(timeoutErr{timeout: false}))
	assert.True(t, IsTransient(fmt.Errorf("call gemini: %w", timeoutErr{timeout: true})))
}

func TestDecodeError(t *testing.T) {
	cause := errors.New("unexpected end of input")
	err := &DecodeError{Queue: "OcrCommandQueue", Err: cause}

	assert.Contains(t, err.Error(), "OcrCommandQueue")
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsTransient(err), "decode failures are handled by requeue, not classified transient")
}

func TestConfigValidationError(t *testing.T) {
	err := &ConfigValidationError{Field: "RabbitMQURL", Reason: "is required"}
	assert.Equal(t, "config: RabbitMQURL is required", err.Error())
}
