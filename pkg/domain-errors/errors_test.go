package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct code matches", func(t *testing.T) {
		err := New(CodeNotFound, "missing")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("nested code found through wrapping", func(t *testing.T) {
		inner := New(CodeComplianceViolation, "rejected")
		outer := Wrap(fmt.Errorf("context: %w", inner), CodeInternal, "mutation failed")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeComplianceViolation))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(cause, CodeInternal, "load state")
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "load state: db down", err.Error())
	assert.Equal(t, "plain", New(CodeBadRequest, "plain").Error())
}
