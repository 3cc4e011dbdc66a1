package errkind

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNilCauseReturnsNil(t *testing.T) {
	require.Nil(t, Wrap(ValidationFailed, "should not build", nil))
}

func TestKindOfUnwraps(t *testing.T) {
	base := New(DependencyMissing, "missing transit_key:abc")
	wrapped := fmt.Errorf("resolve: %w", base)

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, DependencyMissing, kind)
}

func TestKindOfFalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("short read")
	err := Wrap(InputMalformed, "datagram too short", cause)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "InputMalformed")
	assert.Contains(t, err.Error(), "short read")
	assert.Equal(t, cause, err.Unwrap())
}
