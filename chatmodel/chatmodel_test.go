package chatmodel

import (
	goerr "errors"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrFailedUnmarshalInput(t *testing.T) {
	err := ErrFailedUnmarshalInput
	assert.True(t, goerr.Is(err, ErrFailedUnmarshalInput))
	assert.True(t, goerr.Is(errors.WithStack(err), ErrFailedUnmarshalInput))
	assert.True(t, goerr.Is(errors.Wrap(err, "test"), ErrFailedUnmarshalInput))
	assert.True(t, goerr.Is(errors.WithMessage(err, "test"), ErrFailedUnmarshalInput))
	assert.False(t, goerr.Is(err, ErrInvalidChatContext))
}

func TestErrFailedUnmarshalOutput(t *testing.T) {
	err := errors.WithMessage(ErrFailedUnmarshalOutput, "yaml: line 1")
	assert.True(t, errors.Is(err, ErrFailedUnmarshalOutput))
	assert.False(t, errors.Is(err, ErrFailedUnmarshalInput))
	assert.Equal(t, "yaml: line 1: failed to unmarshal output", err.Error())
}
