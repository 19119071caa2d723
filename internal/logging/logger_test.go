package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", false)
	require.NoError(t, err)
	assert.NotNil(t, logger.Logger)

	_, err = NewLogger("loud", false)
	assert.Error(t, err)
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))

	l := Nop()
	assert.NotNil(t, l.WithRequestID(ctx))
	assert.Equal(t, l.Logger, l.WithRequestID(context.Background()))
}
