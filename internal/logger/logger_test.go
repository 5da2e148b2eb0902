package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	l, err := New("storefront", "debug")
	require.NoError(t, err)

	assert.True(t, l.Core().Enabled(zap.DebugLevel))
}

func TestNew_WarnLevelFiltersInfo(t *testing.T) {
	l, err := New("storefront", "warn")
	require.NoError(t, err)

	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.ErrorLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("storefront", "loud")
	assert.Error(t, err)
}
