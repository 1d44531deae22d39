package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	prod, err := New("Production")
	require.NoError(t, err)
	assert.False(t, prod.Desugar().Core().Enabled(zap.DebugLevel))
	assert.True(t, prod.Desugar().Core().Enabled(zap.InfoLevel))

	dev, err := New("")
	require.NoError(t, err)
	assert.True(t, dev.Desugar().Core().Enabled(zap.DebugLevel))
}
