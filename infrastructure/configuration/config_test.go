package configuration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationDefaults(t *testing.T) {
	// The package init has already run LoadConfig and the defaulting passes.
	require.NotNil(t, &C)

	assert.NotZero(t, C.App.Port)
	assert.NotEmpty(t, C.Data.Dir)
	assert.Greater(t, C.Sync.IntervalMinutes, 0)
	assert.Greater(t, C.Sync.PageDelayMs, 0)
	assert.NotEmpty(t, C.Database.Psql.Port)
}

func TestGetConfigName(t *testing.T) {
	t.Setenv("ENV", "")
	assert.Equal(t, "config", getConfig())

	t.Setenv("ENV", "local")
	assert.Equal(t, "config-local", getConfig())
}
