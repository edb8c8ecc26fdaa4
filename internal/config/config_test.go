package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Empty(t, cfg.Endpoint)
	assert.False(t, cfg.ForcePathStyle)
	assert.Zero(t, cfg.Parallelism)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("OBJCP_ENDPOINT", "http://localhost:9000")
	t.Setenv("OBJCP_REGION", "eu-west-1")
	t.Setenv("OBJCP_ACCESS_KEY", "ak")
	t.Setenv("OBJCP_SECRET_KEY", "sk")
	t.Setenv("OBJCP_PATH_STYLE", "true")
	t.Setenv("OBJCP_PARALLELISM", "12")
	t.Setenv("OBJCP_PART_SIZE", "5242880")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.Endpoint)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "ak", cfg.AccessKey)
	assert.Equal(t, "sk", cfg.SecretKey)
	assert.True(t, cfg.ForcePathStyle)
	assert.Equal(t, 12, cfg.Parallelism)
	assert.Equal(t, int64(5242880), cfg.PartSize)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("OBJCP_PATH_STYLE", "definitely")
	t.Setenv("OBJCP_PARALLELISM", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.ForcePathStyle)
	assert.Zero(t, cfg.Parallelism)
}
