package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.SubscriptionsPerConnection)
	assert.Equal(t, types.ReadModeReplica, cfg.ReadMode)
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "burrow.yaml")
	data := `
address: "10.0.0.5:6379"
replicas:
  - "10.0.0.6:6379"
  - "10.0.0.7:6379"
subscriptions_per_connection: 2
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5:6379", cfg.Address)
	assert.Len(t, cfg.Replicas, 2)
	assert.Equal(t, 2, cfg.SubscriptionsPerConnection)
	// unset fields fall back to defaults
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 10, cfg.MasterPoolSize)
	assert.Equal(t, types.ReadModeReplica, cfg.ReadMode)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/burrow.yaml")
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("address: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty address", func(c *Config) { c.Address = "" }},
		{"bad read mode", func(c *Config) { c.ReadMode = "nearest" }},
		{"zero subscriptions", func(c *Config) { c.SubscriptionsPerConnection = 0 }},
		{"zero pool size", func(c *Config) { c.PubSubPoolSize = 0 }},
		{"negative timeout", func(c *Config) { c.OperationTimeout = -time.Second }},
		{"zero workers", func(c *Config) { c.EventLoopWorkers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
