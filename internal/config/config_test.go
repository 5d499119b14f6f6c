package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, EnvProduction, cfg.Env)
	require.False(t, cfg.Development())
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "/graphql", cfg.Server.Path)
	require.Equal(t, 10*time.Second, cfg.Server.Timeout)
	require.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	require.Equal(t, 3*time.Second, cfg.Executor.RPCTimeout)
	require.Equal(t, 8, cfg.Executor.MaxConcurrency)
	require.Equal(t, "json", cfg.Log.Format)

	// endpoints have no default
	require.Error(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GQLMUX_ENV", "development")
	t.Setenv("GQLMUX_SERVER__ADDR", "127.0.0.1:9000")
	t.Setenv("GQLMUX_SERVER__TIMEOUT", "2s")
	t.Setenv("GQLMUX_SERVER__CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("GQLMUX_EXECUTOR__ENDPOINTS", "backend-1:9090,backend-2:9090")
	t.Setenv("GQLMUX_EXECUTOR__MAX_CONCURRENCY", "3")
	t.Setenv("GQLMUX_METRICS__ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.True(t, cfg.Development())
	require.Equal(t, "console", cfg.Log.Format)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	require.Equal(t, 2*time.Second, cfg.Server.Timeout)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	require.Equal(t, []string{"backend-1:9090", "backend-2:9090"}, cfg.Executor.Endpoints)
	require.Equal(t, 3, cfg.Executor.MaxConcurrency)
	require.False(t, cfg.Metrics.Enabled)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("GQLMUX_EXECUTOR__ENDPOINTS", "backend:9090")
	t.Setenv("GQLMUX_ENV", "staging")
	cfg, err := Load()
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "Env")

	t.Setenv("GQLMUX_ENV", "test")
	t.Setenv("GQLMUX_LOG__LEVEL", "loud")
	cfg, err = Load()
	require.NoError(t, err)
	require.ErrorContains(t, cfg.Validate(), "Level")
}

func TestEnvDefaultsFollowOverrides(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "json", cfg.Log.Format)

	cfg.Env = EnvDevelopment
	cfg.ApplyEnvDefaults()
	require.Equal(t, "console", cfg.Log.Format)

	cfg.Env = EnvProduction
	cfg.ApplyEnvDefaults()
	require.Equal(t, "json", cfg.Log.Format)

	cfg.Env = EnvDevelopment
	cfg.SetLogFormat("json")
	cfg.ApplyEnvDefaults()
	require.Equal(t, "json", cfg.Log.Format)
}

func TestExplicitEnvFormatWins(t *testing.T) {
	t.Setenv("GQLMUX_ENV", "development")
	t.Setenv("GQLMUX_LOG__FORMAT", "json")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "json", cfg.Log.Format)
}
