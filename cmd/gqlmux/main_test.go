package main

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/gqlmux/internal/config"
)

func TestRunRequiresCommand(t *testing.T) {
	require.EqualError(t, run(nil), "missing command")
	require.EqualError(t, run([]string{"compile"}), `unknown command "compile"`)
}

func TestHelp(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, cmdHelp(&buf, nil))
	require.Contains(t, buf.String(), "serve")

	buf.Reset()
	require.NoError(t, cmdHelp(&buf, []string{"serve"}))
	require.Contains(t, buf.String(), "-executor.endpoint")

	require.Error(t, cmdHelp(&buf, []string{"nope"}))
}

func TestParseServeFlags(t *testing.T) {
	t.Setenv("GQLMUX_EXECUTOR__ENDPOINTS", "")
	cfg, err := config.Load()
	require.NoError(t, err)

	require.Error(t, parseServeFlags(cfg, nil), "endpoints are required")

	err = parseServeFlags(cfg, []string{
		"-env", "development",
		"-server.addr", ":9999",
		"-server.timeout", "2s",
		"-server.cors-origin", "http://a.test",
		"-server.cors-origin", "http://b.test",
		"-executor.endpoint", "127.0.0.1:50051",
		"-executor.endpoint", "127.0.0.1:50052",
		"-metrics.enabled=false",
	})
	require.NoError(t, err)
	require.True(t, cfg.Development())
	require.Equal(t, "console", cfg.Log.Format)
	require.Equal(t, ":9999", cfg.Server.Addr)
	require.Equal(t, 2*time.Second, cfg.Server.Timeout)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	require.Equal(t, []string{"127.0.0.1:50051", "127.0.0.1:50052"}, cfg.Executor.Endpoints)
	require.False(t, cfg.Metrics.Enabled)
}

func TestParseServeFlagsLogFormat(t *testing.T) {
	t.Setenv("GQLMUX_ENV", "")
	t.Setenv("GQLMUX_LOG__FORMAT", "")
	os.Unsetenv("GQLMUX_ENV")
	os.Unsetenv("GQLMUX_LOG__FORMAT")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "json", cfg.Log.Format)
	require.NoError(t, parseServeFlags(cfg, []string{"-env", "development", "-executor.endpoint", "a:1"}))
	require.Equal(t, "console", cfg.Log.Format)

	cfg, err = config.Load()
	require.NoError(t, err)
	require.NoError(t, parseServeFlags(cfg, []string{"-env", "development", "-log.format", "json", "-executor.endpoint", "a:1"}))
	require.Equal(t, "json", cfg.Log.Format)
}

func TestParseServeFlagsRejectsInvalid(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Error(t, parseServeFlags(cfg, []string{"-executor.endpoint", "a:1", "-env", "staging"}))
	require.Error(t, parseServeFlags(cfg, []string{"-unknown"}))
}
