package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hanpama/gqlmux/internal/config"
	"github.com/hanpama/gqlmux/internal/dispatch"
	"github.com/hanpama/gqlmux/internal/eventbus"
	"github.com/hanpama/gqlmux/internal/grpcexec"
	"github.com/hanpama/gqlmux/internal/language"
	"github.com/hanpama/gqlmux/internal/logger"
	"github.com/hanpama/gqlmux/internal/metrics"
	"github.com/hanpama/gqlmux/internal/otel"
	"github.com/hanpama/gqlmux/internal/server"
)

const rootUsage = `gqlmux: GraphQL request dispatcher in front of a gRPC execution backend

USAGE:
  gqlmux <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL endpoint
  help             Show help for any command

Every flag can also be set through a GQLMUX_* environment variable
(or a .env file), e.g. GQLMUX_SERVER__ADDR=:9000. Flags win.
`

const serveUsage = `serve FLAGS:
  -env <name>                         development, production or test (default: production)
                                      development renders error details and backtraces
  -log.level <level>                  debug, info, warn or error (default: info)
  -log.format <format>                console or json (default: json, console in development)
  -server.addr <addr>                 HTTP listen address (default: :8080)
  -server.path <path>                 GraphQL endpoint path (default: /graphql)
  -server.pretty                      Pretty-print JSON responses
  -server.timeout <duration>          Per-request timeout, e.g. 10s (default: 10s)
  -server.max-body-bytes <n>          Request body limit, 0 for none (default: 1048576)
  -server.cors-origin <origin>        Allowed CORS origin. Repeatable
  -server.metadata-header <name>      Forward HTTP header to gRPC metadata. Repeatable
  -executor.endpoint <host:port>      Execution backend. Repeatable; at least one required
  -executor.service <name>            Backend gRPC service (default: gqlmux.v1.Executor)
  -executor.rpc-timeout <duration>    RPC timeout, e.g. 3s (default: 3s)
  -executor.max-conns <n>             Max TCP conns per endpoint (default: 2)
  -executor.max-concurrency <n>       Operations in flight per batch (default: 8)
  -otel.endpoint <addr>               OTLP collector endpoint
  -otel.service <name>                OpenTelemetry service name (default: gqlmux)
  -metrics.enabled <bool>             Serve Prometheus metrics (default: true)
  -metrics.path <path>                Metrics path (default: /metrics)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := args[0]
	cmdArgs := args[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "help", "-h", "-help", "--help":
		return cmdHelp(os.Stdout, cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(w io.Writer, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(w, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(w, serveUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return strings.Join(*s, ",") }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// parseServeFlags layers command-line flags over cfg and validates the result.
func parseServeFlags(cfg *config.Config, args []string) error {
	var origins, headers, endpoints stringListFlag

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&cfg.Env, "env", cfg.Env, "Runtime environment")
	fs.StringVar(&cfg.Log.Level, "log.level", cfg.Log.Level, "Log level")
	fs.Func("log.format", "Log format", func(v string) error {
		cfg.SetLogFormat(v)
		return nil
	})
	fs.StringVar(&cfg.Server.Addr, "server.addr", cfg.Server.Addr, "HTTP listen address")
	fs.StringVar(&cfg.Server.Path, "server.path", cfg.Server.Path, "GraphQL endpoint path")
	fs.BoolVar(&cfg.Server.Pretty, "server.pretty", cfg.Server.Pretty, "Pretty-print JSON responses")
	fs.DurationVar(&cfg.Server.Timeout, "server.timeout", cfg.Server.Timeout, "Per-request timeout")
	fs.Int64Var(&cfg.Server.MaxBodyBytes, "server.max-body-bytes", cfg.Server.MaxBodyBytes, "Request body limit")
	fs.Var(&origins, "server.cors-origin", "Allowed CORS origin")
	fs.Var(&headers, "server.metadata-header", "Forward HTTP header to gRPC metadata")
	fs.Var(&endpoints, "executor.endpoint", "Execution backend")
	fs.StringVar(&cfg.Executor.Service, "executor.service", cfg.Executor.Service, "Backend gRPC service")
	fs.DurationVar(&cfg.Executor.RPCTimeout, "executor.rpc-timeout", cfg.Executor.RPCTimeout, "RPC timeout")
	fs.IntVar(&cfg.Executor.MaxConns, "executor.max-conns", cfg.Executor.MaxConns, "Max conns per endpoint")
	fs.IntVar(&cfg.Executor.MaxConcurrency, "executor.max-concurrency", cfg.Executor.MaxConcurrency, "Operations in flight per batch")
	fs.StringVar(&cfg.Otel.Endpoint, "otel.endpoint", cfg.Otel.Endpoint, "OTLP collector endpoint")
	fs.StringVar(&cfg.Otel.Service, "otel.service", cfg.Otel.Service, "OpenTelemetry service name")
	fs.BoolVar(&cfg.Metrics.Enabled, "metrics.enabled", cfg.Metrics.Enabled, "Serve Prometheus metrics")
	fs.StringVar(&cfg.Metrics.Path, "metrics.path", cfg.Metrics.Path, "Metrics path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(origins) > 0 {
		cfg.Server.CORSOrigins = origins
	}
	if len(headers) > 0 {
		cfg.Server.MetadataHeaders = headers
	}
	if len(endpoints) > 0 {
		cfg.Executor.Endpoints = endpoints
	}
	cfg.ApplyEnvDefaults()
	return cfg.Validate()
}

func cmdServe(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := parseServeFlags(cfg, args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	log := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	bus := eventbus.New()

	shutdownTracing, err := otel.Setup(bus, cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	inspector, err := language.NewInspector(cfg.Executor.ParseCacheSize)
	if err != nil {
		return fmt.Errorf("inspector: %w", err)
	}
	exec := grpcexec.New(
		grpcexec.WithProvider(grpcexec.NewStaticEndpoints(map[string][]string{cfg.Executor.Service: cfg.Executor.Endpoints})),
		grpcexec.WithService(cfg.Executor.Service),
		grpcexec.WithMaxConnsPerEndpoint(cfg.Executor.MaxConns),
		grpcexec.WithRPCTimeout(cfg.Executor.RPCTimeout),
		grpcexec.WithMaxConcurrency(cfg.Executor.MaxConcurrency),
		grpcexec.WithInspector(inspector),
		grpcexec.WithEventBus(bus),
		grpcexec.WithLogger(log.With().Str("component", "grpcexec").Logger()),
	)
	defer func() { _ = exec.Close() }()

	d := dispatch.New(exec, dispatch.Config{
		DevelopmentMode: cfg.Development(),
		Logger:          log.With().Str("component", "dispatch").Logger(),
		Bus:             bus,
	})

	sopts := []server.Option{
		server.WithTimeout(cfg.Server.Timeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithLogger(log.With().Str("component", "server").Logger()),
		server.WithEventBus(bus),
	}
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORSOrigins...))
	}
	if len(cfg.Server.MetadataHeaders) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(cfg.Server.MetadataHeaders...))
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, server.New(d, sopts...))
	if cfg.Metrics.Enabled {
		m := metrics.New()
		defer m.Attach(bus)()
		mux.Handle(cfg.Metrics.Path, m.Handler())
	}

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return serve(srv, log, cfg)
}

func serve(srv *http.Server, log zerolog.Logger, cfg *config.Config) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("path", cfg.Server.Path).
			Str("env", cfg.Env).
			Strs("endpoints", cfg.Executor.Endpoints).
			Msg("GraphQL server listening")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
		return err
	}
	return nil
}
