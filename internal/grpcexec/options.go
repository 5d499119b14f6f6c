package grpcexec

import (
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	eventbus "github.com/hanpama/gqlmux/internal/eventbus"
	language "github.com/hanpama/gqlmux/internal/language"
)

// DefaultService is the backend service name operations are sent to.
const DefaultService = "gqlmux.v1.Executor"

// Options configures the remote executor.
//
// Defaults:
// - Service:             DefaultService
// - MaxConnsPerEndpoint: 2
// - RPCTimeout:          3s (used only if incoming context has no deadline)
// - MaxConcurrency:      8 operations in flight per multiplex
// - DialOptions:         insecure credentials
//
// Provider must be set (use StaticEndpoints or a custom implementation).
type Options struct {
	Provider EndpointProvider
	Service  string

	MaxConnsPerEndpoint int
	RPCTimeout          time.Duration
	MaxConcurrency      int

	DialOptions []grpc.DialOption

	// Inspector labels operation events with their type. Optional.
	Inspector *language.Inspector
	Bus       *eventbus.Bus
	Logger    zerolog.Logger
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Service:             DefaultService,
		MaxConnsPerEndpoint: 2,
		RPCTimeout:          3 * time.Second,
		MaxConcurrency:      8,
		Logger:              zerolog.Nop(),
	}
}

func WithProvider(p EndpointProvider) Option { return func(o *Options) { o.Provider = p } }
func WithService(name string) Option         { return func(o *Options) { o.Service = name } }
func WithMaxConnsPerEndpoint(n int) Option   { return func(o *Options) { o.MaxConnsPerEndpoint = n } }
func WithRPCTimeout(d time.Duration) Option  { return func(o *Options) { o.RPCTimeout = d } }
func WithMaxConcurrency(n int) Option        { return func(o *Options) { o.MaxConcurrency = n } }
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *Options) { o.DialOptions = opts }
}
func WithInspector(i *language.Inspector) Option { return func(o *Options) { o.Inspector = i } }
func WithEventBus(b *eventbus.Bus) Option        { return func(o *Options) { o.Bus = b } }
func WithLogger(l zerolog.Logger) Option         { return func(o *Options) { o.Logger = l } }
