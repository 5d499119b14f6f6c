package grpcexec

import "errors"

var (
	// ErrNoEndpoints indicates the provider returned no endpoints for the service.
	ErrNoEndpoints = errors.New("grpcexec: no endpoints available")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("grpcexec: closed")

	// ErrProviderMissing is returned when no EndpointProvider was configured.
	ErrProviderMissing = errors.New("grpcexec: provider not configured")
)
