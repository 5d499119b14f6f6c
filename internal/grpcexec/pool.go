package grpcexec

import (
	"sync/atomic"

	"google.golang.org/grpc"
)

// connPool keeps up to cap(conns) idle client connections for one endpoint.
type connPool struct {
	endpoint string
	dialOpts []grpc.DialOption
	conns    chan *grpc.ClientConn
	closed   atomic.Bool
}

func newConnPool(endpoint string, size int, dialOpts []grpc.DialOption) *connPool {
	if size <= 0 {
		size = 2
	}
	return &connPool{
		endpoint: endpoint,
		dialOpts: dialOpts,
		conns:    make(chan *grpc.ClientConn, size),
	}
}

func (p *connPool) get() (*grpc.ClientConn, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	select {
	case cc := <-p.conns:
		return cc, nil
	default:
		return grpc.NewClient(p.endpoint, p.dialOpts...)
	}
}

func (p *connPool) put(cc *grpc.ClientConn) {
	if cc == nil {
		return
	}
	if p.closed.Load() {
		_ = cc.Close()
		return
	}
	select {
	case p.conns <- cc:
	default:
		_ = cc.Close()
	}
}

func (p *connPool) close() {
	if p.closed.Swap(true) {
		return
	}
	for {
		select {
		case cc := <-p.conns:
			_ = cc.Close()
		default:
			return
		}
	}
}
