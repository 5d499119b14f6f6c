package events

import (
	"time"

	"google.golang.org/grpc/codes"
)

// OperationStart is emitted by an executor before it runs one operation.
// Index is the operation's position within its multiplex, 0 for single requests.
type OperationStart struct {
	Index         int
	OperationName string
	OperationType string
}

// OperationFinish is emitted after one operation completes.
type OperationFinish struct {
	Index         int
	OperationName string
	OperationType string
	ErrorCount    int
	Err           error
	Duration      time.Duration
}

// GRPCClientStart is emitted before a call to an execution backend.
type GRPCClientStart struct {
	Index  int
	Method string
	Target string
}

// GRPCClientFinish is emitted after a call to an execution backend completes.
type GRPCClientFinish struct {
	Index    int
	Method   string
	Target   string
	Code     codes.Code
	Err      error
	Duration time.Duration
}
