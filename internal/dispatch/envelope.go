package dispatch

import (
	"encoding/json"

	executor "github.com/hanpama/gqlmux/internal/executor"
)

// Payload is a request body as delivered by the transport layer: top-level
// JSON already decoded, variables and extensions possibly still text.
type Payload map[string]any

// Response is either a single executor result or, for batches, the ordered
// list of results. It serializes as exactly one of the two.
type Response struct {
	Single *executor.Result
	Batch  []*executor.Result
	batch  bool
}

// IsBatch reports whether the response came from a multiplexed payload.
func (r Response) IsBatch() bool { return r.batch }

func (r Response) MarshalJSON() ([]byte, error) {
	if r.batch {
		if r.Batch == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.Batch)
	}
	return json.Marshal(r.Single)
}

// ErrorDetail is one entry of an ErrorEnvelope.
type ErrorDetail struct {
	Message   string   `json:"message"`
	Backtrace []string `json:"backtrace,omitempty"`
}

// ErrorEnvelope is rendered in development mode in place of a Response.
type ErrorEnvelope struct {
	Errors []ErrorDetail   `json:"errors"`
	Data   map[string]any `json:"data"`
}

func newErrorEnvelope(err error) ErrorEnvelope {
	return ErrorEnvelope{
		Errors: []ErrorDetail{{Message: err.Error(), Backtrace: Backtrace(err)}},
		Data:   map[string]any{},
	}
}

// Reply is what the transport should write: a body and its HTTP status.
type Reply struct {
	Status int
	Body   any
}
