package grpcexec

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"google.golang.org/protobuf/types/known/structpb"

	executor "github.com/hanpama/gqlmux/internal/executor"
)

// Wire field names of the Execute request and response structs.
const (
	fieldQuery         = "query"
	fieldVariables     = "variables"
	fieldExtensions    = "extensions"
	fieldOperationName = "operationName"
	fieldData          = "data"
	fieldErrors        = "errors"
)

func encodeRequest(req executor.Request) (*structpb.Struct, error) {
	m := map[string]any{
		fieldQuery:      req.Query,
		fieldVariables:  orEmpty(req.Variables),
		fieldExtensions: orEmpty(req.Context.Extensions),
	}
	if req.OperationName != "" {
		m[fieldOperationName] = req.OperationName
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("grpcexec: encode request: %w", err)
	}
	return s, nil
}

// DecodeRequest is the backend-side inverse of the client's encoding.
func DecodeRequest(s *structpb.Struct) executor.Request {
	m := s.AsMap()
	req := executor.Request{
		Variables: map[string]any{},
		Context:   executor.Context{Extensions: map[string]any{}},
	}
	req.Query, _ = m[fieldQuery].(string)
	req.OperationName, _ = m[fieldOperationName].(string)
	if v, ok := m[fieldVariables].(map[string]any); ok {
		req.Variables = v
	}
	if v, ok := m[fieldExtensions].(map[string]any); ok {
		req.Context.Extensions = v
	}
	return req
}

// EncodeResult is the backend-side encoding of a Result.
func EncodeResult(res *executor.Result) (*structpb.Struct, error) {
	if res == nil {
		return nil, fmt.Errorf("grpcexec: encode result: nil result")
	}
	m := map[string]any{fieldData: res.Data}
	if len(res.Errors) > 0 {
		errs := make([]any, len(res.Errors))
		for i, e := range res.Errors {
			errs[i] = encodeError(e)
		}
		m[fieldErrors] = errs
	}
	if len(res.Extensions) > 0 {
		m[fieldExtensions] = res.Extensions
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("grpcexec: encode result: %w", err)
	}
	return s, nil
}

func decodeResult(s *structpb.Struct) *executor.Result {
	m := s.AsMap()
	res := &executor.Result{Data: m[fieldData]}
	if list, ok := m[fieldErrors].([]any); ok {
		res.Errors = make(gqlerror.List, 0, len(list))
		for _, item := range list {
			res.Errors = append(res.Errors, decodeError(item))
		}
	}
	if ext, ok := m[fieldExtensions].(map[string]any); ok {
		res.Extensions = ext
	}
	return res
}

func encodeError(e *gqlerror.Error) map[string]any {
	out := map[string]any{"message": e.Message}
	if len(e.Path) > 0 {
		path := make([]any, len(e.Path))
		for i, pe := range e.Path {
			switch v := pe.(type) {
			case ast.PathIndex:
				path[i] = float64(v)
			case ast.PathName:
				path[i] = string(v)
			}
		}
		out["path"] = path
	}
	if len(e.Locations) > 0 {
		locs := make([]any, len(e.Locations))
		for i, l := range e.Locations {
			locs[i] = map[string]any{"line": float64(l.Line), "column": float64(l.Column)}
		}
		out["locations"] = locs
	}
	if len(e.Extensions) > 0 {
		out["extensions"] = e.Extensions
	}
	return out
}

func decodeError(item any) *gqlerror.Error {
	m, ok := item.(map[string]any)
	if !ok {
		return &gqlerror.Error{Message: fmt.Sprint(item)}
	}
	e := &gqlerror.Error{}
	e.Message, _ = m["message"].(string)
	if path, ok := m["path"].([]any); ok {
		for _, p := range path {
			switch v := p.(type) {
			case string:
				e.Path = append(e.Path, ast.PathName(v))
			case float64:
				e.Path = append(e.Path, ast.PathIndex(int(v)))
			}
		}
	}
	if locs, ok := m["locations"].([]any); ok {
		for _, l := range locs {
			lm, ok := l.(map[string]any)
			if !ok {
				continue
			}
			line, _ := lm["line"].(float64)
			col, _ := lm["column"].(float64)
			e.Locations = append(e.Locations, gqlerror.Location{Line: int(line), Column: int(col)})
		}
	}
	if ext, ok := m["extensions"].(map[string]any); ok {
		e.Extensions = ext
	}
	return e
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
