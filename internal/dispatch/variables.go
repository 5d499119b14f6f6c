package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// VariablesInput is the closed set of shapes a variables or extensions
// field can arrive in. See Classify.
type VariablesInput interface {
	isVariablesInput()
}

// Empty is an absent, null or blank field.
type Empty struct{}

// Text is JSON text still to be parsed.
type Text string

// Structured is an already decoded mapping.
type Structured map[string]any

// Unsupported holds any other value.
type Unsupported struct {
	Value any
}

func (Empty) isVariablesInput()       {}
func (Text) isVariablesInput()        {}
func (Structured) isVariablesInput()  {}
func (Unsupported) isVariablesInput() {}

// Classify maps a raw field value onto a VariablesInput.
// url.Values, as produced by form decoding, counts as Structured.
func Classify(v any) VariablesInput {
	switch t := v.(type) {
	case nil:
		return Empty{}
	case string:
		if strings.TrimSpace(t) == "" {
			return Empty{}
		}
		return Text(t)
	case map[string]any:
		return Structured(t)
	case url.Values:
		return Structured(valuesToMap(t))
	default:
		return Unsupported{Value: v}
	}
}

// Normalize turns a raw variables or extensions value into a mapping.
// The result is never nil. Keys and value types are not validated here.
func Normalize(v any) (map[string]any, error) {
	return normalize("", v)
}

func normalize(field string, v any) (map[string]any, error) {
	switch in := Classify(v).(type) {
	case Empty:
		return map[string]any{}, nil
	case Text:
		return parseText(field, string(in))
	case Structured:
		if in == nil {
			return map[string]any{}, nil
		}
		return map[string]any(in), nil
	case Unsupported:
		return nil, newInvalidArgumentError(field, in.Value)
	default:
		return nil, newInvalidArgumentError(field, v)
	}
}

// parseText decodes JSON text. null and false collapse to an empty mapping;
// any other non-object value is rejected. Numbers stay json.Number.
func parseText(field, text string) (map[string]any, error) {
	var decoded any
	if err := DecodeJSON([]byte(text), &decoded); err != nil {
		return nil, newParseError(field, text, err)
	}
	switch d := decoded.(type) {
	case nil:
		return map[string]any{}, nil
	case bool:
		if !d {
			return map[string]any{}, nil
		}
	case map[string]any:
		return d, nil
	}
	return nil, newInvalidArgumentError(field, decoded)
}

// DecodeJSON decodes exactly one JSON value from data into v. Numbers are
// kept as json.Number so integers beyond 2^53 survive.
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err != nil {
			return err
		}
		return fmt.Errorf("invalid character after top-level value")
	}
	return nil
}

func valuesToMap(vs url.Values) map[string]any {
	out := make(map[string]any, len(vs))
	for k, v := range vs {
		switch len(v) {
		case 0:
			out[k] = nil
		case 1:
			out[k] = v[0]
		default:
			list := make([]any, len(v))
			for i := range v {
				list[i] = v[i]
			}
			out[k] = list
		}
	}
	return out
}
