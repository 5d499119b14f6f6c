package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"google.golang.org/grpc/metadata"

	dispatch "github.com/hanpama/gqlmux/internal/dispatch"
	eventbus "github.com/hanpama/gqlmux/internal/eventbus"
	events "github.com/hanpama/gqlmux/internal/events"
	executor "github.com/hanpama/gqlmux/internal/executor"
	reqid "github.com/hanpama/gqlmux/internal/reqid"
)

// Handler is an http.Handler that serves a GraphQL endpoint.
// It decodes request bodies into dispatcher payloads and writes whatever the
// dispatcher replies.
type Handler struct {
	d   *dispatch.Dispatcher
	opt Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MetadataHeaders lists HTTP headers to forward into gRPC metadata.
	// Header names are case-insensitive. Default is none.
	MetadataHeaders []string

	Logger zerolog.Logger
	Bus    *eventbus.Bus
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithLogger(l zerolog.Logger) Option  { return func(o *Options) { o.Logger = l } }
func WithEventBus(b *eventbus.Bus) Option { return func(o *Options) { o.Bus = b } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a GraphQL HTTP handler in front of d.
func New(d *dispatch.Dispatcher, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, Logger: zerolog.Nop()}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{d: d, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.WithID(ctx, r.Header.Get(reqid.Header))
	w.Header().Set(reqid.Header, rid)
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(h.opt.Bus, ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(h.opt.Bus, ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse("method not allowed"), h.opt.Pretty)
		return
	}

	// Map configured headers into metadata
	md := metadata.MD{}
	if len(h.opt.MetadataHeaders) > 0 {
		allowed := make(map[string]struct{}, len(h.opt.MetadataHeaders))
		for _, hdr := range h.opt.MetadataHeaders {
			allowed[strings.ToLower(hdr)] = struct{}{}
		}
		for k, v := range r.Header {
			if _, ok := allowed[strings.ToLower(k)]; ok {
				md[strings.ToLower(k)] = v
			}
		}
	}
	ctx = metadata.NewOutgoingContext(ctx, md)

	payload, perr := parsePayload(r, h.opt.MaxBodyBytes)
	if perr != nil {
		status = perr.status
		writeJSON(w, status, errorResponse(perr.message), h.opt.Pretty)
		return
	}

	reply, err := h.d.Handle(ctx, payload)
	if err != nil {
		status = http.StatusInternalServerError
		h.opt.Logger.Error().Err(err).Str("request_id", rid).Msg("graphql request failed")
		writeJSON(w, status, errorResponse(http.StatusText(status)), h.opt.Pretty)
		return
	}
	status = reply.Status
	writeJSON(w, status, reply.Body, h.opt.Pretty)
}

// ------------------ Request parsing ------------------

type requestError struct {
	status  int
	message string
}

func badRequest(msg string) *requestError {
	return &requestError{status: http.StatusBadRequest, message: msg}
}

const errBodyTooLargeMessage = "body too large"

// parsePayload decodes the request into a dispatcher payload. Top-level JSON
// arrays are wrapped under dispatch.BatchKey. Form bodies and query strings
// leave variables and extensions as text.
func parsePayload(r *http.Request, maxBody int64) (dispatch.Payload, *requestError) {
	if r.Method == http.MethodGet {
		return formPayload(r.URL.Query()), nil
	}

	ct := r.Header.Get("Content-Type")
	mediaType := "application/json"
	if ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, &requestError{status: http.StatusUnsupportedMediaType, message: "unsupported Content-Type"}
		}
		mediaType = mt
	}

	body := io.Reader(r.Body)
	if maxBody > 0 {
		body = io.LimitReader(r.Body, maxBody+1)
	}
	defer r.Body.Close()

	switch mediaType {
	case "application/json":
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, badRequest("failed to read body")
		}
		if maxBody > 0 && int64(len(raw)) > maxBody {
			return nil, &requestError{status: http.StatusRequestEntityTooLarge, message: errBodyTooLargeMessage}
		}
		return jsonPayload(raw)
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if maxBody > 0 {
			r.Body = http.MaxBytesReader(nil, r.Body, maxBody)
		}
		if err := r.ParseMultipartForm(32 << 10); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return nil, &requestError{status: http.StatusRequestEntityTooLarge, message: errBodyTooLargeMessage}
			}
			return nil, badRequest("invalid form body")
		}
		return formPayload(r.PostForm), nil
	default:
		return nil, &requestError{status: http.StatusUnsupportedMediaType, message: "unsupported Content-Type"}
	}
}

func jsonPayload(raw []byte) (dispatch.Payload, *requestError) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []any
		if err := dispatch.DecodeJSON(trimmed, &batch); err != nil {
			return nil, badRequest("invalid JSON")
		}
		return dispatch.Payload{dispatch.BatchKey: batch}, nil
	}
	var p dispatch.Payload
	if err := dispatch.DecodeJSON(trimmed, &p); err != nil || p == nil {
		return nil, badRequest("invalid JSON")
	}
	return p, nil
}

// formPayload maps form fields onto a payload. variables and extensions may
// come as JSON text or as bracketed fields, e.g. variables[input][id]=1 or
// variables[ids][]=1.
func formPayload(vs url.Values) dispatch.Payload {
	p := dispatch.Payload{}
	for _, key := range []string{"query", "operationName"} {
		if vs.Has(key) {
			p[key] = vs.Get(key)
		}
	}
	for _, key := range []string{"variables", "extensions"} {
		if vs.Has(key) {
			p[key] = vs.Get(key)
			continue
		}
		if nested := nestedForm(vs, key); len(nested) > 0 {
			p[key] = nested
		}
	}
	return p
}

// nestedForm collects every field named root[a][b]... into nested maps.
// A trailing [] collects all values of the field into a list; otherwise the
// last value wins. Keys are applied in sorted order, and a deeper path
// replaces a scalar at the same position.
func nestedForm(vs url.Values, root string) map[string]any {
	keys := make([]string, 0, len(vs))
	for k := range vs {
		if strings.HasPrefix(k, root+"[") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := map[string]any{}
	for _, k := range keys {
		path, list, ok := bracketPath(k[len(root):])
		if !ok || len(vs[k]) == 0 {
			continue
		}
		var v any = vs[k][len(vs[k])-1]
		if list {
			items := make([]any, len(vs[k]))
			for i, s := range vs[k] {
				items[i] = s
			}
			v = items
		}
		m := out
		for _, seg := range path[:len(path)-1] {
			next, ok := m[seg].(map[string]any)
			if !ok {
				next = map[string]any{}
				m[seg] = next
			}
			m = next
		}
		m[path[len(path)-1]] = v
	}
	return out
}

// bracketPath splits "[a][b][]" into ["a" "b"] and reports the trailing [].
// An empty segment anywhere but at the end, or text outside brackets, is
// rejected.
func bracketPath(s string) (path []string, list bool, ok bool) {
	for s != "" {
		if s[0] != '[' {
			return nil, false, false
		}
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return nil, false, false
		}
		seg := s[1:end]
		s = s[end+1:]
		if seg == "" {
			if s != "" || len(path) == 0 {
				return nil, false, false
			}
			list = true
			continue
		}
		path = append(path, seg)
	}
	return path, list, len(path) > 0
}

// ------------------ Response formatting ------------------

func errorResponse(msg string) *executor.Result {
	return &executor.Result{Errors: gqlerror.List{{Message: msg}}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	wildcard := false
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
		if o == "*" || o == origin {
			allowed = true
		}
	}
	if !allowed {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}
