package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/jensneuse/abstractlogger"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	eventbus "github.com/hanpama/gqlguard/internal/eventbus"
	events "github.com/hanpama/gqlguard/internal/events"
	extension "github.com/hanpama/gqlguard/internal/extension"
	language "github.com/hanpama/gqlguard/internal/language"
	pipeline "github.com/hanpama/gqlguard/internal/pipeline"
	reqid "github.com/hanpama/gqlguard/internal/reqid"
)

// Handler is an http.Handler that validates GraphQL requests and forwards the
// valid ones to an upstream GraphQL server.
type Handler struct {
	pipeline     *pipeline.Pipeline
	upstream     *url.URL
	interceptors []extension.ResponseInterceptor
	opt          Options
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

	// ForwardHeaders lists client headers copied onto the upstream request.
	// Header names are case-insensitive. Default is none.
	ForwardHeaders []string

	// GraphiQL enables the in-browser IDE when true.
	GraphiQL bool

	Logger abstractlogger.Logger
	Client *http.Client
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option          { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                          { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option             { return func(o *Options) { o.MaxBodyBytes = n } }
func WithGraphiQL(enable bool) Option             { return func(o *Options) { o.GraphiQL = enable } }
func WithLogger(l abstractlogger.Logger) Option   { return func(o *Options) { o.Logger = l } }
func WithHTTPClient(c *http.Client) Option        { return func(o *Options) { o.Client = c } }
func WithForwardHeaders(headers ...string) Option { return func(o *Options) { o.ForwardHeaders = headers } }
func WithCORS(origins ...string) Option           { return func(o *Options) { o.CORS.AllowedOrigins = origins } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a proxy validating requests with p before sending them to
// upstream. Response interceptors attached to p's schema rewrite every
// upstream response.
func New(p *pipeline.Pipeline, upstream *url.URL, opts ...Option) (*Handler, error) {
	if upstream == nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q", upstream)
	}
	op := Options{
		Timeout:  10 * time.Second,
		GraphiQL: true,
		Logger:   abstractlogger.NoopLogger,
		Client:   http.DefaultClient,
	}
	for _, f := range opts {
		f(&op)
	}
	h := &Handler{pipeline: p, upstream: upstream, opt: op}
	for _, ext := range p.Schema().Extensions() {
		if ri, ok := ext.(extension.ResponseInterceptor); ok {
			h.interceptors = append(h.interceptors, ri)
		}
	}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, _ = reqid.NewContext(ctx)
	status := http.StatusOK
	forwarded := false
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Forwarded: forwarded, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse(&language.Error{Message: "method not allowed"}), h.opt.Pretty)
		return
	}

	// Serve GraphiQL IDE when enabled and the client expects HTML.
	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	req, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != nil {
		status = http.StatusBadRequest
		if berr.Message == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(berr), h.opt.Pretty)
		return
	}

	results := h.prepareAll(ctx, r.Method, req.operations)
	if rejected := rejection(results); rejected != nil {
		h.opt.Logger.Debug("request rejected",
			abstractlogger.String("request_id", reqid.String(ctx)),
			abstractlogger.Int("operations", len(results)),
		)
		if req.batch {
			writeJSON(w, status, rejected, h.opt.Pretty)
		} else {
			writeJSON(w, status, rejected[0], h.opt.Pretty)
		}
		return
	}

	forwarded = true
	status = h.forward(ctx, w, r, req)
}

func (h *Handler) prepareAll(ctx context.Context, method string, ops []GraphQLRequest) []*pipeline.Prepared {
	results := make([]*pipeline.Prepared, len(ops))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i := range ops {
		g.Go(func() error {
			results[i] = h.prepareOne(events.WithOperation(ctx, i), method, ops[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (h *Handler) prepareOne(ctx context.Context, method string, req GraphQLRequest) *pipeline.Prepared {
	start := time.Now()
	eventbus.Publish(ctx, events.OperationStart{Query: req.Query, OperationName: req.OperationName})
	res := h.pipeline.Prepare(ctx, pipeline.Request{
		Query:         req.Query,
		OperationName: req.OperationName,
		Method:        method,
	})
	errs := make([]error, len(res.Errors))
	for i := range res.Errors {
		errs[i] = res.Errors[i]
	}
	eventbus.Publish(ctx, events.OperationFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: res.OperationType(),
		Errors:        errs,
		Duration:      time.Since(start),
	})
	return res
}

// rejection returns one response per operation when any of them failed, or
// nil when the request may be forwarded.
func rejection(results []*pipeline.Prepared) []specResult {
	failed := false
	for _, res := range results {
		if len(res.Errors) > 0 {
			failed = true
			break
		}
	}
	if !failed {
		return nil
	}
	out := make([]specResult, len(results))
	for i, res := range results {
		if len(res.Errors) == 0 {
			out[i] = errorResponse(&language.Error{Message: errBatchRejectedMessage})
			continue
		}
		out[i] = toSpecResult(res.Errors)
	}
	return out
}

// forward sends the original request to the upstream server and copies the
// response back. It returns the status written to w.
func (h *Handler) forward(ctx context.Context, w http.ResponseWriter, r *http.Request, req graphQLRequests) int {
	target := *h.upstream
	var body io.Reader
	if r.Method == http.MethodGet {
		target.RawQuery = r.URL.RawQuery
	} else {
		body = bytes.NewReader(req.body)
	}

	start := time.Now()
	eventbus.Publish(ctx, events.UpstreamStart{URL: target.String(), Batch: len(req.operations)})
	finish := events.UpstreamFinish{URL: target.String()}
	defer func() {
		finish.Duration = time.Since(start)
		eventbus.Publish(ctx, finish)
	}()

	up, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		finish.Err = err
		return h.upstreamFailure(ctx, w, err)
	}
	up.Header.Set("Content-Type", "application/json")
	up.Header.Set("Accept", "application/json")
	up.Header.Set(reqid.Header, reqid.String(ctx))
	for _, name := range h.opt.ForwardHeaders {
		if v := r.Header.Values(name); len(v) > 0 {
			up.Header[http.CanonicalHeaderKey(name)] = v
		}
	}

	resp, err := h.opt.Client.Do(up)
	if err != nil {
		finish.Err = err
		return h.upstreamFailure(ctx, w, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		finish.Err = err
		return h.upstreamFailure(ctx, w, err)
	}
	finish.Status = resp.StatusCode
	finish.Errors = upstreamErrors(payload)

	payload = h.intercept(payload)
	if h.opt.Pretty {
		var buf bytes.Buffer
		if json.Indent(&buf, payload, "", "  ") == nil {
			payload = buf.Bytes()
		}
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/json; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(payload)
	return resp.StatusCode
}

func (h *Handler) upstreamFailure(ctx context.Context, w http.ResponseWriter, err error) int {
	h.opt.Logger.Error("upstream request failed",
		abstractlogger.String("request_id", reqid.String(ctx)),
		abstractlogger.String("upstream", h.upstream.String()),
		abstractlogger.Error(err),
	)
	msg := "upstream request failed"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "upstream request timed out"
	}
	writeJSON(w, http.StatusBadGateway, errorResponse(&language.Error{Message: msg}), h.opt.Pretty)
	return http.StatusBadGateway
}

// intercept runs every response interceptor over payload, or over each
// element of a batched payload.
func (h *Handler) intercept(payload []byte) []byte {
	if len(h.interceptors) == 0 {
		return payload
	}
	apply := func(b []byte) []byte {
		for _, ri := range h.interceptors {
			b = ri.InterceptResponse(b)
		}
		return b
	}
	parsed := gjson.ParseBytes(payload)
	if !parsed.IsArray() {
		return apply(payload)
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range parsed.Array() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(apply([]byte(item.Raw)))
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// upstreamErrors collects the GraphQL errors of a single or batched response.
func upstreamErrors(payload []byte) []events.UpstreamError {
	parsed := gjson.ParseBytes(payload)
	items := []gjson.Result{parsed}
	if parsed.IsArray() {
		items = parsed.Array()
	}
	var out []events.UpstreamError
	for _, item := range items {
		item.Get("errors").ForEach(func(_, e gjson.Result) bool {
			ue := events.UpstreamError{Message: e.Get("message").String()}
			e.Get("path").ForEach(func(_, seg gjson.Result) bool {
				if seg.Type == gjson.Number {
					ue.Path = ue.Path.Add(int(seg.Int()))
				} else {
					ue.Path = ue.Path.Add(seg.String())
				}
				return true
			})
			out = append(out, ue)
			return true
		})
	}
	return out
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string
	OperationName string
}

type graphQLRequests struct {
	operations []GraphQLRequest
	batch      bool
	body       []byte
}

func parseRequest(r *http.Request, maxBody int64) (graphQLRequests, *language.Error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return graphQLRequests{}, &language.Error{Message: "missing 'query'"}
		}
		if v := r.URL.Query().Get("variables"); v != "" && !gjson.Valid(v) {
			return graphQLRequests{}, &language.Error{Message: "invalid 'variables' JSON"}
		}
		op := GraphQLRequest{Query: q, OperationName: r.URL.Query().Get("operationName")}
		return graphQLRequests{operations: []GraphQLRequest{op}}, nil
	}

	// POST
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return graphQLRequests{}, &language.Error{Message: "unsupported Content-Type"}
	}
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return graphQLRequests{}, &language.Error{Message: "failed to read body"}
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return graphQLRequests{}, &language.Error{Message: errBodyTooLargeMessage}
	}
	if !gjson.ValidBytes(body) {
		return graphQLRequests{}, &language.Error{Message: "invalid JSON"}
	}

	parsed := gjson.ParseBytes(body)
	out := graphQLRequests{body: body}
	switch {
	case parsed.IsArray():
		items := parsed.Array()
		if len(items) == 0 {
			return graphQLRequests{}, &language.Error{Message: "empty batch"}
		}
		out.batch = true
		for _, item := range items {
			op, err := extractRequest(item)
			if err != nil {
				return graphQLRequests{}, err
			}
			out.operations = append(out.operations, op)
		}
	case parsed.IsObject():
		op, err := extractRequest(parsed)
		if err != nil {
			return graphQLRequests{}, err
		}
		out.operations = []GraphQLRequest{op}
	default:
		return graphQLRequests{}, &language.Error{Message: "invalid JSON"}
	}
	return out, nil
}

func extractRequest(item gjson.Result) (GraphQLRequest, *language.Error) {
	q := item.Get("query")
	if q.Type != gjson.String || q.String() == "" {
		return GraphQLRequest{}, &language.Error{Message: "missing 'query'"}
	}
	if v := item.Get("variables"); v.Exists() && v.Type != gjson.Null && !v.IsObject() {
		return GraphQLRequest{}, &language.Error{Message: "invalid 'variables'"}
	}
	return GraphQLRequest{Query: q.String(), OperationName: item.Get("operationName").String()}, nil
}

// ------------------ Response formatting ------------------

type specLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type specError struct {
	Message    string         `json:"message"`
	Locations  []specLocation `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type specResult struct {
	Data   any         `json:"data"`
	Errors []specError `json:"errors,omitempty"`
}

func errorResponse(err *language.Error) specResult {
	return toSpecResult(language.ErrorList{err})
}

func toSpecResult(errs language.ErrorList) specResult {
	out := specResult{Errors: make([]specError, len(errs))}
	for i, e := range errs {
		se := specError{Message: e.Message}
		for _, loc := range e.Locations {
			se.Locations = append(se.Locations, specLocation{Line: loc.Line, Column: loc.Column})
		}
		if len(e.Path) > 0 {
			se.Path = make([]any, len(e.Path))
			for j, pe := range e.Path {
				switch v := pe.(type) {
				case language.PathName:
					se.Path[j] = string(v)
				case language.PathIndex:
					se.Path[j] = int(v)
				default:
					se.Path[j] = fmt.Sprint(v)
				}
			}
		}
		if len(e.Extensions) > 0 || e.Rule != "" {
			se.Extensions = make(map[string]any, len(e.Extensions)+1)
			for k, v := range e.Extensions {
				se.Extensions[k] = v
			}
			if e.Rule != "" {
				se.Extensions["rule"] = e.Rule
			}
		}
		out.Errors[i] = se
	}
	return out
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

const (
	errBodyTooLargeMessage  = "body too large"
	errBatchRejectedMessage = "Operation not forwarded: another operation in the batch failed validation."
)

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
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

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func acceptsHTML(accept string) bool {
	if accept == "" {
		return false
	}
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") || p == "*/*" {
			return true
		}
	}
	return false
}
