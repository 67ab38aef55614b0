package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries a per-attempt identifier for correlating client and server logs.
const RequestIDHeader = "X-Request-ID"

// Request describes one logical API call. It is safe to send more than once.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any // encoded as JSON when non-nil
	Header    http.Header
	Anonymous bool // never attach the credential
}

// Response is a successful (status < 400) upstream response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Sender sends a [Request]. Implemented by [Pipeline] and [Coordinator].
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// CredentialSource is the read side of the credential store.
type CredentialSource interface {
	Get() (models.Credential, bool)
}

// PipelineOpts configures a [Pipeline].
type PipelineOpts struct {
	BaseURL   string
	Client    *http.Client
	Store     CredentialSource
	RateLimit float64 // requests per second, zero disables throttling
	Burst     int
	UserAgent string
	Logger    *log.Logger
}

// Pipeline issues HTTP calls against the backend, attaches the bearer credential and
// normalizes every failure into an [*APIError] or a cancellation. It never retries.
type Pipeline struct {
	base      *url.URL
	client    *http.Client
	store     CredentialSource
	limiter   *rate.Limiter
	userAgent string
	logger    *log.Logger
}

// NewPipeline creates a pipeline for opts.BaseURL.
func NewPipeline(opts PipelineOpts) (*Pipeline, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q", shared.ErrInvalidConfig, opts.BaseURL)
	}

	p := &Pipeline{
		base:      base,
		client:    opts.Client,
		store:     opts.Store,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}

	if p.client == nil {
		p.client = &http.Client{Timeout: 30 * time.Second}
	}
	if p.logger == nil {
		p.logger = shared.NopLogger()
	}
	if opts.RateLimit > 0 {
		burst := max(opts.Burst, 1)
		p.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return p, nil
}

// Send dispatches req once.
//
// Failures are an [*APIError] (network or HTTP) or an error wrapping [shared.ErrCancelled]
// when ctx ends first.
func (p *Pipeline) Send(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx.Err())
			}
			// the deadline would pass before a slot frees up
			return nil, cancelled(fmt.Errorf("rate limiter: %w", err))
		}
	}

	httpReq, err := p.build(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		p.logger.Debug("request failed", "method", httpReq.Method, "path", req.Path, "error", err)
		return nil, newNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, newNetworkError(fmt.Errorf("failed to read response: %w", err))
	}

	p.logger.Debug("request complete",
		"method", httpReq.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"request_id", httpReq.Header.Get(RequestIDHeader),
		"elapsed", time.Since(start))

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, newHTTPError(resp.StatusCode, body)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func (p *Pipeline) build(ctx context.Context, req *Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u := *p.base
	u.Path = strings.TrimRight(p.base.Path, "/") + "/" + strings.TrimLeft(req.Path, "/")
	u.RawQuery = req.Query.Encode()

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to encode request body: %w", shared.ErrInvalidArgument, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if p.userAgent != "" {
		httpReq.Header.Set("User-Agent", p.userAgent)
	}
	httpReq.Header.Set(RequestIDHeader, uuid.NewString())

	if !req.Anonymous && p.store != nil {
		if cred, ok := p.store.Get(); ok {
			cred.Token().SetAuthHeader(httpReq)
		}
	}

	return httpReq, nil
}

// DecodeJSON decodes resp's body into v. Empty bodies leave v untouched.
func DecodeJSON(resp *Response, v any) error {
	if resp == nil || len(bytes.TrimSpace(resp.Body)) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", shared.ErrAPIRequest, err)
	}
	return nil
}

// IsCancelled reports whether err came from a cancelled or expired context.
func IsCancelled(err error) bool {
	return errors.Is(err, shared.ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", shared.ErrCancelled, cause)
}
