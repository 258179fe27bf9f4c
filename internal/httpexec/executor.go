// Package httpexec performs the outbound HTTP exchanges on behalf of
// the agent. It owns transport construction (proxy, TLS, redirects),
// per-request timeouts, and response capture with body caps. It never
// logs or stores anything; that is the pipeline's job.
package httpexec

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/probegate/probegate/internal/config"
)

// TruncationSuffix marks a body cut at the storage cap.
const TruncationSuffix = "... [truncated]"

var allowedMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodDelete: true, http.MethodPatch: true, http.MethodHead: true,
	http.MethodOptions: true,
}

// TimeoutError reports a request that exceeded its deadline.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after %s", e.URL, e.Timeout)
}

// TransportError reports a connection-level failure (DNS, refused,
// TLS handshake) as opposed to an HTTP error status.
type TransportError struct {
	URL string
	Err error
}

func (e TransportError) Error() string { return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err) }
func (e TransportError) Unwrap() error { return e.Err }

// ValidationError reports a request that never left the process.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string { return e.Field + ": " + e.Message }

// Request describes one outbound exchange. Cookies are the merged
// profile+argument set; an explicit Cookie header overrides them.
type Request struct {
	Method          string
	URL             string
	Headers         map[string]string
	QueryParams     map[string]string
	Body            string
	Cookies         map[string]string
	BasicAuthUser   string
	BasicAuthPass   string
	BearerToken     string
	Timeout         time.Duration
	FollowRedirects *bool // nil = follow
	VerifyTLS       *bool // nil = config default
}

// Response is the captured result of an exchange. BodySize is the full
// byte count received, even when Body itself was cut at the cap.
type Response struct {
	Status        int               `json:"status"`
	Headers       map[string]string `json:"headers"`
	Body          string            `json:"body"`
	BodyTruncated bool              `json:"body_truncated,omitempty"`
	BodySize      int64             `json:"body_size"`
	DurationMS    int64             `json:"duration_ms"`
	FinalURL      string            `json:"final_url"`
	Redirects     int               `json:"redirects"`
}

// Executor sends requests under the configured transport policy.
type Executor struct {
	cfg config.HTTPConfig
}

// New creates an executor from configuration.
func New(cfg config.HTTPConfig) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = 300 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Executor{cfg: cfg}
}

// MaxBodyBytes exposes the configured body cap for the pipeline.
func (e *Executor) MaxBodyBytes() int { return e.cfg.MaxBodyBytes }

// Do performs one exchange. Transport failures come back as typed
// errors; HTTP error statuses are normal responses.
func (e *Executor) Do(ctx context.Context, r Request) (*Response, error) {
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if !allowedMethods[method] {
		return nil, ValidationError{Field: "method", Message: fmt.Sprintf("unsupported method %q", r.Method)}
	}
	target, err := url.Parse(r.URL)
	if err != nil || !target.IsAbs() || (target.Scheme != "http" && target.Scheme != "https") {
		return nil, ValidationError{Field: "url", Message: "must be an absolute http(s) URL"}
	}
	if len(r.QueryParams) > 0 {
		q := target.Query()
		for k, v := range r.QueryParams {
			q.Set(k, v)
		}
		target.RawQuery = q.Encode()
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}
	if timeout > e.cfg.MaxTimeout {
		timeout = e.cfg.MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tracer := otel.Tracer("probegate/httpexec")
	ctx, span := tracer.Start(ctx, "http.exchange")
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.host", target.Host),
	)
	defer span.End()

	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, ValidationError{Field: "url", Message: err.Error()}
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Cookie") == "" && len(r.Cookies) > 0 {
		req.Header.Set("Cookie", cookieHeader(r.Cookies))
	}
	if r.BasicAuthUser != "" {
		req.SetBasicAuth(r.BasicAuthUser, r.BasicAuthPass)
	}
	if r.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.BearerToken)
	}

	redirects := 0
	client := e.buildClient(r, &redirects)

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, TimeoutError{URL: target.String(), Timeout: timeout}
		}
		return nil, TransportError{URL: target.String(), Err: err}
	}
	defer resp.Body.Close()

	bodyCap := int64(e.cfg.MaxBodyBytes)
	raw, err := io.ReadAll(io.LimitReader(resp.Body, bodyCap+1))
	if err != nil {
		return nil, TransportError{URL: target.String(), Err: fmt.Errorf("read body: %w", err)}
	}
	truncated := int64(len(raw)) > bodyCap
	bodyStr := string(raw)
	bodySize := int64(len(raw))
	if truncated {
		bodyStr = string(raw[:bodyCap]) + TruncationSuffix
		// Drain the rest so the stored size reflects the full payload.
		n, _ := io.Copy(io.Discard, resp.Body)
		bodySize += n
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return &Response{
		Status:        resp.StatusCode,
		Headers:       flattenHeaders(resp.Header),
		Body:          bodyStr,
		BodyTruncated: truncated,
		BodySize:      bodySize,
		DurationMS:    elapsed.Milliseconds(),
		FinalURL:      resp.Request.URL.String(),
		Redirects:     redirects,
	}, nil
}

func (e *Executor) buildClient(r Request, redirects *int) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	if e.cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(e.cfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	verify := e.cfg.VerifyTLS
	if r.VerifyTLS != nil {
		verify = *r.VerifyTLS
	}
	if !verify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := &http.Client{Transport: transport}
	follow := r.FollowRedirects == nil || *r.FollowRedirects
	maxRedirects := e.cfg.MaxRedirects
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if !follow {
			return http.ErrUseLastResponse
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		*redirects = len(via)
		return nil
	}
	return client
}

func cookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for n := range cookies {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+"="+cookies[n])
	}
	return strings.Join(parts, "; ")
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vals := range h {
		out[k] = strings.Join(vals, ", ")
	}
	return out
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
