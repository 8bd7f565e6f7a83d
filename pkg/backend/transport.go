package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/resilience"
)

// PrincipalHeader carries the caller's principal on every backend request.
const PrincipalHeader = "X-Principal"

// StatusError is a non-transient, non-404 error response.
type StatusError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Message)
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) TransportOption {
	return func(t *Transport) {
		t.http = hc
	}
}

// WithRetry sets the retry policy for each call.
func WithRetry(cfg resilience.RetryConfig) TransportOption {
	return func(t *Transport) {
		t.retry = cfg
	}
}

// WithBreaker guards calls with a circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) TransportOption {
	return func(t *Transport) {
		t.breaker = cb
	}
}

// Transport sends JSON requests to one backend service.
type Transport struct {
	service string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewTransport creates a Transport for the named service rooted at baseURL.
func NewTransport(service, baseURL string, opts ...TransportOption) *Transport {
	t := &Transport{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.retry.OnRetry == nil {
		t.retry.OnRetry = resilience.RetryLogger(service, "call")
	}
	return t
}

// Service returns the service name used in errors and logs.
func (t *Transport) Service() string { return t.service }

// Do sends in (when non-nil) as the JSON body and decodes a 200 response
// into out (when non-nil). A 404 returns found=false with no error.
// Unreachable services yield an error matching
// model.ErrConnectionUnavailable.
func (t *Transport) Do(ctx context.Context, method, path, principal string, in, out any) (found bool, err error) {
	var payload []byte
	if in != nil {
		payload, err = json.Marshal(in)
		if err != nil {
			return false, eris.Wrapf(err, "%s: marshal request", t.service)
		}
	}

	call := func(ctx context.Context) ([]byte, error) {
		return resilience.DoVal(ctx, t.retry, func(ctx context.Context) ([]byte, error) {
			return t.attempt(ctx, method, path, principal, payload)
		})
	}

	var body []byte
	if t.breaker != nil {
		body, err = resilience.ExecuteVal(ctx, t.breaker, call)
	} else {
		body, err = call(ctx)
	}
	if err != nil {
		if eris.Is(err, errNotFound) {
			return false, nil
		}
		return false, resilience.Unavailable(t.service, err)
	}

	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return true, eris.Wrapf(err, "%s: decode %s %s", t.service, method, path)
		}
	}
	return true, nil
}

// errNotFound signals a 404 through the retry and breaker layers.
var errNotFound = eris.New("backend: resource missing")

func (t *Transport) attempt(ctx context.Context, method, path, principal string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: create request", t.service)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if principal != "" {
		req.Header.Set(PrincipalHeader, principal)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, resilience.NewTransientError(eris.Wrapf(err, "%s: %s %s", t.service, method, path), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "%s: read response body", t.service), resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("%s: status %d: %s", t.service, resp.StatusCode, truncate(body)), resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, &StatusError{Service: t.service, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage extracts {"error": "..."} from an error body, falling back
// to the raw text.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
		Err   string `json:"err"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Err != "" {
			return e.Err
		}
	}
	return truncate(body)
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
