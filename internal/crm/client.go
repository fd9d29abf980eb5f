// Package crm is the outbound side of the relay: every call to the CRM API
// goes through Client, which injects the bearer token and version header and
// folds every outcome into a Result.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aman-churiwal/crm-relay/internal/circuitbreaker"
	"github.com/aman-churiwal/crm-relay/internal/metrics"
	"golang.org/x/oauth2"
)

// API versions pinned per endpoint family.
const (
	ContactsVersion  = "2021-07-28"
	CalendarsVersion = "2021-04-15"
)

const maxResponseBytes = 1 << 20

// Result is the outcome of one CRM call. Success is true only when the CRM
// answered with the exact status the operation expects; on failure Err says
// why and Data holds whatever body came back.
type Result struct {
	Success    bool
	StatusCode int
	Data       json.RawMessage
	Err        error
}

// UpstreamError describes a CRM response with an unexpected status.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Expected   int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("crm %s: unexpected status %d (want %d)", e.Operation, e.StatusCode, e.Expected)
}

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Breaker   *circuitbreaker.CircuitBreaker
	Metrics   *metrics.Metrics
}

type Client struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
	breaker   *circuitbreaker.CircuitBreaker
	metrics   *metrics.Metrics
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}

	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		timeout:   opts.Timeout,
		transport: opts.Transport,
		breaker:   opts.Breaker,
		metrics:   opts.Metrics,
	}
}

type call struct {
	operation string
	method    string
	path      string
	query     url.Values
	body      interface{}
	version   string
	expect    int
	token     string
}

// httpClient returns a client that authenticates with accessToken.
func (c *Client) httpClient(accessToken string) *http.Client {
	return &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   c.transport,
		},
	}
}

func (c *Client) do(ctx context.Context, cl call) Result {
	start := time.Now()
	var result Result

	run := func() error {
		result = c.send(ctx, cl)
		// a caller that gave up says nothing about the CRM's health
		if ctx.Err() != nil {
			return nil
		}
		// only transport failures and 5xx count against the breaker
		if result.Err != nil && (result.StatusCode == 0 || result.StatusCode >= 500) {
			return result.Err
		}
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(run)
	} else {
		err = run()
	}

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		result = Result{Success: false, Err: err}
	}

	c.metrics.RecordUpstream(cl.operation, result.Success, time.Since(start))
	if !result.Success {
		log.Printf("CRM %s failed: status=%d err=%v", cl.operation, result.StatusCode, result.Err)
	}

	return result
}

func (c *Client) send(ctx context.Context, cl call) Result {
	endpoint := c.baseURL + cl.path
	if len(cl.query) > 0 {
		endpoint += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return Result{Err: fmt.Errorf("crm %s: encode body: %w", cl.operation, err)}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, body)
	if err != nil {
		return Result{Err: fmt.Errorf("crm %s: build request: %w", cl.operation, err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Version", cl.version)
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient(cl.token).Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("crm %s: %w", cl.operation, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{StatusCode: resp.StatusCode, Err: fmt.Errorf("crm %s: read body: %w", cl.operation, err)}
	}

	result := Result{StatusCode: resp.StatusCode}
	if json.Valid(data) {
		result.Data = data
	}

	if resp.StatusCode != cl.expect {
		result.Err = &UpstreamError{Operation: cl.operation, StatusCode: resp.StatusCode, Expected: cl.expect}
		return result
	}

	result.Success = true
	return result
}
