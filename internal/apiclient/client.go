// Package apiclient is the HTTP client used to reach the backend API.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout bounds every request made through a Client.
const DefaultTimeout = 10 * time.Second

// RequestHook may inspect or replace an outgoing request. Returning an error
// aborts the request and hands the error to the response hooks.
type RequestHook func(*http.Request) (*http.Request, error)

// ResponseHook is a pair of callbacks run on every completed request. On
// success OnResponse runs; on failure OnError runs and its result becomes the
// error seen by the caller. Either callback may be nil.
type ResponseHook struct {
	OnResponse func(*Response) (*Response, error)
	OnError    func(error) error
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Data returns the body decoded as JSON, or as a string if it is not valid
// JSON. An empty body yields nil.
func (r *Response) Data() any {
	if r == nil || len(r.Body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return string(r.Body)
	}
	return v
}

// Client issues requests against a fixed base URL.
type Client struct {
	baseURL string
	header  http.Header
	hc      *http.Client

	mu            sync.RWMutex
	requestHooks  []RequestHook
	responseHooks []ResponseHook
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Its Jar is cleared so
// cookies are never sent.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		cp.Jar = nil
		c.hc = &cp
	}
}

// New returns a Client for baseURL with a 10s timeout, no cookie jar and a
// default JSON content type.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		header:  http.Header{"Content-Type": []string{"application/json"}},
		hc:      &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the URL every request path is appended to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.hc.Timeout
}

// UseRequest appends a request hook.
func (c *Client) UseRequest(h RequestHook) {
	c.mu.Lock()
	c.requestHooks = append(c.requestHooks, h)
	c.mu.Unlock()
}

// UseResponse appends a response hook.
func (c *Client) UseResponse(h ResponseHook) {
	c.mu.Lock()
	c.responseHooks = append(c.responseHooks, h)
	c.mu.Unlock()
}

// HookCount reports how many request and response hooks are installed.
func (c *Client) HookCount() (request, response int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.requestHooks), len(c.responseHooks)
}

// Get issues a GET for path and decodes the JSON body into a T.
func Get[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	if _, err := c.Do(ctx, http.MethodGet, path, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Do sends a request with no body. A 2xx body is decoded into out when out
// is non-nil. Non-2xx responses and round-trip failures are returned as
// *TransportError before the response hooks see them.
func (c *Client) Do(ctx context.Context, method, path string, out any) (*Response, error) {
	c.mu.RLock()
	reqHooks := append([]RequestHook(nil), c.requestHooks...)
	respHooks := append([]ResponseHook(nil), c.responseHooks...)
	c.mu.RUnlock()

	resp, err := c.roundTrip(ctx, method, path, reqHooks)
	if err == nil && out != nil && len(resp.Body) > 0 {
		if decErr := json.Unmarshal(resp.Body, out); decErr != nil {
			resp, err = nil, fmt.Errorf("decoding response from %s: %w", path, decErr)
		}
	}
	return runResponseHooks(respHooks, resp, err)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, hooks []RequestHook) (*Response, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = append([]string(nil), v...)
	}
	for _, h := range hooks {
		if req, err = h(req); err != nil {
			return nil, err
		}
	}

	httpResp, err := c.hc.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Timeout: c.hc.Timeout, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Timeout: c.hc.Timeout, Err: fmt.Errorf("reading body: %w", err)}
	}
	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Method: method, URL: url, Timeout: c.hc.Timeout, Response: resp}
	}
	return resp, nil
}

func runResponseHooks(hooks []ResponseHook, resp *Response, err error) (*Response, error) {
	for _, h := range hooks {
		if err == nil {
			if h.OnResponse != nil {
				resp, err = h.OnResponse(resp)
			}
			continue
		}
		if h.OnError != nil {
			err = h.OnError(err)
			if err == nil {
				// A hook that recovers without a response leaves nothing to return.
				resp = nil
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
