// Package transport performs authenticated HTTPS calls against the provider
// API and decodes the response envelope.
//
// The transport never retries and never classifies. It distinguishes three
// outcomes: a decoded response (whatever its status), a network failure and
// an unreadable body. Only the first carries information about the API's
// error surface.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/randalmurphal/errscout/pkg/errscout/classify"
)

// DefaultBaseURL is the Cloudflare v4 API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// maxBodySnippet bounds the body excerpt kept on parse errors.
const maxBodySnippet = 512

// Kind classifies transport failures.
type Kind int

const (
	// KindNetwork covers connection failures and timeouts.
	KindNetwork Kind = iota

	// KindParse covers bodies that are not a JSON envelope.
	KindParse
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error is a failure to complete a request.
type Error struct {
	Kind   Kind
	Method string
	Path   string
	Status int    // set for KindParse
	Body   string // first bytes of the body, set for KindParse
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind == KindParse {
		return fmt.Sprintf("%s %s: unreadable response (HTTP %d): %v", e.Method, e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a timeout.
func (e *Error) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// Request is one API call.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Headers map[string]string
}

// Response is a decoded provider response.
type Response struct {
	Status   int
	Envelope classify.Envelope
	Raw      []byte

	// Opaque is true when a 2xx body was not a JSON envelope (for example a
	// raw KV value). The envelope is synthesised as a success carrying the
	// raw body as a JSON string.
	Opaque bool
}

// Doer performs requests. *Client implements it; tests substitute fakes.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// Client is an HTTP client with Bearer auth and a base URL.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a Client. An empty baseURL selects DefaultBaseURL.
func New(baseURL, token string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		userAgent: "errscout",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Doer = (*Client)(nil)

// Do sends the request and decodes the envelope. Non-2xx statuses are not
// errors here; they come back in Response.Status for the classifier.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	fullURL := c.baseURL + r.Path
	if len(r.Query) > 0 {
		fullURL += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Method: r.Method, Path: r.Path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Method: r.Method, Path: r.Path, Err: fmt.Errorf("read body: %w", err)}
	}

	return decode(r, resp.StatusCode, raw)
}

func decode(r Request, status int, raw []byte) (*Response, error) {
	out := &Response{Status: status, Raw: raw}

	var env classify.Envelope
	err := json.Unmarshal(raw, &env)
	if err == nil && looksLikeEnvelope(raw) {
		out.Envelope = env
		return out, nil
	}

	if status >= 200 && status < 300 {
		quoted, _ := json.Marshal(string(raw))
		out.Envelope = classify.Envelope{Success: true, Result: quoted}
		out.Opaque = true
		return out, nil
	}

	if err == nil {
		err = errors.New("body is not a response envelope")
	}
	snippet := string(raw)
	if len(snippet) > maxBodySnippet {
		snippet = snippet[:maxBodySnippet]
	}
	return nil, &Error{Kind: KindParse, Method: r.Method, Path: r.Path, Status: status, Body: snippet, Err: err}
}

// looksLikeEnvelope reports whether raw is a JSON object with a success field.
func looksLikeEnvelope(raw []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	_, ok := probe["success"]
	return ok
}
