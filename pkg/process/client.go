// Package process implements the client side of the text-processing server's
// /process endpoint.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultEndpoint is where the local processing server listens unless configured otherwise.
const DefaultEndpoint = "http://127.0.0.1:5000/process"

// Request is the JSON body sent to the endpoint.
type Request struct {
	Text string `json:"text"`
}

// Result is a decoded response from the endpoint.
type Result struct {
	// Text is what gets displayed: the response field, or the whole body as text.
	Text string
	// HasResponse reports whether the body carried a non-empty response field.
	HasResponse bool
	// Raw is the body exactly as received.
	Raw []byte
}

// Client posts text to a processing endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// New returns a Client for endpointURL. An empty endpointURL uses DefaultEndpoint.
func New(endpointURL string, opts ...Option) *Client {
	if endpointURL == "" {
		endpointURL = DefaultEndpoint
	}
	c := &Client{
		endpoint:   endpointURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Process sends text in a single POST and decodes the reply. Failures are
// returned as *TransportError, *NetworkError or *ParseError.
func (c *Client) Process(ctx context.Context, text string) (*Result, error) {
	body, err := json.Marshal(Request{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused; the body is not inspected.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &NetworkError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	return decode(raw)
}

// decode renders a response body. A non-empty "response" member wins; anything
// else is shown as the compact JSON text of the whole value.
func decode(raw []byte) (*Result, error) {
	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &ParseError{Err: err}
	}

	res := &Result{Raw: raw}
	parsed := gjson.ParseBytes(raw)
	if parsed.IsObject() {
		if field := parsed.Get("response"); truthy(field) {
			res.HasResponse = true
			if field.Type == gjson.String {
				res.Text = field.Str
				return res, nil
			}
			text, err := compact(field.Raw)
			if err != nil {
				return nil, err
			}
			res.Text = text
			return res, nil
		}
	}

	text, err := compact(string(raw))
	if err != nil {
		return nil, err
	}
	res.Text = text
	return res, nil
}

func compact(raw string) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return "", &ParseError{Err: err}
	}
	return buf.String(), nil
}

// truthy reports whether a response member is worth showing on its own.
// Missing, null, false, zero and empty-string values fall back to the whole body.
func truthy(v gjson.Result) bool {
	if !v.Exists() {
		return false
	}
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	default:
		return true
	}
}
