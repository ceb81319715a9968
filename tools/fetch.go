// Web fetch tool.
//
// Information Hiding:
// - HTTP client configuration hidden
// - Response size limiting hidden

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MaxFetchBytes caps the response body read by fetch.
const MaxFetchBytes = 1024 * 1024

// FetchTool makes HTTP GET or POST requests. Each call needs network
// permission for the target host.
type FetchTool struct {
	client  *http.Client
	timeout time.Duration
}

// NewFetchTool creates a fetch tool with the given request timeout.
func NewFetchTool(timeout time.Duration) *FetchTool {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FetchTool{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Metadata returns the tool metadata.
func (t *FetchTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "fetch",
		Description: "Fetch a URL over HTTP(S) with GET or POST and return the status and body",
		Parameters: []ToolParameter{
			{Name: "url", ParamType: "string", Description: "The http or https URL to request", Required: true},
			{Name: "method", ParamType: "string", Description: "HTTP method, GET or POST (default: GET)", Required: false},
			{Name: "body", ParamType: "string", Description: "Request body for POST requests", Required: false},
		},
		Kind: TypeFetch,
	}
}

type fetchArgs struct {
	URL    string `json:"url"`
	Method string `json:"method"`
	Body   string `json:"body"`
}

func (a fetchArgs) method() string {
	if a.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(a.Method)
}

// Validate checks the URL scheme and method.
func (t *FetchTool) Validate(args json.RawMessage) error {
	var a fetchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	u, err := url.Parse(a.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid URL: %q", a.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q: only http and https are allowed", u.Scheme)
	}
	if m := a.method(); m != http.MethodGet && m != http.MethodPost {
		return fmt.Errorf("unsupported method %q: only GET and POST are allowed", m)
	}
	return nil
}

// Execute makes the request.
func (t *FetchTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a fetchArgs
	if err := decodeArgs("fetch", args, &a); err != nil {
		return FailureResult(err), nil
	}

	var body io.Reader
	if a.method() == http.MethodPost {
		body = strings.NewReader(a.Body)
	}
	req, err := http.NewRequestWithContext(ctx, a.method(), a.URL, body)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to create request: %w", err)), nil
	}
	req.Header.Set("User-Agent", "smith")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ToolResult{}, ctx.Err()
		}
		var uerr *url.Error
		if errors.As(err, &uerr) && uerr.Timeout() {
			return FailureResultf("request timed out after %s", t.timeout), nil
		}
		return FailureResult(fmt.Errorf("request failed: %w", err)), nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchBytes+1))
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read response body: %w", err)), nil
	}
	text := string(data)
	if len(data) > MaxFetchBytes {
		text = string(data[:MaxFetchBytes]) + fmt.Sprintf("\n\n[Response truncated at %d bytes]", MaxFetchBytes)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return SuccessResult(fmt.Sprintf("Status: %s\n\n%s", resp.Status, text)), nil
	}
	return FailureResultf("HTTP error: %s\n\n%s", resp.Status, text), nil
}
