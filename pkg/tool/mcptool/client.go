// Package mcptool implements the entity_nlp, geocode, web_search and
// vector_search tool adapters: each is modeled as a call to a distinct
// MCP server behind a uniform client, mirroring the reference's pkg/mcp
// client which routes every non-LLM tool call through MCP.
package mcptool

import (
	"context"
	"fmt"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fieldstack/orchestrator/pkg/model"
	"github.com/fieldstack/orchestrator/pkg/tool"
)

// Client manages one MCP session per server id and is shared by every
// ToolAdapter backed by this package (and by pkg/tool/datatool, which
// treats structured-data backends the same way).
type Client struct {
	appName    string
	appVersion string

	mu       sync.RWMutex
	sessions map[string]*mcpsdk.ClientSession
}

// NewClient constructs a Client. appName/appVersion identify this
// process to each MCP server's handshake.
func NewClient(appName, appVersion string) *Client {
	return &Client{
		appName:    appName,
		appVersion: appVersion,
		sessions:   make(map[string]*mcpsdk.ClientSession),
	}
}

// Connect establishes (or replaces) the session for serverID over the
// given transport.
func (c *Client) Connect(ctx context.Context, serverID string, transport mcpsdk.Transport) error {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    c.appName,
		Version: c.appVersion,
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcptool: connect to %q: %w", serverID, err)
	}

	c.mu.Lock()
	c.sessions[serverID] = session
	c.mu.Unlock()
	return nil
}

// CallTool invokes toolName on serverID with args and returns the
// result's structured content as a plain map.
func (c *Client) CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (map[string]any, error) {
	c.mu.RLock()
	session, ok := c.sessions[serverID]
	c.mu.RUnlock()
	if !ok {
		return nil, model.NewError(model.CodeToolFailed, fmt.Sprintf("mcptool: no session for server %q", serverID))
	}

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: toolName, Arguments: args})
	if err != nil {
		return nil, model.Wrap(model.CodeToolFailed, fmt.Sprintf("mcptool: call %s.%s failed", serverID, toolName), err)
	}
	if result.IsError {
		return nil, model.NewError(model.CodeToolFailed, fmt.Sprintf("mcptool: %s.%s reported an error result", serverID, toolName))
	}

	if obj, ok := result.StructuredContent.(map[string]any); ok {
		return obj, nil
	}

	out := make(map[string]any, len(result.Content))
	for i, block := range result.Content {
		if text, ok := block.(*mcpsdk.TextContent); ok {
			out[fmt.Sprintf("content_%d", i)] = text.Text
		}
	}
	return out, nil
}

// ToolAdapter implements tool.Adapter for a single symbolic tool name
// backed by one MCP server, e.g. geocode -> server "geocode-server".
type ToolAdapter struct {
	Client       *Client
	ServerID     string
	MCPToolName  string
	IsIdempotent bool
}

func (a *ToolAdapter) Idempotent() bool { return a.IsIdempotent }

func (a *ToolAdapter) Invoke(ctx context.Context, params map[string]any, _ tool.Invocation) (map[string]any, error) {
	return a.Client.CallTool(ctx, a.ServerID, a.MCPToolName, params)
}
