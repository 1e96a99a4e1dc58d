// Package llmtool implements the "llm" tool adapter: a gRPC client to
// an LLM completion service, mirroring the reference's grpc sidecar
// client but generalized to the generic tool.Adapter contract.
package llmtool

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/fieldstack/orchestrator/pkg/model"
	"github.com/fieldstack/orchestrator/pkg/tool"
)

// completeMethod is the full gRPC method name of the completion
// service's unary RPC. The service takes and returns a
// google.protobuf.Struct so the client needs no generated stubs beyond
// the well-known-types already shipped by google.golang.org/protobuf.
const completeMethod = "/fieldstack.llm.v1.LLMService/Complete"

// Client implements tool.Adapter for the "llm" tool by calling a
// completion service over plaintext gRPC. The service is expected to
// run as a sidecar or on localhost, matching the reference's
// GRPCLLMClient; if it is ever deployed across a network boundary this
// must be upgraded to TLS.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient dials addr. Dialing is lazy (grpc.NewClient does not block
// on connection), so construction never fails on a cold backend.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("llmtool: failed to create client for %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Idempotent reports that completion requests may be retried by the
// Broker; the completion service is expected to be side-effect free.
func (c *Client) Idempotent() bool { return true }

// Invoke sends params (system_prompt, raw_input, parent_output,
// allowed_tools, ...) as a protobuf Struct and returns the response
// fields (text, tool_calls, usage, ...) as a plain map.
func (c *Client) Invoke(ctx context.Context, params map[string]any, inv tool.Invocation) (map[string]any, error) {
	req, err := structpb.NewStruct(params)
	if err != nil {
		return nil, model.Wrap(model.CodeToolFailed, "llmtool: invalid request params", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, completeMethod, req, resp); err != nil {
		return nil, model.Wrap(model.CodeToolFailed, "llmtool: completion call failed", err)
	}

	return resp.AsMap(), nil
}
