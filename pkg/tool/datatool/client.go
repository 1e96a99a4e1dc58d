// Package datatool implements the data.retrieval, data.aggregation,
// data.spatial and data.analytics tool adapters. The reference treats
// all structured-data backends as MCP servers, so this package is a
// thin naming layer over pkg/tool/mcptool's client rather than a
// separate protocol implementation.
package datatool

import (
	"github.com/fieldstack/orchestrator/pkg/tool"
	"github.com/fieldstack/orchestrator/pkg/tool/mcptool"
)

// ServerIDs maps each data.* tool to the MCP server that backs it.
// Distinct server ids let an operator scale or route each data
// backend independently even though they share one client type.
var ServerIDs = map[string]string{
	"data.retrieval":  "data-retrieval-server",
	"data.aggregation": "data-aggregation-server",
	"data.spatial":    "data-spatial-server",
	"data.analytics":  "data-analytics-server",
}

// NewAdapter builds a tool.Adapter for one data.* tool name, calling
// the MCP tool "query" on that tool's dedicated server. Data queries
// are treated as idempotent: a read-only retrieval/aggregation call is
// safe for the Broker to retry on transient failure.
func NewAdapter(client *mcptool.Client, dataToolName string) tool.Adapter {
	return &mcptool.ToolAdapter{
		Client:       client,
		ServerID:     ServerIDs[dataToolName],
		MCPToolName:  "query",
		IsIdempotent: true,
	}
}
