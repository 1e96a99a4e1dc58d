package datatool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldstack/orchestrator/pkg/tool/mcptool"
)

func TestNewAdapterBindsDedicatedServerPerDataTool(t *testing.T) {
	client := mcptool.NewClient("test-agent", "0.0.0")

	for toolName, serverID := range ServerIDs {
		a := NewAdapter(client, toolName)
		ta, ok := a.(*mcptool.ToolAdapter)
		if assert.True(t, ok) {
			assert.Equal(t, serverID, ta.ServerID)
			assert.Equal(t, "query", ta.MCPToolName)
			assert.True(t, ta.Idempotent())
		}
	}
}
