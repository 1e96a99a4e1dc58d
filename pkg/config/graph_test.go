package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstack/orchestrator/pkg/model"
)

func edges(pairs ...[2]string) []model.Edge {
	out := make([]model.Edge, len(pairs))
	for i, p := range pairs {
		out[i] = model.Edge{From: p[0], To: p[1]}
	}
	return out
}

func TestValidateGraphLevels(t *testing.T) {
	tests := []struct {
		name     string
		edges    []model.Edge
		agentIDs []string
		want     [][]string
	}{
		{
			name:     "no edges, single level",
			edges:    nil,
			agentIDs: []string{"b", "a", "c"},
			want:     [][]string{{"a", "b", "c"}},
		},
		{
			name:     "single chain, two levels",
			edges:    edges([2]string{"a", "b"}),
			agentIDs: []string{"a", "b"},
			want:     [][]string{{"a"}, {"b"}},
		},
		{
			name:     "fan-out from one parent stays level 1",
			edges:    edges([2]string{"a", "b"}, [2]string{"a", "c"}),
			agentIDs: []string{"a", "b", "c"},
			want:     [][]string{{"a"}, {"b", "c"}},
		},
		{
			name:     "mixed roots and one dependent, ties broken lexicographically",
			edges:    edges([2]string{"b", "d"}),
			agentIDs: []string{"c", "b", "a", "d"},
			want:     [][]string{{"a", "b", "c"}, {"d"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateGraph(tt.edges, tt.agentIDs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateGraphRejectsDanglingEdge(t *testing.T) {
	_, err := ValidateGraph(edges([2]string{"a", "ghost"}), []string{"a"})
	require.Error(t, err)
	code, ok := model.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, model.CodeDanglingEdge, code)
}

func TestValidateGraphRejectsMultiParent(t *testing.T) {
	_, err := ValidateGraph(edges([2]string{"a", "c"}, [2]string{"b", "c"}), []string{"a", "b", "c"})
	require.Error(t, err)
	code, _ := model.CodeOf(err)
	assert.Equal(t, model.CodeMultiParent, code)
}

func TestValidateGraphRejectsMultiLevelChain(t *testing.T) {
	_, err := ValidateGraph(edges([2]string{"a", "b"}, [2]string{"b", "c"}), []string{"a", "b", "c"})
	require.Error(t, err)
	code, _ := model.CodeOf(err)
	assert.Equal(t, model.CodeMultiLevel, code)
}

func TestValidateGraphRejectsCycle(t *testing.T) {
	_, err := ValidateGraph(edges([2]string{"a", "b"}, [2]string{"b", "a"}), []string{"a", "b"})
	require.Error(t, err)
	code, _ := model.CodeOf(err)
	assert.Equal(t, model.CodeCycle, code)
}
