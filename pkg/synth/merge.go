package synth

import (
	"sort"
	"time"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// semanticFields are the raw output keys promoted to top-level
// ResultArtifact fields when present (spec.md §4.7).
var semanticFields = []string{"location", "timestamp", "category"}

// promoteSemanticFields resolves conflicts on location/timestamp/category
// across ok using (1) confidence if present, (2) deterministic
// agent-id ordering — exactly spec.md §4.7's precedence.
func promoteSemanticFields(artifact *model.ResultArtifact, ok []*model.AgentInvocation) {
	for _, key := range semanticFields {
		winner := pickWinner(ok, key)
		if winner == nil {
			continue
		}
		value := winner.Output[key]
		switch key {
		case "location":
			if loc, isMap := value.(map[string]any); isMap {
				artifact.Location = loc
			}
		case "timestamp":
			if ts, ok := toTime(value); ok {
				artifact.Timestamp = ts
			}
		case "category":
			if cat, isStr := value.(string); isStr {
				artifact.Category = cat
			}
		}
	}
}

// pickWinner returns the invocation whose Output[key] should win, or
// nil if no ok invocation set key.
func pickWinner(ok []*model.AgentInvocation, key string) *model.AgentInvocation {
	var candidates []*model.AgentInvocation
	for _, inv := range ok {
		if _, present := inv.Output[key]; present {
			candidates = append(candidates, inv)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ci, hasI := confidenceOf(candidates[i])
		cj, hasJ := confidenceOf(candidates[j])
		if hasI && hasJ && ci != cj {
			return ci > cj
		}
		if hasI != hasJ {
			return hasI
		}
		return candidates[i].AgentID < candidates[j].AgentID
	})
	return candidates[0]
}

func confidenceOf(inv *model.AgentInvocation) (float64, bool) {
	raw, present := inv.Output["confidence"]
	if !present {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func toTime(v any) (*time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return &t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return nil, false
		}
		return &parsed, true
	default:
		return nil, false
	}
}
