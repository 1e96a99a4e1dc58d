package synth

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// insightKeys are the output keys checked, in priority order, for the
// 1-2 line insight text a bullet renders (spec.md §4.7 leaves the exact
// output shape to each agent's declared schema, so this picks the first
// present candidate rather than assuming one fixed key across every
// domain agent).
var insightKeys = []string{"insight", "summary", "answer", "text"}

// buildBullets produces one ordered bullet per scheduled query agent,
// marking agents that never reached status=ok as "no data" (spec.md
// §7's "marking missing perspectives as 'no data'").
func buildBullets(plan *model.ExecutionPlan, byAgent map[string]*model.AgentInvocation) []model.Bullet {
	var bullets []model.Bullet
	for _, level := range plan.Levels {
		for _, scheduled := range level {
			if scheduled.Agent == nil || !scheduled.Agent.Interrogative.IsValid() {
				continue
			}
			inv := byAgent[scheduled.AgentID]
			bullets = append(bullets, model.Bullet{
				Interrogative: scheduled.Agent.Interrogative,
				AgentID:       scheduled.AgentID,
				Text:          renderInsight(inv),
			})
		}
	}

	sort.SliceStable(bullets, func(i, j int) bool {
		ri, rj := bullets[i].Interrogative.Rank(), bullets[j].Interrogative.Rank()
		if ri != rj {
			return ri < rj
		}
		return bullets[i].AgentID < bullets[j].AgentID
	})
	return bullets
}

func renderInsight(inv *model.AgentInvocation) string {
	if inv == nil || inv.Status != model.InvocationOK {
		return "no data"
	}
	for _, key := range insightKeys {
		if text, ok := inv.Output[key].(string); ok && text != "" {
			return text
		}
	}
	if len(inv.Output) == 0 {
		return "no data"
	}
	encoded, err := json.Marshal(inv.Output)
	if err != nil {
		return "no data"
	}
	return string(encoded)
}

// buildSummaryPrompt renders the bullets into the single user prompt
// for the dedicated summary LLM call, mirroring the reference's
// SynthesisController.buildMessages / buildSynthesisContext framing.
func buildSummaryPrompt(question string, bullets []model.Bullet) string {
	var b strings.Builder
	b.WriteString("You are synthesizing multi-agent query results into a short summary.\n\n")
	if question != "" {
		b.WriteString("## Question\n\n")
		b.WriteString(question)
		b.WriteString("\n\n")
	}
	b.WriteString("## Findings\n\n")
	for _, bullet := range bullets {
		fmt.Fprintf(&b, "- %s: %s\n", bullet.Interrogative, bullet.Text)
	}
	b.WriteString("\nWrite a 2-3 sentence summary of these findings. Respond with plain text, no markdown.")
	return b.String()
}

// buildVisualization appends bounds + feature set when any ok
// invocation carries a "location" field (spec.md §4.7).
func buildVisualization(ok []*model.AgentInvocation) *model.VisualizationSpec {
	var points [][2]float64 // lon, lat
	var features []map[string]any

	for _, inv := range ok {
		loc, isMap := inv.Output["location"].(map[string]any)
		if !isMap {
			continue
		}
		lat, latOK := toFloat(loc["lat"])
		lon, lonOK := toFloat(loc["lon"])
		if !latOK || !lonOK {
			continue
		}
		points = append(points, [2]float64{lon, lat})
		features = append(features, map[string]any{
			"type": "Feature",
			"geometry": map[string]any{
				"type":        "Point",
				"coordinates": []float64{lon, lat},
			},
			"properties": map[string]any{"agent_id": inv.AgentID},
		})
	}

	if len(points) == 0 {
		return nil
	}

	minLon, minLat := points[0][0], points[0][1]
	maxLon, maxLat := points[0][0], points[0][1]
	for _, p := range points[1:] {
		minLon, maxLon = math.Min(minLon, p[0]), math.Max(maxLon, p[0])
		minLat, maxLat = math.Min(minLat, p[1]), math.Max(maxLat, p[1])
	}

	return &model.VisualizationSpec{
		Bounds:   [4]float64{minLon, minLat, maxLon, maxLat},
		Features: features,
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
