// Package plan implements the Plan Builder: a pure, deterministic
// transform from a Config Store Plan snapshot into a fully resolved
// ExecutionPlan that the Scheduler can run and that gets embedded into
// the Job for reproducible re-runs and audits.
package plan

import (
	"fmt"
	"sort"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// Build resolves plan's level assignment (agent ids only) into a full
// ExecutionPlan by attaching each ScheduledAgent's AgentDefinition and
// dependency parent id. It performs no I/O and is safe to call
// concurrently; given identical inputs it returns a bit-identical plan.
func Build(p *model.Plan, agents map[string]*model.AgentDefinition) (*model.ExecutionPlan, error) {
	parentOf := make(map[string]string, len(p.Edges))
	for _, e := range p.Edges {
		parentOf[e.To] = e.From
	}

	levels := make([]model.Level, len(p.Levels))
	for i, ids := range p.Levels {
		sorted := append([]string(nil), ids...)
		sort.Strings(sorted)

		level := make(model.Level, 0, len(sorted))
		for _, id := range sorted {
			def, ok := agents[id]
			if !ok {
				return nil, model.NewError(model.CodeBadReference,
					fmt.Sprintf("plan builder: agent %q referenced by plan has no definition", id))
			}
			level = append(level, model.ScheduledAgent{
				AgentID:  id,
				ParentID: parentOf[id],
				Agent:    def,
			})
		}
		levels[i] = level
	}

	return &model.ExecutionPlan{
		PlaybookID: p.PlaybookID,
		GraphID:    p.GraphID,
		Class:      p.Class,
		Levels:     levels,
	}, nil
}
