package agentrt

import (
	"encoding/json"
	"strings"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// repairPromptSuffix is appended verbatim to the original prompt on
// the single permitted JSON-repair retry (spec.md §4.3 step 5).
const repairPromptSuffix = "\n\nYour previous response was not valid JSON. Respond again with only a single JSON object matching the required schema, no surrounding text."

// buildPrompt constructs the deterministic prompt for one invocation:
// system_prompt + raw_input + parent_output (spec.md §4.3 step 2). The
// same inputs always produce the same string.
func buildPrompt(def *model.AgentDefinition, rawInput string, parentOutput map[string]any) string {
	var b strings.Builder
	b.WriteString(def.SystemPrompt)
	b.WriteString("\n\n")
	b.WriteString(rawInput)

	if parentOutput != nil {
		b.WriteString("\n\nParent agent output:\n")
		// Sorted-key JSON (encoding/json sorts map keys) keeps the
		// prompt byte-identical across runs with identical input.
		encoded, err := json.Marshal(parentOutput)
		if err == nil {
			b.Write(encoded)
		}
	}

	return b.String()
}

func repairPrompt(original string) string {
	return original + repairPromptSuffix
}
