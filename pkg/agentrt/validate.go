package agentrt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fieldstack/orchestrator/pkg/model"
)

// parseOutput decodes raw as a single JSON object. It rejects arrays,
// scalars, and trailing garbage after the object, matching "structured
// output (JSON-shaped object)" (spec.md §4.3 step 5).
func parseOutput(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing content after JSON object")
	}
	return out, nil
}

// validateOutput checks out against def's declared schema (spec.md
// §4.3 step 6): every required key present, no keys beyond the
// schema, and the hard cap on total keys.
func validateOutput(def *model.AgentDefinition, out map[string]any) error {
	if len(out) > model.MaxOutputKeys {
		return model.NewError(model.CodeOutputValidation,
			fmt.Sprintf("agent %q output has %d keys, exceeding the cap of %d", def.AgentID, len(out), model.MaxOutputKeys))
	}

	for _, key := range def.RequiredKeys {
		if _, ok := out[key]; !ok {
			return model.NewError(model.CodeOutputValidation,
				fmt.Sprintf("agent %q output is missing required key %q", def.AgentID, key))
		}
	}

	for key := range out {
		if _, declared := def.OutputSchema[key]; !declared {
			return model.NewError(model.CodeOutputValidation,
				fmt.Sprintf("agent %q output has undeclared key %q", def.AgentID, key))
		}
	}

	return nil
}
