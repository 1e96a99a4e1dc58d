package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileAllCompilesEveryBuiltinPattern(t *testing.T) {
	compiled := compileAll()
	raw := builtinPatterns()
	require.Len(t, compiled, len(raw))
	for name := range raw {
		assert.Contains(t, compiled, name)
	}
}

func TestPatternGroupsReferenceKnownPatterns(t *testing.T) {
	raw := builtinPatterns()
	for group, names := range patternGroups() {
		for _, name := range names {
			_, ok := raw[name]
			assert.True(t, ok, "group %q references unknown pattern %q", group, name)
		}
	}
}
