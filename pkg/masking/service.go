package masking

import "log/slog"

// Service applies the built-in regex pattern set and any registered
// structural Maskers to tool results, agent outputs, and log lines.
// It is always on: every value it touches is masked the same way
// regardless of which tool or tenant produced it. Created once at
// startup and safe for concurrent use.
type Service struct {
	patterns    map[string]*CompiledPattern
	codeMaskers map[string]Masker
}

// NewService compiles the built-in pattern set and registers the
// given structural maskers.
func NewService(maskers ...Masker) *Service {
	s := &Service{
		patterns:    compileAll(),
		codeMaskers: make(map[string]Masker, len(maskers)),
	}
	for _, m := range maskers {
		s.codeMaskers[m.Name()] = m
	}
	slog.Info("masking service initialized",
		"compiled_patterns", len(s.patterns),
		"code_maskers", len(s.codeMaskers))
	return s
}

// Mask applies every structural masker whose AppliesTo reports a
// match, then every built-in regex pattern, and returns the fully
// redacted result. Structural maskers run first since they need an
// intact payload shape (e.g. JSON) to find sensitive keys; regex
// patterns then sweep whatever they leave behind. On any masker
// failure the original content is returned for that masker's pass,
// never a panic.
func (s *Service) Mask(content string) string {
	if content == "" {
		return content
	}

	masked := content
	for _, m := range s.codeMaskers {
		if m.AppliesTo(masked) {
			masked = safeMask(m, masked)
		}
	}
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}

	return masked
}

// MaskGroup applies only the named subset of built-in patterns (see
// patternGroups) and no structural maskers. Useful for call sites
// that need a fast, narrow pass, such as a single log line rather
// than a full tool result payload.
func (s *Service) MaskGroup(content, group string) string {
	names, ok := patternGroups()[group]
	if !ok {
		return content
	}
	masked := content
	for _, name := range names {
		if p, ok := s.patterns[name]; ok {
			masked = p.Regex.ReplaceAllString(masked, p.Replacement)
		}
	}
	return masked
}

func safeMask(m Masker, content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("masking: masker panicked, returning unmasked content for this pass",
				"masker", m.Name(), "panic", r)
			result = content
		}
	}()
	return m.Mask(content)
}
