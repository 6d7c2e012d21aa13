package scenario

import (
	"fmt"

	"github.com/gobwas/glob"
)

// ToolMatcher decides whether a step may call a tool.
type ToolMatcher struct {
	patterns []glob.Glob
}

// NewToolMatcher compiles the allowed tool patterns.
func NewToolMatcher(allowed []string) (*ToolMatcher, error) {
	m := &ToolMatcher{}
	for _, pattern := range allowed {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed tool pattern '%s': %w", pattern, err)
		}
		m.patterns = append(m.patterns, g)
	}
	return m, nil
}

// IsAllowed reports whether name matches an allowed pattern. With no
// patterns every tool is allowed.
func (m *ToolMatcher) IsAllowed(name string) bool {
	if len(m.patterns) == 0 {
		return true
	}
	for _, g := range m.patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// StepFailure explains why a step did not pass.
type StepFailure struct {
	Step    int
	Label   string
	Message string
	Err     error
}

func (e *StepFailure) Error() string {
	msg := fmt.Sprintf("step %d (%s): %s", e.Step, e.Label, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StepFailure) Unwrap() error {
	return e.Err
}
