package scenario

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of tool calls.
type Scenario struct {
	// Name identifies the scenario in logs and summaries
	Name string `yaml:"name" json:"name"`

	// Timeout bounds the whole run. Zero means no limit.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// AllowedTools restricts which tools steps may call. Entries are glob
	// patterns such as "browser_*". Empty allows every tool.
	AllowedTools []string `yaml:"allowed_tools" json:"allowed_tools"`

	// Steps run in order; the first failing step ends the run
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is one tool call.
type Step struct {
	Name string `yaml:"name" json:"name,omitempty"`
	Tool string `yaml:"tool" json:"tool"`

	// Args are passed to the tool as JSON after variable substitution
	Args map[string]interface{} `yaml:"args" json:"args,omitempty"`

	// Save maps a variable name to a key of the tool's result metadata
	Save map[string]string `yaml:"save" json:"save,omitempty"`

	// Expect must appear in the tool's text result
	Expect string `yaml:"expect" json:"expect,omitempty"`

	// ExpectError makes the step pass only when the tool fails
	ExpectError bool `yaml:"expect_error" json:"expect_error,omitempty"`
}

// Label returns the step name, falling back to its tool.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Tool
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a YAML scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// Validate validates the scenario.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	if _, err := NewToolMatcher(s.AllowedTools); err != nil {
		return err
	}

	defined := make(map[string]bool)
	for i, step := range s.Steps {
		if step.Tool == "" {
			return fmt.Errorf("step %d: tool is required", i+1)
		}
		if step.ExpectError && (step.Expect != "" || len(step.Save) > 0) {
			return fmt.Errorf("step %d: expect_error cannot be combined with expect or save", i+1)
		}
		for _, name := range referencedVars(step.Args) {
			if !defined[name] {
				return fmt.Errorf("step %d: variable %q is used before it is saved", i+1, name)
			}
		}
		for name, key := range step.Save {
			if !validVarName(name) {
				return fmt.Errorf("step %d: invalid variable name %q", i+1, name)
			}
			if key == "" {
				return fmt.Errorf("step %d: save %q needs a metadata key", i+1, name)
			}
			defined[name] = true
		}
	}
	return nil
}
