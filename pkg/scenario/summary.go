package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Run statuses.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// Summary describes a finished scenario run.
type Summary struct {
	Scenario  string        `json:"scenario"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Steps     []StepResult  `json:"steps"`
	Vars      Vars          `json:"vars,omitempty"`

	// Closed lists sessions the runner closed during cleanup
	Closed []string `json:"closed,omitempty"`
}

// StepResult records the outcome of one step.
type StepResult struct {
	Step     int                    `json:"step"`
	Label    string                 `json:"label"`
	Tool     string                 `json:"tool"`
	Passed   bool                   `json:"passed"`
	Output   string                 `json:"output,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Duration time.Duration          `json:"duration"`
}

// Passed reports whether every step passed.
func (s *Summary) Passed() bool {
	return s.Status == StatusPassed
}

// WriteJSON writes the summary to path.
func (s *Summary) WriteJSON(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenario summary: %w", err)
	}
	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write scenario summary: %w", writeErr)
	}
	return nil
}

// Report renders a short human-readable summary.
func (s *Summary) Report() string {
	var out strings.Builder
	fmt.Fprintf(&out, "Scenario: %s\n", s.Scenario)
	fmt.Fprintf(&out, "Status: %s (%s)\n\n", s.Status, s.Duration.Round(time.Millisecond))
	for _, r := range s.Steps {
		mark := "ok  "
		if !r.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(&out, "%s %d. %s", mark, r.Step, r.Label)
		if r.Error != "" {
			fmt.Fprintf(&out, ": %s", r.Error)
		}
		out.WriteString("\n")
	}
	if s.Error != "" {
		fmt.Fprintf(&out, "\nError: %s\n", s.Error)
	}
	if len(s.Closed) > 0 {
		fmt.Fprintf(&out, "\nClosed sessions: %s\n", strings.Join(s.Closed, ", "))
	}
	return out.String()
}
