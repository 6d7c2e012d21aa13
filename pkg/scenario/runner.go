package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/chromectl/pkg/browser"
	"github.com/entrhq/chromectl/pkg/tools"
)

const (
	launchTool = "launch_browser"
	closeTool  = "close_browser"

	cleanupTimeout = 30 * time.Second
)

// Runner executes scenarios against a tool registry.
type Runner struct {
	registry *tools.Registry
	log      browser.Logger
}

// NewRunner creates a runner. A nil logger discards log output.
func NewRunner(registry *tools.Registry, log browser.Logger) *Runner {
	if log == nil {
		log = browser.NopLogger()
	}
	return &Runner{registry: registry, log: log}
}

// Run executes every step of sc in order and stops at the first failure.
// Sessions launched by the scenario are closed before Run returns. The
// returned error is non-nil only when the scenario failed; the summary is
// always populated.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Summary, error) {
	summary := &Summary{
		Scenario:  sc.Name,
		Status:    StatusPassed,
		StartTime: time.Now(),
		Vars:      make(Vars),
	}

	if sc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sc.Timeout)
		defer cancel()
	}

	matcher, err := NewToolMatcher(sc.AllowedTools)
	if err != nil {
		return r.finish(ctx, summary, nil, err)
	}

	r.log.Infof("Running scenario %s (%d steps)", sc.Name, len(sc.Steps))

	var launched []string
	for i, step := range sc.Steps {
		result, sessionID, stepErr := r.runStep(ctx, matcher, summary.Vars, i+1, step)
		summary.Steps = append(summary.Steps, result)
		if sessionID != "" {
			launched = append(launched, sessionID)
		}
		if stepErr != nil {
			return r.finish(ctx, summary, launched, stepErr)
		}
	}

	return r.finish(ctx, summary, launched, nil)
}

func (r *Runner) runStep(ctx context.Context, matcher *ToolMatcher, vars Vars, n int, step Step) (StepResult, string, error) {
	result := StepResult{Step: n, Label: step.Label(), Tool: step.Tool}
	fail := func(msg string, err error) (StepResult, string, error) {
		failure := &StepFailure{Step: n, Label: result.Label, Message: msg, Err: err}
		result.Error = failure.Error()
		r.log.Warnf("Scenario step failed: %v", failure)
		return result, "", failure
	}

	if err := ctx.Err(); err != nil {
		return fail("not started", err)
	}
	if !matcher.IsAllowed(step.Tool) {
		return fail(fmt.Sprintf("tool '%s' is not allowed", step.Tool), nil)
	}

	args, err := encodeArgs(vars, step.Args)
	if err != nil {
		return fail("bad arguments", err)
	}

	r.log.Debugf("Step %d: %s %s", n, step.Tool, args)
	start := time.Now()
	output, meta, execErr := r.registry.Execute(ctx, step.Tool, args)
	result.Duration = time.Since(start)
	result.Output = output
	result.Metadata = meta

	// A launch is tracked even when later checks fail so it is still cleaned up.
	var sessionID string
	if execErr == nil && step.Tool == launchTool {
		sessionID, _ = meta["session_id"].(string)
	}

	switch {
	case step.ExpectError && execErr == nil:
		_, _, err := fail("expected an error", nil)
		return result, sessionID, err
	case step.ExpectError:
		result.Passed = true
		result.Error = execErr.Error()
		return result, "", nil
	case execErr != nil:
		return fail("tool failed", execErr)
	}

	if step.Expect != "" && !strings.Contains(output, step.Expect) {
		_, _, err := fail(fmt.Sprintf("output does not contain %q", step.Expect), nil)
		return result, sessionID, err
	}

	for name, key := range step.Save {
		value, ok := meta[key]
		if !ok {
			_, _, err := fail(fmt.Sprintf("result has no %q to save as %s", key, name), nil)
			return result, sessionID, err
		}
		vars[name] = value
	}

	result.Passed = true
	return result, sessionID, nil
}

// finish closes launched sessions and completes the summary.
func (r *Runner) finish(ctx context.Context, summary *Summary, launched []string, runErr error) (*Summary, error) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, id := range launched {
		args, _ := json.Marshal(map[string]string{"session_id": id})
		_, _, err := r.registry.Execute(cleanupCtx, closeTool, args)
		switch {
		case err == nil:
			summary.Closed = append(summary.Closed, id)
		case errors.Is(err, browser.ErrNotFound):
			// closed by the scenario itself
		default:
			r.log.Warnf("Failed to close session %s after scenario: %v", id, err)
		}
	}

	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)
	if runErr != nil {
		summary.Status = StatusFailed
		summary.Error = runErr.Error()
		r.log.Errorf("Scenario %s failed: %v", summary.Scenario, runErr)
		return summary, runErr
	}
	r.log.Infof("Scenario %s passed in %s", summary.Scenario, summary.Duration)
	return summary, nil
}

// Preview describes what each step would do without running anything.
// Variables saved by earlier steps are shown as placeholders.
func (r *Runner) Preview(ctx context.Context, sc *Scenario) (string, error) {
	matcher, err := NewToolMatcher(sc.AllowedTools)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Scenario: %s\n", sc.Name)
	for i, step := range sc.Steps {
		tool, ok := r.registry.Get(step.Tool)
		if !ok {
			return "", fmt.Errorf("step %d: %w: %s", i+1, tools.ErrUnknownTool, step.Tool)
		}
		if !matcher.IsAllowed(step.Tool) {
			return "", fmt.Errorf("step %d: tool '%s' is not allowed", i+1, step.Tool)
		}

		args, err := encodeArgs(Vars{}.placeholders(step.Args), step.Args)
		if err != nil {
			return "", fmt.Errorf("step %d: %w", i+1, err)
		}

		fmt.Fprintf(&out, "\n%d. %s\n", i+1, step.Label())
		// Placeholders can fail a tool's own argument checks, so a
		// preview error falls back to the raw call.
		if p, ok := tool.(tools.Previewable); ok {
			if preview, err := p.GeneratePreview(ctx, args); err == nil {
				fmt.Fprintf(&out, "   %s\n", preview.Description)
				if preview.Content != "" {
					fmt.Fprintf(&out, "   %s\n", strings.ReplaceAll(preview.Content, "\n", "\n   "))
				}
				continue
			}
		}
		fmt.Fprintf(&out, "   %s %s\n", step.Tool, args)
	}
	return out.String(), nil
}

func encodeArgs(vars Vars, args map[string]interface{}) (json.RawMessage, error) {
	if len(args) == 0 {
		return json.RawMessage(`{}`), nil
	}
	resolved, err := vars.Substitute(args)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}
	return data, nil
}
