package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/entrhq/chromectl/pkg/tools"
)

const maxPreviewScript = 200

// EvaluateTool executes JavaScript in a page.
type EvaluateTool struct {
	sessionTool
}

// NewEvaluateTool creates a new evaluate tool.
func NewEvaluateTool(sessions Sessions) *EvaluateTool {
	return &EvaluateTool{sessionTool{sessions: sessions}}
}

// Name returns the tool name.
func (t *EvaluateTool) Name() string {
	return "browser_evaluate"
}

// Description returns the tool description.
func (t *EvaluateTool) Description() string {
	return "Evaluate a JavaScript expression in a page and return its value as JSON. For statements, wrap them in an IIFE: (() => { /* code */ })()"
}

// Schema returns the tool's JSON schema.
func (t *EvaluateTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"session_id": sessionProperty(),
			"script": map[string]interface{}{
				"type":        "string",
				"description": "JavaScript expression to evaluate",
			},
			"page_id": pageProperty(),
		},
		[]string{"session_id", "script"},
	)
}

// EvaluateInput defines the input parameters.
type EvaluateInput struct {
	target
	Script string `json:"script"`
}

func (t *EvaluateTool) parseInput(args json.RawMessage) (*EvaluateInput, error) {
	var input EvaluateInput
	if err := tools.DecodeArgs(args, &input); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	if input.Script == "" {
		return nil, fmt.Errorf("script is required")
	}
	return &input, nil
}

// Execute evaluates the script.
func (t *EvaluateTool) Execute(ctx context.Context, args json.RawMessage) (string, map[string]interface{}, error) {
	input, err := t.parseInput(args)
	if err != nil {
		return "", nil, err
	}

	result, err := t.sessions.ExecuteScriptOn(ctx, input.SessionID, input.page(), input.Script)
	if err != nil {
		return "", nil, err
	}
	return result, map[string]interface{}{"result": result}, nil
}

// GeneratePreview shows the script that would run.
func (t *EvaluateTool) GeneratePreview(ctx context.Context, args json.RawMessage) (*tools.ToolPreview, error) {
	input, err := t.parseInput(args)
	if err != nil {
		return nil, err
	}
	script := truncate(input.Script, maxPreviewScript)
	return &tools.ToolPreview{
		Title:       "Execute JavaScript",
		Description: fmt.Sprintf("Execute JavaScript in session %s", input.SessionID),
		Content:     script,
		Metadata:    map[string]interface{}{"session_id": input.SessionID},
	}, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
