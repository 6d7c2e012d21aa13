package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrhq/chromectl/pkg/tools"
)

// ScreenshotTool captures a page as a PNG file.
type ScreenshotTool struct {
	sessionTool
}

// NewScreenshotTool creates a new screenshot tool.
func NewScreenshotTool(sessions Sessions) *ScreenshotTool {
	return &ScreenshotTool{sessionTool{sessions: sessions}}
}

// Name returns the tool name.
func (t *ScreenshotTool) Name() string {
	return "browser_screenshot"
}

// Description returns the tool description.
func (t *ScreenshotTool) Description() string {
	return "Capture a screenshot of a page and write it to a PNG file."
}

// Schema returns the tool's JSON schema.
func (t *ScreenshotTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"session_id": sessionProperty(),
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File to write the PNG image to",
			},
			"page_id": pageProperty(),
		},
		[]string{"session_id", "path"},
	)
}

// Execute captures the screenshot.
func (t *ScreenshotTool) Execute(ctx context.Context, args json.RawMessage) (string, map[string]interface{}, error) {
	var input struct {
		target
		Path string `json:"path"`
	}
	if err := tools.DecodeArgs(args, &input); err != nil {
		return "", nil, err
	}
	if err := input.validate(); err != nil {
		return "", nil, err
	}
	if input.Path == "" {
		return "", nil, fmt.Errorf("path is required")
	}

	path, err := t.sessions.ScreenshotPage(ctx, input.SessionID, input.page(), input.Path)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Screenshot saved to %s", path), map[string]interface{}{"path": path}, nil
}
