package browser

import (
	"context"
	"encoding/json"
	"fmt"

	core "github.com/entrhq/chromectl/pkg/browser"
	"github.com/entrhq/chromectl/pkg/tools"
)

// LaunchTool starts a new browser session.
type LaunchTool struct {
	sessions Sessions
}

// NewLaunchTool creates a new launch tool.
func NewLaunchTool(sessions Sessions) *LaunchTool {
	return &LaunchTool{sessions: sessions}
}

// Name returns the tool name.
func (t *LaunchTool) Name() string {
	return "launch_browser"
}

// Description returns the tool description.
func (t *LaunchTool) Description() string {
	return "Launch a new Chromium browser session with its own remote debugging port. Returns the session id used by every other browser tool."
}

// Schema returns the tool's JSON schema.
func (t *LaunchTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"headless": map[string]interface{}{
				"type":        "boolean",
				"description": "Run without a visible window. Default: false",
			},
			"width": map[string]interface{}{
				"type":        "integer",
				"description": "Window width in pixels. Default: 1920",
			},
			"height": map[string]interface{}{
				"type":        "integer",
				"description": "Window height in pixels. Default: 1080",
			},
			"extra_flags": map[string]interface{}{
				"type":        "boolean",
				"description": "Drop the default browser flags and pass only args",
			},
			"args": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Extra browser command-line arguments",
			},
		},
		nil,
	)
}

// Execute launches the browser.
func (t *LaunchTool) Execute(ctx context.Context, args json.RawMessage) (string, map[string]interface{}, error) {
	var cfg core.LaunchConfig
	if err := tools.DecodeArgs(args, &cfg); err != nil {
		return "", nil, err
	}

	res, err := t.sessions.Launch(ctx, cfg)
	if err != nil {
		return "", nil, err
	}

	mode := "headed"
	if res.Headless {
		mode = "headless"
	}
	output := fmt.Sprintf(`Browser session launched

Session Details:
- ID: %s
- Mode: %s
- Debugging port: %d
- URL: %s`, res.ID, mode, res.Port, res.URL)

	return output, map[string]interface{}{
		"session_id": res.ID,
		"port":       res.Port,
		"pid":        res.PID,
		"headless":   res.Headless,
		"url":        res.URL,
	}, nil
}
