package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/chromectl/pkg/tools"
)

// ListSessionsTool lists all active browser sessions.
type ListSessionsTool struct {
	sessions Sessions
}

// NewListSessionsTool creates a new list sessions tool.
func NewListSessionsTool(sessions Sessions) *ListSessionsTool {
	return &ListSessionsTool{sessions: sessions}
}

// Name returns the tool name.
func (t *ListSessionsTool) Name() string {
	return "list_browser_sessions"
}

// Description returns the tool description.
func (t *ListSessionsTool) Description() string {
	return "List all active browser sessions with their ports, head mode and page counts."
}

// Schema returns the tool's JSON schema.
func (t *ListSessionsTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(map[string]interface{}{}, nil)
}

// Execute lists all sessions.
func (t *ListSessionsTool) Execute(ctx context.Context, args json.RawMessage) (string, map[string]interface{}, error) {
	var input struct{}
	if err := tools.DecodeArgs(args, &input); err != nil {
		return "", nil, err
	}

	sessions := t.sessions.List()
	meta := map[string]interface{}{
		"count":    len(sessions),
		"sessions": sessions,
	}
	if len(sessions) == 0 {
		return "No active browser sessions.\n\nUse launch_browser to create a new session.", meta, nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Active Browser Sessions: %d\n\n", len(sessions))
	for i, s := range sessions {
		mode := "headed"
		if s.Headless {
			mode = "headless"
		}
		fmt.Fprintf(&result, "%d. %s\n   Port: %d\n   Mode: %s\n   Window: %dx%d\n   Pages: %d\n   Age: %s\n\n",
			i+1, s.ID, s.Port, mode, s.Width, s.Height, s.Pages, formatDuration(time.Since(s.CreatedAt)))
	}
	result.WriteString("Use close_browser to close a session when finished.")

	return result.String(), meta, nil
}
