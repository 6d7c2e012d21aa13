package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrhq/chromectl/pkg/tools"
)

// CloseSessionTool closes a browser session.
type CloseSessionTool struct {
	sessionTool
}

// NewCloseSessionTool creates a new close session tool.
func NewCloseSessionTool(sessions Sessions) *CloseSessionTool {
	return &CloseSessionTool{sessionTool{sessions: sessions}}
}

// Name returns the tool name.
func (t *CloseSessionTool) Name() string {
	return "close_browser"
}

// Description returns the tool description.
func (t *CloseSessionTool) Description() string {
	return "Close a browser session and terminate its browser. The session id is invalid afterwards."
}

// Schema returns the tool's JSON schema.
func (t *CloseSessionTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{"session_id": sessionProperty()},
		[]string{"session_id"},
	)
}

// Execute closes the session.
func (t *CloseSessionTool) Execute(ctx context.Context, args json.RawMessage) (string, map[string]interface{}, error) {
	var input struct {
		SessionID string `json:"session_id"`
	}
	if err := tools.DecodeArgs(args, &input); err != nil {
		return "", nil, err
	}
	if input.SessionID == "" {
		return "", nil, fmt.Errorf("session_id is required")
	}

	closed, err := t.sessions.Close(ctx, input.SessionID)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Browser session %s closed.", input.SessionID),
		map[string]interface{}{"closed": closed}, nil
}
