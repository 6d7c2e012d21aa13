package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/chromectl/pkg/tools"
)

// PagesTool lists the open pages of a session.
type PagesTool struct {
	sessionTool
}

// NewPagesTool creates a new pages tool.
func NewPagesTool(sessions Sessions) *PagesTool {
	return &PagesTool{sessionTool{sessions: sessions}}
}

// Name returns the tool name.
func (t *PagesTool) Name() string {
	return "browser_pages"
}

// Description returns the tool description.
func (t *PagesTool) Description() string {
	return "List the open pages of a session with their ids, URLs and titles."
}

// Schema returns the tool's JSON schema.
func (t *PagesTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{"session_id": sessionProperty()},
		[]string{"session_id"},
	)
}

// Execute lists the pages.
func (t *PagesTool) Execute(ctx context.Context, args json.RawMessage) (string, map[string]interface{}, error) {
	var input struct {
		SessionID string `json:"session_id"`
	}
	if err := tools.DecodeArgs(args, &input); err != nil {
		return "", nil, err
	}
	if input.SessionID == "" {
		return "", nil, fmt.Errorf("session_id is required")
	}

	pages, err := t.sessions.Pages(ctx, input.SessionID)
	if err != nil {
		return "", nil, err
	}
	meta := map[string]interface{}{"count": len(pages), "pages": pages}
	if len(pages) == 0 {
		return fmt.Sprintf("Session %s has no open pages.", input.SessionID), meta, nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Open pages in %s: %d\n", input.SessionID, len(pages))
	for _, p := range pages {
		fmt.Fprintf(&result, "\n[%d] %s", p.ID, p.URL)
		if p.Title != "" {
			fmt.Fprintf(&result, "\n    %s", p.Title)
		}
	}
	return result.String(), meta, nil
}

// ClosePageTool closes a single page of a session.
type ClosePageTool struct {
	sessionTool
}

// NewClosePageTool creates a new close page tool.
func NewClosePageTool(sessions Sessions) *ClosePageTool {
	return &ClosePageTool{sessionTool{sessions: sessions}}
}

// Name returns the tool name.
func (t *ClosePageTool) Name() string {
	return "browser_close_page"
}

// Description returns the tool description.
func (t *ClosePageTool) Description() string {
	return "Close one page of a session. Page ids are never reused."
}

// Schema returns the tool's JSON schema.
func (t *ClosePageTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"session_id": sessionProperty(),
			"page_id": map[string]interface{}{
				"type":        "integer",
				"description": "Page id to close",
			},
		},
		[]string{"session_id", "page_id"},
	)
}

// Execute closes the page.
func (t *ClosePageTool) Execute(ctx context.Context, args json.RawMessage) (string, map[string]interface{}, error) {
	var input target
	if err := tools.DecodeArgs(args, &input); err != nil {
		return "", nil, err
	}
	if err := input.validate(); err != nil {
		return "", nil, err
	}
	if input.PageID == 0 {
		return "", nil, fmt.Errorf("page_id is required")
	}

	if err := t.sessions.ClosePage(ctx, input.SessionID, input.page()); err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Closed page %d of session %s", input.PageID, input.SessionID),
		map[string]interface{}{"page_id": input.PageID}, nil
}
