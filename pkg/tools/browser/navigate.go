package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/entrhq/chromectl/pkg/tools"
)

// NavigateTool loads a URL in a browser session.
type NavigateTool struct {
	sessionTool
}

// NewNavigateTool creates a new navigate tool.
func NewNavigateTool(sessions Sessions) *NavigateTool {
	return &NavigateTool{sessionTool{sessions: sessions}}
}

// Name returns the tool name.
func (t *NavigateTool) Name() string {
	return "browser_navigate"
}

// Description returns the tool description.
func (t *NavigateTool) Description() string {
	return "Navigate to a URL. Without page_id a new page is opened and its id returned; with page_id that page is reused."
}

// Schema returns the tool's JSON schema.
func (t *NavigateTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"session_id": sessionProperty(),
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to navigate to (must include protocol, e.g., https://example.com)",
			},
			"page_id": pageProperty(),
		},
		[]string{"session_id", "url"},
	)
}

// NavigateInput defines the input parameters.
type NavigateInput struct {
	target
	URL string `json:"url"`
}

func (t *NavigateTool) parseInput(args json.RawMessage) (*NavigateInput, error) {
	var input NavigateInput
	if err := tools.DecodeArgs(args, &input); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	if input.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if u, err := url.Parse(input.URL); err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("url must be absolute, got %q", input.URL)
	}
	return &input, nil
}

// Execute navigates.
func (t *NavigateTool) Execute(ctx context.Context, args json.RawMessage) (string, map[string]interface{}, error) {
	input, err := t.parseInput(args)
	if err != nil {
		return "", nil, err
	}

	pageID := input.page()
	if input.PageID == 0 {
		pageID, err = t.sessions.Navigate(ctx, input.SessionID, input.URL)
	} else {
		err = t.sessions.NavigatePage(ctx, input.SessionID, pageID, input.URL)
	}
	meta := map[string]interface{}{"page_id": int(pageID), "url": input.URL}
	if err != nil {
		// A page opened for a failed navigation stays open.
		if pageID != 0 {
			return "", meta, err
		}
		return "", nil, err
	}

	return fmt.Sprintf("Navigated page %d of session %s to %s", pageID, input.SessionID, input.URL), meta, nil
}

// GeneratePreview describes the navigation without performing it.
func (t *NavigateTool) GeneratePreview(ctx context.Context, args json.RawMessage) (*tools.ToolPreview, error) {
	input, err := t.parseInput(args)
	if err != nil {
		return nil, err
	}
	where := "a new page"
	if input.PageID != 0 {
		where = fmt.Sprintf("page %d", input.PageID)
	}
	return &tools.ToolPreview{
		Title:       "Navigate",
		Description: fmt.Sprintf("Open %s in %s of session %s", input.URL, where, input.SessionID),
		Metadata:    map[string]interface{}{"session_id": input.SessionID, "url": input.URL},
	}, nil
}
