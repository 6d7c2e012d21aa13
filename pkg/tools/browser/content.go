package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	core "github.com/entrhq/chromectl/pkg/browser"
	"github.com/entrhq/chromectl/pkg/tools"
)

// ContentTool returns a page's markup.
type ContentTool struct {
	sessionTool
}

// NewContentTool creates a new content tool.
func NewContentTool(sessions Sessions) *ContentTool {
	return &ContentTool{sessionTool{sessions: sessions}}
}

// Name returns the tool name.
func (t *ContentTool) Name() string {
	return "browser_content"
}

// Description returns the tool description.
func (t *ContentTool) Description() string {
	return `Get the HTML of a page. With clean=true scripts, styles and presentation attributes are stripped and the result is capped at max_length characters.`
}

// Schema returns the tool's JSON schema.
func (t *ContentTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"session_id": sessionProperty(),
			"page_id":    pageProperty(),
			"clean": map[string]interface{}{
				"type":        "boolean",
				"description": "Strip noise from the markup. Default: false",
			},
			"max_length": map[string]interface{}{
				"type":        "integer",
				"description": fmt.Sprintf("Maximum characters of cleaned markup. Default: %d", core.DefaultMaxLength),
			},
		},
		[]string{"session_id"},
	)
}

// ContentInput defines the input parameters.
type ContentInput struct {
	target
	Clean     bool `json:"clean,omitempty"`
	MaxLength int  `json:"max_length,omitempty"`
}

// Execute fetches the content.
func (t *ContentTool) Execute(ctx context.Context, args json.RawMessage) (string, map[string]interface{}, error) {
	var input ContentInput
	if err := tools.DecodeArgs(args, &input); err != nil {
		return "", nil, err
	}
	if err := input.validate(); err != nil {
		return "", nil, err
	}
	if input.MaxLength < 0 {
		return "", nil, fmt.Errorf("max_length must not be negative")
	}

	if !input.Clean {
		content, err := t.sessions.GetPageContent(ctx, input.SessionID, input.page())
		if err != nil {
			return "", nil, err
		}
		return content, map[string]interface{}{"length": len(content)}, nil
	}

	cleaned, err := t.sessions.CleanContent(ctx, input.SessionID, input.page(), input.MaxLength)
	if err != nil {
		return "", nil, err
	}

	var result strings.Builder
	if cleaned.Title != "" {
		fmt.Fprintf(&result, "Title: %s\n", cleaned.Title)
	}
	if cleaned.Description != "" {
		fmt.Fprintf(&result, "Description: %s\n", cleaned.Description)
	}
	if result.Len() > 0 {
		result.WriteString("\n")
	}
	result.WriteString(cleaned.HTML)
	if cleaned.Truncated {
		result.WriteString("\n\n[Content truncated]")
	}

	return result.String(), map[string]interface{}{
		"title":     cleaned.Title,
		"length":    len(cleaned.HTML),
		"truncated": cleaned.Truncated,
	}, nil
}
