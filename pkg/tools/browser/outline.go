package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/chromectl/pkg/tools"
)

const maxOutlineLinks = 50

// OutlineTool summarizes a page's structure.
type OutlineTool struct {
	sessionTool
}

// NewOutlineTool creates a new outline tool.
func NewOutlineTool(sessions Sessions) *OutlineTool {
	return &OutlineTool{sessionTool{sessions: sessions}}
}

// Name returns the tool name.
func (t *OutlineTool) Name() string {
	return "browser_outline"
}

// Description returns the tool description.
func (t *OutlineTool) Description() string {
	return "Summarize a page as its title, headings and links."
}

// Schema returns the tool's JSON schema.
func (t *OutlineTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"session_id": sessionProperty(),
			"page_id":    pageProperty(),
		},
		[]string{"session_id"},
	)
}

// Execute builds the outline.
func (t *OutlineTool) Execute(ctx context.Context, args json.RawMessage) (string, map[string]interface{}, error) {
	var input target
	if err := tools.DecodeArgs(args, &input); err != nil {
		return "", nil, err
	}
	if err := input.validate(); err != nil {
		return "", nil, err
	}

	outline, err := t.sessions.Outline(ctx, input.SessionID, input.page())
	if err != nil {
		return "", nil, err
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Page: %s\n", outline.Title)

	if len(outline.Headings) > 0 {
		result.WriteString("\nHeadings:\n")
		for _, h := range outline.Headings {
			fmt.Fprintf(&result, "- %s\n", h)
		}
	}

	if len(outline.Links) > 0 {
		fmt.Fprintf(&result, "\nLinks (%d):\n", len(outline.Links))
		for i, l := range outline.Links {
			if i == maxOutlineLinks {
				fmt.Fprintf(&result, "... and %d more\n", len(outline.Links)-maxOutlineLinks)
				break
			}
			fmt.Fprintf(&result, "- [%s](%s)\n", l.Text, l.Href)
		}
	}

	return strings.TrimRight(result.String(), "\n"), map[string]interface{}{
		"title":    outline.Title,
		"headings": len(outline.Headings),
		"links":    len(outline.Links),
	}, nil
}
