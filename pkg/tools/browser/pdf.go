package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrhq/chromectl/pkg/tools"
)

// PDFTool prints a page to a PDF file.
type PDFTool struct {
	sessionTool
}

// NewPDFTool creates a new PDF tool.
func NewPDFTool(sessions Sessions) *PDFTool {
	return &PDFTool{sessionTool{sessions: sessions}}
}

// Name returns the tool name.
func (t *PDFTool) Name() string {
	return "browser_pdf"
}

// Description returns the tool description.
func (t *PDFTool) Description() string {
	return "Print a page to a PDF file. Only headless sessions can print."
}

// Schema returns the tool's JSON schema.
func (t *PDFTool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(
		map[string]interface{}{
			"session_id": sessionProperty(),
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File to write the PDF to",
			},
			"page_id": pageProperty(),
		},
		[]string{"session_id", "path"},
	)
}

// Execute prints the page.
func (t *PDFTool) Execute(ctx context.Context, args json.RawMessage) (string, map[string]interface{}, error) {
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

	res, err := t.sessions.PrintPDF(ctx, input.SessionID, input.page(), input.Path)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Saved %d-page PDF (%d bytes) to %s", res.Pages, res.Bytes, res.Path),
		map[string]interface{}{"path": res.Path, "pages": res.Pages, "bytes": res.Bytes}, nil
}
