package browser

import (
	"context"
	"fmt"
	"time"

	core "github.com/entrhq/chromectl/pkg/browser"
	"github.com/entrhq/chromectl/pkg/tools"
)

// Sessions is the part of *browser.Manager the tools drive.
type Sessions interface {
	Launch(ctx context.Context, cfg core.LaunchConfig) (*core.LaunchResult, error)
	List() []core.SessionInfo
	HasSessions() bool
	Close(ctx context.Context, id string) (bool, error)
	Navigate(ctx context.Context, id, url string) (core.PageID, error)
	NavigatePage(ctx context.Context, id string, pageID core.PageID, url string) error
	ExecuteScriptOn(ctx context.Context, id string, pageID core.PageID, script string) (string, error)
	ScreenshotPage(ctx context.Context, id string, pageID core.PageID, path string) (string, error)
	GetPageContent(ctx context.Context, id string, pageID core.PageID) (string, error)
	CleanContent(ctx context.Context, id string, pageID core.PageID, maxLength int) (*core.CleanedHTML, error)
	Outline(ctx context.Context, id string, pageID core.PageID) (*core.Outline, error)
	Pages(ctx context.Context, id string) ([]core.PageInfo, error)
	ClosePage(ctx context.Context, id string, pageID core.PageID) error
	PrintPDF(ctx context.Context, id string, pageID core.PageID, path string) (*core.PDFResult, error)
}

var _ Sessions = (*core.Manager)(nil)

// NewTools creates every browser tool bound to sessions.
func NewTools(sessions Sessions) []tools.Tool {
	return []tools.Tool{
		NewLaunchTool(sessions),
		NewListSessionsTool(sessions),
		NewCloseSessionTool(sessions),
		NewNavigateTool(sessions),
		NewEvaluateTool(sessions),
		NewScreenshotTool(sessions),
		NewContentTool(sessions),
		NewOutlineTool(sessions),
		NewPagesTool(sessions),
		NewClosePageTool(sessions),
		NewPDFTool(sessions),
	}
}

// target selects a session and optionally one of its pages.
type target struct {
	SessionID string `json:"session_id"`
	PageID    int    `json:"page_id,omitempty"`
}

func (t target) validate() error {
	if t.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if t.PageID < 0 {
		return fmt.Errorf("page_id must be positive, got %d", t.PageID)
	}
	return nil
}

func (t target) page() core.PageID {
	return core.PageID(t.PageID)
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session id returned by launch_browser",
	}
}

func pageProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Page id within the session. Omit to use the session's oldest open page",
	}
}

// sessionTool is embedded by tools that need an existing session.
type sessionTool struct {
	sessions Sessions
}

// ShouldShow hides page tools until a session exists.
func (t sessionTool) ShouldShow() bool {
	return t.sessions.HasSessions()
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
