package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	core "github.com/entrhq/chromectl/pkg/browser"
)

// fakeSessions records calls and serves canned results.
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]core.SessionInfo
	pages    map[string][]core.PageInfo
	nextPage core.PageID
	calls    []string
	err      error
	script   string
	cleaned  *core.CleanedHTML
	outline  *core.Outline
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sessions: make(map[string]core.SessionInfo),
		pages:    make(map[string][]core.PageInfo),
		nextPage: 1,
	}
}

func (f *fakeSessions) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeSessions) lookup(id string) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.sessions[id]; !ok {
		return &core.Error{Op: "lookup", SessionID: id, Kind: core.ErrNotFound}
	}
	return nil
}

func (f *fakeSessions) Launch(ctx context.Context, cfg core.LaunchConfig) (*core.LaunchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	id := fmt.Sprintf("sess_%d", len(f.sessions)+1)
	headless := cfg.Headless != nil && *cfg.Headless
	port := 9222 + len(f.sessions)
	f.sessions[id] = core.SessionInfo{
		ID: id, State: core.StateActive, Port: port, PID: 100, Headless: headless,
		Width: core.DefaultWidth, Height: core.DefaultHeight, CreatedAt: time.Now(),
	}
	f.record("launch %s", id)
	return &core.LaunchResult{
		ID: id, URL: fmt.Sprintf("http://127.0.0.1:%d", port), Port: port, PID: 100, Headless: headless,
	}, nil
}

func (f *fakeSessions) List() []core.SessionInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	infos := make([]core.SessionInfo, 0, len(f.sessions))
	for _, s := range f.sessions {
		infos = append(infos, s)
	}
	return infos
}

func (f *fakeSessions) HasSessions() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions) > 0
}

func (f *fakeSessions) Close(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return false, err
	}
	delete(f.sessions, id)
	f.record("close %s", id)
	return true, nil
}

func (f *fakeSessions) Navigate(ctx context.Context, id, url string) (core.PageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return 0, err
	}
	pid := f.nextPage
	f.nextPage++
	f.pages[id] = append(f.pages[id], core.PageInfo{ID: pid, URL: url})
	f.record("navigate %s %s", id, url)
	return pid, nil
}

func (f *fakeSessions) NavigatePage(ctx context.Context, id string, pageID core.PageID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return err
	}
	f.record("navigate %s page %d %s", id, pageID, url)
	return nil
}

func (f *fakeSessions) ExecuteScriptOn(ctx context.Context, id string, pageID core.PageID, script string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return "", err
	}
	f.record("evaluate %s page %d", id, pageID)
	return f.script, nil
}

func (f *fakeSessions) ScreenshotPage(ctx context.Context, id string, pageID core.PageID, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return "", err
	}
	f.record("screenshot %s page %d", id, pageID)
	return path, nil
}

func (f *fakeSessions) GetPageContent(ctx context.Context, id string, pageID core.PageID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return "", err
	}
	return "<html><body>raw</body></html>", nil
}

func (f *fakeSessions) CleanContent(ctx context.Context, id string, pageID core.PageID, maxLength int) (*core.CleanedHTML, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return nil, err
	}
	f.record("clean %s page %d max %d", id, pageID, maxLength)
	return f.cleaned, nil
}

func (f *fakeSessions) Outline(ctx context.Context, id string, pageID core.PageID) (*core.Outline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return nil, err
	}
	return f.outline, nil
}

func (f *fakeSessions) Pages(ctx context.Context, id string) ([]core.PageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return nil, err
	}
	return append([]core.PageInfo(nil), f.pages[id]...), nil
}

func (f *fakeSessions) ClosePage(ctx context.Context, id string, pageID core.PageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return err
	}
	f.record("close %s page %d", id, pageID)
	return nil
}

func (f *fakeSessions) PrintPDF(ctx context.Context, id string, pageID core.PageID, path string) (*core.PDFResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.lookup(id); err != nil {
		return nil, err
	}
	return &core.PDFResult{Path: path, Pages: 3, Bytes: 2048}, nil
}

func (f *fakeSessions) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}
