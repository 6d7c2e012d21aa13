package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// withPage looks up the session, resolves the target page and runs fn on
// it. The registry lock is only held inside Lookup.
func (m *Manager) withPage(ctx context.Context, op, id string, pageID PageID, fn func(ctx context.Context, p Page) error) (err error) {
	ctx, done := m.observe(ctx, op, id)
	defer func() { done(err) }()

	h, err := m.registry.Lookup(id)
	if err != nil {
		return newError(op, id, ErrNotFound, nil)
	}
	defer h.Release()

	p, resolved, err := h.page(pageID)
	if err != nil {
		return newError(op, id, ErrNoActivePage, err)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("browser.page_id", int(resolved)))
	return fn(ctx, p)
}

// Navigate opens a new page in the session and loads url in it, returning
// the new page's id. A page whose navigation fails stays open.
func (m *Manager) Navigate(ctx context.Context, id, url string) (pageID PageID, err error) {
	ctx, done := m.observe(ctx, "navigate", id)
	defer func() { done(err) }()

	h, err := m.registry.Lookup(id)
	if err != nil {
		return 0, newError("navigate", id, ErrNotFound, nil)
	}
	defer h.Release()

	if !m.policy.Allows(url) {
		return 0, errorf("navigate", id, ErrNavigationDenied, "%s", url)
	}

	page, err := h.conn.NewPage(ctx)
	if err != nil {
		return 0, newError("navigate", id, ErrConnection, fmt.Errorf("failed to create page: %w", err))
	}
	pageID = h.adopt(page)

	if err := page.Goto(ctx, url); err != nil {
		return pageID, newError("navigate", id, ErrConnection, fmt.Errorf("failed to navigate page %d: %w", pageID, err))
	}
	return pageID, nil
}

// NavigatePage loads url in an existing page.
func (m *Manager) NavigatePage(ctx context.Context, id string, pageID PageID, url string) error {
	return m.withPage(ctx, "navigate", id, pageID, func(ctx context.Context, p Page) error {
		if !m.policy.Allows(url) {
			return errorf("navigate", id, ErrNavigationDenied, "%s", url)
		}
		if err := p.Goto(ctx, url); err != nil {
			return newError("navigate", id, ErrConnection, fmt.Errorf("failed to navigate: %w", err))
		}
		return nil
	})
}

// ExecuteScript evaluates script in the session's default page and returns
// the result as JSON text.
func (m *Manager) ExecuteScript(ctx context.Context, id, script string) (string, error) {
	return m.ExecuteScriptOn(ctx, id, DefaultPage, script)
}

// ExecuteScriptOn evaluates script in the given page.
func (m *Manager) ExecuteScriptOn(ctx context.Context, id string, pageID PageID, script string) (string, error) {
	var result string
	err := m.withPage(ctx, "evaluate", id, pageID, func(ctx context.Context, p Page) error {
		value, err := p.Evaluate(ctx, script)
		if err != nil {
			return newError("evaluate", id, ErrConnection, fmt.Errorf("failed to execute script: %w", err))
		}
		data, err := json.Marshal(value)
		if err != nil {
			return newError("evaluate", id, ErrSerialization, err)
		}
		result = string(data)
		return nil
	})
	return result, err
}

// Screenshot captures the default page and writes the image to path.
func (m *Manager) Screenshot(ctx context.Context, id, path string) (string, error) {
	return m.ScreenshotPage(ctx, id, DefaultPage, path)
}

// ScreenshotPage captures the given page and writes the image to path.
func (m *Manager) ScreenshotPage(ctx context.Context, id string, pageID PageID, path string) (string, error) {
	err := m.withPage(ctx, "screenshot", id, pageID, func(ctx context.Context, p Page) error {
		var err error
		if path, err = m.outputPath("screenshot", id, path); err != nil {
			return err
		}
		buf, err := p.Screenshot(ctx)
		if err != nil {
			return newError("screenshot", id, ErrConnection, fmt.Errorf("failed to take screenshot: %w", err))
		}
		if err := os.WriteFile(path, buf, 0644); err != nil {
			return newError("screenshot", id, ErrIO, fmt.Errorf("failed to write screenshot: %w", err))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// GetContent returns the serialized markup of the default page.
func (m *Manager) GetContent(ctx context.Context, id string) (string, error) {
	return m.GetPageContent(ctx, id, DefaultPage)
}

// GetPageContent returns the serialized markup of the given page.
func (m *Manager) GetPageContent(ctx context.Context, id string, pageID PageID) (string, error) {
	var content string
	err := m.withPage(ctx, "content", id, pageID, func(ctx context.Context, p Page) error {
		var err error
		content, err = p.Content(ctx)
		if err != nil {
			return newError("content", id, ErrConnection, fmt.Errorf("failed to get content: %w", err))
		}
		return nil
	})
	return content, err
}

// CleanContent returns the page markup with scripts, styles and noise
// removed, truncated to maxLength characters.
func (m *Manager) CleanContent(ctx context.Context, id string, pageID PageID, maxLength int) (*CleanedHTML, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	var cleaned *CleanedHTML
	err := m.withPage(ctx, "clean_content", id, pageID, func(ctx context.Context, p Page) error {
		raw, err := p.Content(ctx)
		if err != nil {
			return newError("clean_content", id, ErrConnection, fmt.Errorf("failed to get content: %w", err))
		}
		cleaned, err = CleanHTML(raw, maxLength)
		if err != nil {
			return newError("clean_content", id, ErrSerialization, err)
		}
		return nil
	})
	return cleaned, err
}

// Outline returns the title, headings and links of a page.
func (m *Manager) Outline(ctx context.Context, id string, pageID PageID) (*Outline, error) {
	var outline *Outline
	err := m.withPage(ctx, "outline", id, pageID, func(ctx context.Context, p Page) error {
		raw, err := p.Content(ctx)
		if err != nil {
			return newError("outline", id, ErrConnection, fmt.Errorf("failed to get content: %w", err))
		}
		outline, err = outlineOf(raw)
		if err != nil {
			return newError("outline", id, ErrSerialization, err)
		}
		return nil
	})
	return outline, err
}

func outlineOf(markup string) (*Outline, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	outline := &Outline{
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		Headings: []string{},
		Links:    []Link{},
	}
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			outline.Headings = append(outline.Headings, text)
		}
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href = strings.TrimSpace(href); href == "" {
			return
		}
		outline.Links = append(outline.Links, Link{Text: strings.TrimSpace(s.Text()), Href: href})
	})
	return outline, nil
}

// PrintPDF renders a page to PDF at path. Chromium only prints in headless
// mode.
func (m *Manager) PrintPDF(ctx context.Context, id string, pageID PageID, path string) (*PDFResult, error) {
	var result *PDFResult
	err := m.withPage(ctx, "pdf", id, pageID, func(ctx context.Context, p Page) error {
		var err error
		if path, err = m.outputPath("pdf", id, path); err != nil {
			return err
		}
		buf, err := p.PDF(ctx)
		if err != nil {
			return newError("pdf", id, ErrConnection, fmt.Errorf("failed to print page: %w", err))
		}
		if err := os.WriteFile(path, buf, 0644); err != nil {
			return newError("pdf", id, ErrIO, fmt.Errorf("failed to write pdf: %w", err))
		}
		pages, err := api.PageCountFile(path)
		if err != nil {
			return newError("pdf", id, ErrSerialization, fmt.Errorf("browser produced an unreadable pdf: %w", err))
		}
		result = &PDFResult{Path: path, Pages: pages, Bytes: len(buf)}
		return nil
	})
	return result, err
}

// Pages lists the session's live pages ordered by id.
func (m *Manager) Pages(ctx context.Context, id string) (infos []PageInfo, err error) {
	ctx, done := m.observe(ctx, "pages", id)
	defer func() { done(err) }()

	h, err := m.registry.Lookup(id)
	if err != nil {
		return nil, newError("pages", id, ErrNotFound, nil)
	}
	defer h.Release()
	return h.pageInfos(ctx), nil
}

// ClosePage closes one page of a session.
func (m *Manager) ClosePage(ctx context.Context, id string, pageID PageID) error {
	if pageID == DefaultPage {
		return errorf("close_page", id, ErrConfiguration, "an explicit page id is required")
	}
	return m.withPage(ctx, "close_page", id, pageID, func(ctx context.Context, p Page) error {
		if err := p.Close(); err != nil {
			return newError("close_page", id, ErrConnection, fmt.Errorf("failed to close page %d: %w", pageID, err))
		}
		return nil
	})
}
