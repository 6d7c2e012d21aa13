package pwdriver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/chromectl/pkg/browser"
)

const eventBuffer = 256

// conn adapts one Playwright browser plus its single context to
// browser.Conn. Playwright callbacks are turned into events on a buffered
// channel; they never block Playwright's dispatcher.
type conn struct {
	browser playwright.Browser
	context playwright.BrowserContext
	events  chan browser.Event

	mu       sync.Mutex
	pages    map[playwright.Page]*page
	finished bool
	dropped  int
}

func newConn(b playwright.Browser, bctx playwright.BrowserContext) *conn {
	c := &conn{
		browser: b,
		context: bctx,
		events:  make(chan browser.Event, eventBuffer),
		pages:   make(map[playwright.Page]*page),
	}

	bctx.OnPage(func(p playwright.Page) {
		c.emit(browser.Event{Type: browser.EventPageCreated, Page: c.wrap(p)})
	})
	b.OnDisconnected(func(playwright.Browser) {
		c.emit(browser.Event{Type: browser.EventDisconnected})
		c.finish()
	})
	for _, p := range bctx.Pages() {
		c.wrap(p)
	}
	return c
}

// wrap returns the single adapter for p, creating it and hooking its
// events the first time p is seen.
func (c *conn) wrap(p playwright.Page) *page {
	c.mu.Lock()
	pg, ok := c.pages[p]
	if !ok {
		pg = &page{p: p}
		c.pages[p] = pg
	}
	c.mu.Unlock()
	if ok {
		return pg
	}

	p.OnClose(func(playwright.Page) {
		c.mu.Lock()
		delete(c.pages, p)
		c.mu.Unlock()
		c.emit(browser.Event{Type: browser.EventPageClosed, Page: pg})
	})
	p.OnLoad(func(playwright.Page) {
		c.emit(browser.Event{Type: browser.EventPageLoaded, Page: pg})
	})
	p.OnCrash(func(playwright.Page) {
		c.emit(browser.Event{Type: browser.EventPageCrashed, Page: pg})
	})
	p.OnConsole(func(msg playwright.ConsoleMessage) {
		c.emit(browser.Event{Type: browser.EventConsole, Page: pg, Level: msg.Type(), Text: msg.Text()})
	})
	return pg
}

func (c *conn) emit(ev browser.Event) {
	ev.Time = time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	select {
	case c.events <- ev:
	default:
		c.dropped++
	}
}

// finish closes the event stream exactly once.
func (c *conn) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	c.finished = true
	close(c.events)
}

func (c *conn) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := c.context.NewPage()
	if err != nil {
		return nil, err
	}
	return c.wrap(p), nil
}

func (c *conn) Pages() []browser.Page {
	live := c.context.Pages()
	pages := make([]browser.Page, 0, len(live))
	for _, p := range live {
		pages = append(pages, c.wrap(p))
	}
	return pages
}

func (c *conn) Events() <-chan browser.Event {
	return c.events
}

func (c *conn) Version() string {
	return "Chromium/" + c.browser.Version()
}

func (c *conn) Close() error {
	defer c.finish()
	ctxErr := c.context.Close()
	browserErr := c.browser.Close()
	return errors.Join(ctxErr, browserErr)
}

// page adapts playwright.Page to browser.Page.
type page struct {
	p playwright.Page
}

func (pg *page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	waitUntil := playwright.WaitUntilState("load")
	_, err := pg.p.Goto(url, playwright.PageGotoOptions{WaitUntil: &waitUntil})
	return err
}

func (pg *page) Evaluate(ctx context.Context, script string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pg.p.Evaluate(script)
}

func (pg *page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pg.p.Screenshot()
}

func (pg *page) PDF(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pg.p.PDF()
}

func (pg *page) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return pg.p.Content()
}

func (pg *page) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return pg.p.Title()
}

func (pg *page) URL() string {
	return pg.p.URL()
}

func (pg *page) IsClosed() bool {
	return pg.p.IsClosed()
}

func (pg *page) Close() error {
	return pg.p.Close()
}
