// Package browsertest provides an in-memory browser driver for testing code
// built on browser.Manager without starting Chromium.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/entrhq/chromectl/pkg/browser"
)

// PID is the process id Prober reports for every browser.
const PID int32 = 4242

// Driver hands out in-memory connections.
type Driver struct {
	mu    sync.Mutex
	conns []*Conn
	opts  []browser.ConnectOptions

	// Evaluate answers page scripts. By default "1+1" yields 2 and every
	// other script fails like an undefined reference.
	Evaluate func(script string) (any, error)
}

// NewDriver creates a driver with the default evaluator.
func NewDriver() *Driver {
	return &Driver{Evaluate: func(script string) (any, error) {
		if script == "1+1" {
			return 2, nil
		}
		return nil, fmt.Errorf("ReferenceError: %s is not defined", script)
	}}
}

// Connect implements browser.Driver.
func (d *Driver) Connect(ctx context.Context, opts browser.ConnectOptions) (browser.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &Conn{events: make(chan browser.Event, 64), evaluate: d.Evaluate}
	d.conns = append(d.conns, c)
	d.opts = append(d.opts, opts)
	return c, nil
}

// Close implements browser.Driver.
func (d *Driver) Close() error {
	return nil
}

// Conn returns the i-th connection made.
func (d *Driver) Conn(i int) *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func (d *Driver) lastOptions() browser.ConnectOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.opts) == 0 {
		return browser.ConnectOptions{}
	}
	return d.opts[len(d.opts)-1]
}

// Conn is a browser connection whose pages live in memory.
type Conn struct {
	mu       sync.Mutex
	pages    []*Page
	events   chan browser.Event
	ended    bool
	evaluate func(script string) (any, error)
}

// NewPage implements browser.Conn.
func (c *Conn) NewPage(ctx context.Context) (browser.Page, error) {
	c.mu.Lock()
	p := &Page{conn: c, url: browser.BlankURL}
	c.pages = append(c.pages, p)
	c.mu.Unlock()

	c.Emit(browser.Event{Type: browser.EventPageCreated, Page: p})
	return p, nil
}

// Pages implements browser.Conn.
func (c *Conn) Pages() []browser.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	var pages []browser.Page
	for _, p := range c.pages {
		if !p.IsClosed() {
			pages = append(pages, p)
		}
	}
	return pages
}

// Events implements browser.Conn.
func (c *Conn) Events() <-chan browser.Event {
	return c.events
}

// Version implements browser.Conn.
func (c *Conn) Version() string {
	return "HeadlessChrome/120.0.0.0"
}

// Close implements browser.Conn.
func (c *Conn) Close() error {
	c.End()
	return nil
}

// Emit delivers ev unless the stream has ended.
func (c *Conn) Emit(ev browser.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return
	}
	select {
	case c.events <- ev:
	default:
	}
}

// End closes the event stream the way a crashed browser does.
func (c *Conn) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ended {
		c.ended = true
		close(c.events)
	}
}

// Page returns the i-th page opened on the connection.
func (c *Conn) Page(i int) *Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages[i]
}

// Page is an in-memory page.
type Page struct {
	conn *Conn

	mu      sync.Mutex
	url     string
	title   string
	content string
	closed  bool
}

// Goto implements browser.Page.
func (p *Page) Goto(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	return nil
}

// Evaluate implements browser.Page.
func (p *Page) Evaluate(ctx context.Context, script string) (any, error) {
	if p.conn.evaluate == nil {
		return nil, errors.New("evaluation unavailable")
	}
	return p.conn.evaluate(script)
}

// Screenshot implements browser.Page.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

// PDF implements browser.Page.
func (p *Page) PDF(ctx context.Context) ([]byte, error) {
	return nil, errors.New("PrintToPDF is not implemented")
}

// Content implements browser.Page.
func (p *Page) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content, nil
}

// Title implements browser.Page.
func (p *Page) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

// URL implements browser.Page.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// IsClosed implements browser.Page.
func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close implements browser.Page.
func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.conn.Emit(browser.Event{Type: browser.EventPageClosed, Page: p})
	return nil
}

// SetContent replaces the page's title and markup.
func (p *Page) SetContent(title, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
	p.content = content
}

// Prober treats every port as free, since nothing binds them, and reports
// the head mode the driver launched with.
type Prober struct {
	driver *Driver
}

// FreePort implements browser.Prober.
func (p *Prober) FreePort(start, end int) (int, error) {
	if start > end {
		return 0, fmt.Errorf("no available ports in range %d-%d", start, end)
	}
	return start, nil
}

// Inspect implements browser.Prober.
func (p *Prober) Inspect(ctx context.Context, port int) (*browser.Endpoint, error) {
	opts := p.driver.lastOptions()
	return &browser.Endpoint{Port: port, PID: PID, Headless: opts.Headless, Browser: "Chrome/120.0.0.0"}, nil
}

// Reap implements browser.Prober.
func (p *Prober) Reap(ctx context.Context, pid int32) error {
	return nil
}

// NewManager creates a manager backed by a fresh Driver and shuts it down
// when the test ends. opts.Prober is replaced by the fake prober.
func NewManager(t testing.TB, opts browser.Options) (*browser.Manager, *Driver) {
	t.Helper()
	d := NewDriver()
	opts.Prober = &Prober{driver: d}
	m, err := browser.NewManager(d, opts)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m, d
}
