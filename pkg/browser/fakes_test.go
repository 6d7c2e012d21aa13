package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDriver hands out in-memory connections.
type fakeDriver struct {
	mu         sync.Mutex
	conns      []*fakeConn
	opts       []ConnectOptions
	connectErr error
	closed     bool

	// evaluate is copied to every new connection
	evaluate func(script string) (any, error)
}

func (d *fakeDriver) Connect(ctx context.Context, opts ConnectOptions) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connectErr != nil {
		return nil, d.connectErr
	}
	c := newFakeConn()
	c.evaluate = d.evaluate
	d.conns = append(d.conns, c)
	d.opts = append(d.opts, opts)
	return c, nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDriver) lastOptions() ConnectOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts[len(d.opts)-1]
}

func (d *fakeDriver) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func (d *fakeDriver) connCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDriver) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// fakeConn is a browser connection whose pages live in memory.
type fakeConn struct {
	mu         sync.Mutex
	pages      []*fakePage
	events     chan Event
	ended      bool
	closeCalls int
	newPageErr error
	gotoErr    error
	evaluate   func(script string) (any, error)
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan Event, 64)}
}

func (c *fakeConn) NewPage(ctx context.Context) (Page, error) {
	c.mu.Lock()
	if c.newPageErr != nil {
		c.mu.Unlock()
		return nil, c.newPageErr
	}
	p := &fakePage{conn: c, url: BlankURL, gotoErr: c.gotoErr}
	c.pages = append(c.pages, p)
	c.mu.Unlock()

	c.emit(Event{Type: EventPageCreated, Page: p})
	return p, nil
}

func (c *fakeConn) Pages() []Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	var pages []Page
	for _, p := range c.pages {
		if !p.IsClosed() {
			pages = append(pages, p)
		}
	}
	return pages
}

func (c *fakeConn) Events() <-chan Event {
	return c.events
}

func (c *fakeConn) Version() string {
	return "HeadlessChrome/120.0.0.0"
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closeCalls++
	c.mu.Unlock()
	c.end()
	return nil
}

// emit delivers ev unless the stream has ended.
func (c *fakeConn) emit(ev Event) {
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

// end closes the event stream the way a dying browser does.
func (c *fakeConn) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ended {
		c.ended = true
		close(c.events)
	}
}

func (c *fakeConn) closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

func (c *fakeConn) page(i int) *fakePage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages[i]
}

type fakePage struct {
	conn *fakeConn

	mu         sync.Mutex
	url        string
	title      string
	content    string
	closed     bool
	gotoErr    error
	screenshot []byte
	shotErr    error
	pdf        []byte
}

func (p *fakePage) Goto(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gotoErr != nil {
		return p.gotoErr
	}
	p.url = url
	return nil
}

func (p *fakePage) Evaluate(ctx context.Context, script string) (any, error) {
	if p.conn.evaluate != nil {
		return p.conn.evaluate(script)
	}
	return nil, fmt.Errorf("ReferenceError: %s is not defined", script)
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shotErr != nil {
		return nil, p.shotErr
	}
	if p.screenshot == nil {
		return []byte("\x89PNG\r\n\x1a\n"), nil
	}
	return p.screenshot, nil
}

func (p *fakePage) PDF(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pdf == nil {
		return nil, errors.New("PrintToPDF is not implemented")
	}
	return p.pdf, nil
}

func (p *fakePage) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content, nil
}

func (p *fakePage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.conn.emit(Event{Type: EventPageClosed, Page: p})
	return nil
}

func (p *fakePage) setContent(title, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
	p.content = content
}

// fakeProber treats every port as free, the way an idle machine does before
// any browser binds one, and reports the head mode the driver launched with.
type fakeProber struct {
	driver *fakeDriver

	mu         sync.Mutex
	inspectErr error
	reaped     []int32
}

func (p *fakeProber) FreePort(start, end int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if start > end {
		return 0, fmt.Errorf("no available ports in range %d-%d", start, end)
	}
	return start, nil
}

func (p *fakeProber) Inspect(ctx context.Context, port int) (*Endpoint, error) {
	p.mu.Lock()
	err := p.inspectErr
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	opts := p.driver.lastOptions()
	return &Endpoint{Port: port, PID: 4242, Headless: opts.Headless, Browser: "Chrome/120.0.0.0"}, nil
}

func (p *fakeProber) Reap(ctx context.Context, pid int32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reaped = append(p.reaped, pid)
	return nil
}

func (p *fakeProber) reapedPIDs() []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int32(nil), p.reaped...)
}

func newTestManager(t *testing.T, opts Options) (*Manager, *fakeDriver) {
	t.Helper()
	d := &fakeDriver{evaluate: func(script string) (any, error) {
		if script == "1+1" {
			return 2, nil
		}
		return nil, fmt.Errorf("ReferenceError: %s is not defined", script)
	}}
	if opts.Prober == nil {
		opts.Prober = &fakeProber{driver: d}
	}
	m, err := NewManager(d, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m, d
}

func launch(t *testing.T, m *Manager, cfg LaunchConfig) *LaunchResult {
	t.Helper()
	res, err := m.Launch(context.Background(), cfg)
	require.NoError(t, err)
	return res
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
