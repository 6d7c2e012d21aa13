package browser

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Handle is a shared reference to one live browser connection. The registry
// owns one reference; every Lookup clones another. The connection is torn
// down when the last reference is released.
type Handle struct {
	id        string
	conn      Conn
	opts      ConnectOptions
	port      int
	pid       int32
	headless  bool
	createdAt time.Time
	logger    Logger
	// reap runs after the connection closed, with the browser pid
	reap func(pid int32)
	// unreserve hands the debugging port back once the browser is gone
	unreserve func(port int)

	refs      atomic.Int32
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	pump      *pump

	mu       sync.Mutex
	lastPage PageID
	pages    map[PageID]Page
}

func newHandle(id string, conn Conn, opts ConnectOptions, logger Logger) *Handle {
	h := &Handle{
		id:        id,
		conn:      conn,
		opts:      opts,
		port:      opts.DebugPort,
		headless:  opts.Headless,
		createdAt: time.Now(),
		logger:    logger,
		pages:     make(map[PageID]Page),
	}
	h.refs.Store(1)
	return h
}

// ID returns the session id the handle is registered under.
func (h *Handle) ID() string { return h.id }

// Conn returns the underlying connection.
func (h *Handle) Conn() Conn { return h.conn }

// Port returns the negotiated remote debugging port.
func (h *Handle) Port() int { return h.port }

// Closed reports whether the connection has been torn down.
func (h *Handle) Closed() bool { return h.closed.Load() }

// Refs returns the current reference count.
func (h *Handle) Refs() int32 { return h.refs.Load() }

// clone adds a reference. Callers must already hold one (directly or through
// the registry lock).
func (h *Handle) clone() *Handle {
	h.refs.Add(1)
	return h
}

// Release drops a reference, closing the connection when it was the last.
func (h *Handle) Release() {
	switch n := h.refs.Add(-1); {
	case n == 0:
		h.teardown()
	case n < 0:
		panic(fmt.Sprintf("browser: handle %s released too many times", h.id))
	}
}

func (h *Handle) teardown() {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		if h.pump != nil {
			h.pump.stop()
		}
		h.closeErr = h.conn.Close()
		if h.closeErr != nil {
			h.logger.Warnf("session %s: connection close: %v", h.id, h.closeErr)
		} else {
			h.logger.Debugf("session %s: connection closed", h.id)
		}
		if h.reap != nil && h.pid > 0 {
			h.reap(h.pid)
		}
		if h.unreserve != nil {
			h.unreserve(h.port)
		}
	})
}

func (h *Handle) info() SessionInfo {
	state := StateActive
	if h.Closed() {
		state = StateClosed
	}
	h.mu.Lock()
	pages := len(h.pages)
	h.mu.Unlock()
	return SessionInfo{
		ID:        h.id,
		State:     state,
		Port:      h.port,
		PID:       h.pid,
		Headless:  h.headless,
		Width:     h.opts.Width,
		Height:    h.opts.Height,
		Pages:     pages,
		CreatedAt: h.createdAt,
	}
}

// adopt assigns p a stable id, returning the existing id if p is known.
func (h *Handle) adopt(p Page) PageID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.adoptLocked(p)
}

func (h *Handle) adoptLocked(p Page) PageID {
	for id, known := range h.pages {
		if known == p {
			return id
		}
	}
	h.lastPage++
	h.pages[h.lastPage] = p
	return h.lastPage
}

// forget drops p from the arena and returns the id it had.
func (h *Handle) forget(p Page) PageID {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, known := range h.pages {
		if known == p {
			delete(h.pages, id)
			return id
		}
	}
	return 0
}

type arenaEntry struct {
	id   PageID
	page Page
}

// reconcile syncs the arena with the pages the connection reports right now
// and returns the live entries ordered by id.
func (h *Handle) reconcile() []arenaEntry {
	live := h.conn.Pages()

	h.mu.Lock()
	defer h.mu.Unlock()

	alive := make(map[Page]bool, len(live))
	for _, p := range live {
		if !p.IsClosed() {
			alive[p] = true
		}
	}
	for id, p := range h.pages {
		if !alive[p] {
			delete(h.pages, id)
		}
	}
	for _, p := range live {
		if alive[p] {
			h.adoptLocked(p)
		}
	}

	entries := make([]arenaEntry, 0, len(h.pages))
	for id, p := range h.pages {
		entries = append(entries, arenaEntry{id: id, page: p})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	return entries
}

// page resolves id against the live arena. DefaultPage picks the lowest id.
func (h *Handle) page(id PageID) (Page, PageID, error) {
	entries := h.reconcile()
	if len(entries) == 0 {
		return nil, 0, fmt.Errorf("session has no open pages")
	}
	if id == DefaultPage {
		return entries[0].page, entries[0].id, nil
	}
	for _, e := range entries {
		if e.id == id {
			return e.page, e.id, nil
		}
	}
	return nil, 0, fmt.Errorf("page %d is not open", id)
}

func (h *Handle) pageInfos(ctx context.Context) []PageInfo {
	entries := h.reconcile()
	infos := make([]PageInfo, 0, len(entries))
	for _, e := range entries {
		title, err := e.page.Title(ctx)
		if err != nil {
			title = ""
		}
		infos = append(infos, PageInfo{ID: e.id, URL: e.page.URL(), Title: title})
	}
	return infos
}
