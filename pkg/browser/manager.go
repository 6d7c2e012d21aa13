package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/entrhq/chromectl/pkg/security/workspace"
)

// Options configures a Manager.
type Options struct {
	// Defaults fill the nil fields of every LaunchConfig
	Defaults LaunchConfig

	// PortRangeStart and PortRangeEnd bound the remote debugging ports
	// handed to new browsers
	PortRangeStart int
	PortRangeEnd   int

	// CommandTimeout is passed to the driver; zero waits indefinitely
	CommandTimeout time.Duration

	// AllowedURLs and DeniedURLs are glob patterns checked by Navigate
	AllowedURLs []string
	DeniedURLs  []string

	// OutputDir confines screenshot and PDF paths when set. Relative paths
	// are resolved against it.
	OutputDir string

	// OutputWhitelist names extra directories writable besides OutputDir
	OutputWhitelist []string

	Logger  Logger
	Metrics *Metrics
	Prober  Prober
}

// Manager owns the session registry and runs every session operation.
// Create one with NewManager and stop it with Shutdown.
type Manager struct {
	driver   Driver
	registry *Registry
	opts     Options
	logger   Logger
	metrics  *Metrics
	policy   *URLPolicy
	prober   Prober
	files    *workspace.Guard

	mu     sync.Mutex
	closed bool

	// portMu guards ports, the debugging ports handed to launches in
	// flight and to live sessions
	portMu sync.Mutex
	ports  map[int]struct{}
}

// NewManager creates a session manager that launches browsers through
// driver.
func NewManager(driver Driver, opts Options) (*Manager, error) {
	if driver == nil {
		return nil, fmt.Errorf("browser driver is required")
	}
	policy, err := NewURLPolicy(opts.AllowedURLs, opts.DeniedURLs)
	if err != nil {
		return nil, newError("new manager", "", ErrConfiguration, err)
	}
	if opts.PortRangeStart == 0 {
		opts.PortRangeStart = DefaultPortRangeStart
	}
	if opts.PortRangeEnd == 0 {
		opts.PortRangeEnd = DefaultPortRangeEnd
	}
	if opts.PortRangeStart > opts.PortRangeEnd {
		return nil, errorf("new manager", "", ErrConfiguration,
			"port range start %d is after end %d", opts.PortRangeStart, opts.PortRangeEnd)
	}

	var files *workspace.Guard
	if opts.OutputDir != "" {
		files, err = workspace.NewGuard(opts.OutputDir)
		if err != nil {
			return nil, newError("new manager", "", ErrConfiguration, err)
		}
		for _, dir := range opts.OutputWhitelist {
			if err := files.AddWhitelist(dir); err != nil {
				return nil, newError("new manager", "", ErrConfiguration, err)
			}
		}
	} else if len(opts.OutputWhitelist) > 0 {
		return nil, errorf("new manager", "", ErrConfiguration, "output whitelist requires an output directory")
	}

	m := &Manager{
		driver:   driver,
		registry: NewRegistry(),
		opts:     opts,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		policy:   policy,
		prober:   opts.Prober,
		files:    files,
		ports:    make(map[int]struct{}),
	}
	if m.logger == nil {
		m.logger = nopLogger{}
	}
	if m.prober == nil {
		m.prober = SystemProber{}
	}
	if files != nil {
		m.logger.Infof("screenshots and PDFs confined to %s (also allowed: %v)", files.Dir(), files.Whitelist())
	}
	return m, nil
}

// Launch starts a browser, registers it as a new session and returns its
// id and negotiated debugging port.
func (m *Manager) Launch(ctx context.Context, cfg LaunchConfig) (res *LaunchResult, err error) {
	ctx, done := m.observe(ctx, "launch", "")
	defer func() { done(err) }()

	if m.isClosed() {
		return nil, newError("launch", "", ErrClosed, nil)
	}

	opts, err := m.connectOptions(cfg)
	if err != nil {
		return nil, newError("launch", "", ErrConfiguration, err)
	}

	port, err := m.reservePort()
	if err != nil {
		return nil, newError("launch", "", ErrConnection, err)
	}
	opts.DebugPort = port

	conn, err := m.driver.Connect(ctx, opts)
	if err != nil {
		m.releasePort(port)
		return nil, newError("launch", "", ErrConnection, fmt.Errorf("failed to launch browser: %w", err))
	}

	endpoint, err := m.prober.Inspect(ctx, port)
	if err != nil {
		_ = conn.Close()
		m.releasePort(port)
		return nil, newError("launch", "", ErrConnection, err)
	}

	id := newSessionID()
	h := newHandle(id, conn, opts, m.logger)
	h.port = port
	h.pid = endpoint.PID
	h.headless = endpoint.Headless
	h.reap = m.reap
	h.unreserve = m.releasePort

	if len(h.reconcile()) == 0 {
		page, err := conn.NewPage(ctx)
		if err != nil {
			h.Release()
			return nil, newError("launch", id, ErrConnection, fmt.Errorf("failed to create page: %w", err))
		}
		h.adopt(page)
	}

	p := newPump(h, m.metrics, m.evict)
	if err := m.registry.Register(id, h); err != nil {
		h.Release()
		return nil, newError("launch", id, ErrSessionExists, nil)
	}
	p.start()
	m.metrics.sessionOpened()

	// Shutdown may have drained the registry while this launch was in
	// flight.
	if m.isClosed() {
		if m.registry.RemoveIf(id, h) {
			m.metrics.sessionClosed()
			h.Release()
		}
		return nil, newError("launch", id, ErrClosed, nil)
	}

	m.logger.Infof("session %s launched (port=%d pid=%d headless=%t %dx%d %s)",
		id, h.port, h.pid, h.headless, opts.Width, opts.Height, conn.Version())

	return &LaunchResult{
		ID:       id,
		URL:      BlankURL,
		Port:     h.port,
		PID:      h.pid,
		Headless: h.headless,
	}, nil
}

// connectOptions merges cfg over the manager defaults and validates it.
func (m *Manager) connectOptions(cfg LaunchConfig) (ConnectOptions, error) {
	d := m.opts.Defaults
	opts := ConnectOptions{
		Width:          pick(cfg.Width, d.Width, DefaultWidth),
		Height:         pick(cfg.Height, d.Height, DefaultHeight),
		Headless:       pick(cfg.Headless, d.Headless, false),
		CommandTimeout: m.opts.CommandTimeout,
	}
	opts.IgnoreDefaultArg = pick(cfg.ExtraFlags, d.ExtraFlags, false)
	opts.Args = append(append([]string{}, d.Args...), cfg.Args...)

	if opts.Width < minDimension || opts.Width > maxDimension {
		return opts, fmt.Errorf("window width must be between %d and %d pixels, got %d", minDimension, maxDimension, opts.Width)
	}
	if opts.Height < minDimension || opts.Height > maxDimension {
		return opts, fmt.Errorf("window height must be between %d and %d pixels, got %d", minDimension, maxDimension, opts.Height)
	}
	return opts, nil
}

func pick[T any](v, fallback *T, def T) T {
	if v != nil {
		return *v
	}
	if fallback != nil {
		return *fallback
	}
	return def
}

// Close removes a session. The browser is shut down as soon as no command
// still holds the session's handle.
func (m *Manager) Close(ctx context.Context, id string) (ok bool, err error) {
	_, done := m.observe(ctx, "close", id)
	defer func() { done(err) }()

	h, found := m.registry.Remove(id)
	if !found {
		return false, newError("close", id, ErrNotFound, nil)
	}
	m.metrics.sessionClosed()
	h.pump.stop()
	h.Release()

	m.logger.Infof("session %s closed", id)
	return true, nil
}

// evict drops a session whose event stream ended without Close being
// called, e.g. when the browser crashed or was killed.
func (m *Manager) evict(h *Handle) {
	if !m.registry.RemoveIf(h.id, h) {
		return
	}
	m.metrics.sessionClosed()
	m.metrics.recordEviction()
	m.logger.Warnf("session %s: event stream ended, removing session", h.id)
	h.Release()
}

// reservePort picks a free debugging port no other launch or session holds.
// The port stays reserved until the session's connection is torn down.
func (m *Manager) reservePort() (int, error) {
	m.portMu.Lock()
	defer m.portMu.Unlock()

	end := m.opts.PortRangeEnd
	for start := m.opts.PortRangeStart; start <= end; {
		port, err := m.prober.FreePort(start, end)
		if err != nil {
			return 0, err
		}
		if _, taken := m.ports[port]; !taken {
			m.ports[port] = struct{}{}
			return port, nil
		}
		start = port + 1
	}
	return 0, fmt.Errorf("no available ports in range %d-%d", m.opts.PortRangeStart, end)
}

func (m *Manager) releasePort(port int) {
	m.portMu.Lock()
	defer m.portMu.Unlock()
	delete(m.ports, port)
}

// outputPath resolves where a screenshot or PDF is written.
func (m *Manager) outputPath(op, id, path string) (string, error) {
	if path == "" {
		return "", errorf(op, id, ErrConfiguration, "output path is required")
	}
	if m.files == nil {
		return path, nil
	}
	resolved, err := m.files.Resolve(path)
	if err != nil {
		return "", newError(op, id, ErrConfiguration, err)
	}
	return resolved, nil
}

func (m *Manager) reap(pid int32) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*reapGrace)
	defer cancel()
	if err := m.prober.Reap(ctx, pid); err != nil {
		m.logger.Warnf("browser process %d: %v", pid, err)
	}
}

// List returns metadata for every registered session.
func (m *Manager) List() []SessionInfo {
	handles := m.registry.Snapshot()
	infos := make([]SessionInfo, 0, len(handles))
	for _, h := range handles {
		infos = append(infos, h.info())
		h.Release()
	}
	return infos
}

// Get returns metadata for one session.
func (m *Manager) Get(id string) (SessionInfo, error) {
	h, err := m.registry.Lookup(id)
	if err != nil {
		return SessionInfo{}, newError("get", id, ErrNotFound, nil)
	}
	defer h.Release()
	return h.info(), nil
}

// HasSessions returns true if there are any active sessions.
func (m *Manager) HasSessions() bool {
	return m.registry.Len() > 0
}

// Subscribe streams the session's pump events until cancel is called or
// the session goes away.
func (m *Manager) Subscribe(id string, buffer int) (<-chan Event, func(), error) {
	h, err := m.registry.Lookup(id)
	if err != nil {
		return nil, nil, newError("subscribe", id, ErrNotFound, nil)
	}
	defer h.Release()
	ch, cancel := h.pump.subscribe(buffer)
	return ch, cancel, nil
}

// Shutdown closes every session concurrently, waits for their pumps and
// stops the driver. Launch fails with ErrClosed afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	handles := m.registry.Drain()
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		h := h
		m.metrics.sessionClosed()
		g.Go(func() error {
			h.pump.stop()
			h.Release()
			return h.pump.wait(gctx)
		})
	}
	err := g.Wait()
	if derr := m.driver.Close(); derr != nil && err == nil {
		err = fmt.Errorf("failed to stop driver: %w", derr)
	}
	m.logger.Infof("session manager shut down (%d sessions closed)", len(handles))
	return err
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
