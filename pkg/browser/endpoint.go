package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/chromectl/pkg/netutil"
	"github.com/entrhq/chromectl/pkg/procutil"
)

// Endpoint is what the launcher learned about a freshly started browser.
type Endpoint struct {
	Port     int
	PID      int32
	Headless bool
	Browser  string
}

// Prober picks debugging ports, inspects the browser listening on them and
// reaps the browser process once its connection is gone.
type Prober interface {
	FreePort(start, end int) (int, error)
	Inspect(ctx context.Context, port int) (*Endpoint, error)
	Reap(ctx context.Context, pid int32) error
}

const reapGrace = 2 * time.Second

// SystemProber probes the local machine.
type SystemProber struct {
	// Attempts bounds how often the debugging endpoint is polled after
	// launch before the launch is failed.
	Attempts int
	Interval time.Duration
}

// FreePort returns the first bindable port in [start, end].
func (p SystemProber) FreePort(start, end int) (int, error) {
	return netutil.FindAvailablePort(start, end)
}

// Inspect confirms the debugging endpoint answers on port and reports the
// browser's head mode and pid.
func (p SystemProber) Inspect(ctx context.Context, port int) (*Endpoint, error) {
	attempts, interval := p.Attempts, p.Interval
	if attempts <= 0 {
		attempts = 20
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	info, err := netutil.WaitVersion(ctx, port, attempts, interval)
	if err != nil {
		return nil, fmt.Errorf("remote debugging port %d not confirmed: %w", port, err)
	}
	// The pid is informational; platforms without connection tables report 0.
	pid, _ := procutil.ListenerPID(ctx, port)
	return &Endpoint{
		Port:     port,
		PID:      pid,
		Headless: info.Headless(),
		Browser:  info.Browser,
	}, nil
}

// Reap terminates pid if it outlived its connection.
func (p SystemProber) Reap(ctx context.Context, pid int32) error {
	running, err := procutil.IsRunning(ctx, pid)
	if err != nil || !running {
		return err
	}
	return procutil.Terminate(ctx, pid, reapGrace)
}
