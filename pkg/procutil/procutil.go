// Package procutil inspects and signals OS processes, typically the browser
// behind a session.
package procutil

import (
	"context"
	"fmt"
	"time"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// ListenerPID returns the pid of the process listening on the TCP port, or
// 0 if none is found.
func ListenerPID(ctx context.Context, port int) (int32, error) {
	conns, err := gnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return 0, fmt.Errorf("failed to list connections: %w", err)
	}
	for _, c := range conns {
		if c.Status == "LISTEN" && int(c.Laddr.Port) == port && c.Pid > 0 {
			return c.Pid, nil
		}
	}
	return 0, nil
}

// IsRunning reports whether a process with pid exists.
func IsRunning(ctx context.Context, pid int32) (bool, error) {
	if pid <= 0 {
		return false, fmt.Errorf("invalid pid %d", pid)
	}
	return process.PidExistsWithContext(ctx, pid)
}

// Terminate sends SIGTERM (TerminateProcess on Windows) and escalates to a
// kill if the process is still alive after grace.
func Terminate(ctx context.Context, pid int32, grace time.Duration) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return fmt.Errorf("process %d: %w", pid, err)
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		if killErr := p.KillWithContext(ctx); killErr != nil {
			return fmt.Errorf("failed to kill process %d: %w", pid, err)
		}
		return nil
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		running, err := p.IsRunningWithContext(ctx)
		if err != nil || !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	if err := p.KillWithContext(ctx); err != nil {
		return fmt.Errorf("failed to kill process %d: %w", pid, err)
	}
	return nil
}
