// Package netutil checks local TCP ports and the browser's remote debugging
// endpoint.
package netutil

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	minPort = 1
	maxPort = 65535

	dialTimeout = 200 * time.Millisecond
)

func validatePort(port int) error {
	if port < minPort || port > maxPort {
		return fmt.Errorf("port number must be between %d and %d, got %d", minPort, maxPort, port)
	}
	return nil
}

// IsPortAvailable reports whether port can be bound on all interfaces.
func IsPortAvailable(port int) (bool, error) {
	if err := validatePort(port); err != nil {
		return false, err
	}
	l, err := net.Listen("tcp", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)))
	if err != nil {
		return false, nil
	}
	_ = l.Close()
	return true, nil
}

// IsPortListening reports whether something accepts connections on port
// via the IPv4 or IPv6 loopback.
func IsPortListening(port int) (bool, error) {
	if err := validatePort(port); err != nil {
		return false, err
	}
	for _, host := range []string{"127.0.0.1", "::1"} {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), dialTimeout)
		if err != nil {
			continue
		}
		_ = conn.Close()
		return true, nil
	}
	return false, nil
}

// FindAvailablePort returns the first bindable port in [start, end].
func FindAvailablePort(start, end int) (int, error) {
	ports, err := FindAvailablePorts(start, end, 1)
	if err != nil {
		return 0, err
	}
	return ports[0], nil
}

// FindAvailablePorts returns count bindable ports from [start, end], lowest
// first.
func FindAvailablePorts(start, end, count int) ([]int, error) {
	if err := validatePort(start); err != nil {
		return nil, err
	}
	if err := validatePort(end); err != nil {
		return nil, err
	}
	if start > end {
		return nil, fmt.Errorf("start port (%d) must be less than or equal to end port (%d)", start, end)
	}
	if count <= 0 {
		return []int{}, nil
	}
	if size := end - start + 1; count > size {
		return nil, fmt.Errorf("requested %d ports but range only contains %d ports", count, size)
	}

	found := make([]int, 0, count)
	for port := start; port <= end && len(found) < count; port++ {
		if ok, _ := IsPortAvailable(port); ok {
			found = append(found, port)
		}
	}
	if len(found) < count {
		return nil, fmt.Errorf("only found %d available ports in range %d-%d, but %d were requested", len(found), start, end, count)
	}
	return found, nil
}
