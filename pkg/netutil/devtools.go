package netutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// VersionInfo is the body of the remote debugging /json/version endpoint.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Headless reports whether the browser identifies itself as headless.
func (v *VersionInfo) Headless() bool {
	return strings.Contains(v.UserAgent, "HeadlessChrome") || strings.HasPrefix(v.Browser, "HeadlessChrome")
}

var httpClient = &http.Client{Timeout: 2 * time.Second}

// FetchVersion queries http://127.0.0.1:<port>/json/version.
func FetchVersion(ctx context.Context, port int) (*VersionInfo, error) {
	if err := validatePort(port); err != nil {
		return nil, err
	}
	url := "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + "/json/version"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("debugging endpoint on port %d unreachable: %w", port, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("debugging endpoint on port %d returned %s", port, resp.Status)
	}
	var info VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode version info: %w", err)
	}
	return &info, nil
}

// WaitVersion polls FetchVersion until it succeeds, attempts run out, or
// ctx is done.
func WaitVersion(ctx context.Context, port, attempts int, interval time.Duration) (*VersionInfo, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		info, err := FetchVersion(ctx, port)
		if err == nil {
			return info, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, lastErr
}
