package browser

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/chromectl/pkg/netutil"
)

// bindingDriver binds the requested debugging port shortly after Connect
// returns, like Chromium does. A browser that cannot bind its port keeps
// running without a debugging endpoint.
type bindingDriver struct {
	*fakeDriver

	mu        sync.Mutex
	bound     []int
	listeners []net.Listener
}

func (d *bindingDriver) Connect(ctx context.Context, opts ConnectOptions) (Conn, error) {
	conn, err := d.fakeDriver.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(opts.DebugPort)))
		if err != nil {
			return
		}
		d.mu.Lock()
		d.bound = append(d.bound, opts.DebugPort)
		d.listeners = append(d.listeners, l)
		d.mu.Unlock()

		body := fmt.Sprintf(`{"Browser":"HeadlessChrome/120.0.0.0","User-Agent":"HeadlessChrome","webSocketDebuggerUrl":"ws://127.0.0.1:%d/devtools/browser/x"}`, opts.DebugPort)
		_ = http.Serve(l, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		}))
	}()
	return conn, nil
}

func (d *bindingDriver) boundPorts() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.bound...)
}

func (d *bindingDriver) closeListeners() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.listeners {
		_ = l.Close()
	}
}

// inMachine inspects real ports but never signals processes: every fake
// browser lives inside the test binary.
type inMachine struct {
	SystemProber
}

func (inMachine) Reap(ctx context.Context, pid int32) error { return nil }

func TestLaunch_ConcurrentLaunchesGetDistinctPorts(t *testing.T) {
	d := &bindingDriver{fakeDriver: &fakeDriver{}}
	t.Cleanup(d.closeListeners)

	m, err := NewManager(d, Options{
		PortRangeStart: 39222,
		PortRangeEnd:   39262,
		Prober:         inMachine{SystemProber{Attempts: 40, Interval: 25 * time.Millisecond}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	const n = 2
	results := make([]*LaunchResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Launch(context.Background(), LaunchConfig{})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], "launch %d", i)
	}
	assert.NotEqual(t, results[0].Port, results[1].Port)
	assert.ElementsMatch(t, []int{results[0].Port, results[1].Port}, d.boundPorts())

	// Closing one session leaves the other browser's endpoint alone.
	_, err = m.Close(context.Background(), results[0].ID)
	require.NoError(t, err)
	_, err = netutil.FetchVersion(context.Background(), results[1].Port)
	assert.NoError(t, err)
}

func TestLaunch_PortReleased(t *testing.T) {
	m, d := newTestManager(t, Options{PortRangeStart: 9500, PortRangeEnd: 9500})

	res := launch(t, m, LaunchConfig{})
	assert.Equal(t, 9500, res.Port)

	_, err := m.Launch(context.Background(), LaunchConfig{})
	assert.ErrorIs(t, err, ErrConnection, "the only port is held by a live session")

	_, err = m.Close(context.Background(), res.ID)
	require.NoError(t, err)
	res = launch(t, m, LaunchConfig{})
	assert.Equal(t, 9500, res.Port)
	_, err = m.Close(context.Background(), res.ID)
	require.NoError(t, err)

	d.mu.Lock()
	d.connectErr = fmt.Errorf("chromium not found")
	d.mu.Unlock()
	_, err = m.Launch(context.Background(), LaunchConfig{})
	require.ErrorIs(t, err, ErrConnection)

	d.mu.Lock()
	d.connectErr = nil
	d.mu.Unlock()
	res = launch(t, m, LaunchConfig{})
	assert.Equal(t, 9500, res.Port, "a failed launch hands its port back")
}

func TestLaunch_InspectFailureReleasesPort(t *testing.T) {
	m, _ := newTestManager(t, Options{PortRangeStart: 9600, PortRangeEnd: 9600})
	fp := m.prober.(*fakeProber)

	fp.mu.Lock()
	fp.inspectErr = fmt.Errorf("connection refused")
	fp.mu.Unlock()
	_, err := m.Launch(context.Background(), LaunchConfig{})
	require.ErrorIs(t, err, ErrConnection)

	fp.mu.Lock()
	fp.inspectErr = nil
	fp.mu.Unlock()
	res := launch(t, m, LaunchConfig{})
	assert.Equal(t, 9600, res.Port)
}
