package browser

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(nil, Options{})
	assert.Error(t, err)

	_, err = NewManager(&fakeDriver{}, Options{PortRangeStart: 9300, PortRangeEnd: 9200})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewManager(&fakeDriver{}, Options{AllowedURLs: []string{"[unterminated"}})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLaunch_Defaults(t *testing.T) {
	m, d := newTestManager(t, Options{})

	res := launch(t, m, LaunchConfig{})

	assert.True(t, strings.HasPrefix(res.ID, "sess_"))
	assert.Equal(t, BlankURL, res.URL)
	assert.Equal(t, DefaultPortRangeStart, res.Port)
	assert.Equal(t, int32(4242), res.PID)
	assert.False(t, res.Headless)

	opts := d.lastOptions()
	assert.Equal(t, DefaultWidth, opts.Width)
	assert.Equal(t, DefaultHeight, opts.Height)
	assert.Equal(t, DefaultPortRangeStart, opts.DebugPort)
	assert.False(t, opts.IgnoreDefaultArg)

	info, err := m.Get(res.ID)
	require.NoError(t, err)
	assert.Equal(t, StateActive, info.State)
	assert.Equal(t, 1, info.Pages)
}

func TestLaunch_HeadlessRoundTrip(t *testing.T) {
	m, _ := newTestManager(t, Options{})

	res := launch(t, m, LaunchConfig{Headless: boolPtr(true), Width: intPtr(800), Height: intPtr(600)})
	assert.True(t, res.Headless)

	sessions := m.List()
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Headless)
	assert.Equal(t, 800, sessions[0].Width)
	assert.Equal(t, 600, sessions[0].Height)
}

func TestLaunch_MergesDefaults(t *testing.T) {
	m, d := newTestManager(t, Options{
		Defaults: LaunchConfig{
			Headless: boolPtr(true),
			Width:    intPtr(1280),
			Args:     []string{"--disable-gpu"},
		},
	})

	launch(t, m, LaunchConfig{Width: intPtr(1024), ExtraFlags: boolPtr(true), Args: []string{"--mute-audio"}})

	opts := d.lastOptions()
	assert.Equal(t, 1024, opts.Width)
	assert.Equal(t, DefaultHeight, opts.Height)
	assert.True(t, opts.Headless)
	assert.True(t, opts.IgnoreDefaultArg)
	assert.Equal(t, []string{"--disable-gpu", "--mute-audio"}, opts.Args)
}

func TestLaunch_InvalidDimensions(t *testing.T) {
	m, d := newTestManager(t, Options{})

	_, err := m.Launch(context.Background(), LaunchConfig{Width: intPtr(50)})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = m.Launch(context.Background(), LaunchConfig{Height: intPtr(6000)})
	assert.ErrorIs(t, err, ErrConfiguration)

	assert.Equal(t, 0, d.connCount())
	assert.False(t, m.HasSessions())
}

func TestLaunch_ConnectFailure(t *testing.T) {
	m, d := newTestManager(t, Options{})
	d.connectErr = errors.New("executable doesn't exist")

	_, err := m.Launch(context.Background(), LaunchConfig{})
	assert.ErrorIs(t, err, ErrConnection)
	assert.Contains(t, err.Error(), "executable doesn't exist")
	assert.False(t, m.HasSessions())
}

func TestLaunch_UnconfirmedPortClosesBrowser(t *testing.T) {
	m, d := newTestManager(t, Options{})
	m.prober.(*fakeProber).inspectErr = errors.New("connection refused")

	_, err := m.Launch(context.Background(), LaunchConfig{})
	assert.ErrorIs(t, err, ErrConnection)
	require.Equal(t, 1, d.connCount())
	assert.Equal(t, 1, d.conn(0).closes())
	assert.False(t, m.HasSessions())
}

func TestLaunch_PortRangeExhausted(t *testing.T) {
	m, _ := newTestManager(t, Options{PortRangeStart: 9500, PortRangeEnd: 9501})

	launch(t, m, LaunchConfig{})
	launch(t, m, LaunchConfig{})

	_, err := m.Launch(context.Background(), LaunchConfig{})
	assert.ErrorIs(t, err, ErrConnection)
}

func TestLaunch_ConcurrentUniqueSessions(t *testing.T) {
	m, _ := newTestManager(t, Options{})

	const n = 20
	var wg sync.WaitGroup
	results := make(chan *LaunchResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.Launch(context.Background(), LaunchConfig{})
			if assert.NoError(t, err) {
				results <- res
			}
		}()
	}
	wg.Wait()
	close(results)

	ids := make(map[string]bool)
	ports := make(map[int]bool)
	for res := range results {
		assert.False(t, ids[res.ID], "duplicate id %s", res.ID)
		assert.False(t, ports[res.Port], "duplicate port %d", res.Port)
		ids[res.ID] = true
		ports[res.Port] = true
	}
	assert.Len(t, ids, n)
	assert.Len(t, m.List(), n)
}

func TestClose(t *testing.T) {
	m, d := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})

	ok, err := m.Close(context.Background(), res.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, d.conn(0).closes())
	assert.Equal(t, []int32{4242}, m.prober.(*fakeProber).reapedPIDs())
	assert.False(t, m.HasSessions())

	ok, err = m.Close(context.Background(), res.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClose_UnknownSession(t *testing.T) {
	m, _ := newTestManager(t, Options{})

	ok, err := m.Close(context.Background(), "sess_missing")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommandsAfterClose(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})
	_, err := m.Close(context.Background(), res.ID)
	require.NoError(t, err)

	_, err = m.Navigate(context.Background(), res.ID, "https://example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.ExecuteScript(context.Background(), res.ID, "1+1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Screenshot(context.Background(), res.ID, filepath.Join(t.TempDir(), "shot.png"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.GetContent(context.Background(), res.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClose_WaitsForInFlightCommand(t *testing.T) {
	m, d := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})

	// A command holding a handle keeps the connection open past Close.
	h, err := m.registry.Lookup(res.ID)
	require.NoError(t, err)

	_, err = m.Close(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, d.conn(0).closes())
	assert.False(t, h.Closed())

	h.Release()
	assert.Equal(t, 1, d.conn(0).closes())
	assert.True(t, h.Closed())
}

func TestNavigate(t *testing.T) {
	m, d := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})

	pageID, err := m.Navigate(context.Background(), res.ID, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, PageID(2), pageID)

	pages, err := m.Pages(context.Background(), res.ID)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, PageID(1), pages[0].ID)
	assert.Equal(t, BlankURL, pages[0].URL)
	assert.Equal(t, PageID(2), pages[1].ID)
	assert.Equal(t, "https://example.com", pages[1].URL)
	assert.Equal(t, "https://example.com", d.conn(0).page(1).URL())
}

func TestNavigate_FailureKeepsPage(t *testing.T) {
	m, d := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})
	d.conn(0).mu.Lock()
	d.conn(0).gotoErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	d.conn(0).mu.Unlock()

	pageID, err := m.Navigate(context.Background(), res.ID, "https://nowhere.invalid")
	assert.ErrorIs(t, err, ErrConnection)
	assert.Contains(t, err.Error(), "ERR_NAME_NOT_RESOLVED")
	assert.Equal(t, PageID(2), pageID)

	pages, err := m.Pages(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestNavigate_Denied(t *testing.T) {
	m, d := newTestManager(t, Options{
		AllowedURLs: []string{"https://*.example.com/*"},
		DeniedURLs:  []string{"https://admin.example.com/*"},
	})
	res := launch(t, m, LaunchConfig{})

	_, err := m.Navigate(context.Background(), res.ID, "https://admin.example.com/users")
	assert.ErrorIs(t, err, ErrNavigationDenied)

	_, err = m.Navigate(context.Background(), res.ID, "https://other.org/")
	assert.ErrorIs(t, err, ErrNavigationDenied)

	_, err = m.Navigate(context.Background(), res.ID, "https://www.example.com/docs")
	assert.NoError(t, err)

	// Denied navigations never open a page.
	d.conn(0).mu.Lock()
	defer d.conn(0).mu.Unlock()
	assert.Len(t, d.conn(0).pages, 2)
}

func TestExecuteScript(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})

	out, err := m.ExecuteScript(context.Background(), res.ID, "1+1")
	require.NoError(t, err)
	assert.Equal(t, "2", out)

	_, err = m.ExecuteScript(context.Background(), res.ID, "missingFn()")
	assert.ErrorIs(t, err, ErrConnection)
}

func TestExecuteScript_SerializationFailure(t *testing.T) {
	m, d := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})
	d.conn(0).evaluate = func(string) (any, error) { return math.Inf(1), nil }

	_, err := m.ExecuteScript(context.Background(), res.ID, "Infinity")
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestExecuteScript_StructuredResult(t *testing.T) {
	m, d := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})
	d.conn(0).evaluate = func(string) (any, error) {
		return map[string]any{"title": "Example", "links": []any{"a", "b"}}, nil
	}

	out, err := m.ExecuteScript(context.Background(), res.ID, "collect()")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Example","links":["a","b"]}`, out)
}

func TestNoActivePage(t *testing.T) {
	m, d := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})
	require.NoError(t, d.conn(0).page(0).Close())

	_, err := m.ExecuteScript(context.Background(), res.ID, "1+1")
	assert.ErrorIs(t, err, ErrNoActivePage)

	_, err = m.Screenshot(context.Background(), res.ID, filepath.Join(t.TempDir(), "shot.png"))
	assert.ErrorIs(t, err, ErrNoActivePage)

	_, err = m.GetContent(context.Background(), res.ID)
	assert.ErrorIs(t, err, ErrNoActivePage)

	// Navigate opens its own page, so it still works.
	_, err = m.Navigate(context.Background(), res.ID, "https://example.com")
	require.NoError(t, err)
	out, err := m.ExecuteScript(context.Background(), res.ID, "1+1")
	require.NoError(t, err)
	assert.Equal(t, "2", out)
}

func TestScreenshot(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})
	path := filepath.Join(t.TempDir(), "shot.png")

	got, err := m.Screenshot(context.Background(), res.ID, path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), data)
}

func TestScreenshot_OutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	m, _ := newTestManager(t, Options{OutputDir: dir})
	res := launch(t, m, LaunchConfig{})

	got, err := m.Screenshot(context.Background(), res.ID, "shot.png")
	require.NoError(t, err)
	assert.Equal(t, "shot.png", filepath.Base(got))
	_, err = os.Stat(got)
	require.NoError(t, err)

	_, err = m.Screenshot(context.Background(), res.ID, "../escape.png")
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = m.PrintPDF(context.Background(), res.ID, DefaultPage, "/etc/page.pdf")
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = m.Screenshot(context.Background(), res.ID, "")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestScreenshot_WriteFailure(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})
	path := filepath.Join(t.TempDir(), "missing", "dir", "shot.png")

	_, err := m.Screenshot(context.Background(), res.ID, path)
	assert.ErrorIs(t, err, ErrIO)
}

func TestScreenshot_CaptureFailure(t *testing.T) {
	m, d := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})
	p := d.conn(0).page(0)
	p.mu.Lock()
	p.shotErr = errors.New("target closed")
	p.mu.Unlock()

	_, err := m.Screenshot(context.Background(), res.ID, filepath.Join(t.TempDir(), "shot.png"))
	assert.ErrorIs(t, err, ErrConnection)
}

func TestContentOutlineAndClean(t *testing.T) {
	m, d := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})
	markup := `<html><head><title>Docs</title><script>track()</script></head>
		<body><h1>Guide</h1><h2>Install</h2><a href="/start">Start here</a><a href="">empty</a></body></html>`
	d.conn(0).page(0).setContent("Docs", markup)

	raw, err := m.GetContent(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, markup, raw)

	outline, err := m.Outline(context.Background(), res.ID, DefaultPage)
	require.NoError(t, err)
	assert.Equal(t, "Docs", outline.Title)
	assert.Equal(t, []string{"Guide", "Install"}, outline.Headings)
	assert.Equal(t, []Link{{Text: "Start here", Href: "/start"}}, outline.Links)

	cleaned, err := m.CleanContent(context.Background(), res.ID, DefaultPage, 0)
	require.NoError(t, err)
	assert.Equal(t, "Docs", cleaned.Title)
	assert.Contains(t, cleaned.HTML, "Guide")
	assert.NotContains(t, cleaned.HTML, "track()")
	assert.False(t, cleaned.Truncated)
}

func TestPrintPDF_Errors(t *testing.T) {
	m, d := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})
	path := filepath.Join(t.TempDir(), "page.pdf")

	// Headed browsers cannot print.
	_, err := m.PrintPDF(context.Background(), res.ID, DefaultPage, path)
	assert.ErrorIs(t, err, ErrConnection)

	p := d.conn(0).page(0)
	p.mu.Lock()
	p.pdf = []byte("not a pdf")
	p.mu.Unlock()
	_, err = m.PrintPDF(context.Background(), res.ID, DefaultPage, path)
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestPagesAndClosePage(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})
	ctx := context.Background()

	_, err := m.Navigate(ctx, res.ID, "https://example.com/a")
	require.NoError(t, err)
	_, err = m.Navigate(ctx, res.ID, "https://example.com/b")
	require.NoError(t, err)

	require.NoError(t, m.ClosePage(ctx, res.ID, 2))

	pages, err := m.Pages(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, PageID(1), pages[0].ID)
	assert.Equal(t, PageID(3), pages[1].ID)

	assert.ErrorIs(t, m.ClosePage(ctx, res.ID, DefaultPage), ErrConfiguration)
	assert.ErrorIs(t, m.ClosePage(ctx, res.ID, 2), ErrNoActivePage)
	assert.ErrorIs(t, m.ClosePage(ctx, "sess_missing", 1), ErrNotFound)

	// Ids are never reused.
	id, err := m.Navigate(ctx, res.ID, "https://example.com/c")
	require.NoError(t, err)
	assert.Equal(t, PageID(4), id)
}

func TestSessionIsolation(t *testing.T) {
	m, d := newTestManager(t, Options{})
	a := launch(t, m, LaunchConfig{})
	b := launch(t, m, LaunchConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := m.ExecuteScript(context.Background(), a.ID, "1+1")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := m.Navigate(context.Background(), b.ID, "https://example.com")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := m.Close(context.Background(), a.ID)
	require.NoError(t, err)

	out, err := m.ExecuteScript(context.Background(), b.ID, "1+1")
	require.NoError(t, err)
	assert.Equal(t, "2", out)
	assert.Equal(t, 0, d.conn(1).closes())

	pages, err := m.Pages(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 11)
}

func TestEviction_BrowserGone(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m, d := newTestManager(t, Options{Metrics: metrics})
	res := launch(t, m, LaunchConfig{})

	d.conn(0).end()

	require.Eventually(t, func() bool { return !m.HasSessions() }, time.Second, 5*time.Millisecond)
	_, err := m.ExecuteScript(context.Background(), res.ID, "1+1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, d.conn(0).closes())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Evictions))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ActiveSessions))
}

func TestSubscribe(t *testing.T) {
	m, d := newTestManager(t, Options{})
	res := launch(t, m, LaunchConfig{})

	events, cancel, err := m.Subscribe(res.ID, 16)
	require.NoError(t, err)
	defer cancel()

	d.conn(0).emit(Event{Type: EventConsole, Level: "log", Text: "hello"})

	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type != EventConsole {
				continue
			}
			assert.Equal(t, res.ID, ev.SessionID)
			assert.Equal(t, "hello", ev.Text)
			assert.False(t, ev.Time.IsZero())

			_, err := m.Close(context.Background(), res.ID)
			require.NoError(t, err)
			for range events {
			}
			return
		case <-timeout:
			t.Fatal("console event not delivered")
		}
	}
}

func TestSubscribe_UnknownSession(t *testing.T) {
	m, _ := newTestManager(t, Options{})

	_, _, err := m.Subscribe("sess_missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShutdown(t *testing.T) {
	m, d := newTestManager(t, Options{})
	for i := 0; i < 3; i++ {
		launch(t, m, LaunchConfig{})
	}

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.HasSessions())
	assert.True(t, d.isClosed())
	for i := 0; i < 3; i++ {
		assert.Equal(t, 1, d.conn(i).closes())
	}

	_, err := m.Launch(context.Background(), LaunchConfig{})
	assert.ErrorIs(t, err, ErrClosed)

	// Shutdown is idempotent.
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m, _ := newTestManager(t, Options{Metrics: metrics})
	res := launch(t, m, LaunchConfig{})

	_, err := m.ExecuteScript(context.Background(), res.ID, "1+1")
	require.NoError(t, err)
	_, err = m.ExecuteScript(context.Background(), "sess_missing", "1+1")
	require.Error(t, err)
	_, err = m.Launch(context.Background(), LaunchConfig{Width: intPtr(1)})
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActiveSessions))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Launches.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Launches.WithLabelValues("configuration")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Commands.WithLabelValues("evaluate", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Commands.WithLabelValues("evaluate", "not_found")))
}

func TestUnknownSessionTakesPriority(t *testing.T) {
	m, _ := newTestManager(t, Options{
		DeniedURLs: []string{"*://blocked.test/*"},
		OutputDir:  t.TempDir(),
	})
	ctx := context.Background()

	err := m.NavigatePage(ctx, "sess_missing", DefaultPage, "https://blocked.test/x")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.ScreenshotPage(ctx, "sess_missing", DefaultPage, "../escape.png")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.ScreenshotPage(ctx, "sess_missing", DefaultPage, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.PrintPDF(ctx, "sess_missing", DefaultPage, "/etc/page.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	// A live session still gets the policy and path errors.
	res := launch(t, m, LaunchConfig{})
	err = m.NavigatePage(ctx, res.ID, DefaultPage, "https://blocked.test/x")
	assert.ErrorIs(t, err, ErrNavigationDenied)
	_, err = m.PrintPDF(ctx, res.ID, DefaultPage, "/etc/page.pdf")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestScreenshot_OutputWhitelist(t *testing.T) {
	extra := t.TempDir()
	m, _ := newTestManager(t, Options{OutputDir: t.TempDir(), OutputWhitelist: []string{extra}})
	res := launch(t, m, LaunchConfig{})

	got, err := m.Screenshot(context.Background(), res.ID, filepath.Join(extra, "shot.png"))
	require.NoError(t, err)
	_, err = os.Stat(got)
	assert.NoError(t, err)

	_, err = NewManager(&fakeDriver{}, Options{OutputWhitelist: []string{extra}})
	assert.ErrorIs(t, err, ErrConfiguration)
}
