// Package pwdriver implements browser.Driver on top of Playwright's
// Chromium support.
package pwdriver

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/chromectl/pkg/browser"
)

// convenienceSwitches are the Chromium switches Playwright adds for quieter
// automation. Dropping them leaves the pipe transport, profile directory and
// head mode flags in place.
var convenienceSwitches = []string{
	"--disable-background-networking",
	"--disable-background-timer-throttling",
	"--disable-backgrounding-occluded-windows",
	"--disable-back-forward-cache",
	"--disable-breakpad",
	"--disable-client-side-phishing-detection",
	"--disable-component-extensions-with-background-pages",
	"--disable-component-update",
	"--disable-default-apps",
	"--disable-dev-shm-usage",
	"--disable-extensions",
	"--disable-field-trial-config",
	"--disable-hang-monitor",
	"--disable-ipc-flooding-protection",
	"--disable-popup-blocking",
	"--disable-prompt-on-repost",
	"--disable-renderer-backgrounding",
	"--disable-search-engine-choice-screen",
	"--allow-pre-commit-input",
	"--enable-automation",
	"--export-tagged-pdf",
	"--force-color-profile=srgb",
	"--metrics-recording-only",
	"--no-default-browser-check",
	"--no-first-run",
	"--no-service-autorun",
	"--password-store=basic",
	"--use-mock-keychain",
}

// Options configures the Playwright driver.
type Options struct {
	// SkipInstall skips downloading the driver and browsers on first use
	SkipInstall bool

	// Stdout and Stderr receive installer output; nil discards it
	Stdout io.Writer
	Stderr io.Writer
}

// Driver starts Chromium browsers through a lazily started Playwright
// instance.
type Driver struct {
	opts Options

	mu          sync.Mutex
	playwright  *playwright.Playwright
	initialized bool
}

var _ browser.Driver = (*Driver)(nil)

// New creates a driver. Playwright itself is started on the first Connect.
func New(opts Options) *Driver {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	return &Driver{opts: opts}
}

// Initialize installs (unless skipped) and starts Playwright. It is safe to
// call more than once.
func (d *Driver) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   d.opts.Stdout,
		Stderr:   d.opts.Stderr,
	}
	if !d.opts.SkipInstall {
		if err := playwright.Install(runOpts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	d.playwright = pw
	d.initialized = true
	return nil
}

// Connect launches a Chromium process and opens a browser context sized to
// the requested window.
func (d *Driver) Connect(ctx context.Context, opts browser.ConnectOptions) (browser.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.Initialize(); err != nil {
		return nil, err
	}

	launchOpts := launchOptions(opts)

	d.mu.Lock()
	pw := d.playwright
	d.mu.Unlock()
	if pw == nil {
		return nil, fmt.Errorf("playwright driver stopped")
	}

	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	bctx, err := b.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Width,
			Height: opts.Height,
		},
	})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	// Playwright's own default timeout is 30s; zero means wait forever.
	bctx.SetDefaultTimeout(float64(opts.CommandTimeout.Milliseconds()))
	bctx.SetDefaultNavigationTimeout(float64(opts.CommandTimeout.Milliseconds()))

	return newConn(b, bctx), nil
}

// launchOptions translates opts into Playwright's Chromium launch options.
func launchOptions(opts browser.ConnectOptions) playwright.BrowserTypeLaunchOptions {
	args := append([]string{}, opts.Args...)
	if opts.DebugPort > 0 {
		args = append(args, fmt.Sprintf("--remote-debugging-port=%d", opts.DebugPort))
	}
	args = append(args, fmt.Sprintf("--window-size=%d,%d", opts.Width, opts.Height))

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     args,
	}
	if opts.IgnoreDefaultArg {
		launchOpts.IgnoreDefaultArgs = append([]string(nil), convenienceSwitches...)
	}
	return launchOpts
}

// Close stops Playwright. Browsers launched by it exit with it.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized || d.playwright == nil {
		return nil
	}
	err := d.playwright.Stop()
	d.playwright = nil
	d.initialized = false
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}
