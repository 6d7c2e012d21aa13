package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/entrhq/chromectl/pkg/browser"
	"github.com/entrhq/chromectl/pkg/browser/pwdriver"
	"github.com/entrhq/chromectl/pkg/config"
	"github.com/entrhq/chromectl/pkg/logging"
	"github.com/entrhq/chromectl/pkg/tools"
	browsertools "github.com/entrhq/chromectl/pkg/tools/browser"
)

const shutdownTimeout = 30 * time.Second

// commonFlags are accepted by every command that starts browsers.
type commonFlags struct {
	configPath string
	trace      bool
	headless   bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Path to configuration file (default ~/.chromectl/config.json)")
	fs.BoolVar(&c.trace, "trace", false, "Print OpenTelemetry spans to stderr")
	fs.BoolVar(&c.headless, "headless", false, "Launch sessions headless unless a launch says otherwise")
}

// app is the wired session manager and everything around it.
type app struct {
	cfg      *config.Manager
	logger   *logging.Logger
	manager  *browser.Manager
	tools    *tools.Registry
	metrics  *prometheus.Registry
	shutdown []func(context.Context) error
}

// newApp loads configuration and builds the session manager.
func newApp(flags commonFlags, component string) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	_, _, levelName := cfg.Server().Settings()
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(level)

	logger, err := logging.NewLogger(component)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging to stderr: %v\n", err)
	}

	a := &app{cfg: cfg, logger: logger, metrics: prometheus.NewRegistry()}
	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if flags.trace {
		shutdownTracing, err := setupTracing(os.Stderr)
		if err != nil {
			return nil, err
		}
		a.shutdown = append(a.shutdown, shutdownTracing)
	}

	section := cfg.Browser()
	if flags.headless {
		section.SetHeadless(true)
	}
	opts := section.ManagerOptions()
	opts.Logger = logger.With("browser")
	opts.Metrics = browser.NewMetrics(a.metrics)

	driver := pwdriver.New(pwdriver.Options{
		SkipInstall: section.IsSkipInstall(),
		Stdout:      logger.Writer(),
		Stderr:      logger.Writer(),
	})
	a.manager, err = browser.NewManager(driver, opts)
	if err != nil {
		return nil, err
	}
	// Manager shutdown runs before tracing so its final spans are exported.
	a.shutdown = append([]func(context.Context) error{a.manager.Shutdown}, a.shutdown...)

	a.tools, err = tools.NewRegistry(browsertools.NewTools(a.manager)...)
	if err != nil {
		return nil, err
	}

	logger.Infof("chromectl v%s started (run %s)", version, logger.RunID())
	return a, nil
}

// close stops every session and flushes telemetry.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	for _, fn := range a.shutdown {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.logger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
