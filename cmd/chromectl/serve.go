package main

import (
	"context"
	"flag"
	"io"

	"github.com/entrhq/chromectl/pkg/server"
)

func runServe(ctx context.Context, args []string, stdout io.Writer) (err error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	listen := fs.String("listen", "", "Address to listen on (default from config, :8700)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(common, "serve")
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	section := a.cfg.Server()
	if *listen != "" {
		section.SetListen(*listen)
	}
	addr, events, _ := section.Settings()

	srv := server.New(server.Config{Listen: addr, EnableEvents: events}, a.manager, a.tools,
		server.WithLogger(a.logger.With("http")),
		server.WithGatherer(a.metrics),
	)
	return srv.Serve(ctx)
}
