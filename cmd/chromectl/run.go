package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/entrhq/chromectl/pkg/scenario"
)

func runScenario(ctx context.Context, args []string, stdout io.Writer) (err error) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	dryRun := fs.Bool("dry-run", false, "Describe the steps without launching anything")
	output := fs.String("output", "", "Write the run summary as JSON to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one scenario file, got %d", fs.NArg())
	}

	sc, err := scenario.Load(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := newApp(common, "run")
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	runner := scenario.NewRunner(a.tools, a.logger.With("scenario"))
	if *dryRun {
		preview, err := runner.Preview(ctx, sc)
		if err != nil {
			return err
		}
		fmt.Fprint(stdout, preview)
		return nil
	}

	summary, runErr := runner.Run(ctx, sc)
	fmt.Fprint(stdout, summary.Report())
	if *output != "" {
		if err := summary.WriteJSON(*output); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("scenario %q failed", sc.Name)
	}
	return nil
}
