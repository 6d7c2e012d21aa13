package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/entrhq/chromectl/pkg/browser"
	"github.com/entrhq/chromectl/pkg/netutil"
	"github.com/entrhq/chromectl/pkg/procutil"
)

func runPorts(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("ports", flag.ContinueOnError)
	start := fs.Int("start", browser.DefaultPortRangeStart, "First port of the range")
	end := fs.Int("end", browser.DefaultPortRangeEnd, "Last port of the range")
	count := fs.Int("count", 1, "Number of free ports to report")
	busy := fs.Bool("busy", false, "List listening ports in the range and their owning processes instead")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *busy {
		return listBusyPorts(ctx, stdout, *start, *end)
	}

	ports, err := netutil.FindAvailablePorts(*start, *end, *count)
	if err != nil {
		return err
	}
	for _, p := range ports {
		fmt.Fprintln(stdout, p)
	}
	return nil
}

func listBusyPorts(ctx context.Context, stdout io.Writer, start, end int) error {
	if start > end {
		return fmt.Errorf("start port %d is after end port %d", start, end)
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tPID\tBROWSER")
	for port := start; port <= end; port++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		listening, err := netutil.IsPortListening(port)
		if err != nil {
			return err
		}
		if !listening {
			continue
		}

		pid := "-"
		if p, err := procutil.ListenerPID(ctx, port); err == nil && p > 0 {
			pid = fmt.Sprint(p)
		}
		product := "-"
		if info, err := netutil.FetchVersion(ctx, port); err == nil {
			product = info.Browser
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", port, pid, product)
	}
	return tw.Flush()
}
