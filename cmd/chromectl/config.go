package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/chromectl/pkg/config"
)

const configUsage = `usage: chromectl config [-config path] <action>

Actions:
  show                 Print the effective settings of every section
  init                 Write the effective settings to the config file
  reset                Restore and write the defaults
  set section.key=val  Change one setting (val is parsed as YAML)
`

func runConfig(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file (default ~/.chromectl/config.json)")
	fs.Usage = func() { fmt.Fprint(fs.Output(), configUsage) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("missing action")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	switch action := fs.Arg(0); action {
	case "show":
		return showConfig(cfg, stdout)
	case "init":
		if err := cfg.SaveAll(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", cfg.Path())
		return nil
	case "reset":
		cfg.ResetAll()
		if err := cfg.SaveAll(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "reset %s to defaults\n", cfg.Path())
		return nil
	case "set":
		if fs.NArg() != 2 {
			return fmt.Errorf("set takes exactly one section.key=value argument")
		}
		return setConfig(cfg, fs.Arg(1), stdout)
	default:
		return fmt.Errorf("unknown config action %q", action)
	}
}

func showConfig(cfg *config.Manager, w io.Writer) error {
	fmt.Fprintf(w, "# %s\n", cfg.Path())
	for _, section := range cfg.GetSections() {
		out, err := yaml.Marshal(map[string]interface{}{section.ID(): section.Data()})
		if err != nil {
			return fmt.Errorf("failed to encode %s settings: %w", section.ID(), err)
		}
		fmt.Fprintf(w, "\n# %s: %s\n%s", section.Title(), section.Description(), out)
	}
	return nil
}

func setConfig(cfg *config.Manager, assignment string, w io.Writer) error {
	target, raw, ok := strings.Cut(assignment, "=")
	sectionID, key, dotted := strings.Cut(target, ".")
	if !ok || !dotted || sectionID == "" || key == "" {
		return fmt.Errorf("expected section.key=value, got %q", assignment)
	}

	section, found := cfg.GetSection(sectionID)
	if !found {
		return fmt.Errorf("unknown config section %q", sectionID)
	}
	if _, known := section.Data()[key]; !known {
		return fmt.Errorf("unknown %s setting %q", sectionID, key)
	}

	var value interface{}
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", target, err)
	}
	if value == nil {
		value = ""
	}
	if err := section.SetData(map[string]interface{}{key: value}); err != nil {
		return err
	}
	if err := cfg.SaveAll(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s = %v\n", target, value)
	return nil
}
