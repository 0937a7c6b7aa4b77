package cli

import (
	"fmt"
	"io"
	"strings"

	"pixelpick/internal/config"
	"pixelpick/internal/raster"
)

func (r *Root) configShow(out io.Writer) error {
	fmt.Fprintf(out, "Current configuration:\n")
	fmt.Fprintf(out, "Config file: %s\n", config.Path())

	fmt.Fprintf(out, "\nPicker:\n")
	fmt.Fprintf(out, "  Template: %s\n", orUnset(r.cfg.Picker.TemplatePath))
	fmt.Fprintf(out, "  Origin: %s\n", orUnset(r.cfg.Picker.Origin))
	fmt.Fprintf(out, "  Poll interval: %d ms\n", r.cfg.Picker.PollMs)
	if r.cfg.Picker.TileUnit > 0 {
		fmt.Fprintf(out, "  Tile unit: %d\n", r.cfg.Picker.TileUnit)
	} else {
		fmt.Fprintf(out, "  Tile unit: from sample\n")
	}
	fmt.Fprintf(out, "  Watch template: %t\n", r.cfg.Picker.WatchTemplate)

	fmt.Fprintf(out, "\nServer:\n")
	fmt.Fprintf(out, "  HTTP: %s\n", r.cfg.ListenAddr())
	if addr := r.cfg.GRPCAddr(); addr != "" {
		fmt.Fprintf(out, "  gRPC: %s\n", addr)
	} else {
		fmt.Fprintf(out, "  gRPC: disabled\n")
	}

	fmt.Fprintf(out, "\nJournal: %s\n", orUnset(r.cfg.Journal.Path))

	fmt.Fprintf(out, "\nLogging:\n")
	fmt.Fprintf(out, "  Level: %s\n", r.cfg.Logging.Level)
	fmt.Fprintf(out, "  Format: %s\n", r.cfg.Logging.Format)
	if r.cfg.Logging.FileOutput {
		fmt.Fprintf(out, "  Directory: %s\n", r.cfg.Logging.LogDir)
	}
	return nil
}

func (r *Root) configValidate() error {
	if err := r.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (r *Root) decoders() string {
	return strings.Join(raster.Formats(), ", ")
}

func orUnset(v string) string {
	if v == "" {
		return "(unset)"
	}
	return v
}
