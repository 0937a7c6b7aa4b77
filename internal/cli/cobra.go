package cli

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"pixelpick/internal/config"
)

// Version is stamped at build time with -ldflags "-X pixelpick/internal/cli.Version=...".
var Version = "v0.1.0-dev"

// NewRootCmd creates the root Cobra command
func NewRootCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	return newRootCmd(NewRoot(cfg, log))
}

func newRootCmd(root *Root) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pixelpick",
		Short: "Pixelpick reads template colors under a browser map cursor",
		Long: `Pixelpick receives cursor tile/pixel positions from a browser userscript,
maps them onto a local template image, and prints the template pixel color
each time the position or color changes.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newHistoryCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

func newRunCmd(root *Root) *cobra.Command {
	cfg := root.cfg

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the picker",
		Long: `Start the HTTP ingress (and optional gRPC ingress), then sample the
template at the reported cursor position until interrupted. Missing
--template or --origin values are prompted for on stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.runPicker(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cfg.Picker.TemplatePath, "template", cfg.Picker.TemplatePath, "Template image path (PNG, JPEG, GIF, BMP, TIFF, WebP)")
	cmd.Flags().StringVar(&cfg.Picker.Origin, "origin", cfg.Picker.Origin, "Template origin as tileX,tileY,pxX,pyY")
	cmd.Flags().IntVar(&cfg.Picker.PollMs, "poll-ms", cfg.Picker.PollMs, "Sampling interval in milliseconds (min 50)")
	cmd.Flags().IntVar(&cfg.Picker.TileUnit, "tile-unit", cfg.Picker.TileUnit, "Pin the tile unit (0 derives it from each sample's tileSize)")
	cmd.Flags().BoolVar(&cfg.Picker.WatchTemplate, "watch-template", cfg.Picker.WatchTemplate, "Reload the template when the file changes")
	cmd.Flags().StringVar(&cfg.Server.Host, "addr-host", cfg.Server.Host, "Host to bind the ingress listeners to")
	cmd.Flags().IntVar(&cfg.Server.Port, "port", cfg.Server.Port, "HTTP ingress port (1024-65535)")
	cmd.Flags().IntVar(&cfg.Server.GRPCPort, "grpc-port", cfg.Server.GRPCPort, "gRPC ingress port (0 disables)")
	cmd.Flags().StringVar(&cfg.Journal.Path, "journal", cfg.Journal.Path, "SQLite journal path for surfaced events (empty disables)")

	return cmd
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long:  "Show or validate pixelpick configuration",
	}

	// config show subcommand
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.configShow(cmd.OutOrStdout())
		},
	}

	// config validate subcommand
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.configValidate(); err != nil {
				return err
			}
			root.log.Info("configuration validation", "status", "valid")
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	}

	cmd.AddCommand(showCmd, validateCmd)
	return cmd
}

func newHistoryCmd(root *Root) *cobra.Command {
	var (
		journal string
		runID   string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled runs and events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if journal == "" {
				journal = root.cfg.Journal.Path
			}
			return root.cmdHistory(cmd.OutOrStdout(), journal, runID, limit)
		},
	}

	cmd.Flags().StringVar(&journal, "journal", "", "SQLite journal path (defaults to journal.path)")
	cmd.Flags().StringVar(&runID, "run", "", "Only show events from this run ID")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of events")

	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("Pixelpick %s\n", Version)
			cmd.Printf("Built with Go %s\n", runtime.Version())
			cmd.Printf("Template decoders: %s\n", root.decoders())
		},
	}
}
