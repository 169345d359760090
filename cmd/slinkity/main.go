package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slinkity/slinkity"
	"github.com/slinkity/slinkity/cli"
)

type globalFlags struct {
	config  string
	input   string
	output  string
	verbose bool
}

func main() {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "slinkity",
		Short: "Islands partial hydration for static sites",
		Long: `Slinkity renders component islands into static pages.

Components used in templates are server-rendered at build time and,
when given a load condition such as client:visible, hydrated in the
browser once that condition fires.

Examples:
  slinkity build
  slinkity serve --addr=localhost:3000`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "slinkity.yaml", "Config file")
	rootCmd.PersistentFlags().StringVarP(&flags.input, "input", "i", "", "Input directory (default from config)")
	rootCmd.PersistentFlags().StringVarP(&flags.output, "output", "o", "", "Output directory (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(
		buildCmd(&flags),
		serveCmd(&flags),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		cli.NewColorPrinter().Error("%s", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to the defaults when the
// file is missing, and applies command-line overrides.
func loadConfig(flags *globalFlags, override func(*slinkity.Config)) (slinkity.Config, error) {
	cfg, err := slinkity.Load(flags.config)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = slinkity.DefaultConfig(), nil
	}
	if err != nil {
		return cfg, err
	}
	if flags.input != "" {
		cfg.Input = flags.input
	}
	if flags.output != "" {
		cfg.Output = flags.output
	}
	if override != nil {
		override(&cfg)
	}

	level := slog.LevelInfo
	if flags.verbose {
		level = slog.LevelDebug
	}
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, cfg.Validate()
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func withProject(cfg slinkity.Config, run func(ctx context.Context, p *cli.Project) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, err := cli.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open project: %w", err)
	}
	defer p.Close()
	return run(ctx, p)
}
