package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/slinkity/slinkity"
	"github.com/slinkity/slinkity/cli"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		addr    string
		metrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the development server",
		Long: `Build the site, serve it and rebuild on every change.

Connected browsers reload after each rebuild; failed renders show an
error overlay.

Examples:
  slinkity serve
  slinkity serve --addr=0.0.0.0:3000 --metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, func(c *slinkity.Config) {
				c.Dev = true
				if addr != "" {
					c.Addr = addr
				}
				if metrics {
					c.Metrics = true
				}
			})
			if err != nil {
				return err
			}
			printer := cli.NewColorPrinter()
			printer.PrintBanner()
			return withProject(cfg, func(ctx context.Context, p *cli.Project) error {
				return cli.Serve(ctx, p, printer)
			})
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default from config)")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Expose Prometheus metrics at /metrics")

	return cmd
}
