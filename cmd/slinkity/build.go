package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/slinkity/slinkity"
	"github.com/slinkity/slinkity/cli"
)

func buildCmd(flags *globalFlags) *cobra.Command {
	var (
		config  cli.BuildConfig
		publish string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the site for production",
		Long: `Render every page, server-render its islands and write the
props modules and client loaders the hydrated islands import.

Examples:
  slinkity build
  slinkity build --clean --output=dist
  slinkity build --publish=my-bucket`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, func(c *slinkity.Config) {
				c.Dev = false
				if publish != "" {
					c.Publish.Bucket = publish
				}
			})
			if err != nil {
				return err
			}
			return withProject(cfg, func(ctx context.Context, p *cli.Project) error {
				_, err := cli.Build(ctx, p, config, cli.NewColorPrinter())
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&config.Clean, "clean", false, "Remove the output directory first")
	cmd.Flags().BoolVarP(&config.Quiet, "quiet", "q", false, "Do not list built pages")
	cmd.Flags().StringVar(&publish, "publish", "", "Upload to this S3 bucket instead of the output directory")

	return cmd
}
