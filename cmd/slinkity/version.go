package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/slinkity/slinkity"
	"github.com/slinkity/slinkity/cli"
)

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Println(slinkity.Version)
				return
			}
			cli.NewColorPrinter().PrintBanner()
			fmt.Printf("  Version:    %s\n", slinkity.Version)
			fmt.Printf("  Go version: %s\n", runtime.Version())
			fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")

	return cmd
}
