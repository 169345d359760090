package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BuildConfig holds command-line overrides for a production build.
type BuildConfig struct {
	// Clean removes the output directory before building.
	Clean bool
	// Quiet suppresses per-page output.
	Quiet bool
}

// BuildResult summarizes a build.
type BuildResult struct {
	Pages    int
	Duration time.Duration
}

// Build renders every page of p once and writes the runtime assets.
func Build(ctx context.Context, p *Project, config BuildConfig, printer *ColorPrinter) (BuildResult, error) {
	start := time.Now()
	printer.Title("Building %s", p.Config.Input)

	clean := config.Clean && p.Config.Publish.Bucket == ""
	step, total := 1, 1
	if clean {
		total = 2
		printer.Step(step, total, "Cleaning %s", p.Config.Output)
		if err := cleanOutput(p.Config.Input, p.Config.Output); err != nil {
			return BuildResult{}, err
		}
		step++
	}

	printer.Step(step, total, "Rendering pages")
	pages, err := p.Site.Build(ctx)
	if err != nil {
		return BuildResult{}, fmt.Errorf("build failed: %w", err)
	}
	if !config.Quiet {
		for _, page := range pages {
			printer.Subtitle("  %s", page.URL)
		}
	}

	res := BuildResult{Pages: len(pages), Duration: time.Since(start)}
	target := p.Config.Output
	if p.Config.Publish.Bucket != "" {
		target = "s3://" + p.Config.Publish.Bucket + "/" + p.Config.Publish.Prefix
	}
	printer.Success("Built %d pages to %s in %s", res.Pages, target, res.Duration.Round(time.Millisecond))
	return res, nil
}

// cleanOutput removes out unless it is the input directory or contains it.
func cleanOutput(input, out string) error {
	in, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	dir, err := filepath.Abs(out)
	if err != nil {
		return err
	}
	if rel, err := filepath.Rel(dir, in); err == nil && !strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to clean %s: it contains the input directory", out)
	}
	return os.RemoveAll(dir)
}
