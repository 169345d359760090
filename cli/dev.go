package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/slinkity/slinkity/fiber"
)

// Serve builds p, serves its output with the dev routes mounted and
// rebuilds on every change until ctx is done. p must be opened with
// Config.Dev set.
func Serve(ctx context.Context, p *Project, printer *ColorPrinter) error {
	if !p.Config.Dev {
		return errors.New("serve requires a dev config")
	}
	printer.Title("Starting development server")

	if p.Plugin.Hub != nil {
		cancel, err := p.Plugin.Hub.Listen(ctx, p.PubSub())
		if err != nil {
			return fmt.Errorf("subscribe to reload messages: %w", err)
		}
		defer cancel()
	}

	printer.Step(1, 2, "Building %s", p.Config.Input)
	if _, err := p.Site.Build(ctx); err != nil {
		// The dev server stays up so the next save can fix it.
		printer.Error("Initial build failed: %v", err)
	}

	app := p.Site.App(p.Config.Output)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Site.Watch(gctx, watchExtra(p), func(changed []string, err error) {
			if err != nil {
				printer.Error("Rebuild failed: %v", err)
				msg := fiber.ReloadMessage{Type: "error", Message: err.Error()}
				if perr := fiber.PublishReload(gctx, p.PubSub(), msg); perr != nil {
					p.logger.Warn("publish build error failed", "error", perr)
				}
				return
			}
			printer.Success("Rebuilt after %s", strings.Join(relativeTo(p.Config.Input, changed), ", "))
		})
	})
	g.Go(func() error {
		printer.Step(2, 2, "Listening on http://%s", p.Config.Addr)
		return app.Listen(p.Config.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		return app.Shutdown()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchExtra returns the component directory when it lives outside Input.
func watchExtra(p *Project) []string {
	dir := p.Config.ComponentDir
	if !filepath.IsAbs(dir) {
		return nil
	}
	in, err := filepath.Abs(p.Config.Input)
	if err != nil {
		return nil
	}
	if rel, err := filepath.Rel(in, dir); err == nil && !strings.HasPrefix(rel, "..") {
		return nil
	}
	return []string{dir}
}

func relativeTo(root string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
		out = append(out, p)
	}
	return out
}
