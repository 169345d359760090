package slinkity

import (
	"context"
	"fmt"

	gofiber "github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/slinkity/slinkity/fiber"
	"github.com/slinkity/slinkity/plugin"
)

// Plugin installs a Session into a host generator.
type Plugin struct {
	Session *Session
	// Hub receives reload messages in development. Optional.
	Hub *fiber.ReloadHub
	// Gatherer exposes metrics on the dev server. Optional.
	Gatherer prometheus.Gatherer
}

var _ plugin.Plugin = (*Plugin)(nil)

// NewPlugin creates a plugin for s.
func NewPlugin(s *Session) *Plugin {
	return &Plugin{Session: s}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "slinkity" }

// Register implements plugin.Plugin. It adds the island, clientOnlyIsland
// and prop shortcodes, a template format per page-capable renderer
// extension, the island post-processing transform and the lifecycle hooks.
func (p *Plugin) Register(host plugin.Host) error {
	s := p.Session

	host.AddShortcode("prop", func(_ context.Context, page plugin.Page, args []any) (string, error) {
		if len(args) != 2 {
			return "", fmt.Errorf("prop expects a name and a value, got %d arguments", len(args))
		}
		name, ok := args[0].(string)
		if !ok || name == "" {
			return "", fmt.Errorf("prop name must be a non-empty string, got %v", args[0])
		}
		return s.Shortcodes.Prop(page.InputPath, name, args[1]), nil
	})
	host.AddPairedShortcode("island", islandShortcode(s.Shortcodes.Island))
	host.AddPairedShortcode("clientOnlyIsland", islandShortcode(s.Shortcodes.ClientOnlyIsland))

	for _, ext := range s.Renderers.PageExtensions() {
		host.AddExtension(ext, plugin.Extension{
			GetData: s.PageData,
			Compile: func(_ context.Context, inputPath string) (plugin.Render, error) {
				return func(ctx context.Context, page plugin.Page) (string, error) {
					return s.RenderPage(ctx, inputPath, page.Data)
				}, nil
			},
		})
	}

	host.AddTransform("slinkity", s.ProcessPage)

	host.On(plugin.BeforeBuild, func(context.Context, plugin.Event) error {
		s.Reset()
		return nil
	})
	host.On(plugin.BeforeWatch, func(ctx context.Context, ev plugin.Event) error {
		for _, f := range ev.ChangedFiles {
			s.FileChanged(ctx, f)
		}
		return nil
	})
	host.On(plugin.AfterBuild, func(ctx context.Context, ev plugin.Event) error {
		if !s.Config.Dev {
			return s.WriteAssets(ctx, ev.Output)
		}
		if err := s.CheckClientProps(); err != nil {
			return err
		}
		paths := make([]string, 0, len(ev.Pages))
		for _, page := range ev.Pages {
			paths = append(paths, page.URL)
		}
		return fiber.PublishReload(ctx, s.PubSub, fiber.ReloadMessage{Type: "reload", Paths: paths})
	})

	if s.Config.Dev {
		host.SetServerOptions(plugin.ServerOptions{
			Setup: func(app *gofiber.App) {
				fiber.Mount(app, fiber.DevOptions{
					Props:      s.Props,
					Hub:        p.Hub,
					Gatherer:   p.Gatherer,
					RequestLog: true,
					Logger:     s.logger,
				})
			},
			ErrorHandler: fiber.ErrorHandler(fiber.ErrorHandlerConfig{DevMode: true, Logger: s.logger}),
		})
	}
	return nil
}

// islandShortcode adapts an island emitter to a paired shortcode: the
// first argument is the component path, the rest are load conditions.
func islandShortcode(emit func(ctx context.Context, inputPath, componentPath string, tokens []string, content string) (string, error)) plugin.PairedShortcode {
	return func(ctx context.Context, page plugin.Page, content string, args []any) (string, error) {
		if len(args) == 0 {
			return "", fmt.Errorf("island expects a component path")
		}
		componentPath, ok := args[0].(string)
		if !ok || componentPath == "" {
			return "", fmt.Errorf("island component path must be a non-empty string, got %v", args[0])
		}
		tokens := make([]string, 0, len(args)-1)
		for _, a := range args[1:] {
			tokens = append(tokens, fmt.Sprint(a))
		}
		return emit(ctx, page.InputPath, componentPath, tokens, content)
	}
}
