// Package ssr implements the HTML post-processing pass: SSR markers are
// replaced with server-rendered island markup and the stylesheets those
// islands import are injected into the page head.
package ssr

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/slinkity/slinkity/bundler"
	"github.com/slinkity/slinkity/component"
	"github.com/slinkity/slinkity/marker"
)

const tracerName = "github.com/slinkity/slinkity/ssr"

// Page identifies one rendered output.
type Page struct {
	InputPath  string
	OutputPath string
	// URL is the page's public URL, passed to the bundler's HTML transform.
	URL string
}

// Options configures a PostProcessor.
type Options struct {
	Registry *component.IslandRegistry
	Props    *component.PropStore
	Bundler  bundler.Bundler
	Styles   *Styles
	// Cache is optional.
	Cache *Cache
	// Metrics is optional.
	Metrics *Metrics
	// Shortcodes are handed to renderers as SSRParams.Shortcodes.
	Shortcodes map[string]any
	// Concurrency caps parallel island renders per page; zero is unlimited.
	Concurrency int
	// Dev runs the bundler's HTML transform on every page.
	Dev    bool
	Logger *slog.Logger
}

// PostProcessor rewrites rendered pages.
type PostProcessor struct {
	opts   Options
	tracer trace.Tracer
	logger *slog.Logger
}

// New creates a PostProcessor. Styles defaults to a fresh accumulator.
func New(opts Options) *PostProcessor {
	if opts.Styles == nil {
		opts.Styles = NewStyles()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PostProcessor{
		opts:   opts,
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}
}

// Styles returns the accumulator the island pass writes to.
func (p *PostProcessor) Styles() *Styles {
	return p.opts.Styles
}

// Process runs the island pass and head injection over html. Any failure
// fails the whole page; no partially rendered output is returned. Prop
// markers left outside an island body are removed.
func (p *PostProcessor) Process(ctx context.Context, page Page, html string) (string, error) {
	p.opts.Metrics.page()

	out, err := p.renderMarkers(ctx, page.InputPath, html)
	if err != nil {
		return "", err
	}
	out = marker.StripProps(out)

	urls, inline := p.opts.Styles.Flush(page.InputPath)
	out = InjectHead(out, Tags(urls, inline))

	if p.opts.Dev && p.opts.Bundler != nil {
		out, err = p.opts.Bundler.TransformIndexHTML(ctx, page.URL, out)
		if err != nil {
			return "", err
		}
	}
	return out, nil
}

// renderMarkers renders every island whose SSR marker appears in html and
// substitutes the results. Island slots go through the same pass, so
// islands nested in another island's body are rendered too.
func (p *PostProcessor) renderMarkers(ctx context.Context, inputPath, html string) (string, error) {
	ids := marker.SSRIDs(html)
	if len(ids) == 0 {
		return html, nil
	}
	islands := make([]*component.Island, 0, len(ids))
	for _, id := range ids {
		island, err := p.opts.Registry.Get(inputPath, id)
		if err != nil {
			return "", err
		}
		if !island.RenderOn.OnServer() {
			return "", component.InternalError(inputPath, id, "client-only island reached the server render pass")
		}
		islands = append(islands, island)
	}

	rendered := make(map[string]string, len(islands))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if p.opts.Concurrency > 0 {
		g.SetLimit(p.opts.Concurrency)
	}
	for _, island := range islands {
		g.Go(func() error {
			out, err := p.RenderIsland(gctx, island)
			if err != nil {
				return err
			}
			mu.Lock()
			rendered[island.ID] = out
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	return marker.ReplaceSSR(html, func(id string) (string, error) {
		markup, ok := rendered[id]
		if !ok {
			return "", component.InternalError(inputPath, id, "ssr marker has no rendered island")
		}
		return markup, nil
	})
}

// RenderIsland server-renders one island and records the stylesheets it
// needs for its input path.
func (p *PostProcessor) RenderIsland(ctx context.Context, island *component.Island) (string, error) {
	renderer := island.Renderer
	ctx, span := p.tracer.Start(ctx, "slinkity.island.ssr", trace.WithAttributes(
		attribute.String("slinkity.island.id", island.ID),
		attribute.String("slinkity.island.component", island.Path),
		attribute.String("slinkity.input_path", island.InputPath),
		attribute.String("slinkity.renderer", renderer.Name()),
	))
	defer span.End()
	start := time.Now()

	fail := func(err error) (string, error) {
		p.opts.Metrics.observeRender(renderer.Name(), "error", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	mod, err := p.opts.Bundler.SSRLoadModule(ctx, island.Path)
	if err != nil {
		return fail(component.RenderError(island.Path, err))
	}
	p.opts.Styles.Add(island.InputPath, CollectCSS(p.opts.Bundler.ModuleGraph(), mod.URL)...)

	props, err := p.opts.Props.Resolve(island.InputPath, island.PropIDs)
	if err != nil {
		return fail(err)
	}
	slot, err := p.renderMarkers(ctx, island.InputPath, island.Slot)
	if err != nil {
		return fail(err)
	}

	var cacheKey string
	if p.opts.Cache != nil {
		if key, ok := p.opts.Cache.Key(mod.URL, props, slot); ok {
			cacheKey = key
			entry, err := p.opts.Cache.Get(ctx, key)
			switch {
			case err == nil:
				p.opts.Metrics.cacheHit()
				p.opts.Metrics.observeRender(renderer.Name(), "cached", start)
				span.SetAttributes(attribute.Bool("slinkity.cache_hit", true))
				p.opts.Styles.AddInline(island.InputPath, entry.CSS)
				return entry.HTML, nil
			case !isMiss(err):
				p.logger.Warn("render cache read failed", "component", island.Path, "error", err)
			}
		}
	}

	res, err := renderer.SSR(ctx, component.SSRParams{
		Component:     mod,
		Props:         props,
		Slots:         map[string]string{"default": slot},
		SSRLoadModule: p.opts.Bundler.SSRLoadModule,
		Shortcodes:    p.opts.Shortcodes,
	})
	if err != nil {
		return fail(component.RenderError(island.Path, err))
	}
	p.opts.Styles.AddInline(island.InputPath, res.CSS)

	if cacheKey != "" {
		if err := p.opts.Cache.Set(ctx, cacheKey, CacheEntry{HTML: res.HTML, CSS: res.CSS}); err != nil {
			p.logger.Warn("render cache write failed", "component", island.Path, "error", err)
		}
	}

	p.opts.Metrics.observeRender(renderer.Name(), "ok", start)
	return res.HTML, nil
}
