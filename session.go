package slinkity

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/slinkity/slinkity/bundler"
	"github.com/slinkity/slinkity/component"
	"github.com/slinkity/slinkity/embed"
	"github.com/slinkity/slinkity/hydrate"
	"github.com/slinkity/slinkity/plugin"
	"github.com/slinkity/slinkity/ssr"
	"github.com/slinkity/slinkity/store"
	"github.com/slinkity/slinkity/templ"
)

// SessionOptions supplies the collaborators of a Session.
type SessionOptions struct {
	Bundler   bundler.Bundler
	Renderers []component.Renderer
	// Storage backs the render cache when Config.Cache.Enabled. Defaults to
	// an in-memory store.
	Storage store.Storage
	// PubSub carries reload messages. Defaults to an in-memory PubSub.
	PubSub store.PubSub
	// Registerer receives the render metrics. Nil disables metrics.
	Registerer prometheus.Registerer
}

// Session is one build or one dev-server lifetime. It owns every island,
// prop and render-cache entry; nothing is global.
type Session struct {
	Config     Config
	Renderers  *component.Renderers
	Registry   *component.IslandRegistry
	Props      *component.PropStore
	Bundler    bundler.Bundler
	Shortcodes *templ.Shortcodes
	Post       *ssr.PostProcessor
	Cache      *ssr.Cache
	PubSub     store.PubSub

	logger *slog.Logger

	mu    sync.RWMutex
	metas map[string]*component.IslandMeta
}

// NewSession wires the island pipeline for cfg.
func NewSession(cfg Config, opts SessionOptions) (*Session, error) {
	if opts.Bundler == nil {
		return nil, fmt.Errorf("slinkity: a bundler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	renderers, err := component.NewRenderers(opts.Renderers...)
	if err != nil {
		return nil, err
	}
	componentDir := cfg.ComponentDir
	if !filepath.IsAbs(componentDir) {
		componentDir = filepath.Join(cfg.Input, componentDir)
	}
	if componentDir, err = filepath.Abs(componentDir); err != nil {
		return nil, err
	}

	s := &Session{
		Config:    cfg,
		Renderers: renderers,
		Registry:  component.NewIslandRegistry(renderers),
		Props:     component.NewPropStore(),
		Bundler:   opts.Bundler,
		PubSub:    opts.PubSub,
		logger:    logger,
		metas:     make(map[string]*component.IslandMeta),
	}
	if s.PubSub == nil {
		s.PubSub = store.NewMemoryPubSub()
	}

	propsURL := hydrate.BuildPropsURL
	if cfg.Dev {
		propsURL = hydrate.DevPropsURL
	}
	s.Shortcodes = &templ.Shortcodes{
		Registry:     s.Registry,
		Props:        s.Props,
		Bundler:      s.Bundler,
		ComponentDir: componentDir,
		PropsURL:     propsURL,
	}

	if cfg.Cache.Enabled {
		storage := opts.Storage
		if storage == nil {
			storage = store.NewMemoryStorage(0)
		}
		s.Cache = ssr.NewCache(storage, cfg.Cache.TTL)
	}
	var metrics *ssr.Metrics
	if opts.Registerer != nil {
		metrics = ssr.NewMetrics(opts.Registerer)
	}
	s.Post = ssr.New(ssr.Options{
		Registry:    s.Registry,
		Props:       s.Props,
		Bundler:     s.Bundler,
		Cache:       s.Cache,
		Metrics:     metrics,
		Concurrency: cfg.Concurrency,
		Dev:         cfg.Dev,
		Logger:      logger,
		Shortcodes: map[string]any{
			"island":           s.Shortcodes.Island,
			"clientOnlyIsland": s.Shortcodes.ClientOnlyIsland,
			"prop":             s.Shortcodes.Prop,
		},
	})
	return s, nil
}

// Reset forgets every island, prop and pending stylesheet. Hosts that
// recompile every page call it before each build.
func (s *Session) Reset() {
	for _, p := range s.Registry.Paths() {
		s.Registry.Clear(p)
		s.Post.Styles().Clear(p)
	}
	for _, p := range s.Props.Paths() {
		s.Props.Clear(p)
	}
}

// FileChanged purges state derived from path before it recompiles: its
// islands and props, the bundler's module and the render cache. A changed
// component, stylesheet or script may be imported anywhere, so it purges
// the whole render cache.
func (s *Session) FileChanged(ctx context.Context, path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	s.Registry.Clear(path)
	s.Props.Clear(path)
	s.Post.Styles().Clear(path)
	s.mu.Lock()
	delete(s.metas, path)
	s.mu.Unlock()

	url := s.Bundler.URLFor(path)
	s.Bundler.Invalidate(url)

	if s.Cache == nil {
		return
	}
	var err error
	if s.isAsset(path) {
		err = s.Cache.Purge(ctx)
	} else {
		err = s.Cache.Invalidate(ctx, url)
	}
	if err != nil {
		s.logger.Warn("render cache invalidation failed", "path", path, "error", err)
	}
}

// ProcessPage runs the island pass over a rendered page.
func (s *Session) ProcessPage(ctx context.Context, page plugin.Page, html string) (string, error) {
	return s.Post.Process(ctx, ssr.Page{InputPath: page.InputPath, OutputPath: page.OutputPath, URL: page.URL}, html)
}

// PageData loads a component page and returns the data it exports. Its
// island metadata is kept for RenderPage.
func (s *Session) PageData(ctx context.Context, inputPath string) (map[string]any, error) {
	renderer, err := s.Renderers.ForPath(inputPath)
	if err != nil {
		return nil, err
	}
	mod, err := s.Bundler.SSRLoadModule(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("load page %s: %w", inputPath, err)
	}
	exports, err := renderer.Page(ctx, component.PageParams{Component: mod})
	if err != nil {
		return nil, fmt.Errorf("load page %s: %w", inputPath, err)
	}
	s.mu.Lock()
	s.metas[inputPath] = exports.IslandMeta
	s.mu.Unlock()
	return exports.Data, nil
}

// RenderPage emits a component page as a single island.
func (s *Session) RenderPage(ctx context.Context, inputPath string, data map[string]any) (string, error) {
	s.mu.RLock()
	meta := s.metas[inputPath]
	s.mu.RUnlock()

	res, props, err := component.ResolvePage(inputPath, meta, data)
	if err != nil {
		return "", err
	}
	return s.Shortcodes.Page(ctx, inputPath, inputPath, res, props)
}

// WriteAssets writes what built pages import at runtime: the props module
// of every page with a hydrating island, and the loader scripts.
func (s *Session) WriteAssets(ctx context.Context, out plugin.Output) error {
	hydrating := false
	for _, inputPath := range s.Registry.Paths() {
		if !hasClientIsland(s.Registry.Islands(inputPath)) {
			continue
		}
		hydrating = true
		code, err := s.Props.SerializeClientBundle(inputPath)
		if err != nil {
			return err
		}
		name := strings.TrimPrefix(hydrate.BuildPropsURL(inputPath), "/")
		if err := out.WriteFile(ctx, name, []byte(code)); err != nil {
			return err
		}
	}
	if !hydrating {
		return nil
	}
	for _, name := range embed.Names() {
		src, err := embed.Loader(name)
		if err != nil {
			return err
		}
		if err := out.WriteFile(ctx, strings.TrimPrefix(embed.URL(name), "/"), src); err != nil {
			return err
		}
	}
	return nil
}

// CheckClientProps serializes the client props of every page with a
// hydrating island, so a value the browser cannot receive fails the build
// in dev the same way WriteAssets fails it in production.
func (s *Session) CheckClientProps() error {
	for _, inputPath := range s.Registry.Paths() {
		if !hasClientIsland(s.Registry.Islands(inputPath)) {
			continue
		}
		if _, _, err := s.Props.ClientBundle(inputPath); err != nil {
			return err
		}
	}
	return nil
}

func hasClientIsland(islands []*component.Island) bool {
	for _, i := range islands {
		if i.RenderOn.OnClient() {
			return true
		}
	}
	return false
}

func (s *Session) isAsset(path string) bool {
	if ssr.IsCSS(path) {
		return true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".ts":
		return true
	}
	_, err := s.Renderers.ForPath(path)
	return err == nil
}
