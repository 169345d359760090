package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/slinkity/slinkity"
	"github.com/slinkity/slinkity/bundler"
	"github.com/slinkity/slinkity/bundler/process"
	"github.com/slinkity/slinkity/component"
	"github.com/slinkity/slinkity/fiber"
	"github.com/slinkity/slinkity/plugin"
	"github.com/slinkity/slinkity/site"
	"github.com/slinkity/slinkity/store"
	"github.com/slinkity/slinkity/store/redis"
)

// Project is a configured site with the island plugin installed.
type Project struct {
	Config   slinkity.Config
	Session  *slinkity.Session
	Site     *site.Site
	Plugin   *slinkity.Plugin
	Registry *prometheus.Registry
	// Static is set when no sidecar is configured.
	Static *bundler.Static

	sidecar *process.Client
	redis   *goredis.Client
	logger  *slog.Logger
}

// Open assembles a project from cfg: the bundler (sidecar or static), the
// renderers it serves, the cache and reload backends and the site output.
func Open(ctx context.Context, cfg slinkity.Config) (*Project, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Project{Config: cfg, logger: logger}

	root, err := filepath.Abs(cfg.Input)
	if err != nil {
		return nil, err
	}

	var (
		b         bundler.Bundler
		renderers []component.Renderer
	)
	switch {
	case len(cfg.Sidecar.Command) > 0:
		p.sidecar, err = process.Start(ctx, process.Options{
			Command:      cfg.Sidecar.Command,
			Dir:          root,
			Socket:       cfg.Sidecar.Socket,
			StartTimeout: cfg.Sidecar.StartTimeout,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
	case cfg.Sidecar.Socket != "":
		p.sidecar = process.Dial(cfg.Sidecar.Socket, root, logger)
	}
	if p.sidecar != nil {
		b = p.sidecar
		for _, rc := range cfg.Renderers {
			renderers = append(renderers, process.NewRenderer(p.sidecar, component.Definition{
				RendererName: rc.Name,
				Exts:         rc.Extensions,
				Client:       rc.Client,
				Caps:         component.Capabilities{HasPageSupport: rc.Page, HasSSRSupport: rc.SSR},
			}))
		}
	} else {
		p.Static = bundler.NewStatic(root)
		b = p.Static
	}

	opts := slinkity.SessionOptions{Bundler: b, Renderers: renderers}
	if cfg.Redis.Addr != "" {
		p.redis = goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err := p.redis.Ping(ctx).Err(); err != nil {
			p.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		opts.Storage = redis.NewStore(p.redis)
		opts.PubSub = redis.NewPubSub(p.redis)
	}
	if cfg.Metrics {
		p.Registry = prometheus.NewRegistry()
		p.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts.Registerer = p.Registry
	}

	p.Session, err = slinkity.NewSession(cfg, opts)
	if err != nil {
		p.Close()
		return nil, err
	}

	var out plugin.Output = site.DiskOutput{Dir: cfg.Output}
	if cfg.Publish.Bucket != "" && !cfg.Dev {
		out = site.NewS3Output(cfg.Publish.Region, cfg.Publish.Endpoint, cfg.Publish.Bucket, cfg.Publish.Prefix)
	}
	p.Site, err = site.New(site.Options{
		Input:       cfg.Input,
		Output:      out,
		Concurrency: cfg.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		p.Close()
		return nil, err
	}

	p.Plugin = slinkity.NewPlugin(p.Session)
	if cfg.Dev {
		p.Plugin.Hub = fiber.NewReloadHub(logger)
		if p.Static != nil {
			p.Static.HeadHTML = fiber.ReloadScript
		}
	}
	if p.Registry != nil {
		p.Plugin.Gatherer = p.Registry
	}
	if err := p.Site.Use(p.Plugin); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Close stops the sidecar and closes the Redis connection.
func (p *Project) Close() {
	if p.sidecar != nil {
		if err := p.sidecar.Stop(); err != nil {
			p.logger.Warn("sidecar stop failed", "error", err)
		}
	}
	if p.redis != nil {
		_ = p.redis.Close()
	}
}

// PubSub returns the channel reload messages travel on.
func (p *Project) PubSub() store.PubSub {
	return p.Session.PubSub
}
