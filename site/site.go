// Package site is a small static-site generator implementing plugin.Host.
// Pages are html/template files or files handled by a registered
// extension; plugin shortcodes are exposed as template functions.
package site

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"github.com/slinkity/slinkity/plugin"
)

// Options configures a Site.
type Options struct {
	// Input is the source directory.
	Input string
	// Output receives built pages.
	Output plugin.Output
	// Includes names the layouts directory inside Input. Default "_includes".
	Includes string
	// Ignore lists directory names (relative to Input) that hold no pages.
	Ignore []string
	// Concurrency bounds parallel page renders. Default 8.
	Concurrency int
	Logger      *slog.Logger
}

type transform struct {
	name string
	fn   plugin.Transform
}

// Site builds pages and hosts plugins.
type Site struct {
	opts  Options
	input string
	hooks plugin.Hooks

	mu         sync.RWMutex
	exts       map[string]plugin.Extension
	shortcodes map[string]plugin.Shortcode
	paired     map[string]plugin.PairedShortcode
	transforms []transform
	server     plugin.ServerOptions

	buildMu sync.Mutex
}

var _ plugin.Host = (*Site)(nil)

// New creates a site rooted at opts.Input.
func New(opts Options) (*Site, error) {
	if opts.Input == "" {
		return nil, fmt.Errorf("site: input directory is required")
	}
	if opts.Output == nil {
		return nil, fmt.Errorf("site: output is required")
	}
	if opts.Includes == "" {
		opts.Includes = "_includes"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	input, err := filepath.Abs(opts.Input)
	if err != nil {
		return nil, err
	}
	return &Site{
		opts:       opts,
		input:      input,
		exts:       make(map[string]plugin.Extension),
		shortcodes: make(map[string]plugin.Shortcode),
		paired:     make(map[string]plugin.PairedShortcode),
	}, nil
}

// Input returns the absolute source directory.
func (s *Site) Input() string { return s.input }

// Use registers p.
func (s *Site) Use(p plugin.Plugin) error {
	if err := p.Register(s); err != nil {
		return fmt.Errorf("plugin %s: %w", p.Name(), err)
	}
	return nil
}

// AddExtension implements plugin.Host.
func (s *Site) AddExtension(ext string, e plugin.Extension) {
	s.mu.Lock()
	s.exts[strings.TrimPrefix(strings.ToLower(ext), ".")] = e
	s.mu.Unlock()
}

// AddShortcode implements plugin.Host.
func (s *Site) AddShortcode(name string, fn plugin.Shortcode) {
	s.mu.Lock()
	s.shortcodes[name] = fn
	s.mu.Unlock()
}

// AddPairedShortcode implements plugin.Host.
func (s *Site) AddPairedShortcode(name string, fn plugin.PairedShortcode) {
	s.mu.Lock()
	s.paired[name] = fn
	s.mu.Unlock()
}

// AddTransform implements plugin.Host. Transforms run in registration order.
func (s *Site) AddTransform(name string, fn plugin.Transform) {
	s.mu.Lock()
	s.transforms = append(s.transforms, transform{name: name, fn: fn})
	s.mu.Unlock()
}

// SetServerOptions implements plugin.Host.
func (s *Site) SetServerOptions(opts plugin.ServerOptions) {
	s.mu.Lock()
	s.server = opts
	s.mu.Unlock()
}

// On implements plugin.Host.
func (s *Site) On(hook plugin.Hook, h plugin.Handler) {
	s.hooks.On(hook, h)
}

// Pages lists every page under Input in path order.
func (s *Site) Pages() ([]plugin.Page, error) {
	skip := map[string]bool{s.opts.Includes: true}
	for _, dir := range s.opts.Ignore {
		skip[filepath.Clean(dir)] = true
	}

	outDir := s.outputDir()

	var pages []plugin.Page
	err := filepath.WalkDir(s.input, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(s.input, p)
		if d.IsDir() {
			if p != s.input && (skip[rel] || ShouldSkipDir(d.Name()) || p == outDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.handles(p) {
			return nil
		}
		out, url := outputFor(filepath.ToSlash(rel))
		pages = append(pages, plugin.Page{InputPath: p, OutputPath: out, URL: url})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].InputPath < pages[j].InputPath })
	return pages, nil
}

// Build renders every page, runs transforms and writes the result.
func (s *Site) Build(ctx context.Context) ([]plugin.Page, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if err := s.hooks.Trigger(ctx, plugin.Event{Hook: plugin.BeforeBuild, Output: s.opts.Output}); err != nil {
		return nil, err
	}
	pages, err := s.Pages()
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range pages {
		g.Go(func() error {
			html, err := s.Render(gctx, &pages[i])
			if err != nil {
				return fmt.Errorf("render %s: %w", pages[i].InputPath, err)
			}
			return s.opts.Output.WriteFile(gctx, pages[i].OutputPath, []byte(html))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.opts.Logger.Info("site built", "pages", len(pages))
	err = s.hooks.Trigger(ctx, plugin.Event{Hook: plugin.AfterBuild, Pages: pages, Output: s.opts.Output})
	return pages, err
}

// Render produces the final HTML of page, filling page.Data.
func (s *Site) Render(ctx context.Context, page *plugin.Page) (string, error) {
	var (
		html string
		err  error
	)
	if ext, ok := s.extension(page.InputPath); ok {
		html, err = s.renderExtension(ctx, ext, page)
	} else {
		html, err = s.renderTemplate(ctx, page)
	}
	if err != nil {
		return "", err
	}

	if layout, ok := page.Data["layout"].(string); ok && layout != "" {
		if html, err = s.renderLayout(ctx, *page, layout, html); err != nil {
			return "", err
		}
	}

	s.mu.RLock()
	transforms := append([]transform(nil), s.transforms...)
	s.mu.RUnlock()
	for _, t := range transforms {
		if html, err = t.fn(ctx, *page, html); err != nil {
			return "", fmt.Errorf("transform %s: %w", t.name, err)
		}
	}
	return html, nil
}

// ServerOptions returns what plugins configured for the dev server.
func (s *Site) ServerOptions() plugin.ServerOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.server
}

// App creates the dev server app serving dir with plugin routes mounted
// first.
func (s *Site) App(dir string) *fiber.App {
	opts := s.ServerOptions()
	cfg := fiber.Config{DisableStartupMessage: true}
	if opts.ErrorHandler != nil {
		cfg.ErrorHandler = opts.ErrorHandler
	}
	app := fiber.New(cfg)
	app.Use(recover.New())
	if opts.Setup != nil {
		opts.Setup(app)
	}
	app.Static("/", dir)
	return app
}

// outputDir is the absolute disk output directory, if any.
func (s *Site) outputDir() string {
	if o, ok := s.opts.Output.(DiskOutput); ok {
		dir, _ := filepath.Abs(o.Dir)
		return dir
	}
	return ""
}

func (s *Site) handles(p string) bool {
	if strings.EqualFold(filepath.Ext(p), ".html") {
		return true
	}
	_, ok := s.extension(p)
	return ok
}

func (s *Site) extension(p string) (plugin.Extension, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.exts[strings.TrimPrefix(strings.ToLower(filepath.Ext(p)), ".")]
	return e, ok
}

func (s *Site) renderExtension(ctx context.Context, ext plugin.Extension, page *plugin.Page) (string, error) {
	if ext.GetData != nil {
		data, err := ext.GetData(ctx, page.InputPath)
		if err != nil {
			return "", err
		}
		page.Data = data
	}
	if page.Data == nil {
		page.Data = map[string]any{}
	}
	render, err := ext.Compile(ctx, page.InputPath)
	if err != nil {
		return "", err
	}
	return render(ctx, *page)
}

func (s *Site) renderTemplate(ctx context.Context, page *plugin.Page) (string, error) {
	src, err := os.ReadFile(page.InputPath)
	if err != nil {
		return "", err
	}
	if page.Data == nil {
		page.Data = map[string]any{}
	}
	t, err := template.New(filepath.Base(page.InputPath)).Funcs(s.funcs(ctx, *page)).Parse(string(src))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, templateData(*page, "")); err != nil {
		return "", err
	}
	// Templates may set data through {{define "layout"}}.
	if lt := t.Lookup("layout"); lt != nil {
		var name strings.Builder
		if err := lt.Execute(&name, nil); err != nil {
			return "", err
		}
		page.Data["layout"] = strings.TrimSpace(name.String())
	}
	return b.String(), nil
}

func (s *Site) renderLayout(ctx context.Context, page plugin.Page, layout, content string) (string, error) {
	p := filepath.Join(s.input, s.opts.Includes, filepath.FromSlash(layout))
	src, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("layout %s: %w", layout, err)
	}
	t, err := template.New(layout).Funcs(s.funcs(ctx, page)).Parse(string(src))
	if err != nil {
		return "", fmt.Errorf("layout %s: %w", layout, err)
	}
	var b strings.Builder
	if err := t.Execute(&b, templateData(page, content)); err != nil {
		return "", fmt.Errorf("layout %s: %w", layout, err)
	}
	return b.String(), nil
}

// funcs binds every shortcode to page. String arguments are passed
// through; template.HTML arguments of paired shortcodes form the body.
func (s *Site) funcs(ctx context.Context, page plugin.Page) template.FuncMap {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fm := template.FuncMap{
		"slot": func(markup string) template.HTML { return template.HTML(markup) },
	}
	for name, fn := range s.shortcodes {
		fm[name] = func(args ...any) (template.HTML, error) {
			out, err := fn(ctx, page, args)
			return template.HTML(out), err
		}
	}
	for name, fn := range s.paired {
		fm[name] = func(args ...any) (template.HTML, error) {
			content, rest := splitContent(args)
			out, err := fn(ctx, page, content, rest)
			return template.HTML(out), err
		}
	}
	return fm
}

func splitContent(args []any) (string, []any) {
	var b strings.Builder
	rest := make([]any, 0, len(args))
	for _, a := range args {
		if h, ok := a.(template.HTML); ok {
			b.WriteString(string(h))
			continue
		}
		rest = append(rest, a)
	}
	return b.String(), rest
}

func templateData(page plugin.Page, content string) map[string]any {
	data := make(map[string]any, len(page.Data)+2)
	for k, v := range page.Data {
		data[k] = v
	}
	data["page"] = page
	if content != "" {
		data["content"] = template.HTML(content)
	}
	return data
}

// outputFor maps a source path to its output file and URL:
// index.html -> index.html "/", about.jsx -> about/index.html "/about/".
func outputFor(rel string) (string, string) {
	dir, file := path.Split(rel)
	name := strings.TrimSuffix(file, path.Ext(file))
	if name != "index" {
		dir = path.Join(dir, name) + "/"
	}
	if dir == "" {
		return "index.html", "/"
	}
	return dir + "index.html", "/" + dir
}

var skipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
}

// ShouldSkipDir reports whether a directory never holds pages.
func ShouldSkipDir(name string) bool {
	if _, ok := skipDirs[name]; ok {
		return true
	}
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}
