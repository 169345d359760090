package component

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/slinkity/slinkity/bundler"
)

// Capabilities declares which optional parts of the renderer contract an
// implementation supports. They are checked once, when the renderer is added.
type Capabilities struct {
	// HasPageSupport means the renderer can treat a whole file as a page.
	HasPageSupport bool
	// HasSSRSupport means the renderer can produce server HTML.
	HasSSRSupport bool
}

// SSRParams is passed to Renderer.SSR.
type SSRParams struct {
	Component *bundler.Module
	Props     map[string]any
	// Slots holds serialized child content; "default" is the shortcode body.
	Slots         map[string]string
	SSRLoadModule func(ctx context.Context, path string) (*bundler.Module, error)
	// Shortcodes exposes the host's registered shortcode helpers.
	Shortcodes map[string]any
}

// SSRResult is the output of a server render.
type SSRResult struct {
	HTML string
	CSS  string
}

// PageParams is passed to Renderer.Page.
type PageParams struct {
	Component *bundler.Module
}

// IslandMeta is the optional page-level hydration export of a component page.
type IslandMeta struct {
	// When lists load-condition tokens, e.g. "client:idle".
	When []string
	// Props computes hydration props from the page's cascaded data.
	Props func(data map[string]any) (map[string]any, error)
}

// PageExports is what a renderer reports about a component page.
type PageExports struct {
	Data       map[string]any
	IslandMeta *IslandMeta
}

// Renderer is a framework adapter.
type Renderer interface {
	Name() string
	// Extensions are file extensions without the leading dot.
	Extensions() []string
	// ClientEntrypoint is the import specifier of the client mount module.
	ClientEntrypoint() string
	Capabilities() Capabilities
	SSR(ctx context.Context, params SSRParams) (SSRResult, error)
	Page(ctx context.Context, params PageParams) (PageExports, error)
}

// Definition holds the static part of a renderer and can be embedded by
// implementations.
type Definition struct {
	RendererName string
	Exts         []string
	Client       string
	Caps         Capabilities
}

func (d Definition) Name() string               { return d.RendererName }
func (d Definition) Extensions() []string       { return d.Exts }
func (d Definition) ClientEntrypoint() string   { return d.Client }
func (d Definition) Capabilities() Capabilities { return d.Caps }

// Renderers maps file extensions to renderers.
type Renderers struct {
	mu    sync.RWMutex
	byExt map[string]Renderer
	list  []Renderer
}

// NewRenderers creates a table holding rs.
func NewRenderers(rs ...Renderer) (*Renderers, error) {
	t := &Renderers{byExt: make(map[string]Renderer)}
	for _, r := range rs {
		if err := t.Add(r); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add validates and registers r for each of its extensions.
func (t *Renderers) Add(r Renderer) error {
	if r == nil {
		return configError("", "", "renderer is nil")
	}
	if r.Name() == "" {
		return configError("", "", "renderer name cannot be empty")
	}
	if len(r.Extensions()) == 0 {
		return configError("", r.Name(), "renderer declares no extensions")
	}
	caps := r.Capabilities()
	if !caps.HasSSRSupport && r.ClientEntrypoint() == "" {
		return configError("", r.Name(), "renderer supports neither server rendering nor a client entrypoint")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ext := range r.Extensions() {
		ext = normalizeExt(ext)
		if ext == "" {
			return configError("", r.Name(), "renderer declares an empty extension")
		}
		if owner, exists := t.byExt[ext]; exists {
			return configError("", ext, "extension already handled by renderer %s", owner.Name())
		}
	}
	for _, ext := range r.Extensions() {
		t.byExt[normalizeExt(ext)] = r
	}
	t.list = append(t.list, r)
	return nil
}

// ForPath returns the renderer for path's extension.
func (t *Renderers) ForPath(path string) (Renderer, error) {
	ext := normalizeExt(filepath.Ext(path))
	t.mu.RLock()
	r, ok := t.byExt[ext]
	t.mu.RUnlock()
	if !ok {
		return nil, configError(path, ext, "no renderer registered for extension")
	}
	return r, nil
}

// All returns renderers in registration order.
func (t *Renderers) All() []Renderer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Renderer, len(t.list))
	copy(out, t.list)
	return out
}

// PageExtensions returns the sorted extensions whose renderer supports pages.
func (t *Renderers) PageExtensions() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var exts []string
	for ext, r := range t.byExt {
		if r.Capabilities().HasPageSupport {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// String implements fmt.Stringer for log output.
func (c Capabilities) String() string {
	return fmt.Sprintf("page=%t ssr=%t", c.HasPageSupport, c.HasSSRSupport)
}
