package templ

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/a-h/templ"

	"github.com/slinkity/slinkity/component"
)

// ComponentFunc builds a templ component from resolved props and slots.
type ComponentFunc func(props map[string]any, slots map[string]string) templ.Component

// Page is a Go component page.
type Page struct {
	Data       map[string]any
	IslandMeta *component.IslandMeta
	Component  ComponentFunc
}

// Renderer server-renders Go templ components registered under a file
// path. It has no client entrypoint, so its islands are always static.
type Renderer struct {
	component.Definition

	mu         sync.RWMutex
	components map[string]ComponentFunc
	pages      map[string]Page
}

var _ component.Renderer = (*Renderer)(nil)

// NewRenderer creates a renderer for the "templ" extension.
func NewRenderer() *Renderer {
	return &Renderer{
		Definition: component.Definition{
			RendererName: "templ",
			Exts:         []string{"templ"},
			Caps:         component.Capabilities{HasPageSupport: true, HasSSRSupport: true},
		},
		components: make(map[string]ComponentFunc),
		pages:      make(map[string]Page),
	}
}

// Register makes fn available as the component at path.
func (r *Renderer) Register(path string, fn ComponentFunc) {
	r.mu.Lock()
	r.components[path] = fn
	r.mu.Unlock()
}

// RegisterPage makes p available as the component page at path.
func (r *Renderer) RegisterPage(path string, p Page) {
	r.mu.Lock()
	r.pages[path] = p
	r.components[path] = p.Component
	r.mu.Unlock()
}

// SSR implements component.Renderer.
func (r *Renderer) SSR(ctx context.Context, params component.SSRParams) (component.SSRResult, error) {
	r.mu.RLock()
	fn, ok := r.components[params.Component.Path]
	r.mu.RUnlock()
	if !ok {
		return component.SSRResult{}, fmt.Errorf("no templ component registered for %s", params.Component.Path)
	}

	var b strings.Builder
	if err := fn(params.Props, params.Slots).Render(ctx, &b); err != nil {
		return component.SSRResult{}, err
	}
	return component.SSRResult{HTML: b.String()}, nil
}

// Page implements component.Renderer.
func (r *Renderer) Page(_ context.Context, params component.PageParams) (component.PageExports, error) {
	r.mu.RLock()
	p, ok := r.pages[params.Component.Path]
	r.mu.RUnlock()
	if !ok {
		return component.PageExports{}, fmt.Errorf("no templ page registered for %s", params.Component.Path)
	}
	return component.PageExports{Data: p.Data, IslandMeta: p.IslandMeta}, nil
}

// Slot renders the named slot content unescaped.
func Slot(slots map[string]string, name string) templ.Component {
	return templ.Raw(slots[name])
}
