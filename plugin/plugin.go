// Package plugin defines the contract between slinkity and the static-site
// generator hosting it.
package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"
)

// Hook represents a host lifecycle event.
type Hook string

const (
	// BeforeBuild is triggered before a build or rebuild starts.
	BeforeBuild Hook = "eleventy.before"
	// AfterBuild is triggered after every page of a build is written.
	AfterBuild Hook = "eleventy.after"
	// BeforeWatch is triggered in watch mode before a rebuild, with the
	// files that changed.
	BeforeWatch Hook = "eleventy.beforeWatch"
)

// Page identifies the page being rendered.
type Page struct {
	InputPath  string
	OutputPath string
	URL        string
	Data       map[string]any
}

// Output receives built files. Names are slash-separated and relative to
// the output root.
type Output interface {
	WriteFile(ctx context.Context, name string, data []byte) error
}

// Event carries hook data.
type Event struct {
	Hook Hook
	// ChangedFiles is set for BeforeWatch.
	ChangedFiles []string
	// Pages is set for AfterBuild.
	Pages  []Page
	Output Output
}

// Handler handles a lifecycle event.
type Handler func(ctx context.Context, ev Event) error

// Shortcode returns markup for a template call.
type Shortcode func(ctx context.Context, page Page, args []any) (string, error)

// PairedShortcode is a shortcode with a body.
type PairedShortcode func(ctx context.Context, page Page, content string, args []any) (string, error)

// Transform rewrites a rendered page.
type Transform func(ctx context.Context, page Page, content string) (string, error)

// Render produces a page's HTML.
type Render func(ctx context.Context, page Page) (string, error)

// Extension teaches the host a new template format.
type Extension struct {
	// GetData returns the page data the file exports.
	GetData func(ctx context.Context, inputPath string) (map[string]any, error)
	// Compile returns the page's render function.
	Compile func(ctx context.Context, inputPath string) (Render, error)
}

// ServerOptions configures the host's dev server.
type ServerOptions struct {
	// Setup registers routes and middleware before the host serves files.
	Setup func(app *fiber.App)
	// ErrorHandler replaces the dev server's error handler.
	ErrorHandler fiber.ErrorHandler
}

// Host is what a plugin registers with.
type Host interface {
	AddExtension(ext string, e Extension)
	AddShortcode(name string, fn Shortcode)
	AddPairedShortcode(name string, fn PairedShortcode)
	AddTransform(name string, fn Transform)
	SetServerOptions(opts ServerOptions)
	On(hook Hook, h Handler)
}

// Plugin is an extension installed into a Host.
type Plugin interface {
	Name() string
	Register(host Host) error
}

// Hooks keeps lifecycle handlers in registration order.
type Hooks struct {
	mu       sync.RWMutex
	handlers map[Hook][]Handler
}

// On registers h for hook.
func (h *Hooks) On(hook Hook, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handlers == nil {
		h.handlers = make(map[Hook][]Handler)
	}
	h.handlers[hook] = append(h.handlers[hook], fn)
}

// Trigger runs every handler of ev.Hook, stopping at the first error.
func (h *Hooks) Trigger(ctx context.Context, ev Event) error {
	h.mu.RLock()
	handlers := append([]Handler(nil), h.handlers[ev.Hook]...)
	h.mu.RUnlock()

	for i, fn := range handlers {
		if err := fn(ctx, ev); err != nil {
			return fmt.Errorf("handler %d failed on hook %s: %w", i, ev.Hook, err)
		}
	}
	return nil
}
