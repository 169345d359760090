package templ

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/slinkity/slinkity/marker"
)

// ErrNoPage is returned when an island component renders outside WithPage.
var ErrNoPage = errors.New("slinkity: island rendered without a page context")

type pageKey struct{}

type pageContext struct {
	shortcodes *Shortcodes
	inputPath  string
}

// WithPage binds the shortcode engine and the page's input path to ctx so
// the components below can register islands.
func WithPage(ctx context.Context, s *Shortcodes, inputPath string) context.Context {
	return context.WithValue(ctx, pageKey{}, pageContext{shortcodes: s, inputPath: inputPath})
}

// PageFromContext returns what WithPage stored.
func PageFromContext(ctx context.Context) (*Shortcodes, string, bool) {
	pc, ok := ctx.Value(pageKey{}).(pageContext)
	return pc.shortcodes, pc.inputPath, ok
}

// Island renders a component island. Children become the shortcode body:
//
//	@slinkity.Island("Counter.jsx", "client:visible") {
//		@slinkity.Prop("count", 1)
//		<p>slot content</p>
//	}
func Island(componentPath string, tokens ...string) templ.Component {
	return islandComponent(false, componentPath, tokens)
}

// ClientOnlyIsland renders a component island that skips server rendering.
func ClientOnlyIsland(componentPath string, tokens ...string) templ.Component {
	return islandComponent(true, componentPath, tokens)
}

func islandComponent(clientOnly bool, componentPath string, tokens []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		s, inputPath, ok := PageFromContext(ctx)
		if !ok {
			return ErrNoPage
		}

		var body strings.Builder
		children := templ.GetChildren(ctx)
		ctx = templ.ClearChildren(ctx)
		if err := children.Render(ctx, &body); err != nil {
			return err
		}

		emit := s.Island
		if clientOnly {
			emit = s.ClientOnlyIsland
		}
		out, err := emit(ctx, inputPath, componentPath, tokens, body.String())
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	})
}

// Prop registers a prop for the enclosing island.
func Prop(name string, value any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		s, inputPath, ok := PageFromContext(ctx)
		if !ok {
			return ErrNoPage
		}
		_, err := io.WriteString(w, s.Prop(inputPath, name, value))
		return err
	})
}

// StylesSlot marks where collected island stylesheets go in <head>.
func StylesSlot() templ.Component {
	return templ.Raw(marker.StylesSlot)
}
