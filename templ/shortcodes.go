// Package templ discovers islands. Shortcodes is the engine behind the
// host's "island", "clientOnlyIsland" and "prop" shortcodes; the templ
// components in this package expose the same engine to Go templates, and
// Renderer lets templ components themselves be used as islands.
package templ

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/slinkity/slinkity/bundler"
	"github.com/slinkity/slinkity/component"
	"github.com/slinkity/slinkity/hydrate"
	"github.com/slinkity/slinkity/marker"
)

// Shortcodes registers islands and emits their placeholder markup.
type Shortcodes struct {
	Registry *component.IslandRegistry
	Props    *component.PropStore
	Bundler  bundler.Bundler
	// ComponentDir resolves component paths that are not absolute.
	ComponentDir string
	// PropsURL maps an input path to its props module. Defaults to
	// hydrate.DevPropsURL.
	PropsURL func(inputPath string) string
	// LoaderBase overrides where bootstrap scripts import loaders from.
	LoaderBase string
}

// ResolvePath returns the absolute component path for p.
func (s *Shortcodes) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.ComponentDir, p)
}

// Prop registers name=value and returns the marker the island shortcode
// consumes from its content.
func (s *Shortcodes) Prop(inputPath, name string, value any) string {
	return marker.ToPropComment(s.Props.AddProp(inputPath, name, value, false))
}

// Island implements the "island" shortcode. tokens are load conditions;
// content is the shortcode body, holding prop markers and slot markup.
func (s *Shortcodes) Island(ctx context.Context, inputPath, componentPath string, tokens []string, content string) (string, error) {
	return s.shortcode(ctx, component.VariantIsland, inputPath, componentPath, tokens, content)
}

// ClientOnlyIsland implements the "clientOnlyIsland" shortcode.
func (s *Shortcodes) ClientOnlyIsland(ctx context.Context, inputPath, componentPath string, tokens []string, content string) (string, error) {
	return s.shortcode(ctx, component.VariantClientOnly, inputPath, componentPath, tokens, content)
}

func (s *Shortcodes) shortcode(ctx context.Context, variant component.Variant, inputPath, componentPath string, tokens []string, content string) (string, error) {
	res, err := component.ResolveShortcode(variant, inputPath, tokens)
	if err != nil {
		return "", err
	}
	propIDs, slot := marker.ExtractPropIDsFromHTML(content)
	return s.Emit(ctx, inputPath, s.ResolvePath(componentPath), res, propIDs, slot)
}

// Page registers a component page as a single island. props come from
// component.ResolvePage.
func (s *Shortcodes) Page(ctx context.Context, inputPath, componentPath string, res component.Resolution, props map[string]any) (string, error) {
	ids := make([]string, 0, len(props))
	for _, name := range sortedKeys(props) {
		ids = append(ids, s.Props.AddProp(inputPath, name, props[name], false))
	}
	return s.Emit(ctx, inputPath, componentPath, res, ids, "")
}

// Emit registers the island and returns what replaces the shortcode:
//
//	server: <!--slinkity-ssr ID-->
//	both:   <slinkity-root data-root-id="ID"><!--slinkity-ssr ID--></slinkity-root><script>
//	client: <slinkity-root data-root-id="ID"></slinkity-root><script>
//
// The bootstrap script always follows the wrapper, so for "both" it runs
// after the server markup that replaces the marker.
func (s *Shortcodes) Emit(ctx context.Context, inputPath, path string, res component.Resolution, propIDs []string, slot string) (string, error) {
	island := &component.Island{
		Path:       path,
		PropIDs:    propIDs,
		Slot:       slot,
		Conditions: res.Conditions,
		RenderOn:   res.RenderOn,
	}
	id, err := s.Registry.Register(inputPath, island)
	if err != nil {
		return "", err
	}

	if !island.RenderOn.OnClient() {
		return marker.ToSSRComment(id), nil
	}

	if err := s.Props.MarkClient(inputPath, propIDs...); err != nil {
		return "", err
	}
	componentURL, err := s.Bundler.ClientURL(ctx, path)
	if err != nil {
		return "", fmt.Errorf("resolve client url for %s: %w", path, err)
	}
	propsURL := s.PropsURL
	if propsURL == nil {
		propsURL = hydrate.DevPropsURL
	}
	script, err := hydrate.Script(hydrate.Params{
		Island:       island,
		ComponentURL: componentURL,
		RendererURL:  island.Renderer.ClientEntrypoint(),
		PropsURL:     propsURL(inputPath),
		LoaderBase:   s.LoaderBase,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(RootOpen(id))
	if island.RenderOn.OnServer() {
		b.WriteString(marker.ToSSRComment(id))
	}
	b.WriteString(RootClose)
	b.WriteString(script)
	return b.String(), nil
}

// RootOpen is the opening tag of an island's wrapper element.
func RootOpen(id string) string {
	return "<" + marker.RootElement + " " + marker.RootIDAttr + `="` + id + `">`
}

// RootClose closes the wrapper element.
const RootClose = "</" + marker.RootElement + ">"

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
