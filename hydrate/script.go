// Package hydrate generates the client bootstrap script for islands that
// render on the client.
package hydrate

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/slinkity/slinkity/component"
	"github.com/slinkity/slinkity/embed"
	"github.com/slinkity/slinkity/marker"
)

// Params describes one island's bootstrap.
type Params struct {
	Island *component.Island
	// ComponentURL is the browser import URL of the component module.
	ComponentURL string
	// RendererURL is the browser import URL of the renderer's client entrypoint.
	RendererURL string
	// PropsURL is the page's props module.
	PropsURL string
	// LoaderBase overrides embed.BasePath.
	LoaderBase string
}

// Script returns the <script type="module"> that waits for the island's first
// load condition, then mounts it into its wrapper.
func Script(p Params) (string, error) {
	island := p.Island
	if island == nil {
		return "", fmt.Errorf("hydrate: nil island")
	}
	if !island.RenderOn.OnClient() {
		return "", component.InternalError(island.InputPath, island.ID, "server-only island reached client bootstrap")
	}
	if len(island.Conditions) == 0 {
		return "", component.InternalError(island.InputPath, island.ID, "client island has no load conditions")
	}
	if !marker.ValidID(island.ID) {
		return "", component.InternalError(island.InputPath, island.ID, "invalid island id")
	}

	base := p.LoaderBase
	if base == "" {
		base = embed.BasePath
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	var b strings.Builder
	b.WriteString(`<script type="module">` + "\n")
	fmt.Fprintf(&b, "import race from %s;\n", js(base+"race.js"))
	fmt.Fprintf(&b, "import mount from %s;\n", js(base+"mount.js"))
	for _, kind := range component.Kinds(island.Conditions) {
		fmt.Fprintf(&b, "import %s from %s;\n", kind, js(base+string(kind)+".js"))
	}

	fmt.Fprintf(&b, "const target = document.querySelector(%s);\n", js(marker.RootSelector(island.ID)))

	futures := make([]string, 0, len(island.Conditions))
	for _, c := range island.Conditions {
		if c.Kind == component.ConditionMedia {
			futures = append(futures, fmt.Sprintf("media(target, %s)", js(c.Query)))
			continue
		}
		futures = append(futures, fmt.Sprintf("%s(target)", c.Kind))
	}
	fmt.Fprintf(&b, "race([%s]).then(() => mount(target, {\n", strings.Join(futures, ", "))
	fmt.Fprintf(&b, "  component: () => import(%s),\n", js(p.ComponentURL))
	fmt.Fprintf(&b, "  renderer: () => import(%s),\n", js(p.RendererURL))
	fmt.Fprintf(&b, "  props: () => import(%s),\n", js(p.PropsURL))
	fmt.Fprintf(&b, "  propIds: %s,\n", js(nonNil(island.PropIDs)))
	if island.Slot != "" {
		fmt.Fprintf(&b, "  slots: %s,\n", js(map[string]string{"default": island.Slot}))
	}
	fmt.Fprintf(&b, "  isClientOnly: %t,\n", island.RenderOn == component.RenderClient)
	b.WriteString("}));\n</script>")
	return b.String(), nil
}

// js encodes v as a JavaScript literal. The encoder escapes <, > and & so
// the result cannot terminate the surrounding script element.
func js(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		// only strings, string slices and string maps reach here
		panic(err)
	}
	return string(out)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
