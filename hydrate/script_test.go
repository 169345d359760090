package hydrate

import (
	"os"
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"

	"github.com/slinkity/slinkity/component"
)

func TestMain(m *testing.M) {
	v := m.Run()
	snaps.Clean(m)
	os.Exit(v)
}

func island(t *testing.T, variant component.Variant, tokens ...string) *component.Island {
	t.Helper()
	res, err := component.ResolveShortcode(variant, "/pages/index.html", tokens)
	if err != nil {
		t.Fatal(err)
	}
	return &component.Island{
		ID:         "1f2e3d4c-1",
		InputPath:  "/pages/index.html",
		Path:       "/site/components/Counter.jsx",
		PropIDs:    []string{"p00000000000000aa"},
		Conditions: res.Conditions,
		RenderOn:   res.RenderOn,
	}
}

func params(i *component.Island) Params {
	return Params{
		Island:       i,
		ComponentURL: "/components/Counter.jsx",
		RendererURL:  "/renderers/preact/client.js",
		PropsURL:     "/@slinkity/props?inputPath=%2Fpages%2Findex.html",
	}
}

func TestScriptSnapshot(t *testing.T) {
	out, err := Script(params(island(t, component.VariantIsland, "client:visible", "client:media=(max-width: 600px)")))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	snaps.MatchSnapshot(t, out)
}

func TestScriptImportsOneLoaderPerFamily(t *testing.T) {
	out, err := Script(params(island(t, component.VariantIsland,
		"client:media=(min-width: 1px)", "client:idle", "client:media=print")))
	if err != nil {
		t.Fatal(err)
	}

	if n := strings.Count(out, `import media from "/_slinkity/loaders/media.js";`); n != 1 {
		t.Errorf("Expected media loader imported once, got %d", n)
	}
	if n := strings.Count(out, `import idle from`); n != 1 {
		t.Errorf("Expected idle loader imported once, got %d", n)
	}
	if strings.Contains(out, "import visible") || strings.Contains(out, "import load ") {
		t.Errorf("Expected unused loaders not imported, got %s", out)
	}
	want := `race([media(target, "(min-width: 1px)"), idle(target), media(target, "print")])`
	if !strings.Contains(out, want) {
		t.Errorf("Expected race over every condition, got %s", out)
	}
	if !strings.Contains(out, "isClientOnly: false") {
		t.Error("Expected isClientOnly false for a server-rendered island")
	}
}

func TestScriptClientOnly(t *testing.T) {
	out, err := Script(params(island(t, component.VariantClientOnly)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "race([load(target)])") {
		t.Errorf("Expected implicit load condition, got %s", out)
	}
	if !strings.Contains(out, "isClientOnly: true") {
		t.Error("Expected isClientOnly true")
	}
	if !strings.Contains(out, `document.querySelector("slinkity-root[data-root-id=\"1f2e3d4c-1\"]")`) {
		t.Errorf("Expected wrapper lookup by id, got %s", out)
	}
}

func TestScriptEscapesSlot(t *testing.T) {
	i := island(t, component.VariantClientOnly, "client:load")
	i.Slot = "<p>hi</p></script>"
	out, err := Script(params(i))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(out, "</script>") != 1 {
		t.Errorf("Expected slot content to be escaped, got %s", out)
	}
}

func TestScriptRejectsServerIsland(t *testing.T) {
	_, err := Script(params(island(t, component.VariantIsland)))
	if !component.IsInternal(err) {
		t.Errorf("Expected internal error for server island, got %v", err)
	}
}

func TestScriptLoaderBase(t *testing.T) {
	p := params(island(t, component.VariantIsland, "client:load"))
	p.LoaderBase = "/assets/loaders"
	out, err := Script(p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `import race from "/assets/loaders/race.js";`) {
		t.Errorf("Expected custom loader base, got %s", out)
	}
}

func TestPropsURLs(t *testing.T) {
	if got := DevPropsURL("/pages/a b.html"); got != "/@slinkity/props?inputPath=%2Fpages%2Fa+b.html" {
		t.Errorf("Expected escaped dev url, got %s", got)
	}
	got := BuildPropsURL("/pages/index.html")
	if !strings.HasPrefix(got, "/_slinkity/props/") || !strings.HasSuffix(got, ".js") {
		t.Errorf("Expected build props url, got %s", got)
	}
	if got != BuildPropsURL("/pages/index.html") || got == BuildPropsURL("/pages/about.html") {
		t.Error("Expected build url stable per input path and distinct across paths")
	}
}
