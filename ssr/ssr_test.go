package ssr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/slinkity/slinkity/bundler"
	"github.com/slinkity/slinkity/component"
	"github.com/slinkity/slinkity/marker"
	"github.com/slinkity/slinkity/store"
)

type echoRenderer struct {
	component.Definition
	calls atomic.Int32
	err   error
}

func (r *echoRenderer) SSR(_ context.Context, p component.SSRParams) (component.SSRResult, error) {
	r.calls.Add(1)
	if r.err != nil {
		return component.SSRResult{}, r.err
	}
	if d, ok := p.Props["delay"].(int); ok {
		time.Sleep(time.Duration(d) * time.Millisecond)
	}
	name := strings.TrimSuffix(filepath.Base(p.Component.Path), filepath.Ext(p.Component.Path))
	return component.SSRResult{
		HTML: fmt.Sprintf("<%s>%v%s</%s>", strings.ToLower(name), p.Props["count"], p.Slots["default"], strings.ToLower(name)),
		CSS:  "." + strings.ToLower(name) + "{}",
	}, nil
}

func (r *echoRenderer) Page(context.Context, component.PageParams) (component.PageExports, error) {
	return component.PageExports{}, nil
}

type fixture struct {
	root     string
	bundler  *bundler.Static
	registry *component.IslandRegistry
	props    *component.PropStore
	renderer *echoRenderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{"Counter.jsx", "Badge.jsx", "Slow.jsx", "Fast.jsx"} {
		path := filepath.Join(root, "components", name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("export default () => null"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	r := &echoRenderer{Definition: component.Definition{
		RendererName: "preact",
		Exts:         []string{"jsx"},
		Client:       "/renderers/preact/client.js",
		Caps:         component.Capabilities{HasSSRSupport: true},
	}}
	table, err := component.NewRenderers(r)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		root:     root,
		bundler:  bundler.NewStatic(root),
		registry: component.NewIslandRegistry(table),
		props:    component.NewPropStore(),
		renderer: r,
	}
}

func (f *fixture) island(t *testing.T, inputPath, name string, renderOn component.RenderOn, props map[string]any) string {
	t.Helper()
	var ids []string
	for k, v := range props {
		ids = append(ids, f.props.AddProp(inputPath, k, v, false))
	}
	id, err := f.registry.Register(inputPath, &component.Island{
		Path:     filepath.Join(f.root, "components", name),
		PropIDs:  ids,
		RenderOn: renderOn,
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func (f *fixture) processor(opts Options) *PostProcessor {
	opts.Registry = f.registry
	opts.Props = f.props
	opts.Bundler = f.bundler
	return New(opts)
}

func TestIsCSS(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"/a.css", true},
		{"/a.module.scss", true},
		{"/a.CSS?v=1", true},
		{"/a.css?inline", false},
		{"/a.js", false},
		{"/a", false},
	}
	for _, tt := range tests {
		if got := IsCSS(tt.url); got != tt.want {
			t.Errorf("IsCSS(%q): Expected %t, got %t", tt.url, tt.want, got)
		}
	}
}

func TestCollectCSSVisitsEachModuleOnce(t *testing.T) {
	g := bundler.NewMemoryGraph()
	g.AddImport("/A.jsx", "/B.jsx", "/C.jsx", "/a.css")
	g.AddImport("/B.jsx", "/X.css")
	g.AddImport("/C.jsx", "/X.css", "/D.jsx")
	g.AddImport("/D.jsx", "/A.jsx")

	got := CollectCSS(g, "/A.jsx")
	want := []string{"/X.css", "/a.css"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if CollectCSS(g, "/missing.jsx") != nil {
		t.Error("Expected nil for unknown module")
	}
}

func TestProcessPreservesSurroundingContent(t *testing.T) {
	f := newFixture(t)
	id := f.island(t, "/index.html", "Counter.jsx", component.RenderServer, map[string]any{"count": 1})
	f.bundler.Graph.AddImport("/components/Counter.jsx", "/components/counter.css")

	before := "<html><head><title>x</title></head><body>\n  <p>a &amp; b <!-- keep --></p>\n  "
	after := "\n  <footer>é</footer>\n</body></html>"
	page := before + marker.ToSSRComment(id) + after

	out, err := f.processor(Options{}).Process(context.Background(), Page{InputPath: "/index.html"}, page)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	head := `<link rel="stylesheet" href="/components/counter.css"><style>.counter{}</style>`
	want := strings.Replace(before, "</head>", head+"</head>", 1) + "<counter>1</counter>" + after
	if out != want {
		t.Errorf("Expected\n%s\ngot\n%s", want, out)
	}
}

func TestProcessNoMarkers(t *testing.T) {
	f := newFixture(t)
	page := "<html><head></head><body>static</body></html>"
	out, err := f.processor(Options{}).Process(context.Background(), Page{InputPath: "/plain.html"}, page)
	if err != nil {
		t.Fatal(err)
	}
	if out != page {
		t.Errorf("Expected page unchanged, got %s", out)
	}
}

func TestProcessInjectsStylesOncePerPage(t *testing.T) {
	f := newFixture(t)
	a := f.island(t, "/index.html", "Counter.jsx", component.RenderServer, map[string]any{"count": 1})
	b := f.island(t, "/index.html", "Counter.jsx", component.RenderBoth, map[string]any{"count": 2})
	f.bundler.Graph.AddImport("/components/Counter.jsx", "/shared.css")

	page := "<head>" + marker.StylesSlot + "</head>" + marker.ToSSRComment(a) + marker.ToSSRComment(b)
	p := f.processor(Options{})
	out, err := p.Process(context.Background(), Page{InputPath: "/index.html"}, page)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out, "/shared.css"); n != 1 {
		t.Errorf("Expected stylesheet injected once, got %d in %s", n, out)
	}
	if n := strings.Count(out, "<style>.counter{}</style>"); n != 1 {
		t.Errorf("Expected inline css once, got %d", n)
	}
	if strings.Contains(out, marker.StylesSlot) {
		t.Error("Expected styles slot to be consumed")
	}
	if urls, inline := p.Styles().Flush("/index.html"); urls != nil || inline != nil {
		t.Error("Expected styles to be flushed after the page")
	}
}

func TestProcessSubstitutesByID(t *testing.T) {
	f := newFixture(t)
	slow := f.island(t, "/index.html", "Slow.jsx", component.RenderServer, map[string]any{"count": "s", "delay": 30})
	fast := f.island(t, "/index.html", "Fast.jsx", component.RenderServer, map[string]any{"count": "f"})

	page := "1" + marker.ToSSRComment(slow) + "2" + marker.ToSSRComment(fast) + "3" + marker.ToSSRComment(slow)
	out, err := f.processor(Options{}).Process(context.Background(), Page{InputPath: "/index.html"}, page)
	if err != nil {
		t.Fatal(err)
	}
	want := "<style>.slow{}</style><style>.fast{}</style>1<slow>s</slow>2<fast>f</fast>3<slow>s</slow>"
	alt := "<style>.fast{}</style><style>.slow{}</style>1<slow>s</slow>2<fast>f</fast>3<slow>s</slow>"
	if out != want && out != alt {
		t.Errorf("Expected markers replaced in place, got %s", out)
	}
	if n := f.renderer.calls.Load(); n != 2 {
		t.Errorf("Expected each island rendered once, got %d calls", n)
	}
}

func TestProcessRendersNestedIslands(t *testing.T) {
	f := newFixture(t)
	inner := f.island(t, "/index.html", "Badge.jsx", component.RenderServer, map[string]any{"count": 2})
	outer, err := f.registry.Register("/index.html", &component.Island{
		Path:     filepath.Join(f.root, "components", "Counter.jsx"),
		PropIDs:  []string{f.props.AddProp("/index.html", "count", 1, false)},
		Slot:     "<i>" + marker.ToSSRComment(inner) + "</i>",
		RenderOn: component.RenderServer,
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := f.processor(Options{}).Process(context.Background(), Page{InputPath: "/index.html"}, "<main>"+marker.ToSSRComment(outer)+"</main>")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out, "<main><counter>1<i><badge>2</badge></i></counter></main>") {
		t.Errorf("Expected inner island rendered inside outer, got %s", out)
	}
	if strings.Contains(out, "<!--"+marker.Prefix) {
		t.Errorf("Expected no markers left, got %s", out)
	}
	if !strings.Contains(out, "<style>.badge{}</style>") {
		t.Errorf("Expected nested island css collected, got %s", out)
	}
}

func TestProcessStripsStrayPropMarkers(t *testing.T) {
	f := newFixture(t)
	id := f.island(t, "/index.html", "Counter.jsx", component.RenderServer, map[string]any{"count": 3})
	stray := f.props.AddProp("/index.html", "count", 4, false)

	page := "<p>" + marker.ToPropComment(stray) + "</p>" + marker.ToSSRComment(id)
	out, err := f.processor(Options{}).Process(context.Background(), Page{InputPath: "/index.html"}, page)
	if err != nil {
		t.Fatal(err)
	}
	want := "<style>.counter{}</style><p></p><counter>3</counter>"
	if out != want {
		t.Errorf("Expected %q, got %q", want, out)
	}
}

func TestProcessDesyncIsInternal(t *testing.T) {
	f := newFixture(t)
	f.island(t, "/index.html", "Counter.jsx", component.RenderServer, nil)

	_, err := f.processor(Options{}).Process(context.Background(), Page{InputPath: "/index.html"}, marker.ToSSRComment("ffff-99"))
	if !component.IsInternal(err) {
		t.Errorf("Expected internal error, got %v", err)
	}
}

func TestProcessRejectsClientIsland(t *testing.T) {
	f := newFixture(t)
	id := f.island(t, "/index.html", "Counter.jsx", component.RenderClient, nil)

	_, err := f.processor(Options{}).Process(context.Background(), Page{InputPath: "/index.html"}, marker.ToSSRComment(id))
	if !component.IsInternal(err) {
		t.Errorf("Expected internal error, got %v", err)
	}
	if f.renderer.calls.Load() != 0 {
		t.Error("Expected client island never to be server rendered")
	}
}

func TestProcessRendererFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("window is not defined")
	f.renderer.err = boom
	id := f.island(t, "/index.html", "Counter.jsx", component.RenderServer, nil)

	out, err := f.processor(Options{}).Process(context.Background(), Page{InputPath: "/index.html"}, "x"+marker.ToSSRComment(id))
	if err == nil {
		t.Fatal("Expected error")
	}
	if out != "" {
		t.Errorf("Expected no partial output, got %s", out)
	}
	if !component.HasCode(err, component.ErrorCodeRender) || !errors.Is(err, boom) {
		t.Errorf("Expected render error wrapping cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "Counter.jsx") {
		t.Errorf("Expected error to name component, got %s", err.Error())
	}
}

func TestProcessDevTransform(t *testing.T) {
	f := newFixture(t)
	f.bundler.HeadHTML = `<script type="module" src="/@slinkity/reload.js"></script>`

	out, err := f.processor(Options{Dev: true}).Process(context.Background(), Page{InputPath: "/index.html", URL: "/"}, "<head></head>")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "/@slinkity/reload.js") {
		t.Errorf("Expected dev transform to run, got %s", out)
	}
}

func TestRenderCache(t *testing.T) {
	f := newFixture(t)
	mem := store.NewMemoryStorage(0)
	defer mem.Close()
	cache := NewCache(mem, 0)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	p := f.processor(Options{Cache: cache, Metrics: metrics})
	ctx := context.Background()

	render := func() string {
		t.Helper()
		id := f.island(t, "/index.html", "Counter.jsx", component.RenderServer, map[string]any{"count": 7})
		out, err := p.Process(ctx, Page{InputPath: "/index.html"}, marker.ToSSRComment(id))
		if err != nil {
			t.Fatal(err)
		}
		return out
	}

	first := render()
	second := render()
	if first != second {
		t.Errorf("Expected cached render to match, got %s and %s", first, second)
	}
	if n := f.renderer.calls.Load(); n != 1 {
		t.Errorf("Expected 1 renderer call with cache, got %d", n)
	}
	if hits := testutil.ToFloat64(metrics.cacheHits); hits != 1 {
		t.Errorf("Expected 1 cache hit, got %v", hits)
	}

	if err := cache.Invalidate(ctx, "/components/Counter.jsx"); err != nil {
		t.Fatal(err)
	}
	render()
	if n := f.renderer.calls.Load(); n != 2 {
		t.Errorf("Expected re-render after invalidation, got %d calls", n)
	}
	if got := testutil.ToFloat64(metrics.renders.WithLabelValues("preact", "ok")); got != 2 {
		t.Errorf("Expected 2 successful renders recorded, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.renders.WithLabelValues("preact", "cached")); got != 1 {
		t.Errorf("Expected 1 cached render recorded, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.pages); got != 3 {
		t.Errorf("Expected 3 pages processed, got %v", got)
	}
}

func TestCacheKeyUnencodable(t *testing.T) {
	c := NewCache(store.NewMemoryStorage(0), 0)
	if _, ok := c.Key("/a.jsx", map[string]any{"fn": func() {}}, ""); ok {
		t.Error("Expected function props to be uncacheable")
	}
	a, _ := c.Key("/a.jsx", map[string]any{"n": 1}, "")
	b, _ := c.Key("/a.jsx", map[string]any{"n": 1}, "slot")
	if a == b {
		t.Error("Expected slot content to change the key")
	}
}

func TestInjectHead(t *testing.T) {
	tests := []struct {
		name, page, tags, want string
	}{
		{"before head", "<head><title>t</title></head>", "<x>", "<head><title>t</title><x></head>"},
		{"upper head", "<HEAD></HEAD>", "<x>", "<HEAD><x></HEAD>"},
		{"slot", "<head>" + marker.StylesSlot + "<title>t</title></head>", "<x>", "<head><x><title>t</title></head>"},
		{"slot without tags", "<head>" + marker.StylesSlot + "</head>", "", "<head></head>"},
		{"no head", "<p>frag</p>", "<x>", "<x><p>frag</p>"},
		{"nothing to inject", "<p>frag</p>", "", "<p>frag</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InjectHead(tt.page, tt.tags); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
