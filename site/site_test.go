package site

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2"

	"github.com/slinkity/slinkity/plugin"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

type testPlugin struct {
	mu      sync.Mutex
	built   []plugin.Page
	changed []string
}

func (p *testPlugin) Name() string { return "test" }

func (p *testPlugin) Register(host plugin.Host) error {
	host.AddShortcode("greet", func(_ context.Context, _ plugin.Page, args []any) (string, error) {
		return fmt.Sprintf("Hello, %v", args[0]), nil
	})
	host.AddPairedShortcode("box", func(_ context.Context, _ plugin.Page, content string, args []any) (string, error) {
		return fmt.Sprintf(`<div class="%v">%s</div>`, args[0], content), nil
	})
	host.AddTransform("hi", func(_ context.Context, _ plugin.Page, html string) (string, error) {
		return strings.Replace(html, "Hello", "Hi", 1), nil
	})
	host.AddExtension(".txt", plugin.Extension{
		GetData: func(context.Context, string) (map[string]any, error) {
			return map[string]any{"title": "Notes"}, nil
		},
		Compile: func(context.Context, string) (plugin.Render, error) {
			return func(_ context.Context, page plugin.Page) (string, error) {
				return fmt.Sprintf("<h1>%v</h1>", page.Data["title"]), nil
			}, nil
		},
	})
	host.On(plugin.AfterBuild, func(_ context.Context, ev plugin.Event) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.built = ev.Pages
		return ev.Output.WriteFile(context.Background(), "_assets/after.txt", []byte("ok"))
	})
	host.On(plugin.BeforeWatch, func(_ context.Context, ev plugin.Event) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.changed = ev.ChangedFiles
		return nil
	})
	return nil
}

func newSite(t *testing.T) (*Site, *testPlugin, string, string) {
	t.Helper()
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, in, "index.html", `{{define "layout"}}base.html{{end}}<p>{{greet "Ada"}}</p>{{box "wide" (slot "<i>in</i>")}}`)
	writeFile(t, in, "notes.txt", "ignored by the extension")
	writeFile(t, in, "components/Skip.html", "<p>not a page</p>")
	writeFile(t, in, "_includes/base.html", `<html><head><title>{{.page.URL}}</title></head><body>{{.content}}</body></html>`)

	s, err := New(Options{Input: in, Output: DiskOutput{Dir: out}, Ignore: []string{"components"}})
	if err != nil {
		t.Fatal(err)
	}
	p := &testPlugin{}
	if err := s.Use(p); err != nil {
		t.Fatal(err)
	}
	return s, p, in, out
}

func readOut(t *testing.T, out, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("Expected output %s, got %v", name, err)
	}
	return string(b)
}

func TestBuild(t *testing.T) {
	s, p, _, out := newSite(t)

	pages, err := s.Build(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("Expected 2 pages, got %d", len(pages))
	}

	want := `<html><head><title>/</title></head><body><p>Hi, Ada</p><div class="wide"><i>in</i></div></body></html>`
	if got := readOut(t, out, "index.html"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if got := readOut(t, out, "notes/index.html"); got != "<h1>Notes</h1>" {
		t.Errorf("Expected extension page, got %s", got)
	}
	if readOut(t, out, "_assets/after.txt") != "ok" {
		t.Error("Expected after-build hook to write through the output")
	}
	if len(p.built) != 2 || p.built[1].URL != "/notes/" {
		t.Errorf("Expected after-build pages, got %+v", p.built)
	}
}

func TestBuildReportsRenderErrors(t *testing.T) {
	s, _, in, _ := newSite(t)
	writeFile(t, in, "broken.html", "{{nope}}")

	_, err := s.Build(context.Background())
	if err == nil || !strings.Contains(err.Error(), "broken.html") {
		t.Errorf("Expected error naming the page, got %v", err)
	}
}

func TestOutputFor(t *testing.T) {
	tests := []struct {
		rel, out, url string
	}{
		{"index.html", "index.html", "/"},
		{"about.html", "about/index.html", "/about/"},
		{"blog/index.jsx", "blog/index.html", "/blog/"},
		{"blog/post.jsx", "blog/post/index.html", "/blog/post/"},
	}
	for _, tt := range tests {
		out, url := outputFor(tt.rel)
		if out != tt.out || url != tt.url {
			t.Errorf("outputFor(%q): Expected %s %s, got %s %s", tt.rel, tt.out, tt.url, out, url)
		}
	}
}

func TestRebuildTriggersBeforeWatch(t *testing.T) {
	s, p, in, out := newSite(t)
	changed := []string{filepath.Join(in, "index.html")}

	if err := s.Rebuild(context.Background(), changed); err != nil {
		t.Fatal(err)
	}
	if len(p.changed) != 1 || p.changed[0] != changed[0] {
		t.Errorf("Expected changed files in hook, got %v", p.changed)
	}
	readOut(t, out, "index.html")
}

func TestWatch(t *testing.T) {
	Debounce = 20 * time.Millisecond
	s, p, in, _ := newSite(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	built := make(chan error, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, nil, func(_ []string, err error) { built <- err })
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
wait:
	for {
		select {
		case err := <-built:
			if err != nil {
				t.Fatalf("Expected rebuild to succeed, got %v", err)
			}
			break wait
		case <-tick.C:
			writeFile(t, in, "notes.txt", time.Now().String())
		case <-deadline:
			t.Fatal("Expected a rebuild after a file change")
		}
	}

	p.mu.Lock()
	found := false
	for _, f := range p.changed {
		if filepath.Base(f) == "notes.txt" {
			found = true
		}
	}
	p.mu.Unlock()
	if !found {
		t.Errorf("Expected notes.txt among changed files, got %v", p.changed)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Expected clean shutdown, got %v", err)
	}
}

func TestApp(t *testing.T) {
	s, _, _, out := newSite(t)
	s.SetServerOptions(plugin.ServerOptions{
		Setup: func(app *fiber.App) {
			app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusTeapot).SendString(err.Error())
		},
	})
	if _, err := s.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	app := s.App(out)

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	if err != nil {
		t.Fatal(err)
	}
	if body, _ := io.ReadAll(resp.Body); string(body) != "pong" {
		t.Errorf("Expected plugin route, got %s", body)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/notes/", nil))
	if err != nil {
		t.Fatal(err)
	}
	if body, _ := io.ReadAll(resp.Body); string(body) != "<h1>Notes</h1>" {
		t.Errorf("Expected built page, got %s", body)
	}
}

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(b))
	return &s3.PutObjectOutput{}, nil
}

func TestS3Output(t *testing.T) {
	fake := &fakeS3{}
	o := &S3Output{Client: fake, Bucket: "site", Prefix: "www/"}

	if err := o.WriteFile(context.Background(), "about/index.html", []byte("<p>hi</p>")); err != nil {
		t.Fatal(err)
	}
	if err := o.WriteFile(context.Background(), "_slinkity/props/a.js", []byte("export default {};")); err != nil {
		t.Fatal(err)
	}

	in := fake.inputs[0]
	if *in.Bucket != "site" || *in.Key != "www/about/index.html" {
		t.Errorf("Expected bucket site key www/about/index.html, got %s %s", *in.Bucket, *in.Key)
	}
	if !strings.HasPrefix(*in.ContentType, "text/html") {
		t.Errorf("Expected html content type, got %s", *in.ContentType)
	}
	if fake.bodies[0] != "<p>hi</p>" {
		t.Errorf("Expected body, got %s", fake.bodies[0])
	}
	if !strings.Contains(*fake.inputs[1].ContentType, "javascript") {
		t.Errorf("Expected javascript content type, got %s", *fake.inputs[1].ContentType)
	}

	fake.err = errors.New("denied")
	if err := o.WriteFile(context.Background(), "x.html", nil); !errors.Is(err, fake.err) {
		t.Errorf("Expected wrapped upload error, got %v", err)
	}
}
