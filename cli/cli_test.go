package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/slinkity/slinkity"
	"github.com/slinkity/slinkity/store/redis"
)

func newConfig(t *testing.T) slinkity.Config {
	t.Helper()
	cfg := slinkity.DefaultConfig()
	cfg.Input = t.TempDir()
	cfg.Output = filepath.Join(t.TempDir(), "out")
	if err := os.WriteFile(filepath.Join(cfg.Input, "index.html"), []byte(`<p>{{.page.URL}}</p>`), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestBuild(t *testing.T) {
	cfg := newConfig(t)
	p, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Expected project to open, got %v", err)
	}
	defer p.Close()

	if p.Static == nil {
		t.Fatal("Expected static bundler without a sidecar")
	}

	var out bytes.Buffer
	res, err := Build(context.Background(), p, BuildConfig{Clean: true}, NewPlainPrinter(&out))
	if err != nil {
		t.Fatalf("Expected build to succeed, got %v", err)
	}
	if res.Pages != 1 {
		t.Errorf("Expected 1 page, got %d", res.Pages)
	}
	if !strings.Contains(out.String(), "Built 1 pages") || !strings.Contains(out.String(), "[1/2] Cleaning") {
		t.Errorf("Expected build summary, got %s", out.String())
	}

	page, err := os.ReadFile(filepath.Join(cfg.Output, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(page) != "<p>/</p>" {
		t.Errorf("Expected rendered page, got %s", page)
	}
}

func TestOpenInvalidConfig(t *testing.T) {
	cfg := newConfig(t)
	cfg.Addr = "nope"
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Error("Expected invalid config to fail")
	}
}

func TestOpenWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := newConfig(t)
	cfg.Redis.Addr = mr.Addr()
	cfg.Cache.Enabled = true

	p, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Expected project to open, got %v", err)
	}
	defer p.Close()

	if _, ok := p.PubSub().(*redis.PubSub); !ok {
		t.Errorf("Expected redis pubsub, got %T", p.PubSub())
	}
	if p.Session.Cache == nil {
		t.Error("Expected render cache")
	}
}

func TestOpenRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := newConfig(t)
	cfg.Redis.Addr = addr
	if _, err := Open(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "connect to redis") {
		t.Errorf("Expected redis connection error, got %v", err)
	}
}

func TestOpenDevInjectsReloadScript(t *testing.T) {
	cfg := newConfig(t)
	cfg.Dev = true
	cfg.Metrics = true

	p, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if p.Plugin.Hub == nil || p.Plugin.Gatherer == nil {
		t.Error("Expected reload hub and metrics in dev")
	}
	if !strings.Contains(p.Static.HeadHTML, "WebSocket") {
		t.Errorf("Expected reload script in head, got %q", p.Static.HeadHTML)
	}
}

func TestServeRequiresDev(t *testing.T) {
	p, err := Open(context.Background(), newConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if err := Serve(context.Background(), p, NewPlainPrinter(&bytes.Buffer{})); err == nil {
		t.Error("Expected serve to refuse a build config")
	}
}

func TestCleanOutputRefusesInput(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "site")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		out     string
		wantErr bool
	}{
		{name: "sibling", out: filepath.Join(root, "out")},
		{name: "same dir", out: in, wantErr: true},
		{name: "parent", out: root, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cleanOutput(in, tt.out)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
	if _, err := os.Stat(in); err != nil {
		t.Errorf("Expected input to survive, got %v", err)
	}
}

func TestWatchExtra(t *testing.T) {
	cfg := newConfig(t)
	outside := t.TempDir()

	tests := []struct {
		dir  string
		want int
	}{
		{dir: "_components", want: 0},
		{dir: filepath.Join(cfg.Input, "_components"), want: 0},
		{dir: outside, want: 1},
	}
	for _, tt := range tests {
		cfg.ComponentDir = tt.dir
		if got := watchExtra(&Project{Config: cfg}); len(got) != tt.want {
			t.Errorf("Expected %d extra dirs for %s, got %v", tt.want, tt.dir, got)
		}
	}
}
