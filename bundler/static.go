package bundler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Static is a Bundler that serves files straight from a root directory. It
// does no transformation; Go-rendered components and tests use it, and it is
// the fallback when no sidecar is configured.
type Static struct {
	Root string
	// Assets maps absolute paths to built client URLs. Paths without an
	// entry fall back to their root-relative URL.
	Assets map[string]string
	// Graph is the import graph; NewStatic sets an empty one.
	Graph *MemoryGraph
	// HeadHTML, when set, is injected before </head> by TransformIndexHTML.
	HeadHTML string

	mu     sync.Mutex
	loaded map[string]*Module
}

// NewStatic creates a Static bundler rooted at root.
func NewStatic(root string) *Static {
	return &Static{
		Root:   root,
		Assets: make(map[string]string),
		Graph:  NewMemoryGraph(),
		loaded: make(map[string]*Module),
	}
}

// SSRLoadModule implements Bundler. Modules are cached by URL until
// Invalidate is called.
func (s *Static) SSRLoadModule(ctx context.Context, path string) (*Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	url := s.URLFor(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.loaded[url]; ok {
		return m, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to load module %s: %w", path, err)
	}
	m := &Module{Path: path, URL: url, Exports: map[string]any{}}
	s.loaded[url] = m
	return m, nil
}

// ModuleGraph implements Bundler.
func (s *Static) ModuleGraph() Graph {
	return s.Graph
}

// URLFor implements Bundler.
func (s *Static) URLFor(path string) string {
	rel, err := filepath.Rel(s.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "/@fs" + filepath.ToSlash(path)
	}
	return "/" + filepath.ToSlash(rel)
}

// ClientURL implements Bundler.
func (s *Static) ClientURL(_ context.Context, path string) (string, error) {
	if url, ok := s.Assets[path]; ok {
		return url, nil
	}
	return s.URLFor(path), nil
}

// TransformIndexHTML implements Bundler.
func (s *Static) TransformIndexHTML(_ context.Context, _ string, html string) (string, error) {
	if s.HeadHTML == "" {
		return html, nil
	}
	if i := strings.Index(html, "</head>"); i >= 0 {
		return html[:i] + s.HeadHTML + html[i:], nil
	}
	return s.HeadHTML + html, nil
}

// Invalidate implements Bundler.
func (s *Static) Invalidate(url string) {
	s.mu.Lock()
	delete(s.loaded, url)
	s.mu.Unlock()
}

// Loaded reports whether url is currently cached.
func (s *Static) Loaded(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loaded[url]
	return ok
}
