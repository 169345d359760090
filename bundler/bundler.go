// Package bundler defines the module bundler / dev server contract the island
// pipeline consumes, plus an in-memory implementation for Go-only sites and
// tests.
package bundler

import (
	"context"
	"sync"
)

// Module is a loaded server-side module.
type Module struct {
	// Path is the absolute file path the module was loaded from.
	Path string
	// URL is the module graph URL, e.g. "/components/Counter.jsx".
	URL string
	// Exports holds whatever the bundler chose to report about the module.
	Exports map[string]any
}

// ModuleNode is one node of the bundler's module graph.
type ModuleNode struct {
	URL      string
	Imported []*ModuleNode
}

// Graph looks up modules by URL.
type Graph interface {
	ModuleByURL(url string) *ModuleNode
}

// Bundler is the module bundler / dev server contract.
type Bundler interface {
	// SSRLoadModule loads path for server rendering.
	SSRLoadModule(ctx context.Context, path string) (*Module, error)
	// ModuleGraph exposes the import graph used for CSS discovery.
	ModuleGraph() Graph
	// URLFor maps an absolute file path to its module graph URL.
	URLFor(path string) string
	// ClientURL returns the browser import URL for path: a dev-server URL
	// while serving, a built asset URL in production.
	ClientURL(ctx context.Context, path string) (string, error)
	// TransformIndexHTML lets the dev server inject its own client code.
	TransformIndexHTML(ctx context.Context, url, html string) (string, error)
	// Invalidate drops any cached module whose URL is url.
	Invalidate(url string)
}

// MemoryGraph is a mutable in-memory Graph.
type MemoryGraph struct {
	mu    sync.RWMutex
	nodes map[string]*ModuleNode
}

// NewMemoryGraph creates an empty graph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{nodes: make(map[string]*ModuleNode)}
}

// node returns the node for url, creating it. Callers hold the write lock.
func (g *MemoryGraph) node(url string) *ModuleNode {
	n, ok := g.nodes[url]
	if !ok {
		n = &ModuleNode{URL: url}
		g.nodes[url] = n
	}
	return n
}

// AddImport records that from imports each of to.
func (g *MemoryGraph) AddImport(from string, to ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	parent := g.node(from)
	for _, url := range to {
		child := g.node(url)
		dup := false
		for _, existing := range parent.Imported {
			if existing == child {
				dup = true
				break
			}
		}
		if !dup {
			parent.Imported = append(parent.Imported, child)
		}
	}
}

// ModuleByURL implements Graph.
func (g *MemoryGraph) ModuleByURL(url string) *ModuleNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[url]
}

// Remove drops url and every edge pointing at it.
func (g *MemoryGraph) Remove(url string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	target, ok := g.nodes[url]
	if !ok {
		return
	}
	delete(g.nodes, url)
	for _, n := range g.nodes {
		kept := n.Imported[:0]
		for _, child := range n.Imported {
			if child != target {
				kept = append(kept, child)
			}
		}
		n.Imported = kept
	}
}
