// Package component tracks the islands discovered while templates compile:
// the props passed to them, the renderer that owns each file extension and
// the render mode resolved for every usage.
package component

import (
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// RenderOn says where an island's markup is produced.
type RenderOn string

const (
	// RenderServer renders static HTML only; no client bootstrap is emitted.
	RenderServer RenderOn = "server"
	// RenderClient skips the server pass and mounts into an empty wrapper.
	RenderClient RenderOn = "client"
	// RenderBoth server-renders for first paint and hydrates later.
	RenderBoth RenderOn = "both"
)

// OnServer reports whether the island takes part in the SSR marker pass.
func (r RenderOn) OnServer() bool { return r == RenderServer || r == RenderBoth }

// OnClient reports whether the island gets a client bootstrap script.
func (r RenderOn) OnClient() bool { return r == RenderClient || r == RenderBoth }

// Island is one usage of a component in one source template.
type Island struct {
	ID        string
	InputPath string
	// Path is the resolved, absolute component path.
	Path string
	// PropIDs is an ordered set of prop ids in the PropStore.
	PropIDs    []string
	Slot       string
	Conditions []LoadCondition
	RenderOn   RenderOn
	Renderer   Renderer
}

type islandSet struct {
	order []string
	byID  map[string]*Island
}

// IslandRegistry stores islands keyed by input path, then by id.
type IslandRegistry struct {
	mu        sync.RWMutex
	renderers *Renderers
	paths     map[string]*islandSet
	// seq survives Clear so a recompiled file never reuses an id.
	seq map[string]int
}

// NewIslandRegistry creates a registry that resolves renderers from renderers.
func NewIslandRegistry(renderers *Renderers) *IslandRegistry {
	return &IslandRegistry{
		renderers: renderers,
		paths:     make(map[string]*islandSet),
		seq:       make(map[string]int),
	}
}

// Renderers returns the extension table backing the registry.
func (r *IslandRegistry) Renderers() *Renderers {
	return r.renderers
}

// Register assigns an id to island and merges it into inputPath's islands.
// The renderer is resolved and checked here so configuration mistakes
// surface before any HTML is produced.
func (r *IslandRegistry) Register(inputPath string, island *Island) (string, error) {
	if island.Path == "" {
		return "", configError(inputPath, "", "island component path cannot be empty")
	}
	renderer, err := r.renderers.ForPath(island.Path)
	if err != nil {
		return "", err
	}
	caps := renderer.Capabilities()
	if island.RenderOn.OnServer() && !caps.HasSSRSupport {
		return "", configError(inputPath, island.Path, "renderer %s cannot server render; use client-only rendering", renderer.Name())
	}
	if island.RenderOn.OnClient() && renderer.ClientEntrypoint() == "" {
		return "", configError(inputPath, island.Path, "renderer %s has no client entrypoint and cannot hydrate", renderer.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.paths[inputPath]
	if !ok {
		set = &islandSet{byID: make(map[string]*Island)}
		r.paths[inputPath] = set
	}
	r.seq[inputPath]++

	island.ID = pathPrefix(inputPath) + "-" + strconv.Itoa(r.seq[inputPath])
	island.InputPath = inputPath
	island.Renderer = renderer
	set.byID[island.ID] = island
	set.order = append(set.order, island.ID)
	return island.ID, nil
}

// Get returns the island registered under id. A miss is an internal error:
// it means a marker outlived its registry entry.
func (r *IslandRegistry) Get(inputPath, id string) (*Island, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.paths[inputPath]
	if !ok {
		return nil, internalError(inputPath, id, "no islands registered for input path")
	}
	island, ok := set.byID[id]
	if !ok {
		return nil, internalError(inputPath, id, "island id not found in registry")
	}
	return island, nil
}

// Islands returns inputPath's islands in registration order.
func (r *IslandRegistry) Islands(inputPath string) []*Island {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.paths[inputPath]
	if !ok {
		return nil
	}
	out := make([]*Island, 0, len(set.order))
	for _, id := range set.order {
		out = append(out, set.byID[id])
	}
	return out
}

// Clear drops every island registered for inputPath.
func (r *IslandRegistry) Clear(inputPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paths, inputPath)
}

// Paths returns the input paths that currently hold islands, sorted.
func (r *IslandRegistry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.paths))
	for p := range r.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func pathPrefix(inputPath string) string {
	return strconv.FormatUint(xxhash.Sum64String(inputPath)&0xffffffff, 16)
}
