package ssr

import (
	"path"
	"strings"

	"github.com/slinkity/slinkity/bundler"
)

var cssExts = map[string]bool{
	".css":     true,
	".scss":    true,
	".sass":    true,
	".less":    true,
	".styl":    true,
	".stylus":  true,
	".pcss":    true,
	".postcss": true,
}

// IsCSS reports whether url names a stylesheet. Query strings are ignored,
// except ?inline imports which the bundler already inlines into JS.
func IsCSS(url string) bool {
	base, query, _ := strings.Cut(url, "?")
	if query != "" {
		for _, part := range strings.Split(query, "&") {
			if part == "inline" || strings.HasPrefix(part, "inline=") {
				return false
			}
		}
	}
	return cssExts[strings.ToLower(path.Ext(base))]
}

// CollectCSS walks the import graph from url and returns every stylesheet
// reachable from it, in depth-first order. Each module is visited at most
// once, so shared imports and cycles are handled.
func CollectCSS(graph bundler.Graph, url string) []string {
	if graph == nil {
		return nil
	}
	var out []string
	visited := make(map[string]bool)

	var walk func(node *bundler.ModuleNode)
	walk = func(node *bundler.ModuleNode) {
		if node == nil || visited[node.URL] {
			return
		}
		visited[node.URL] = true
		if IsCSS(node.URL) {
			out = append(out, node.URL)
		}
		for _, child := range node.Imported {
			walk(child)
		}
	}
	walk(graph.ModuleByURL(url))
	return out
}
