// Package embed ships the browser-side loader modules that island bootstrap
// scripts import.
package embed

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed loaders/*.js
var loadersFS embed.FS

// BasePath is the URL prefix loaders are served under, in dev and in build output.
const BasePath = "/_slinkity/loaders/"

// Loader returns the source of the named loader, e.g. "visible" or "race".
func Loader(name string) ([]byte, error) {
	return loadersFS.ReadFile("loaders/" + strings.TrimSuffix(name, ".js") + ".js")
}

// URL returns the public URL of the named loader.
func URL(name string) string {
	return BasePath + strings.TrimSuffix(name, ".js") + ".js"
}

// Names lists every embedded loader without its extension, sorted.
func Names() []string {
	entries, _ := fs.ReadDir(loadersFS, "loaders")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".js"))
	}
	sort.Strings(names)
	return names
}

// FS returns the loaders as a flat filesystem ("visible.js", ...).
func FS() fs.FS {
	sub, _ := fs.Sub(loadersFS, "loaders")
	return sub
}

// Hash returns a truncated SHA256 over every loader, for cache busting.
func Hash() string {
	h := sha256.New()
	for _, name := range Names() {
		src, _ := Loader(name)
		h.Write([]byte(name))
		h.Write(src)
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:8])
}
