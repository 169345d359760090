package hydrate

import (
	"fmt"
	"net/url"

	"github.com/cespare/xxhash/v2"
)

const (
	// DevPropsPath serves a page's props module from the dev server.
	DevPropsPath = "/@slinkity/props"
	// BuildPropsDir holds the props modules written during a build.
	BuildPropsDir = "/_slinkity/props/"
)

// DevPropsURL returns the dev server URL of inputPath's props module.
func DevPropsURL(inputPath string) string {
	return DevPropsPath + "?inputPath=" + url.QueryEscape(inputPath)
}

// BuildPropsURL returns the build output URL of inputPath's props module.
func BuildPropsURL(inputPath string) string {
	return BuildPropsDir + PropsFileName(inputPath)
}

// PropsFileName is the file BuildPropsURL points at.
func PropsFileName(inputPath string) string {
	return fmt.Sprintf("%016x.js", xxhash.Sum64String(inputPath))
}
