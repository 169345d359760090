// Package marker encodes and decodes the inert HTML comments that carry island
// and prop ids from template compilation to the HTML post-processing pass.
//
// Grammar:
//
//	prop marker:  <!--slinkity-prop ID-->
//	ssr marker:   <!--slinkity-ssr ID-->
//	styles slot:  <!--slinkity-styles-->
//
// where ID matches [A-Za-z0-9_-]+. Ids are opaque lookup keys.
package marker

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// Prefix namespaces every marker so it cannot collide with user comments.
	Prefix = "slinkity"

	// StylesSlot is an optional marker authors place in <head> to control
	// where collected stylesheets are injected.
	StylesSlot = "<!--" + Prefix + "-styles-->"

	// RootElement wraps every hydrated island; RootIDAttr carries its id.
	RootElement = Prefix + "-root"
	RootIDAttr  = "data-root-id"
)

const idPattern = `[A-Za-z0-9_-]+`

var (
	validID   = regexp.MustCompile(`^` + idPattern + `$`)
	propRegex = regexp.MustCompile(`<!--` + Prefix + `-prop (` + idPattern + `)-->`)
	ssrRegex  = regexp.MustCompile(`<!--` + Prefix + `-ssr (` + idPattern + `)-->`)
)

// RootSelector returns the CSS selector for the wrapper of island id.
func RootSelector(id string) string {
	return RootElement + `[` + RootIDAttr + `="` + id + `"]`
}

// ValidID reports whether id can be embedded in a marker.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// ToPropComment returns the prop marker for id.
func ToPropComment(id string) string {
	mustValid(id)
	return "<!--" + Prefix + "-prop " + id + "-->"
}

// ToSSRComment returns the SSR marker for id.
func ToSSRComment(id string) string {
	mustValid(id)
	return "<!--" + Prefix + "-ssr " + id + "-->"
}

// ExtractPropIDsFromHTML removes every prop marker from html and returns the
// unique ids in first-seen order along with the remaining, trimmed html.
func ExtractPropIDsFromHTML(html string) ([]string, string) {
	var ids []string
	seen := make(map[string]struct{})
	rest := propRegex.ReplaceAllStringFunc(html, func(m string) string {
		id := propRegex.FindStringSubmatch(m)[1]
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		return ""
	})
	return ids, strings.TrimSpace(rest)
}

// StripProps removes every prop marker from html, leaving all other bytes
// untouched.
func StripProps(html string) string {
	return propRegex.ReplaceAllLiteralString(html, "")
}

// SSRIDs returns the unique SSR marker ids in html, in document order.
func SSRIDs(html string) []string {
	matches := ssrRegex.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		ids = append(ids, m[1])
	}
	return ids
}

// ReplaceSSR substitutes every SSR marker in a single pass. The first error
// returned by fn aborts the replacement and is returned unchanged.
func ReplaceSSR(html string, fn func(id string) (string, error)) (string, error) {
	locs := ssrRegex.FindAllStringSubmatchIndex(html, -1)
	if len(locs) == 0 {
		return html, nil
	}

	var sb strings.Builder
	sb.Grow(len(html))
	last := 0
	for _, loc := range locs {
		sb.WriteString(html[last:loc[0]])
		out, err := fn(html[loc[2]:loc[3]])
		if err != nil {
			return "", err
		}
		sb.WriteString(out)
		last = loc[1]
	}
	sb.WriteString(html[last:])
	return sb.String(), nil
}

// HasStylesSlot reports whether html carries the styles slot marker.
func HasStylesSlot(html string) bool {
	return strings.Contains(html, StylesSlot)
}

func mustValid(id string) {
	if !ValidID(id) {
		panic(fmt.Sprintf("marker: invalid id %q", id))
	}
}
