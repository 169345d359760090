package ssr

import (
	"html"
	"strings"
	"sync"

	"github.com/slinkity/slinkity/marker"
)

type styleSet struct {
	urls   []string
	inline []string
	seen   map[string]bool
}

// Styles accumulates the stylesheets an input path's islands need until the
// page's head is written.
type Styles struct {
	mu     sync.Mutex
	byPath map[string]*styleSet
}

// NewStyles creates an empty accumulator.
func NewStyles() *Styles {
	return &Styles{byPath: make(map[string]*styleSet)}
}

func (s *Styles) set(inputPath string) *styleSet {
	set, ok := s.byPath[inputPath]
	if !ok {
		set = &styleSet{seen: make(map[string]bool)}
		s.byPath[inputPath] = set
	}
	return set
}

// Add records stylesheet URLs for inputPath; duplicates are dropped.
func (s *Styles) Add(inputPath string, urls ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.set(inputPath)
	for _, u := range urls {
		if !set.seen["url:"+u] {
			set.seen["url:"+u] = true
			set.urls = append(set.urls, u)
		}
	}
}

// AddInline records CSS text returned by a renderer.
func (s *Styles) AddInline(inputPath string, css ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.set(inputPath)
	for _, c := range css {
		if c == "" || set.seen["css:"+c] {
			continue
		}
		set.seen["css:"+c] = true
		set.inline = append(set.inline, c)
	}
}

// Flush returns and forgets everything collected for inputPath.
func (s *Styles) Flush(inputPath string) (urls, inline []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.byPath[inputPath]
	if !ok {
		return nil, nil
	}
	delete(s.byPath, inputPath)
	return set.urls, set.inline
}

// Clear drops inputPath's styles without returning them.
func (s *Styles) Clear(inputPath string) {
	s.mu.Lock()
	delete(s.byPath, inputPath)
	s.mu.Unlock()
}

// Tags renders link and style elements.
func Tags(urls, inline []string) string {
	var b strings.Builder
	for _, u := range urls {
		b.WriteString(`<link rel="stylesheet" href="`)
		b.WriteString(html.EscapeString(u))
		b.WriteString(`">`)
	}
	for _, css := range inline {
		b.WriteString("<style>")
		b.WriteString(strings.ReplaceAll(css, "</style", `<\/style`))
		b.WriteString("</style>")
	}
	return b.String()
}

// InjectHead places tags at the styles slot, or before </head> when the page
// has no slot. The slot is always removed. Pages without a head get the tags
// prepended.
func InjectHead(page, tags string) string {
	if marker.HasStylesSlot(page) {
		page = strings.Replace(page, marker.StylesSlot, tags, 1)
		return strings.ReplaceAll(page, marker.StylesSlot, "")
	}
	if tags == "" {
		return page
	}
	if i := indexFold(page, "</head>"); i >= 0 {
		return page[:i] + tags + page[i:]
	}
	return tags + page
}

func indexFold(s, tag string) int {
	if i := strings.Index(s, tag); i >= 0 {
		return i
	}
	return strings.Index(s, strings.ToUpper(tag))
}
