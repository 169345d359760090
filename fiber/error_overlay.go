package fiber

import (
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/slinkity/slinkity/component"
)

// ErrorInfo is one link of an error chain as shown by the overlay.
type ErrorInfo struct {
	Type    string
	Message string
	Code    component.ErrorCode
	File    string
	Value   string
}

// Chain flattens err and everything it wraps, outermost first.
func Chain(err error) []ErrorInfo {
	var infos []ErrorInfo
	for err != nil {
		info := ErrorInfo{Type: fmt.Sprintf("%T", err), Message: err.Error()}
		if ce, ok := err.(*component.Error); ok {
			info.Message = ce.Message
			info.Code = ce.Code
			info.File = ce.File
			info.Value = ce.Value
		}
		infos = append(infos, info)
		err = errors.Unwrap(err)
	}
	return infos
}

var overlayTmpl = template.Must(template.New("overlay").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>slinkity error</title>
	<style>
		body { font-family: ui-monospace, Menlo, monospace; background: #1a1a2e; color: #eee; margin: 0; padding: 2rem; }
		h1 { color: #e94560; font-size: 1.4rem; }
		.request { color: #888; margin-bottom: 1.5rem; }
		.frame { background: #16213e; border-radius: 8px; padding: 1rem; margin-bottom: 1rem; }
		.type { color: #888; font-size: 0.8rem; }
		.code { color: #e94560; text-transform: uppercase; font-size: 0.8rem; }
		.where { color: #7fdbca; margin-top: 0.5rem; }
		pre { white-space: pre-wrap; word-wrap: break-word; margin: 0.5rem 0 0; }
	</style>
</head>
<body>
	<h1>{{.Title}}</h1>
	<div class="request">{{.Method}} {{.URL}}</div>
	{{range .Chain}}<div class="frame">
		<div class="type">{{.Type}}</div>
		{{if .Code}}<div class="code">{{.Code}} error</div>{{end}}
		<pre>{{.Message}}</pre>
		{{if .File}}<div class="where">{{.File}}{{if .Value}} ({{.Value}}){{end}}</div>{{end}}
	</div>
	{{end}}
</body>
</html>`))

// RenderOverlay renders the development error page for err.
func RenderOverlay(err error, method, url string) string {
	chain := Chain(err)
	title := "Error"
	if len(chain) > 0 {
		title = chain[0].Message
	}
	var b strings.Builder
	if execErr := overlayTmpl.Execute(&b, map[string]any{
		"Title":  title,
		"Method": method,
		"URL":    url,
		"Chain":  chain,
	}); execErr != nil {
		return template.HTMLEscapeString(err.Error())
	}
	return b.String()
}
