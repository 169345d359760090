package process

import (
	"context"

	"github.com/slinkity/slinkity/component"
)

// Renderer forwards SSR and page calls for its extensions to the sidecar.
type Renderer struct {
	component.Definition
	client *Client
}

var _ component.Renderer = (*Renderer)(nil)

// NewRenderer creates a renderer backed by c.
func NewRenderer(c *Client, def component.Definition) *Renderer {
	return &Renderer{Definition: def, client: c}
}

type ssrResponse struct {
	HTML  string       `json:"html"`
	CSS   string       `json:"css"`
	Error *RemoteError `json:"error"`
}

// SSR implements component.Renderer.
func (r *Renderer) SSR(ctx context.Context, params component.SSRParams) (component.SSRResult, error) {
	req := map[string]any{
		"renderer": r.Name(),
		"path":     params.Component.Path,
		"props":    params.Props,
		"slots":    params.Slots,
	}
	var res ssrResponse
	if err := r.client.postJSON(ctx, "/ssr", req, &res); err != nil {
		return component.SSRResult{}, err
	}
	if res.Error != nil {
		return component.SSRResult{}, res.Error
	}
	return component.SSRResult{HTML: res.HTML, CSS: res.CSS}, nil
}

type pageResponse struct {
	Data       map[string]any `json:"data"`
	IslandMeta *struct {
		When     []string `json:"when"`
		HasProps bool     `json:"hasProps"`
	} `json:"islandMeta"`
	Error *RemoteError `json:"error"`
}

// Page implements component.Renderer. A page's props function lives in the
// sidecar, so IslandMeta.Props calls back into it.
func (r *Renderer) Page(ctx context.Context, params component.PageParams) (component.PageExports, error) {
	path := params.Component.Path
	var res pageResponse
	if err := r.client.postJSON(ctx, "/page", map[string]any{"renderer": r.Name(), "path": path}, &res); err != nil {
		return component.PageExports{}, err
	}
	if res.Error != nil {
		return component.PageExports{}, res.Error
	}

	out := component.PageExports{Data: res.Data}
	if res.IslandMeta == nil {
		return out, nil
	}
	meta := &component.IslandMeta{When: res.IslandMeta.When}
	if res.IslandMeta.HasProps {
		meta.Props = func(data map[string]any) (map[string]any, error) {
			var pr struct {
				Props map[string]any `json:"props"`
				Error *RemoteError   `json:"error"`
			}
			if err := r.client.postJSON(ctx, "/page-props", map[string]any{"path": path, "data": data}, &pr); err != nil {
				return nil, err
			}
			if pr.Error != nil {
				return nil, pr.Error
			}
			return pr.Props, nil
		}
	}
	out.IslandMeta = meta
	return out, nil
}
