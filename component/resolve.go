package component

import "strings"

// ConditionKind is a load-condition family. Each family maps to one client
// loader script.
type ConditionKind string

const (
	ConditionLoad    ConditionKind = "load"
	ConditionIdle    ConditionKind = "idle"
	ConditionVisible ConditionKind = "visible"
	ConditionMedia   ConditionKind = "media"
)

const conditionPrefix = "client:"

// LoadCondition is a parsed load-condition token.
type LoadCondition struct {
	Kind ConditionKind
	// Query is the media query for ConditionMedia.
	Query string
	// Raw is the token as the author wrote it.
	Raw string
}

// String returns the raw token.
func (c LoadCondition) String() string { return c.Raw }

// ParseCondition validates token against the fixed vocabulary.
func ParseCondition(inputPath, token string) (LoadCondition, error) {
	raw := strings.TrimSpace(token)
	name, ok := strings.CutPrefix(raw, conditionPrefix)
	if !ok {
		return LoadCondition{}, configError(inputPath, token, "unrecognized load condition")
	}

	switch {
	case name == string(ConditionLoad):
		return LoadCondition{Kind: ConditionLoad, Raw: raw}, nil
	case name == string(ConditionIdle):
		return LoadCondition{Kind: ConditionIdle, Raw: raw}, nil
	case name == string(ConditionVisible):
		return LoadCondition{Kind: ConditionVisible, Raw: raw}, nil
	case strings.HasPrefix(name, string(ConditionMedia)+"="):
		query := strings.TrimSpace(strings.TrimPrefix(name, string(ConditionMedia)+"="))
		query = strings.Trim(query, `"'`)
		if query == "" {
			return LoadCondition{}, configError(inputPath, token, "client:media requires a query")
		}
		return LoadCondition{Kind: ConditionMedia, Query: query, Raw: raw}, nil
	}
	return LoadCondition{}, configError(inputPath, token, "unrecognized load condition")
}

// ParseConditions parses every token, failing on the first bad one.
func ParseConditions(inputPath string, tokens []string) ([]LoadCondition, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	out := make([]LoadCondition, 0, len(tokens))
	for _, tok := range tokens {
		c, err := ParseCondition(inputPath, tok)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Kinds returns the distinct condition families in first-seen order.
func Kinds(conds []LoadCondition) []ConditionKind {
	var kinds []ConditionKind
	seen := make(map[ConditionKind]bool)
	for _, c := range conds {
		if !seen[c.Kind] {
			seen[c.Kind] = true
			kinds = append(kinds, c.Kind)
		}
	}
	return kinds
}

// Variant identifies which shortcode discovered an island.
type Variant int

const (
	// VariantIsland is the "island" shortcode: static unless conditions are given.
	VariantIsland Variant = iota
	// VariantClientOnly is the "clientOnlyIsland" shortcode: never server rendered.
	VariantClientOnly
)

// Resolution is the outcome of render-mode resolution.
type Resolution struct {
	RenderOn   RenderOn
	Conditions []LoadCondition
}

var implicitLoad = LoadCondition{Kind: ConditionLoad, Raw: conditionPrefix + string(ConditionLoad)}

// ResolveShortcode decides render mode for a shortcode usage.
//
//	island, no conditions        -> server
//	island, conditions           -> both
//	clientOnlyIsland, none       -> client + implicit client:load
//	clientOnlyIsland, conditions -> client
func ResolveShortcode(variant Variant, inputPath string, tokens []string) (Resolution, error) {
	conds, err := ParseConditions(inputPath, tokens)
	if err != nil {
		return Resolution{}, err
	}

	switch variant {
	case VariantClientOnly:
		if len(conds) == 0 {
			conds = []LoadCondition{implicitLoad}
		}
		return Resolution{RenderOn: RenderClient, Conditions: conds}, nil
	default:
		if len(conds) == 0 {
			return Resolution{RenderOn: RenderServer}, nil
		}
		return Resolution{RenderOn: RenderBoth, Conditions: conds}, nil
	}
}

// ResolvePage decides render mode and props for a component page.
//
//	no meta                        -> server, full data as props
//	meta without conditions        -> server, meta.Props(data) (data if Props is nil)
//	meta with conditions           -> both,   meta.Props(data) ({} if Props is nil)
func ResolvePage(inputPath string, meta *IslandMeta, data map[string]any) (Resolution, map[string]any, error) {
	if data == nil {
		data = map[string]any{}
	}
	if meta == nil {
		return Resolution{RenderOn: RenderServer}, data, nil
	}

	conds, err := ParseConditions(inputPath, meta.When)
	if err != nil {
		return Resolution{}, nil, err
	}

	var props map[string]any
	switch {
	case meta.Props != nil:
		props, err = meta.Props(data)
		if err != nil {
			return Resolution{}, nil, &Error{
				Code:    ErrorCodeConfig,
				Message: "island props function failed",
				File:    inputPath,
				Wrapped: err,
			}
		}
		if props == nil {
			props = map[string]any{}
		}
	case len(conds) == 0:
		props = data
	default:
		props = map[string]any{}
	}

	if len(conds) == 0 {
		return Resolution{RenderOn: RenderServer}, props, nil
	}
	return Resolution{RenderOn: RenderBoth, Conditions: conds}, props, nil
}
