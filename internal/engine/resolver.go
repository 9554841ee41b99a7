package engine

import (
	"strconv"
	"strings"

	"workflow-engine/internal/workflow"
)

// ValueFromPath navigates a dotted path through nested maps and slices. Each
// segment indexes a map by key or a slice by integer position. A missing key,
// out-of-range index or non-navigable intermediate yields (nil, false). An
// empty path or "." returns the payload itself.
func ValueFromPath(payload interface{}, path string) (interface{}, bool) {
	if payload == nil {
		return nil, false
	}
	if path == "" || path == "." {
		return payload, true
	}

	current := payload
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]interface{}:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		default:
			return nil, false
		}
		if current == nil {
			return nil, false
		}
	}
	return current, true
}

// ResolveValue resolves a single parameter value against a run context.
// Literals pass through unchanged. A link extracts the source step's output
// at its path; an absent or empty result degrades to the link's fallback,
// which is nil when the link declares none.
func ResolveValue(value workflow.ParamValue, runCtx *Context) interface{} {
	if !value.IsLink() {
		return value.LiteralValue()
	}

	link := value.Link()
	resolved, ok := ValueFromPath(runCtx.Output(link.SourceStep), link.Path)
	if !ok || workflow.Empty(resolved) {
		return link.Fallback
	}
	return resolved
}

// ResolveParams resolves every parameter of a step against a run context.
// It is pure: the same params and context always produce the same output,
// and resolution never fails.
func ResolveParams(params workflow.Params, runCtx *Context) map[string]interface{} {
	resolved := make(map[string]interface{}, len(params))
	for key, value := range params {
		resolved[key] = ResolveValue(value, runCtx)
	}
	return resolved
}

// ApplyMessageFallback fills an absent or empty "message" parameter from the
// trigger payload's message field. Applied to reaction steps only.
func ApplyMessageFallback(resolved map[string]interface{}, runCtx *Context) {
	incoming, ok := runCtx.Trigger()["message"]
	if !ok || workflow.Empty(incoming) {
		return
	}
	if workflow.Empty(resolved["message"]) {
		resolved["message"] = incoming
	}
}
