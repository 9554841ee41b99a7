package workflow

import (
	"encoding/json"
	"fmt"
)

// linkKey is the sentinel key marking a link descriptor in stored JSON,
// kept for compatibility with rows written by earlier versions.
const linkKey = "__link"

// Link defers a parameter to an earlier step's output at run time.
// SourceStep refers to a step order earlier in the same workflow; Path is a
// dotted path into that step's output; Fallback is used when the referenced
// value is absent or empty.
type Link struct {
	SourceStep int         `json:"source_step"`
	Path       string      `json:"path"`
	Fallback   interface{} `json:"fallback,omitempty"`
}

// ParamValue is a tagged union: either a literal JSON value or a Link.
type ParamValue struct {
	literal interface{}
	link    *Link
}

// Literal creates a literal parameter value.
func Literal(v interface{}) ParamValue {
	return ParamValue{literal: v}
}

// Linked creates a link parameter value.
func Linked(sourceStep int, path string, fallback interface{}) ParamValue {
	return ParamValue{link: &Link{SourceStep: sourceStep, Path: path, Fallback: fallback}}
}

// IsLink reports whether the value is a link descriptor.
func (p ParamValue) IsLink() bool {
	return p.link != nil
}

// Link returns the link descriptor, or nil for literals.
func (p ParamValue) Link() *Link {
	return p.link
}

// LiteralValue returns the literal value, or nil for links.
func (p ParamValue) LiteralValue() interface{} {
	if p.link != nil {
		return nil
	}
	return p.literal
}

// MarshalJSON encodes literals as-is and links under the __link sentinel.
func (p ParamValue) MarshalJSON() ([]byte, error) {
	if p.link != nil {
		return json.Marshal(map[string]interface{}{linkKey: p.link})
	}
	return json.Marshal(p.literal)
}

// UnmarshalJSON decodes link descriptors by their sentinel key; everything
// else is a literal.
func (p *ParamValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		p.literal, p.link = raw, nil
		return nil
	}

	linkRaw, ok := obj[linkKey]
	if !ok {
		p.literal, p.link = raw, nil
		return nil
	}

	linkObj, ok := linkRaw.(map[string]interface{})
	if !ok {
		return fmt.Errorf("malformed link descriptor: %v", linkRaw)
	}

	link := &Link{Path: stringValue(linkObj["path"])}
	if src, ok := linkObj["source_step"].(float64); ok {
		link.SourceStep = int(src)
	}
	link.Fallback = linkObj["fallback"]

	p.literal, p.link = nil, link
	return nil
}

// Params is a step's parameter mapping.
type Params map[string]ParamValue

// LiteralParams builds a Params map where every value is a literal.
func LiteralParams(values map[string]interface{}) Params {
	params := make(Params, len(values))
	for k, v := range values {
		params[k] = Literal(v)
	}
	return params
}

// GetLiteral returns the literal value for key, if present and not a link.
func (p Params) GetLiteral(key string) (interface{}, bool) {
	v, ok := p[key]
	if !ok || v.IsLink() {
		return nil, false
	}
	return v.literal, true
}

// GetString returns the literal string value for key.
func (p Params) GetString(key string) (string, bool) {
	v, ok := p.GetLiteral(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// LiteralMap returns the literal parameters as a plain map, skipping links.
func (p Params) LiteralMap() map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		if !v.IsLink() {
			out[k] = v.literal
		}
	}
	return out
}

// Clone returns a shallow copy of the parameter map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Empty reports whether a resolved value counts as absent for link fallback
// purposes: nil, empty string, empty slice, or empty map.
func Empty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}
