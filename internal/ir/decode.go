package ir

import (
	"fmt"
	"maps"
	"slices"
)

// AttributesFromMap builds Attributes from decoded YAML or JSON.
//
// Each entry is either a bare value, whose type is inferred, or a map with
// a "value" key and optional "type" and "traits" keys:
//
//	severity: 1
//	due: {value: "2024-03-01T10:00:00Z", type: DATE}
func AttributesFromMap(raw map[string]any) (Attributes, error) {
	attrs := make(Attributes, len(raw))
	for _, name := range slices.Sorted(maps.Keys(raw)) {
		p, err := attributeFromAny(raw[name])
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		attrs[name] = p
	}
	return attrs, nil
}

func attributeFromAny(raw any) (AttributeProperties, error) {
	full, ok := raw.(map[string]any)
	if !ok || !hasOnlyKeys(full, "value", "type", "traits") {
		v, err := FromAny(raw)
		if err != nil {
			return AttributeProperties{}, err
		}
		return AttributeProperties{Value: v, Type: InferType(v)}, nil
	}

	var typ AttributeType
	if t, ok := full["type"]; ok {
		s, ok := t.(string)
		if !ok {
			return AttributeProperties{}, fmt.Errorf("type must be a string, got %T", t)
		}
		parsed, err := ParseAttributeType(s)
		if err != nil {
			return AttributeProperties{}, err
		}
		typ = parsed
	}

	v, err := CoerceValue(full["value"], typ)
	if err != nil {
		return AttributeProperties{}, err
	}
	if typ == "" {
		typ = InferType(v)
	}

	var traits Traits
	if t, ok := full["traits"]; ok && t != nil {
		tm, ok := t.(map[string]any)
		if !ok {
			return AttributeProperties{}, fmt.Errorf("traits must be a map, got %T", t)
		}
		traits = make(Traits, len(tm))
		for k, tv := range tm {
			traits[k] = fmt.Sprint(tv)
		}
	}

	return AttributeProperties{Value: v, Type: typ, Traits: traits}, nil
}

// hasOnlyKeys reports whether m has a "value" key and no keys outside allowed.
func hasOnlyKeys(m map[string]any, allowed ...string) bool {
	if _, ok := m["value"]; !ok {
		return false
	}
	for k := range m {
		if !slices.Contains(allowed, k) {
			return false
		}
	}
	return true
}

// AttributesToMap renders attributes in the full map form accepted by
// AttributesFromMap.
func AttributesToMap(attrs Attributes) map[string]any {
	out := make(map[string]any, len(attrs))
	for name, p := range attrs {
		entry := map[string]any{
			"type":  string(p.Type.OrUnknown()),
			"value": ToAny(p.Value),
		}
		if len(p.Traits) > 0 {
			traits := make(map[string]any, len(p.Traits))
			for k, v := range p.Traits {
				traits[k] = v
			}
			entry["traits"] = traits
		}
		out[name] = entry
	}
	return out
}
