package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Traits are named string annotations on an attribute or action config.
type Traits map[string]string

// Get returns the trait value and whether it is set.
func (t Traits) Get(name string) (string, bool) {
	v, ok := t[name]
	return v, ok
}

// Clone returns an independent copy. A nil receiver stays nil.
func (t Traits) Clone() Traits {
	if t == nil {
		return nil
	}
	return maps.Clone(t)
}

// AttributeProperties is one attribute's value plus its type and traits.
type AttributeProperties struct {
	Value  Value
	Type   AttributeType
	Traits Traits
}

// NewAttribute creates AttributeProperties with a copy of traits.
func NewAttribute(value Value, typ AttributeType, traits Traits) AttributeProperties {
	return AttributeProperties{Value: value, Type: typ, Traits: traits.Clone()}
}

// Clone returns a deep copy.
func (p AttributeProperties) Clone() AttributeProperties {
	return AttributeProperties{
		Value:  CloneValue(p.Value),
		Type:   p.Type,
		Traits: p.Traits.Clone(),
	}
}

// IsBlank reports whether the value is absent or renders to whitespace only.
func (p AttributeProperties) IsBlank() bool {
	return p.Value == nil || strings.TrimSpace(FormatValue(p.Value)) == ""
}

type attributeJSON struct {
	Type   AttributeType `json:"type"`
	Value  any           `json:"value"`
	Traits Traits        `json:"traits,omitempty"`
}

// MarshalJSON encodes the attribute as {"type","value","traits"}.
func (p AttributeProperties) MarshalJSON() ([]byte, error) {
	return json.Marshal(attributeJSON{
		Type:   p.Type.OrUnknown(),
		Value:  ToAny(p.Value),
		Traits: p.Traits,
	})
}

// UnmarshalJSON decodes the {"type","value","traits"} form.
func (p *AttributeProperties) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   string          `json:"type"`
		Value  json.RawMessage `json:"value"`
		Traits Traits          `json:"traits"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var typ AttributeType
	if raw.Type != "" {
		t, err := ParseAttributeType(raw.Type)
		if err != nil {
			return err
		}
		typ = t
	}
	var decoded any
	if len(raw.Value) > 0 {
		if err := decodeJSONNumber(raw.Value, &decoded); err != nil {
			return fmt.Errorf("attribute value: %w", err)
		}
	}
	v, err := CoerceValue(decoded, typ)
	if err != nil {
		return err
	}
	*p = AttributeProperties{Value: v, Type: typ, Traits: raw.Traits}
	return nil
}

// decodeJSONNumber decodes data keeping numbers as json.Number.
func decodeJSONNumber(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// Attributes maps unique attribute names to their properties.
type Attributes map[string]AttributeProperties

// Get returns the named attribute.
func (a Attributes) Get(name string) (AttributeProperties, bool) {
	p, ok := a[name]
	return p, ok
}

// Value returns the named attribute's value, or nil when it is absent.
func (a Attributes) Value(name string) Value {
	return a[name].Value
}

// Names returns attribute names in sorted order.
func (a Attributes) Names() []string {
	return slices.Sorted(maps.Keys(a))
}

// Clone returns a deep copy.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for name, p := range a {
		out[name] = p.Clone()
	}
	return out
}

// GenericArtifact is the system-neutral form of an artifact.
type GenericArtifact struct {
	Type       ArtifactType `json:"artifact_type"`
	Attributes Attributes   `json:"attributes"`
}

// NewGenericArtifact creates an empty generic artifact.
func NewGenericArtifact() GenericArtifact {
	return GenericArtifact{Type: ArtifactGeneric, Attributes: Attributes{}}
}

// Add sets the named attribute, replacing any previous one.
func (g *GenericArtifact) Add(name string, value Value, traits Traits, typ AttributeType) {
	if g.Attributes == nil {
		g.Attributes = Attributes{}
	}
	g.Attributes[name] = NewAttribute(value, typ, traits)
}

// Put stores props under name as given.
func (g *GenericArtifact) Put(name string, props AttributeProperties) {
	if g.Attributes == nil {
		g.Attributes = Attributes{}
	}
	g.Attributes[name] = props
}

// SetValue replaces the value of an existing attribute. It returns false
// when the attribute is absent.
func (g *GenericArtifact) SetValue(name string, value Value) bool {
	p, ok := g.Attributes[name]
	if !ok {
		return false
	}
	p.Value = value
	g.Attributes[name] = p
	return true
}

// Remove deletes the named attribute and reports whether it was present.
func (g *GenericArtifact) Remove(name string) bool {
	_, ok := g.Attributes[name]
	delete(g.Attributes, name)
	return ok
}

// Merge copies every attribute of other into g, replacing overlapping names.
func (g *GenericArtifact) Merge(other GenericArtifact) {
	for name, p := range other.Attributes {
		g.Put(name, p.Clone())
	}
}

// Len returns the number of attributes.
func (g GenericArtifact) Len() int {
	return len(g.Attributes)
}

// Clone returns a deep copy.
func (g GenericArtifact) Clone() GenericArtifact {
	return GenericArtifact{Type: g.Type, Attributes: g.Attributes.Clone()}
}

// ArtifactKey is the opaque identifier of an artifact within its system.
type ArtifactKey string

// Credential authenticates calls to an endpoint.
type Credential struct {
	User   string `json:"user,omitempty"`
	Secret string `json:"secret,omitempty"`
}

// Endpoint is one external system instance a route reads from or writes to.
type Endpoint struct {
	Name             string     `json:"name"`
	URI              string     `json:"uri"`
	FetchArtifactURI string     `json:"fetch_artifact_uri,omitempty"`
	SystemType       SystemType `json:"system_type"`
	Credential       Credential `json:"credential"`
}

// Artifact is a system-specific artifact.
type Artifact struct {
	Endpoint   Endpoint     `json:"endpoint"`
	Type       ArtifactType `json:"artifact_type"`
	Key        ArtifactKey  `json:"key,omitempty"`
	Attributes Attributes   `json:"attributes"`
}

// Clone returns a deep copy.
func (a Artifact) Clone() Artifact {
	out := a
	out.Attributes = a.Attributes.Clone()
	return out
}

// ArtifactRef identifies an artifact held in a relationship.
type ArtifactRef struct {
	Endpoint string       `json:"endpoint"`
	Type     ArtifactType `json:"artifact_type"`
	Key      ArtifactKey  `json:"key"`
}

// ArtifactRelationship pairs a source and a target artifact.
type ArtifactRelationship struct {
	ID              string      `json:"id"`
	Name            string      `json:"name,omitempty"`
	Description     string      `json:"description,omitempty"`
	Source          ArtifactRef `json:"source"`
	Target          ArtifactRef `json:"target"`
	State           State       `json:"state"`
	Status          Status      `json:"status"`
	LastTransaction int64       `json:"last_transaction,omitempty"` // unix millis
}

// Ref returns the artifact on the given side.
func (r ArtifactRelationship) Ref(side ResourceSide) (ArtifactRef, bool) {
	switch side {
	case SideSource:
		return r.Source, true
	case SideTarget:
		return r.Target, true
	default:
		return ArtifactRef{}, false
	}
}
