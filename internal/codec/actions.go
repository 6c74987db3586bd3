package codec

import (
	"fmt"
	"time"

	"github.com/roach88/brix/internal/ir"
)

// Value kinds on the wire. Attribute values keep their Go representation
// exactly, independent of the attribute type.
const (
	kindString  = "s"
	kindLong    = "n"
	kindBool    = "b"
	kindInstant = "t"
	kindList    = "l"
)

type valueWire struct {
	Kind string   `cbor:"k,omitempty"`
	Str  string   `cbor:"s,omitempty"`
	Int  int64    `cbor:"i,omitempty"`
	Bool bool     `cbor:"b,omitempty"`
	List []string `cbor:"l,omitempty"`
}

type attributeWire struct {
	Type   string            `cbor:"type"`
	Value  valueWire         `cbor:"value"`
	Traits map[string]string `cbor:"traits,omitempty"`
}

// actionWire is the stored form of an ir.Action. Credentials are never
// stored; they are resolved from the route when actions execute.
type actionWire struct {
	Name         string                   `cbor:"name,omitempty"`
	Rule         string                   `cbor:"rule"`
	Command      string                   `cbor:"command"`
	Side         string                   `cbor:"side"`
	EndpointURI  string                   `cbor:"endpoint_uri"`
	SystemType   string                   `cbor:"system_type"`
	ArtifactType string                   `cbor:"artifact_type"`
	ArtifactKey  string                   `cbor:"artifact_key,omitempty"`
	GenericType  string                   `cbor:"generic_type"`
	Attributes   map[string]attributeWire `cbor:"attributes"`
	Sequence     int64                    `cbor:"sequence"`
}

// EncodeActions encodes an action list deterministically.
func EncodeActions(actions []ir.Action) ([]byte, error) {
	wire := make([]actionWire, len(actions))
	for i, a := range actions {
		w := actionWire{
			Name:         a.Name,
			Rule:         a.Rule,
			Command:      string(a.Command),
			Side:         string(a.Side),
			EndpointURI:  a.EndpointURI,
			SystemType:   string(a.SystemType),
			ArtifactType: string(a.ArtifactType),
			ArtifactKey:  string(a.ArtifactKey),
			GenericType:  string(a.Artifact.Type),
			Attributes:   make(map[string]attributeWire, a.Artifact.Len()),
			Sequence:     a.Sequence,
		}
		for name, p := range a.Artifact.Attributes {
			v, err := encodeValue(p.Value)
			if err != nil {
				return nil, fmt.Errorf("action %d attribute %q: %w", i, name, err)
			}
			w.Attributes[name] = attributeWire{Type: string(p.Type), Value: v, Traits: p.Traits}
		}
		wire[i] = w
	}
	return Marshal(wire)
}

// DecodeActions decodes a list written by EncodeActions.
func DecodeActions(data []byte) ([]ir.Action, error) {
	var wire []actionWire
	if err := Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode actions: %w", err)
	}

	actions := make([]ir.Action, len(wire))
	for i, w := range wire {
		a := ir.Action{
			Name:         w.Name,
			Rule:         w.Rule,
			Command:      ir.ActionCommand(w.Command),
			Side:         ir.ResourceSide(w.Side),
			EndpointURI:  w.EndpointURI,
			SystemType:   ir.SystemType(w.SystemType),
			ArtifactType: ir.ArtifactType(w.ArtifactType),
			ArtifactKey:  ir.ArtifactKey(w.ArtifactKey),
			Artifact:     ir.GenericArtifact{Type: ir.ArtifactType(w.GenericType), Attributes: ir.Attributes{}},
			Sequence:     w.Sequence,
		}
		for name, attr := range w.Attributes {
			v, err := decodeValue(attr.Value)
			if err != nil {
				return nil, fmt.Errorf("action %d attribute %q: %w", i, name, err)
			}
			a.Artifact.Attributes[name] = ir.AttributeProperties{
				Value:  v,
				Type:   ir.AttributeType(attr.Type),
				Traits: attr.Traits,
			}
		}
		actions[i] = a
	}
	return actions, nil
}

func encodeValue(v ir.Value) (valueWire, error) {
	switch val := v.(type) {
	case nil:
		return valueWire{}, nil
	case ir.String:
		return valueWire{Kind: kindString, Str: string(val)}, nil
	case ir.Long:
		return valueWire{Kind: kindLong, Int: int64(val)}, nil
	case ir.Bool:
		return valueWire{Kind: kindBool, Bool: bool(val)}, nil
	case ir.Instant:
		return valueWire{Kind: kindInstant, Str: val.UTC().Format(ir.InstantLayout)}, nil
	case ir.StringList:
		return valueWire{Kind: kindList, List: []string(val)}, nil
	default:
		return valueWire{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func decodeValue(w valueWire) (ir.Value, error) {
	switch w.Kind {
	case "":
		return nil, nil
	case kindString:
		return ir.String(w.Str), nil
	case kindLong:
		return ir.Long(w.Int), nil
	case kindBool:
		return ir.Bool(w.Bool), nil
	case kindInstant:
		t, err := time.Parse(ir.InstantLayout, w.Str)
		if err != nil {
			return nil, err
		}
		return ir.NewInstant(t), nil
	case kindList:
		return append(ir.StringList{}, w.List...), nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", w.Kind)
	}
}
