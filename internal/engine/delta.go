package engine

import "github.com/roach88/brix/internal/ir"

// Delta holds the source attributes that differ from the target.
type Delta struct {
	// Artifact carries the source's properties for every differing attribute.
	Artifact ir.GenericArtifact

	// HasDeltas is true iff Artifact is non-empty.
	HasDeltas bool
}

// Compare computes the delta of source against target.
//
// A source attribute is part of the delta when the target lacks it, when
// the target value is nil, or when ir.ValueEquals reports a difference.
// Attributes only in target never appear. Both inputs are left untouched
// and the delta owns its attributes.
func Compare(source, target ir.GenericArtifact) Delta {
	out := ir.GenericArtifact{Type: source.Type, Attributes: ir.Attributes{}}
	for name, src := range source.Attributes {
		tgt, ok := target.Attributes[name]
		if ok && tgt.Value != nil && ir.ValueEquals(src, tgt) {
			continue
		}
		out.Attributes[name] = src.Clone()
	}
	return Delta{Artifact: out, HasDeltas: out.Len() > 0}
}

// Working returns a private copy of the delta artifact for one rule pass.
// The copy is consumed destructively; the Delta itself is not.
func (d Delta) Working() ir.GenericArtifact {
	return d.Artifact.Clone()
}
