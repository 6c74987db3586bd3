package ir

import "maps"

// Header names read and written by a processing run.
const (
	HeaderCreateTarget        = "BRIXCreateTarget"
	HeaderExtractResourceSide = "BRIXExtractResourceSide"
	HeaderTargetExists        = "BRIXTargetExists"
	HeaderDeltasExist         = "BRIXDeltasExist"
	HeaderAssertedRulesExist  = "BRIXAssertedRulesExist"
	HeaderActionListSize      = "BRIXActionListSize"
)

// Headers is the ambient key/value set of one processing run.
type Headers map[string]Value

// Get returns the named header, or nil.
func (h Headers) Get(name string) Value {
	return h[name]
}

// Flag reports whether the named header holds a true boolean or the string
// "true" in any case.
func (h Headers) Flag(name string) bool {
	b, ok := boolOf(h[name])
	return ok && b
}

// Clone returns an independent copy.
func (h Headers) Clone() Headers {
	out := make(Headers, len(h))
	maps.Copy(out, h)
	return out
}
