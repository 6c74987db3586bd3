// Package transform converts artifacts between a system-specific form and
// the generic form using the attribute maps of a route.
//
// Both directions run two passes. Pass 1 walks the attribute maps in
// configured order and converts DATE and ENUM values. Pass 2 recomputes
// every attribute that carries a compose trait, after all pass 1 attributes
// exist, so a recipe may reference any of them.
//
// A failed transform returns an error and no artifact. Unmapped enum values
// are reported as warnings and pass through unchanged.
package transform
