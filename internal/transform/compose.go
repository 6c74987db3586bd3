package transform

import (
	"regexp"

	"github.com/roach88/brix/internal/ir"
)

// Composer computes the value of an attribute from its compose recipe.
// attrs holds every attribute created by pass 1.
type Composer interface {
	Compose(recipe string, attrs ir.Attributes) (ir.Value, error)
}

// ComposerFunc adapts a function to the Composer interface.
type ComposerFunc func(recipe string, attrs ir.Attributes) (ir.Value, error)

// Compose calls f.
func (f ComposerFunc) Compose(recipe string, attrs ir.Attributes) (ir.Value, error) {
	return f(recipe, attrs)
}

// referencePattern matches ${name} references in a recipe.
var referencePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// TemplateComposer substitutes ${name} references with the string form of
// the named attribute. Unknown or empty attributes substitute as "".
type TemplateComposer struct{}

// Compose implements Composer.
func (TemplateComposer) Compose(recipe string, attrs ir.Attributes) (ir.Value, error) {
	out := referencePattern.ReplaceAllStringFunc(recipe, func(ref string) string {
		name := referencePattern.FindStringSubmatch(ref)[1]
		return ir.FormatValue(attrs.Value(name))
	})
	return ir.String(out), nil
}
