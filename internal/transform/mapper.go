package transform

import (
	"fmt"
	"log/slog"

	"github.com/roach88/brix/internal/ir"
)

// direction is the way a mapper runs through the attribute maps.
type direction int

const (
	toGeneric direction = iota
	fromGeneric
)

func (d direction) String() string {
	if d == toGeneric {
		return "normalize"
	}
	return "denormalize"
}

// mapper runs the two transform passes for one artifact.
type mapper struct {
	route    string
	side     ir.ResourceSide
	dir      direction
	composer Composer
	logger   *slog.Logger
}

// run maps input through entries. The result is only returned when every
// entry converted.
func (m *mapper) run(entries []ir.GenAttrMap, input ir.Attributes) (ir.Attributes, []ir.Warning, error) {
	out := make(ir.Attributes, len(entries))
	var warnings []ir.Warning

	// Pass 1: convert and copy every mapped attribute.
	for _, entry := range entries {
		inName, outName := entry.AttributeName, entry.GenericName
		if m.dir == fromGeneric {
			inName, outName = entry.GenericName, entry.AttributeName
		}
		value := input.Value(inName)

		switch entry.Type {
		case ir.AttrDate:
			pattern, _ := entry.Traits.Get(ir.TraitPattern)
			var (
				converted ir.Value
				err       error
			)
			if m.dir == toGeneric {
				converted, err = parseDate(value, pattern)
			} else {
				converted, err = formatDate(value, pattern)
			}
			if err != nil {
				return nil, nil, ir.NewDataError(m.route, inName, err, "date conversion failed")
			}
			value = converted
		case ir.AttrEnum:
			mapped, ok := m.mapEnum(entry.ValueMaps, value)
			if !ok {
				w := ir.Warning{
					Code:      ir.WarnUnmappedEnum,
					Attribute: inName,
					Value:     ir.FormatValue(value),
					Message:   fmt.Sprintf("no %s value map entry, keeping value", m.side),
				}
				m.logger.Warn("unmapped enum value",
					"route", m.route,
					"direction", m.dir.String(),
					"attribute", inName,
					"value", w.Value)
				warnings = append(warnings, w)
			}
			value = mapped
		}

		m.logger.Debug("mapped attribute",
			"route", m.route,
			"direction", m.dir.String(),
			"from", inName,
			"to", outName,
			"type", entry.Type)
		out[outName] = ir.NewAttribute(value, entry.Type, entry.Traits)
	}

	// Pass 2: compose against the complete pass 1 result. Recipes read the
	// snapshot, so composed attributes do not see each other's output.
	snapshot := out.Clone()
	for _, name := range out.Names() {
		recipe, ok := out[name].Traits.Get(ir.TraitCompose)
		if !ok {
			continue
		}
		value, err := m.composer.Compose(recipe, snapshot)
		if err != nil {
			return nil, nil, ir.NewDataError(m.route, name, err, "compose failed")
		}
		p := out[name]
		p.Value = value
		out[name] = p
	}

	return out, warnings, nil
}

// mapEnum looks up value in the value maps of the mapper's side. It returns
// the original value and false when there is no entry. Nil maps to nil.
func (m *mapper) mapEnum(valueMaps []ir.GenValueMap, value ir.Value) (ir.Value, bool) {
	if value == nil {
		return nil, true
	}
	s := ir.FormatValue(value)
	for _, vm := range valueMaps {
		if vm.Side != m.side {
			continue
		}
		if m.dir == toGeneric && vm.AttributeValue == s {
			return ir.String(vm.GenericValue), true
		}
		if m.dir == fromGeneric && vm.GenericValue == s {
			return ir.String(vm.AttributeValue), true
		}
	}
	return value, false
}
