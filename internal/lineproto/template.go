package lineproto

import (
	"influxrelay/internal/units"
)

// Override holds the per-observation settings from the inputs configuration.
// Empty fields are not set.
type Override struct {
	Name   string `json:"name" yaml:"name"`
	Format string `json:"format" yaml:"format"`
	Units  string `json:"units" yaml:"units"`
}

// Template describes how one observation is written to the wire.
type Template struct {
	// Name is the output field name.
	Name string
	// Format is a printf-style verb for the value. Empty means the
	// generic conversion.
	Format string
	// Units is the target unit. Empty means the record's own unit.
	Units string
}

// Templates maps observation keys to their resolved templates.
type Templates map[string]Template

// Resolve builds the template for an observation. Explicit overrides always
// win; otherwise the name is the key, optionally suffixed with the reduced
// units label of the observation under system.
func Resolve(key string, ov Override, appendUnitsLabel bool, system units.System) Template {
	tmpl := Template{Name: key}
	if appendUnitsLabel {
		if label := units.Label(key, system); label != "" {
			tmpl.Name = key + "_" + label
		}
	}
	if ov.Name != "" {
		tmpl.Name = ov.Name
	}
	if ov.Format != "" {
		tmpl.Format = ov.Format
	}
	if ov.Units != "" {
		tmpl.Units = ov.Units
	}
	return tmpl
}
