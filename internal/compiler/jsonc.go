package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/roach88/brix/internal/ir"
)

// routeFile is the on-disk JSON shape: {"routes": [ ... ]}.
type routeFile struct {
	Routes ir.RouteSet `json:"routes"`
}

// ParseRoutesJSON strips JSONC comments and trailing commas from data, then
// decodes the route list. Unknown fields are rejected.
func ParseRoutesJSON(data []byte) (ir.RouteSet, error) {
	stripped := jsonc.ToJSON(data)

	dec := json.NewDecoder(bytes.NewReader(stripped))
	dec.DisallowUnknownFields()

	var file routeFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing routes: %w", err)
	}
	if file.Routes == nil {
		file.Routes = ir.RouteSet{}
	}
	return file.Routes, nil
}

// ReadRoutesFile reads a JSONC route file from disk.
func ReadRoutesFile(path string) (ir.RouteSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	routes, err := ParseRoutesJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return routes, nil
}
