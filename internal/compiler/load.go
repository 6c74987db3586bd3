package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/brix/internal/ir"
)

// ErrNoRouteFiles is returned when a route directory holds no CUE files.
var ErrNoRouteFiles = errors.New("no CUE files found")

// LoadRoutes loads a route set from path:
//   - a directory: every .cue file in it, built as one CUE instance
//   - a .cue file
//   - a .json or .jsonc file in the {"routes": [...]} form
func LoadRoutes(path string) (ir.RouteSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("routes path: %w", err)
	}

	if info.IsDir() {
		files, err := FindCUEFiles(path)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", path, err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("%s: %w", path, ErrNoRouteFiles)
		}
		return loadCUE(path, ".")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return loadCUE(filepath.Dir(path), filepath.Base(path))
	case ".json", ".jsonc":
		return ReadRoutesFile(path)
	default:
		return nil, fmt.Errorf("%s: unsupported route file extension %q", path, filepath.Ext(path))
	}
}

// loadCUE builds one CUE instance from dir and compiles its routes.
func loadCUE(dir, arg string) (ir.RouteSet, error) {
	instances := load.Instances([]string{arg}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileRoutes(value)
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
