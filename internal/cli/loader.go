package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/brix/internal/compiler"
	"github.com/roach88/brix/internal/ir"
)

// LoadResult contains the routes loaded from a path.
type LoadResult struct {
	Routes    ir.RouteSet
	FileCount int // Number of route files read
}

// LoadError represents an error that occurred during route loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadRoutes loads a route set from a CUE directory, a .cue file or a
// .json/.jsonc file. Every failure is returned as a *LoadError.
func LoadRoutes(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("routes path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing routes path: %v", err)}
	}

	fileCount := 1
	if info.IsDir() {
		files, err := compiler.FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		fileCount = len(files)
	}

	routes, err := compiler.LoadRoutes(path)
	if err != nil {
		return nil, convertLoadError(err)
	}
	if len(routes) == 0 {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("no routes found in %s", path)}
	}

	return &LoadResult{Routes: routes, FileCount: fileCount}, nil
}

// convertLoadError converts a compiler error to a LoadError with position info.
func convertLoadError(err error) *LoadError {
	var compileErr *compiler.CompileError
	switch {
	case errors.As(err, &compileErr):
		code := MapFieldToErrorCode(compileErr.Field)
		if compileErr.Field == "cue" {
			code = ErrCodeBuildFailed
		}
		return &LoadError{
			Code:    code,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	case errors.Is(err, compiler.ErrNoRouteFiles):
		return &LoadError{Code: ErrCodeNoFiles, Message: err.Error()}
	default:
		return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // Route load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeInputFailed = "E008" // Artifact or header input unreadable
	ErrCodeStoreFailed = "E009" // Database open or query error

	// Route compile errors
	ErrCodeEndpoint     = "E101" // Invalid source or target endpoint
	ErrCodeAttributeMap = "E102" // Invalid artifact or attribute map
	ErrCodeInvalidType  = "E104" // Unknown attribute type
	ErrCodeInvalidWhen  = "E110" // Invalid rule condition
	ErrCodeInvalidThen  = "E113" // Invalid rule action
)

// MapFieldToErrorCode maps a compiler error field path, such as
// "rules.sync.when[0].operator", to an error code.
func MapFieldToErrorCode(field string) string {
	root, _, _ := strings.Cut(field, ".")
	switch {
	case root == "source" || root == "target":
		return ErrCodeEndpoint
	case root == "source_maps" || root == "target_maps":
		if strings.HasSuffix(field, ".type") {
			return ErrCodeInvalidType
		}
		return ErrCodeAttributeMap
	case root == "rules" && strings.Contains(field, ".when"):
		return ErrCodeInvalidWhen
	case root == "rules" && strings.Contains(field, ".then"):
		return ErrCodeInvalidThen
	default:
		return ErrCodeGeneric
	}
}

// routeFileLabel describes what was loaded, for verbose output.
func routeFileLabel(path string, n int) string {
	if n == 1 {
		return filepath.Base(path)
	}
	return fmt.Sprintf("%d route files in %s", n, path)
}
