package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/brix/internal/harness"
	"github.com/roach88/brix/internal/ir"
	"github.com/roach88/brix/internal/store"
)

// eventDocument is one event in an events file. Events files are YAML
// streams; documents are separated by "---".
type eventDocument struct {
	Source  harness.ArtifactStep  `yaml:"source"`
	Target  *harness.ArtifactStep `yaml:"target,omitempty"`
	Headers map[string]any        `yaml:"headers,omitempty"`
}

func (d eventDocument) step() harness.EventStep {
	return harness.EventStep{Source: d.Source, Target: d.Target, Headers: d.Headers}
}

// readDocument decodes a single YAML (or JSON) document from path.
// Unknown fields are rejected.
func readDocument(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// readArtifact reads an artifact file:
//
//	endpoint: se-source
//	type: SEISSUE
//	key: SRC-1
//	attributes:
//	  severity: 1
func readArtifact(path string) (harness.ArtifactStep, error) {
	var step harness.ArtifactStep
	if err := readDocument(path, &step); err != nil {
		return harness.ArtifactStep{}, err
	}
	if step.Endpoint == "" {
		return harness.ArtifactStep{}, fmt.Errorf("%s: endpoint is required", path)
	}
	if step.Type == "" {
		return harness.ArtifactStep{}, fmt.Errorf("%s: type is required", path)
	}
	if step.Attributes == nil {
		step.Attributes = map[string]any{}
	}
	return step, nil
}

// readHeaders reads a flat map of header names to scalar values.
func readHeaders(path string) (map[string]any, error) {
	headers := map[string]any{}
	if err := readDocument(path, &headers); err != nil {
		return nil, err
	}
	return headers, nil
}

// readEvents reads every event document in a YAML stream.
func readEvents(path string) ([]harness.EventStep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var steps []harness.EventStep
	for i := 0; ; i++ {
		var doc eventDocument
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: event %d: %w", path, i, err)
		}
		if doc.Source.Endpoint == "" {
			return nil, fmt.Errorf("%s: event %d: source endpoint is required", path, i)
		}
		if doc.Source.Attributes == nil {
			doc.Source.Attributes = map[string]any{}
		}
		steps = append(steps, doc.step())
	}
	return steps, nil
}

// artifactFromStep builds a system artifact, resolving the endpoint
// against the route set.
func artifactFromStep(routes ir.RouteSet, step harness.ArtifactStep) (ir.Artifact, error) {
	ev, err := harness.BuildEvent(routes, harness.EventStep{Source: step})
	if err != nil {
		return ir.Artifact{}, err
	}
	return ev.Source, nil
}

// isPostgresDSN reports whether dsn is a lib/pq connection URL.
func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// openStore opens a PostgreSQL store for postgres:// URLs and a SQLite
// database file otherwise.
func openStore(ctx context.Context, dsn string) (*store.Store, error) {
	if isPostgresDSN(dsn) {
		return store.OpenPostgres(ctx, dsn)
	}
	return store.Open(dsn)
}

// newLogger returns a text logger on w. Verbose enables debug records.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
