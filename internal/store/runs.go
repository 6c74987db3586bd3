package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/brix/internal/codec"
	"github.com/roach88/brix/internal/ir"
)

const runColumns = `seq, id, route, source_endpoint, source_key, has_deltas,
	fired_rules, actions, warnings, digest`

// WriteRun records one processing run. The action list and warnings are
// stored as deterministic CBOR. Uses ON CONFLICT(id) DO NOTHING so a
// retried write of the same run is a no-op.
//
// Implements engine.Recorder.
func (s *Store) WriteRun(ctx context.Context, run ir.Run) error {
	if run.ID == "" {
		return fmt.Errorf("write run: id is required")
	}

	fired := run.FiredRules
	if fired == nil {
		fired = []string{}
	}
	firedJSON, err := ir.MarshalCanonical(fired)
	if err != nil {
		return fmt.Errorf("write run %s: fired rules: %w", run.ID, err)
	}
	actions, err := codec.EncodeActions(run.Actions)
	if err != nil {
		return fmt.Errorf("write run %s: %w", run.ID, err)
	}
	warnings := run.Warnings
	if warnings == nil {
		warnings = []ir.Warning{}
	}
	warningsCBOR, err := codec.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("write run %s: warnings: %w", run.ID, err)
	}

	_, err = s.exec(ctx, `
		INSERT INTO runs
		(id, route, source_endpoint, source_key, has_deltas, fired_rules, actions, warnings, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Route,
		run.SourceEndpoint,
		string(run.SourceKey),
		run.HasDeltas,
		string(firedJSON),
		actions,
		warningsCBOR,
		run.Digest,
	)
	if err != nil {
		return fmt.Errorf("write run %s: %w", run.ID, err)
	}
	return nil
}

// ReadRun returns one run by id, or ErrNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.Run, error) {
	row := s.queryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ListRuns returns runs in write order. An empty route lists every route.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListRuns(ctx context.Context, route string) ([]ir.Run, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if route == "" {
		rows, err = s.query(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq ASC`)
	} else {
		rows, err = s.query(ctx, `SELECT `+runColumns+` FROM runs WHERE route = ? ORDER BY seq ASC`, route)
	}
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(row rowScanner) (ir.Run, error) {
	var (
		run                  ir.Run
		sourceKey, firedJSON string
		actions, warnings    []byte
	)
	err := row.Scan(
		&run.Seq, &run.ID, &run.Route, &run.SourceEndpoint, &sourceKey, &run.HasDeltas,
		&firedJSON, &actions, &warnings, &run.Digest,
	)
	if err != nil {
		return ir.Run{}, err
	}
	run.SourceKey = ir.ArtifactKey(sourceKey)

	if err := json.Unmarshal([]byte(firedJSON), &run.FiredRules); err != nil {
		return ir.Run{}, fmt.Errorf("run %s: fired rules: %w", run.ID, err)
	}
	if run.Actions, err = codec.DecodeActions(actions); err != nil {
		return ir.Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	if err := codec.Unmarshal(warnings, &run.Warnings); err != nil {
		return ir.Run{}, fmt.Errorf("run %s: warnings: %w", run.ID, err)
	}
	return run, nil
}
