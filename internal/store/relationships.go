package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/brix/internal/ir"
)

// ErrNotFound is returned when a relationship or run does not exist.
var ErrNotFound = errors.New("not found")

const relationshipColumns = `id, name, description,
	source_endpoint, source_type, source_key,
	target_endpoint, target_type, target_key,
	state, status, last_transaction`

// SaveRelationship inserts a relationship.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - saving the same id
// twice keeps the first record.
func (s *Store) SaveRelationship(ctx context.Context, r ir.ArtifactRelationship) error {
	if r.ID == "" {
		return fmt.Errorf("save relationship: id is required")
	}
	if r.Source.Key == "" || r.Target.Key == "" {
		return fmt.Errorf("save relationship %s: source and target keys are required", r.ID)
	}

	_, err := s.exec(ctx, `
		INSERT INTO relationships (`+relationshipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ID, r.Name, r.Description,
		r.Source.Endpoint, string(r.Source.Type), string(r.Source.Key),
		r.Target.Endpoint, string(r.Target.Type), string(r.Target.Key),
		string(r.State), string(r.Status), r.LastTransaction,
	)
	if err != nil {
		return fmt.Errorf("save relationship %s: %w", r.ID, err)
	}
	return nil
}

// FindRelationships returns the relationships of a source artifact key in
// insertion order. Returns an empty slice (not nil) when there are none.
//
// Implements engine.RelationshipFinder.
func (s *Store) FindRelationships(ctx context.Context, sourceKey ir.ArtifactKey) ([]ir.ArtifactRelationship, error) {
	rows, err := s.query(ctx, `
		SELECT `+relationshipColumns+`
		FROM relationships
		WHERE source_key = ?
		ORDER BY seq ASC
	`, string(sourceKey))
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	return collectRelationships(rows)
}

// ListRelationships returns every relationship in insertion order.
func (s *Store) ListRelationships(ctx context.Context) ([]ir.ArtifactRelationship, error) {
	rows, err := s.query(ctx, `
		SELECT `+relationshipColumns+`
		FROM relationships
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	return collectRelationships(rows)
}

// GetRelationship returns one relationship by id, or ErrNotFound.
func (s *Store) GetRelationship(ctx context.Context, id string) (ir.ArtifactRelationship, error) {
	row := s.queryRow(ctx, `
		SELECT `+relationshipColumns+`
		FROM relationships
		WHERE id = ?
	`, id)
	r, err := scanRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.ArtifactRelationship{}, fmt.Errorf("relationship %s: %w", id, ErrNotFound)
	}
	return r, err
}

// UpdateRelationshipStatus sets the processing status of a relationship
// and stamps lastTransaction (unix millis, supplied by the caller).
func (s *Store) UpdateRelationshipStatus(ctx context.Context, id string, status ir.Status, lastTransaction int64) error {
	res, err := s.exec(ctx, `
		UPDATE relationships
		SET status = ?, last_transaction = ?
		WHERE id = ?
	`, string(status), lastTransaction, id)
	if err != nil {
		return fmt.Errorf("update relationship %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update relationship %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update relationship %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRelationship(row rowScanner) (ir.ArtifactRelationship, error) {
	var r ir.ArtifactRelationship
	var srcType, srcKey, tgtType, tgtKey, state, status string
	err := row.Scan(
		&r.ID, &r.Name, &r.Description,
		&r.Source.Endpoint, &srcType, &srcKey,
		&r.Target.Endpoint, &tgtType, &tgtKey,
		&state, &status, &r.LastTransaction,
	)
	if err != nil {
		return ir.ArtifactRelationship{}, err
	}
	r.Source.Type = ir.ArtifactType(srcType)
	r.Source.Key = ir.ArtifactKey(srcKey)
	r.Target.Type = ir.ArtifactType(tgtType)
	r.Target.Key = ir.ArtifactKey(tgtKey)
	r.State = ir.State(state)
	r.Status = ir.Status(status)
	return r, nil
}

func collectRelationships(rows *sql.Rows) ([]ir.ArtifactRelationship, error) {
	defer rows.Close()

	rels := []ir.ArtifactRelationship{}
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rels = append(rels, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relationships: %w", err)
	}
	return rels, nil
}
