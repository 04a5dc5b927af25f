// Copyright 2025 Signia Protocol
//
// Bundle Repository
// Content-addressed persistence of compiled bundles. Puts are idempotent:
// a bundle already present under its schema hash is left untouched, which
// is exactly the dedupe the content addressing promises.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/bundle"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/hashing"
)

// ErrNotFound reports a schema hash with no stored bundle.
var ErrNotFound = errors.New("bundle not found")

// Record is a stored bundle row.
type Record struct {
	SchemaHash   string
	ProofRoot    string
	ManifestHash string
	ArtifactKind string
	ArtifactName string
	Files        bundle.Files
	JobID        uuid.UUID
}

// Repository persists bundles.
type Repository struct {
	client *Client
}

// NewRepository creates a repository over a connected client.
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// Put stores an assembled bundle under its schema hash. Returns true when
// the row was inserted, false when an identical bundle was already stored.
func (r *Repository) Put(ctx context.Context, b *bundle.Bundle, kind, name string, jobID uuid.UUID) (bool, error) {
	manifestHash := ""
	if b.HasManifestHash {
		manifestHash = hashing.Hex(b.ManifestHash)
	}
	res, err := r.client.db.ExecContext(ctx, `
		INSERT INTO bundles (schema_hash, proof_root, manifest_hash, artifact_kind, artifact_name,
		                     schema_doc, manifest_doc, proof_doc, job_id)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)
		ON CONFLICT (schema_hash) DO NOTHING`,
		hashing.Hex(b.SchemaHash), hashing.Hex(b.ProofRoot), manifestHash, kind, name,
		b.SchemaBytes, b.ManifestBytes, b.ProofBytes, jobID)
	if err != nil {
		return false, fmt.Errorf("store bundle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store bundle: %w", err)
	}
	return n > 0, nil
}

// Get loads a bundle by schema hash (lowercase hex).
func (r *Repository) Get(ctx context.Context, schemaHash string) (*Record, error) {
	row := r.client.db.QueryRowContext(ctx, `
		SELECT schema_hash, proof_root, COALESCE(manifest_hash, ''), artifact_kind, artifact_name,
		       schema_doc, manifest_doc, proof_doc, COALESCE(job_id, '00000000-0000-0000-0000-000000000000')
		FROM bundles WHERE schema_hash = $1`, schemaHash)

	var rec Record
	err := row.Scan(&rec.SchemaHash, &rec.ProofRoot, &rec.ManifestHash, &rec.ArtifactKind, &rec.ArtifactName,
		&rec.Files.Schema, &rec.Files.Manifest, &rec.Files.Proof, &rec.JobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load bundle: %w", err)
	}
	return &rec, nil
}

// List returns stored bundle summaries, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.client.db.QueryContext(ctx, `
		SELECT schema_hash, proof_root, COALESCE(manifest_hash, ''), artifact_kind, artifact_name
		FROM bundles ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.SchemaHash, &rec.ProofRoot, &rec.ManifestHash, &rec.ArtifactKind, &rec.ArtifactName); err != nil {
			return nil, fmt.Errorf("scan bundle row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
