package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

const presetColumns = `id, tenant_id, kind, name, headers, mappings, created_at, updated_at`

// CreatePreset inserts a preset. A name already used by the tenant for the
// same kind fails with a duplicate key error.
func (s *Store) CreatePreset(ctx context.Context, p core.MappingPreset) (core.MappingPreset, error) {
	headers, err := json.Marshal(p.Headers)
	if err != nil {
		return core.MappingPreset{}, fmt.Errorf("marshal headers: %w", err)
	}
	mappings, err := json.Marshal(p.Mappings)
	if err != nil {
		return core.MappingPreset{}, fmt.Errorf("marshal mappings: %w", err)
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO mapping_presets (tenant_id, kind, name, headers, mappings)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+presetColumns,
		p.TenantID, string(p.Kind), p.Name, headers, mappings,
	)

	created, err := scanPreset(row)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return core.MappingPreset{}, fmt.Errorf("%w: %q for %s", core.ErrPresetExists, p.Name, p.Kind)
		}
		return core.MappingPreset{}, err
	}
	return created, nil
}

// GetPreset returns a preset owned by tenantID.
func (s *Store) GetPreset(ctx context.Context, tenantID, id string) (core.MappingPreset, error) {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return core.MappingPreset{}, core.ErrPresetNotFound
	}

	row := s.db.QueryRow(ctx,
		`SELECT `+presetColumns+` FROM mapping_presets WHERE id = $1 AND tenant_id = $2`,
		pgID, tenantID,
	)
	p, err := scanPreset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.MappingPreset{}, core.ErrPresetNotFound
	}
	return p, err
}

// ListPresets returns the tenant's presets for kind, oldest first.
func (s *Store) ListPresets(ctx context.Context, tenantID string, kind core.ImportKind) ([]core.MappingPreset, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+presetColumns+` FROM mapping_presets
		WHERE tenant_id = $1 AND kind = $2
		ORDER BY created_at, name`,
		tenantID, string(kind),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	presets := make([]core.MappingPreset, 0)
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}
	return presets, rows.Err()
}

// DeletePreset removes a preset owned by tenantID.
func (s *Store) DeletePreset(ctx context.Context, tenantID, id string) error {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return core.ErrPresetNotFound
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM mapping_presets WHERE id = $1 AND tenant_id = $2`, pgID, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrPresetNotFound
	}
	return nil
}

func scanPreset(row pgx.Row) (core.MappingPreset, error) {
	var (
		id        pgtype.UUID
		tenantID  string
		kind      string
		name      string
		headers   []byte
		mappings  []byte
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	if err := row.Scan(&id, &tenantID, &kind, &name, &headers, &mappings, &createdAt, &updatedAt); err != nil {
		return core.MappingPreset{}, err
	}

	p := core.MappingPreset{
		ID:        uuidString(id),
		TenantID:  tenantID,
		Kind:      core.ImportKind(kind),
		Name:      name,
		CreatedAt: createdAt.Time,
		UpdatedAt: updatedAt.Time,
	}
	if err := json.Unmarshal(headers, &p.Headers); err != nil {
		return core.MappingPreset{}, fmt.Errorf("decode preset headers: %w", err)
	}
	if err := json.Unmarshal(mappings, &p.Mappings); err != nil {
		return core.MappingPreset{}, fmt.Errorf("decode preset mappings: %w", err)
	}
	return p, nil
}
