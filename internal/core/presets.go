package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PresetMatchThreshold is the minimum header overlap for a preset to be offered.
const PresetMatchThreshold = 0.7

// MappingPreset is a saved mapping a tenant can reapply to similar files.
type MappingPreset struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"-"`
	Kind      ImportKind      `json:"kind"`
	Name      string          `json:"name"`
	Headers   []string        `json:"headers"`
	Mappings  []ColumnMapping `json:"mappings"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// PresetMatch is a preset scored against a file's headers.
type PresetMatch struct {
	Preset     MappingPreset `json:"preset"`
	MatchScore float64       `json:"matchScore"`
}

// PresetStore persists mapping presets per tenant.
type PresetStore interface {
	CreatePreset(ctx context.Context, p MappingPreset) (MappingPreset, error)
	GetPreset(ctx context.Context, tenantID, id string) (MappingPreset, error)
	ListPresets(ctx context.Context, tenantID string, kind ImportKind) ([]MappingPreset, error)
	DeletePreset(ctx context.Context, tenantID, id string) error
}

// SavePreset stores the current mappings of a session under name.
func (s *Service) SavePreset(ctx context.Context, sessionID, name string) (MappingPreset, error) {
	if s.presets == nil {
		return MappingPreset{}, ErrPresetsDisabled
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return MappingPreset{}, fmt.Errorf("preset name is required")
	}

	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return MappingPreset{}, err
	}
	table := sess.Table()
	if table == nil {
		return MappingPreset{}, &TransitionError{Op: "save a preset", State: sess.State()}
	}

	p, err := s.presets.CreatePreset(ctx, MappingPreset{
		TenantID: sess.TenantID,
		Kind:     sess.Kind,
		Name:     name,
		Headers:  table.Headers,
		Mappings: sess.Mappings(),
	})
	if err != nil {
		return MappingPreset{}, fmt.Errorf("create preset: %w", err)
	}
	return p, nil
}

// ListPresets returns the tenant's presets for kind.
func (s *Service) ListPresets(ctx context.Context, kind ImportKind) ([]MappingPreset, error) {
	if s.presets == nil {
		return []MappingPreset{}, nil
	}
	presets, err := s.presets.ListPresets(ctx, TenantFromContext(ctx), kind)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	return presets, nil
}

// DeletePreset removes a preset owned by the caller's tenant.
func (s *Service) DeletePreset(ctx context.Context, id string) error {
	if s.presets == nil {
		return ErrPresetNotFound
	}
	return s.presets.DeletePreset(ctx, TenantFromContext(ctx), id)
}

// MatchPresets returns presets whose saved headers overlap the given headers
// by at least PresetMatchThreshold, best first.
func (s *Service) MatchPresets(ctx context.Context, kind ImportKind, headers []string) ([]PresetMatch, error) {
	presets, err := s.ListPresets(ctx, kind)
	if err != nil {
		return nil, err
	}

	matches := []PresetMatch{}
	for _, p := range presets {
		score := matchPresetHeaders(headers, p.Headers)
		if score >= PresetMatchThreshold {
			matches = append(matches, PresetMatch{Preset: p, MatchScore: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})

	return matches, nil
}

// ApplyPreset maps the session's columns using a saved preset. Columns the
// preset does not know are skipped. The session must be in mapping.
func (s *Service) ApplyPreset(ctx context.Context, sessionID, presetID string) error {
	if s.presets == nil {
		return ErrPresetNotFound
	}

	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	p, err := s.presets.GetPreset(ctx, sess.TenantID, presetID)
	if err != nil {
		return err
	}
	if p.Kind != sess.Kind {
		return fmt.Errorf("%w: preset is for %s", ErrPresetNotFound, p.Kind)
	}

	table := sess.Table()
	if table == nil {
		return &TransitionError{Op: "apply a preset", State: sess.State()}
	}
	return sess.SetMappings(presetMappings(table.Headers, p, sess.Kind))
}

// presetMappings aligns a preset with headers by normalized column name.
func presetMappings(headers []string, p MappingPreset, kind ImportKind) []ColumnMapping {
	byColumn := make(map[string]string, len(p.Mappings))
	for _, m := range p.Mappings {
		key := presetKey(m.SourceColumn)
		if _, seen := byColumn[key]; !seen {
			byColumn[key] = m.TargetField
		}
	}

	out := make([]ColumnMapping, len(headers))
	for i, h := range headers {
		target, ok := byColumn[presetKey(h)]
		if !ok {
			target = SkipField
		}
		if target != SkipField {
			if _, known := FieldByID(kind, target); !known {
				target = SkipField
			}
		}
		out[i] = ColumnMapping{SourceColumn: h, TargetField: target}
	}
	return out
}

// matchPresetHeaders calculates how well file headers match saved headers.
func matchPresetHeaders(fileHeaders, presetHeaders []string) float64 {
	if len(presetHeaders) == 0 {
		return 0
	}

	fileSet := make(map[string]bool, len(fileHeaders))
	for _, h := range fileHeaders {
		fileSet[presetKey(h)] = true
	}

	matched := 0
	for _, h := range presetHeaders {
		if fileSet[presetKey(h)] {
			matched++
		}
	}

	return float64(matched) / float64(len(presetHeaders))
}

func presetKey(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
