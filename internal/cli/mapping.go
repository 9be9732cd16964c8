package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// DefaultMaxFileSize matches the server's MAX_FILE_SIZE default.
const DefaultMaxFileSize = 10 << 20

// mappingFlags are shared by inspect and run.
type mappingFlags struct {
	Kind        string
	Overrides   []string
	MaxFileSize int64
}

type mappedFile struct {
	Kind     core.ImportKind
	Table    *core.ParsedTable
	Mappings []core.ColumnMapping
}

// load parses path, auto-maps its headers and applies --map overrides.
func (f mappingFlags) load(path string) (*mappedFile, error) {
	if strings.TrimSpace(f.Kind) == "" {
		return nil, fmt.Errorf("--kind is required")
	}
	kind, err := core.ParseKind(f.Kind)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	limit := f.MaxFileSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	table, err := core.DecodeFile(filepath.Base(path), file, limit)
	if err != nil {
		return nil, err
	}

	mappings := core.AutoMap(table.Headers, kind)
	if err := applyOverrides(mappings, f.Overrides, kind); err != nil {
		return nil, err
	}

	return &mappedFile{Kind: kind, Table: table, Mappings: mappings}, nil
}

// applyOverrides sets mappings from "Column=field" pairs. The field may be
// "skip" to ignore the column.
func applyOverrides(mappings []core.ColumnMapping, overrides []string, kind core.ImportKind) error {
	for _, o := range overrides {
		col, field, ok := strings.Cut(o, "=")
		col, field = strings.TrimSpace(col), strings.TrimSpace(field)
		if !ok || col == "" || field == "" {
			return fmt.Errorf("invalid --map %q: want Column=field", o)
		}
		if field != core.SkipField {
			if _, ok := core.FieldByID(kind, field); !ok {
				return fmt.Errorf("%w %q for %s", core.ErrUnknownField, field, kind)
			}
		}

		found := false
		for i := range mappings {
			if mappings[i].SourceColumn == col {
				mappings[i].TargetField = field
				found = true
			}
		}
		if !found {
			return fmt.Errorf("invalid --map %q: no column named %q", o, col)
		}
	}
	return nil
}

func fieldLabel(kind core.ImportKind, id string) string {
	if id == "" || id == core.SkipField {
		return "(skip)"
	}
	if f, ok := core.FieldByID(kind, id); ok {
		return fmt.Sprintf("%s (%s)", f.Label, f.Field)
	}
	return id
}
