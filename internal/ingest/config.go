package ingest

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/ledgerimport/internal/config"
	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// FromConfig builds the submitter for the configured ingest mode. db may be
// nil when neither postgres mode nor staged kinds are configured.
func FromConfig(cfg config.IngestConfig, db TxBeginner) (core.Submitter, error) {
	var fallback core.Submitter
	switch strings.ToLower(cfg.Mode) {
	case config.IngestPostgres:
		if db == nil {
			return nil, fmt.Errorf("ingest mode %q needs a database", cfg.Mode)
		}
		fallback = NewPostgresSubmitter(db)
	case config.IngestHTTP, "":
		fallback = NewHTTPSubmitter(cfg.BaseURL, cfg.Token, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown ingest mode %q", cfg.Mode)
	}

	if len(cfg.PostgresKinds) == 0 {
		return fallback, nil
	}
	if db == nil {
		return nil, fmt.Errorf("staged kinds %v need a database", cfg.PostgresKinds)
	}

	router := NewKindRouter(fallback)
	staging := NewPostgresSubmitter(db)
	for _, k := range cfg.PostgresKinds {
		kind, err := core.ParseKind(k)
		if err != nil {
			return nil, fmt.Errorf("INGEST_POSTGRES_KINDS: %w", err)
		}
		router.Route(kind, staging)
	}
	return router, nil
}
