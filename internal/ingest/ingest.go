// Package ingest delivers import batches to their destination: the
// per-kind HTTP ingestion endpoint or a Postgres staging table.
package ingest

import "github.com/JonMunkholm/ledgerimport/internal/core"

// Payload is the JSON body sent to an ingestion endpoint.
type Payload struct {
	Rows     []core.Record        `json:"rows"`
	Mappings []core.ColumnMapping `json:"mappings"`
}

// newPayload keeps only the mappings that feed a field.
func newPayload(b core.Batch) Payload {
	rows := b.Rows
	if rows == nil {
		rows = []core.Record{}
	}
	return Payload{Rows: rows, Mappings: core.ActiveMappings(b.Mappings)}
}
