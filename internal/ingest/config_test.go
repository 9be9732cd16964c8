package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/ledgerimport/internal/config"
	"github.com/JonMunkholm/ledgerimport/internal/core"
	_ "github.com/JonMunkholm/ledgerimport/internal/core/kinds"
)

func TestFromConfig(t *testing.T) {
	db := &fakeBeginner{tx: newFakeTx(0)}

	t.Run("http", func(t *testing.T) {
		sub, err := FromConfig(config.IngestConfig{Mode: "http", BaseURL: "http://ledger.test/", Timeout: time.Second}, nil)
		require.NoError(t, err)
		h, ok := sub.(*HTTPSubmitter)
		require.True(t, ok)
		assert.Equal(t, "http://ledger.test", h.BaseURL)
	})

	t.Run("postgres", func(t *testing.T) {
		sub, err := FromConfig(config.IngestConfig{Mode: "postgres"}, db)
		require.NoError(t, err)
		assert.IsType(t, &PostgresSubmitter{}, sub)
	})

	t.Run("postgres without database", func(t *testing.T) {
		_, err := FromConfig(config.IngestConfig{Mode: "postgres"}, nil)
		assert.Error(t, err)
	})

	t.Run("staged kinds", func(t *testing.T) {
		sub, err := FromConfig(config.IngestConfig{Mode: "http", BaseURL: "http://x", PostgresKinds: []string{"Expenses"}}, db)
		require.NoError(t, err)
		router, ok := sub.(*KindRouter)
		require.True(t, ok)
		assert.IsType(t, &PostgresSubmitter{}, router.routes[core.KindExpenses])
		assert.IsType(t, &HTTPSubmitter{}, router.Default)
	})

	t.Run("staged unknown kind", func(t *testing.T) {
		_, err := FromConfig(config.IngestConfig{Mode: "http", PostgresKinds: []string{"payroll"}}, db)
		assert.ErrorIs(t, err, core.ErrUnknownKind)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := FromConfig(config.IngestConfig{Mode: "kafka"}, nil)
		assert.ErrorContains(t, err, "unknown ingest mode")
	})
}
