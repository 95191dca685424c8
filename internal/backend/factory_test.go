package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventfees/internal/config"
	"eventfees/internal/core"
	"eventfees/internal/log"
	"eventfees/internal/scope"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "memory", MemorySeedFile: "seed.json"})
	require.NoError(t, err)
	assert.Equal(t, MemoryBackend, cfg.Type)
	assert.Equal(t, "seed.json", cfg.SeedFile)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Type: "postgres"}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
}

func TestCreateBackend_Memory(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`{
		"fund_transfers": [{"id": 1, "event_id": 1, "institution_id": 2, "amount": 10, "status": "approved"}]
	}`), 0o644))

	result, err := NewFactory(log.Discard()).CreateBackend(context.Background(), Config{Type: MemoryBackend, SeedFile: seed})
	require.NoError(t, err)
	assert.Nil(t, result.Cleanup)
	require.NoError(t, result.Backend.Ping(context.Background()))

	agg, err := result.Backend.AggregateFundTransfers(context.Background(),
		core.ScopeKey{EventID: 1, InstitutionID: 2}, core.DefaultStatusPolicy().FundBuckets())
	require.NoError(t, err)
	assert.Equal(t, core.Cents(1000), agg.Approved)
}

func TestCreateBackend_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventfees.db")
	result, err := NewFactory(log.Discard()).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	require.NotNil(t, result.Cleanup)
	defer result.Cleanup()

	require.NoError(t, result.Backend.Ping(context.Background()))
	institutions, err := result.Backend.ListInstitutions(context.Background(), scope.Predicate{})
	require.NoError(t, err)
	assert.Empty(t, institutions)
}

func TestCreateBackend_Invalid(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"})
	assert.Error(t, err)
}
