package codes

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCodesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS code_counters (
  store_id TEXT NOT NULL,
  scope TEXT NOT NULL,
  day TEXT NOT NULL,
  value INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (store_id, scope, day)
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func TestGeneratorNext_sequencePerStoreAndDay(t *testing.T) {
	db := setupCodesTestDB(t)
	gen := NewGenerator(db)

	storeID := uuid.New()
	day := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)

	first, err := gen.Next(nil, storeID, ScopeSession, "DESP", day)
	require.NoError(t, err)
	assert.Equal(t, "DESP-09032026-001", first)

	second, err := gen.Next(nil, storeID, ScopeSession, "DESP", day)
	require.NoError(t, err)
	assert.Equal(t, "DESP-09032026-002", second)

	// counter resets on a new day
	nextDay, err := gen.Next(nil, storeID, ScopeSession, "DESP", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "DESP-10032026-001", nextDay)

	// scopes count independently
	settlement, err := gen.Next(nil, storeID, ScopeSettlement, "LIQ", day)
	require.NoError(t, err)
	assert.Equal(t, "LIQ-09032026-001", settlement)

	// stores count independently
	other, err := gen.Next(nil, uuid.New(), ScopeSession, "DESP", day)
	require.NoError(t, err)
	assert.Equal(t, "DESP-09032026-001", other)
}

func TestFormat(t *testing.T) {
	day := time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "LIQ-31122026-042", Format("LIQ", day, 42))
}
