package settlements

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
	"github.com/entregalo/entregalo-backend/pkg/pagination"
)

func setupSettlementsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS settlements (
  id TEXT PRIMARY KEY,
  store_id TEXT NOT NULL,
  carrier_id TEXT NOT NULL,
  session_id TEXT,
  settlement_code TEXT NOT NULL UNIQUE,
  settlement_date DATE NOT NULL,
  total_dispatched INTEGER NOT NULL DEFAULT 0,
  total_delivered INTEGER NOT NULL DEFAULT 0,
  total_not_delivered INTEGER NOT NULL DEFAULT 0,
  cod_delivered INTEGER NOT NULL DEFAULT 0,
  prepaid_delivered INTEGER NOT NULL DEFAULT 0,
  cod_collected_cents INTEGER NOT NULL DEFAULT 0,
  cod_expected_cents INTEGER NOT NULL DEFAULT 0,
  cod_fees_cents INTEGER NOT NULL DEFAULT 0,
  prepaid_fees_cents INTEGER NOT NULL DEFAULT 0,
  total_fees_cents INTEGER NOT NULL DEFAULT 0,
  failed_attempt_fee_cents INTEGER NOT NULL DEFAULT 0,
  net_receivable_cents INTEGER NOT NULL DEFAULT 0,
  amount_paid_cents INTEGER NOT NULL DEFAULT 0,
  balance_due_cents INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT,
  payment_reference TEXT,
  notes TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func seedSettlement(t *testing.T, db *gorm.DB, storeID uuid.UUID, status enums.SettlementStatus, createdAt time.Time) *models.Settlement {
	t.Helper()
	row := &models.Settlement{
		ID:                 uuid.New(),
		StoreID:            storeID,
		CarrierID:          uuid.New(),
		SettlementCode:     fmt.Sprintf("LIQ-09032026-%s", uuid.New().String()[:8]),
		SettlementDate:     createdAt,
		NetReceivableCents: 12500,
		BalanceDueCents:    12500,
		Status:             status,
		CreatedAt:          createdAt,
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

func TestRepositoryListPending_paginates(t *testing.T) {
	db := setupSettlementsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	storeID := uuid.New()

	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedSettlement(t, db, storeID, enums.SettlementStatusPending, base.Add(time.Duration(i)*time.Minute))
	}
	seedSettlement(t, db, storeID, enums.SettlementStatusPaid, base.Add(time.Hour))
	seedSettlement(t, db, uuid.New(), enums.SettlementStatusPending, base.Add(time.Hour))

	first, err := repo.ListPending(ctx, storeID, pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Settlements, 3)
	require.NotEmpty(t, first.NextCursor)

	// newest first
	assert.True(t, first.Settlements[0].CreatedAt.After(first.Settlements[2].CreatedAt))

	second, err := repo.ListPending(ctx, storeID, pagination.Params{Limit: 3, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Settlements, 2)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, row := range append(first.Settlements, second.Settlements...) {
		assert.False(t, seen[row.ID], "settlement %s returned twice", row.ID)
		seen[row.ID] = true
		assert.Equal(t, storeID, row.StoreID)
	}
	assert.Len(t, seen, 5)
}

func TestRepositoryListPending_includesPartial(t *testing.T) {
	db := setupSettlementsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	storeID := uuid.New()

	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	seedSettlement(t, db, storeID, enums.SettlementStatusPending, base)
	seedSettlement(t, db, storeID, enums.SettlementStatusPartial, base.Add(time.Minute))
	seedSettlement(t, db, storeID, enums.SettlementStatusDisputed, base.Add(2*time.Minute))
	seedSettlement(t, db, storeID, enums.SettlementStatusCancelled, base.Add(3*time.Minute))

	list, err := repo.ListPending(ctx, storeID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Settlements, 2)
}

func TestRepositoryUpdatePayment(t *testing.T) {
	db := setupSettlementsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	storeID := uuid.New()

	row := seedSettlement(t, db, storeID, enums.SettlementStatusPending, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC))

	now := time.Now().UTC()
	err := repo.UpdatePayment(ctx, row.ID, map[string]any{
		"amount_paid_cents": int64(12500),
		"balance_due_cents": int64(0),
		"status":            enums.SettlementStatusPaid,
		"paid_at":           now,
		"updated_at":        now,
	})
	require.NoError(t, err)

	got, err := repo.FindForStore(ctx, storeID, row.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12500), got.AmountPaidCents)
	assert.Equal(t, int64(0), got.BalanceDueCents)
	assert.Equal(t, enums.SettlementStatusPaid, got.Status)
	require.NotNil(t, got.PaidAt)
}

func TestRepositoryFindForStore_scopesByStore(t *testing.T) {
	db := setupSettlementsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	row := seedSettlement(t, db, uuid.New(), enums.SettlementStatusPending, time.Now().UTC())

	_, err := repo.FindForStore(ctx, uuid.New(), row.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryExistsForSession(t *testing.T) {
	db := setupSettlementsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	storeID := uuid.New()

	row := seedSettlement(t, db, storeID, enums.SettlementStatusPending, time.Now().UTC())
	sessionID := uuid.New()
	require.NoError(t, db.Model(&models.Settlement{}).Where("id = ?", row.ID).Update("session_id", sessionID).Error)

	exists, err := repo.ExistsForSession(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsForSession(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}
