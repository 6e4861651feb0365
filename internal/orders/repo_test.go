package orders

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
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  store_id TEXT NOT NULL,
  carrier_id TEXT,
  customer_name TEXT NOT NULL,
  phone TEXT,
  address TEXT NOT NULL,
  zone TEXT,
  city TEXT,
  payment_method TEXT,
  prepaid_method TEXT,
  total_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  reconciled INTEGER NOT NULL DEFAULT 0,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	return db
}

func newOrder(t *testing.T, db *gorm.DB, storeID uuid.UUID, status enums.OrderStatus) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:           uuid.New(),
		StoreID:      storeID,
		CustomerName: "Laura Diaz",
		Address:      "Cra 7 # 45-10",
		TotalCents:   10000,
		Status:       status,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepositoryFindByIDsForStore_scopesByStore(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	storeA := uuid.New()
	storeB := uuid.New()
	mine := newOrder(t, db, storeA, enums.OrderStatusConfirmed)
	newOrder(t, db, storeB, enums.OrderStatusConfirmed)

	rows, err := repo.FindByIDsForStore(context.Background(), storeA, []uuid.UUID{mine.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, mine.ID, rows[0].ID)

	rows, err = repo.FindByIDsForStore(context.Background(), storeB, []uuid.UUID{mine.ID})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRepositoryAssignToCarrier(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	storeID := uuid.New()
	carrierID := uuid.New()
	first := newOrder(t, db, storeID, enums.OrderStatusConfirmed)
	second := newOrder(t, db, storeID, enums.OrderStatusPacked)

	err := repo.AssignToCarrier(context.Background(), []uuid.UUID{first.ID, second.ID}, carrierID, enums.OrderStatusShipped)
	require.NoError(t, err)

	var rows []models.Order
	require.NoError(t, db.Where("store_id = ?", storeID).Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, enums.OrderStatusShipped, row.Status)
		require.NotNil(t, row.CarrierID)
		assert.Equal(t, carrierID, *row.CarrierID)
	}
}

func TestRepositoryMarkReconciled(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	storeID := uuid.New()
	order := newOrder(t, db, storeID, enums.OrderStatusShipped)
	deliveredAt := time.Now().UTC().Truncate(time.Second)

	err := repo.MarkReconciled(context.Background(), order.ID, enums.OrderStatusDelivered, &deliveredAt)
	require.NoError(t, err)

	var row models.Order
	require.NoError(t, db.Where("id = ?", order.ID).First(&row).Error)
	assert.True(t, row.Reconciled)
	assert.Equal(t, enums.OrderStatusDelivered, row.Status)
	require.NotNil(t, row.DeliveredAt)

	err = repo.MarkReconciled(context.Background(), order.ID, enums.OrderStatusReturned, nil)
	require.NoError(t, err)
	require.NoError(t, db.Where("id = ?", order.ID).First(&row).Error)
	assert.Equal(t, enums.OrderStatusReturned, row.Status)
}
