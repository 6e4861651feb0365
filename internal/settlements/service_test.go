package settlements

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/internal/dispatch"
	"github.com/entregalo/entregalo-backend/internal/movements"
	"github.com/entregalo/entregalo-backend/internal/orders"
	"github.com/entregalo/entregalo-backend/internal/rates"
	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
	"github.com/entregalo/entregalo-backend/pkg/locks"
	"github.com/entregalo/entregalo-backend/pkg/outbox"
	"github.com/entregalo/entregalo-backend/pkg/pagination"
)

type fakeSettlementsRepo struct {
	mu          sync.Mutex
	rowLock     sync.Mutex
	serialize   bool
	settlements map[uuid.UUID]*models.Settlement
	created     *models.Settlement
}

func newFakeSettlementsRepo(rows ...*models.Settlement) *fakeSettlementsRepo {
	f := &fakeSettlementsRepo{settlements: map[uuid.UUID]*models.Settlement{}}
	for _, row := range rows {
		f.settlements[row.ID] = row
	}
	return f
}

func (f *fakeSettlementsRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeSettlementsRepo) Create(ctx context.Context, settlement *models.Settlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = settlement
	f.settlements[settlement.ID] = settlement
	return nil
}

func (f *fakeSettlementsRepo) FindForStore(ctx context.Context, storeID, settlementID uuid.UUID) (*models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.settlements[settlementID]; ok && s.StoreID == storeID {
		copied := *s
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// FindForStoreLocked takes the repo row lock when serialize is on; the lock
// is released by UpdatePayment, emulating a row lock held to commit.
func (f *fakeSettlementsRepo) FindForStoreLocked(ctx context.Context, storeID, settlementID uuid.UUID) (*models.Settlement, error) {
	if f.serialize {
		f.rowLock.Lock()
	}
	return f.FindForStore(ctx, storeID, settlementID)
}

func (f *fakeSettlementsRepo) UpdatePayment(ctx context.Context, settlementID uuid.UUID, updates map[string]any) error {
	f.mu.Lock()
	row := f.settlements[settlementID]
	if v, ok := updates["amount_paid_cents"].(int64); ok {
		row.AmountPaidCents = v
	}
	if v, ok := updates["balance_due_cents"].(int64); ok {
		row.BalanceDueCents = v
	}
	if v, ok := updates["status"].(enums.SettlementStatus); ok {
		row.Status = v
	}
	if v, ok := updates["paid_at"].(time.Time); ok {
		row.PaidAt = &v
	}
	f.mu.Unlock()
	if f.serialize {
		f.rowLock.Unlock()
	}
	return nil
}

func (f *fakeSettlementsRepo) ListPending(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*PendingList, error) {
	return &PendingList{}, nil
}

func (f *fakeSettlementsRepo) ExistsForSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.settlements {
		if s.SessionID != nil && *s.SessionID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

type fakeDispatchRepo struct {
	sessions map[uuid.UUID]*models.DispatchSession
	settled  []uuid.UUID
}

func newFakeDispatchRepo(sessions ...*models.DispatchSession) *fakeDispatchRepo {
	f := &fakeDispatchRepo{sessions: map[uuid.UUID]*models.DispatchSession{}}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeDispatchRepo) WithTx(tx *gorm.DB) dispatch.Repository { return f }

func (f *fakeDispatchRepo) CreateSession(ctx context.Context, session *models.DispatchSession) (*models.DispatchSession, error) {
	return session, nil
}

func (f *fakeDispatchRepo) CreateLines(ctx context.Context, lines []models.DispatchedOrder) error {
	return nil
}

func (f *fakeDispatchRepo) FindSession(ctx context.Context, sessionID uuid.UUID) (*models.DispatchSession, error) {
	if s, ok := f.sessions[sessionID]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDispatchRepo) FindSessionForStore(ctx context.Context, storeID, sessionID uuid.UUID) (*models.DispatchSession, error) {
	if s, ok := f.sessions[sessionID]; ok && s.StoreID == storeID {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDispatchRepo) FindSessionsByDate(ctx context.Context, storeID, carrierID uuid.UUID, date time.Time) ([]models.DispatchSession, error) {
	var out []models.DispatchSession
	for _, s := range f.sessions {
		if s.StoreID == storeID && s.CarrierID == carrierID && s.DispatchDate.Equal(date) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeDispatchRepo) FindActiveSessionOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeDispatchRepo) FindLine(ctx context.Context, sessionID, orderID uuid.UUID) (*models.DispatchedOrder, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDispatchRepo) UpdateLineOutcome(ctx context.Context, lineID uuid.UUID, updates map[string]any) error {
	return nil
}

func (f *fakeDispatchRepo) UpdateSessionStatus(ctx context.Context, sessionID uuid.UUID, status enums.DispatchSessionStatus, at time.Time) error {
	if status == enums.DispatchSessionStatusSettled {
		f.settled = append(f.settled, sessionID)
	}
	return nil
}

type fakeOrdersRepo struct {
	rows       map[uuid.UUID]*models.Order
	reconciled map[uuid.UUID]enums.OrderStatus
}

func newFakeOrdersRepo(rows ...*models.Order) *fakeOrdersRepo {
	f := &fakeOrdersRepo{
		rows:       map[uuid.UUID]*models.Order{},
		reconciled: map[uuid.UUID]enums.OrderStatus{},
	}
	for _, row := range rows {
		f.rows[row.ID] = row
	}
	return f
}

func (f *fakeOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return f }

func (f *fakeOrdersRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if row, ok := f.rows[orderID]; ok {
		return row, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrdersRepo) FindByIDsForStore(ctx context.Context, storeID uuid.UUID, orderIDs []uuid.UUID) ([]models.Order, error) {
	return f.findForStore(storeID, orderIDs), nil
}

func (f *fakeOrdersRepo) FindByIDsForStoreLocked(ctx context.Context, storeID uuid.UUID, orderIDs []uuid.UUID) ([]models.Order, error) {
	return f.findForStore(storeID, orderIDs), nil
}

func (f *fakeOrdersRepo) findForStore(storeID uuid.UUID, orderIDs []uuid.UUID) []models.Order {
	var out []models.Order
	for _, id := range orderIDs {
		if row, ok := f.rows[id]; ok && row.StoreID == storeID {
			out = append(out, *row)
		}
	}
	return out
}

func (f *fakeOrdersRepo) AssignToCarrier(ctx context.Context, orderIDs []uuid.UUID, carrierID uuid.UUID, status enums.OrderStatus) error {
	return nil
}

func (f *fakeOrdersRepo) MarkDelivered(ctx context.Context, orderID uuid.UUID, deliveredAt time.Time) error {
	return nil
}

func (f *fakeOrdersRepo) MarkReconciled(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, deliveredAt *time.Time) error {
	f.reconciled[orderID] = status
	return nil
}

type fakeRatesService struct {
	carrier *models.Carrier
}

func (f *fakeRatesService) WithTx(tx *gorm.DB) rates.Service { return f }

func (f *fakeRatesService) GetCarrierForStore(ctx context.Context, storeID, carrierID uuid.UUID) (*models.Carrier, error) {
	if f.carrier != nil && f.carrier.ID == carrierID && f.carrier.StoreID == storeID {
		return f.carrier, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "carrier not found")
}

func (f *fakeRatesService) ResolveFee(ctx context.Context, carrier *models.Carrier, zone, city *string) (int64, error) {
	return 0, nil
}

type fakeMovements struct {
	mu        sync.Mutex
	delivered []movements.DeliveredInput
	failed    []movements.FailedAttemptInput
	removed   []uuid.UUID
}

func (f *fakeMovements) RecordDelivered(ctx context.Context, tx *gorm.DB, input movements.DeliveredInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, input)
	return nil
}

func (f *fakeMovements) RecordFailedAttempt(ctx context.Context, tx *gorm.DB, input movements.FailedAttemptInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, input)
	return nil
}

func (f *fakeMovements) RemoveDeliveredMovements(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, orderID)
	return nil
}

func (f *fakeMovements) HealthReport(ctx context.Context) (*movements.HealthReport, error) {
	return &movements.HealthReport{}, nil
}

type fakeCodeAllocator struct {
	code string
}

func (f *fakeCodeAllocator) Next(tx *gorm.DB, storeID uuid.UUID, scope, prefix string, day time.Time) (string, error) {
	return f.code, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return f.Emit(ctx, tx, event)
}

type recordingLocks struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingLocks) Acquire(ctx context.Context, key string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return func() {}, nil
}

type testDeps struct {
	repo      *fakeSettlementsRepo
	dispatch  *fakeDispatchRepo
	orders    *fakeOrdersRepo
	rates     *fakeRatesService
	movements *fakeMovements
	outbox    *fakeOutbox
	locks     locks.Manager
}

func newTestService(t *testing.T, deps testDeps) Service {
	t.Helper()
	if deps.repo == nil {
		deps.repo = newFakeSettlementsRepo()
	}
	if deps.dispatch == nil {
		deps.dispatch = newFakeDispatchRepo()
	}
	if deps.orders == nil {
		deps.orders = newFakeOrdersRepo()
	}
	if deps.rates == nil {
		deps.rates = &fakeRatesService{}
	}
	if deps.movements == nil {
		deps.movements = &fakeMovements{}
	}
	if deps.outbox == nil {
		deps.outbox = &fakeOutbox{}
	}
	if deps.locks == nil {
		deps.locks = locks.NewInProcManager(2 * time.Second)
	}
	svc, err := NewService(ServiceParams{
		Repo:      deps.repo,
		Dispatch:  deps.dispatch,
		Orders:    deps.orders,
		Rates:     deps.rates,
		Movements: deps.movements,
		CodeGen:   &fakeCodeAllocator{code: "LIQ-09032026-001"},
		Locks:     deps.locks,
		Tx:        fakeTxRunner{},
		Outbox:    deps.outbox,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func codOrder(storeID uuid.UUID) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		StoreID:       storeID,
		CustomerName:  "Cliente",
		Address:       "Calle 1",
		PaymentMethod: strPtr("efectivo"),
		Status:        enums.OrderStatusShipped,
	}
}

func sessionLine(sessionID uuid.UUID, order *models.Order, status enums.DeliveryStatus, total, collected, fee int64) models.DispatchedOrder {
	var processedAt *time.Time
	if status.IsProcessed() {
		at := time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)
		processedAt = &at
	}
	return models.DispatchedOrder{
		ID:                   uuid.New(),
		SessionID:            sessionID,
		OrderID:              order.ID,
		CustomerName:         order.CustomerName,
		Address:              order.Address,
		PaymentMethod:        order.PaymentMethod,
		PrepaidMethod:        order.PrepaidMethod,
		TotalCents:           total,
		AmountCollectedCents: collected,
		CarrierFeeCents:      fee,
		DeliveryStatus:       status,
		ProcessedAt:          processedAt,
	}
}

func TestService_ComputeForSession(t *testing.T) {
	storeID := uuid.New()
	carrier := &models.Carrier{ID: uuid.New(), StoreID: storeID, Active: true}

	delivered1 := codOrder(storeID)
	delivered2 := codOrder(storeID)
	failed := codOrder(storeID)
	rescheduled := codOrder(storeID)

	session := &models.DispatchSession{
		ID:           uuid.New(),
		StoreID:      storeID,
		CarrierID:    carrier.ID,
		SessionCode:  "DESP-09032026-001",
		DispatchDate: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		Status:       enums.DispatchSessionStatusProcessing,
	}
	session.Lines = []models.DispatchedOrder{
		sessionLine(session.ID, delivered1, enums.DeliveryStatusDelivered, 8000, 8000, 1000),
		sessionLine(session.ID, delivered2, enums.DeliveryStatusDelivered, 7000, 7000, 1000),
		sessionLine(session.ID, failed, enums.DeliveryStatusNotDelivered, 5000, 0, 1000),
		sessionLine(session.ID, rescheduled, enums.DeliveryStatusRescheduled, 3000, 0, 1000),
	}

	deps := testDeps{
		repo:      newFakeSettlementsRepo(),
		dispatch:  newFakeDispatchRepo(session),
		orders:    newFakeOrdersRepo(delivered1, delivered2, failed, rescheduled),
		rates:     &fakeRatesService{carrier: carrier},
		movements: &fakeMovements{},
		outbox:    &fakeOutbox{},
	}
	svc := newTestService(t, deps)

	settlement, err := svc.ComputeForSession(context.Background(), ComputeSessionInput{
		StoreID:   storeID,
		SessionID: session.ID,
	})
	if err != nil {
		t.Fatalf("ComputeForSession error: %v", err)
	}

	if settlement.SettlementCode != "LIQ-09032026-001" {
		t.Fatalf("settlement code = %q", settlement.SettlementCode)
	}
	if settlement.SessionID == nil || *settlement.SessionID != session.ID {
		t.Fatalf("settlement session id = %v, want %s", settlement.SessionID, session.ID)
	}
	if settlement.CodCollectedCents != 15000 {
		t.Fatalf("cod collected = %d, want 15000", settlement.CodCollectedCents)
	}
	if settlement.TotalFeesCents != 2000 {
		t.Fatalf("total fees = %d, want 2000", settlement.TotalFeesCents)
	}
	if settlement.FailedAttemptFeeCents != 500 {
		t.Fatalf("failed fee = %d, want 500", settlement.FailedAttemptFeeCents)
	}
	if settlement.NetReceivableCents != 12500 {
		t.Fatalf("net receivable = %d, want 12500", settlement.NetReceivableCents)
	}
	if settlement.Status != enums.SettlementStatusPending {
		t.Fatalf("status = %s, want pending", settlement.Status)
	}
	if settlement.BalanceDueCents != 12500 {
		t.Fatalf("balance due = %d, want 12500", settlement.BalanceDueCents)
	}

	if len(deps.movements.delivered) != 2 {
		t.Fatalf("delivered movements = %d, want 2", len(deps.movements.delivered))
	}
	for _, input := range deps.movements.delivered {
		if input.SettlementID == nil || *input.SettlementID != settlement.ID {
			t.Fatalf("delivered movement missing settlement id")
		}
	}
	if len(deps.movements.failed) != 1 {
		t.Fatalf("failed movements = %d, want 1", len(deps.movements.failed))
	}
	if deps.movements.failed[0].FeeCents != 500 {
		t.Fatalf("failed movement fee = %d, want 500", deps.movements.failed[0].FeeCents)
	}
	// the failed line clears any movements a premature delivered outcome left
	if len(deps.movements.removed) != 1 || deps.movements.removed[0] != failed.ID {
		t.Fatalf("removed movements = %v, want [%s]", deps.movements.removed, failed.ID)
	}

	if got := deps.orders.reconciled[delivered1.ID]; got != enums.OrderStatusDelivered {
		t.Fatalf("delivered order status = %s", got)
	}
	if got := deps.orders.reconciled[failed.ID]; got != enums.OrderStatusReturned {
		t.Fatalf("failed order status = %s, want returned", got)
	}
	if _, ok := deps.orders.reconciled[rescheduled.ID]; ok {
		t.Fatalf("rescheduled order must not be reconciled")
	}

	if len(deps.dispatch.settled) != 1 || deps.dispatch.settled[0] != session.ID {
		t.Fatalf("session not settled: %v", deps.dispatch.settled)
	}
	if len(deps.outbox.events) != 1 || deps.outbox.events[0].EventType != enums.EventSettlementComputed {
		t.Fatalf("unexpected outbox events: %+v", deps.outbox.events)
	}
}

func TestService_ComputeForSession_TerminalSession(t *testing.T) {
	storeID := uuid.New()
	session := &models.DispatchSession{
		ID:        uuid.New(),
		StoreID:   storeID,
		CarrierID: uuid.New(),
		Status:    enums.DispatchSessionStatusSettled,
	}
	svc := newTestService(t, testDeps{dispatch: newFakeDispatchRepo(session)})

	_, err := svc.ComputeForSession(context.Background(), ComputeSessionInput{StoreID: storeID, SessionID: session.ID})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestService_ComputeForSession_NoOutcomes(t *testing.T) {
	storeID := uuid.New()
	carrier := &models.Carrier{ID: uuid.New(), StoreID: storeID, Active: true}
	pending := codOrder(storeID)
	session := &models.DispatchSession{
		ID:        uuid.New(),
		StoreID:   storeID,
		CarrierID: carrier.ID,
		Status:    enums.DispatchSessionStatusDispatched,
	}
	session.Lines = []models.DispatchedOrder{
		sessionLine(session.ID, pending, enums.DeliveryStatusPending, 5000, 0, 1000),
	}
	svc := newTestService(t, testDeps{
		dispatch: newFakeDispatchRepo(session),
		orders:   newFakeOrdersRepo(pending),
		rates:    &fakeRatesService{carrier: carrier},
	})

	_, err := svc.ComputeForSession(context.Background(), ComputeSessionInput{StoreID: storeID, SessionID: session.ID})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestService_ComputeForSession_AlreadyReconciled(t *testing.T) {
	storeID := uuid.New()
	carrier := &models.Carrier{ID: uuid.New(), StoreID: storeID, Active: true}
	order := codOrder(storeID)
	order.Reconciled = true
	session := &models.DispatchSession{
		ID:        uuid.New(),
		StoreID:   storeID,
		CarrierID: carrier.ID,
		Status:    enums.DispatchSessionStatusProcessing,
	}
	session.Lines = []models.DispatchedOrder{
		sessionLine(session.ID, order, enums.DeliveryStatusDelivered, 5000, 5000, 1000),
	}
	svc := newTestService(t, testDeps{
		dispatch: newFakeDispatchRepo(session),
		orders:   newFakeOrdersRepo(order),
		rates:    &fakeRatesService{carrier: carrier},
	})

	_, err := svc.ComputeForSession(context.Background(), ComputeSessionInput{StoreID: storeID, SessionID: session.ID})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestService_ComputeForSession_ExistingSettlement(t *testing.T) {
	storeID := uuid.New()
	carrier := &models.Carrier{ID: uuid.New(), StoreID: storeID, Active: true}
	order := codOrder(storeID)
	session := &models.DispatchSession{
		ID:        uuid.New(),
		StoreID:   storeID,
		CarrierID: carrier.ID,
		Status:    enums.DispatchSessionStatusProcessing,
	}
	session.Lines = []models.DispatchedOrder{
		sessionLine(session.ID, order, enums.DeliveryStatusDelivered, 5000, 5000, 1000),
	}
	prior := pendingSettlement(storeID, 4000)
	prior.SessionID = &session.ID
	svc := newTestService(t, testDeps{
		repo:     newFakeSettlementsRepo(prior),
		dispatch: newFakeDispatchRepo(session),
		orders:   newFakeOrdersRepo(order),
		rates:    &fakeRatesService{carrier: carrier},
	})

	_, err := svc.ComputeForSession(context.Background(), ComputeSessionInput{StoreID: storeID, SessionID: session.ID})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestService_ComputeGroupingsShareLockKey(t *testing.T) {
	storeID := uuid.New()
	carrier := &models.Carrier{ID: uuid.New(), StoreID: storeID, Active: true}
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	order := codOrder(storeID)
	session := &models.DispatchSession{
		ID:           uuid.New(),
		StoreID:      storeID,
		CarrierID:    carrier.ID,
		DispatchDate: date,
		Status:       enums.DispatchSessionStatusProcessing,
	}
	session.Lines = []models.DispatchedOrder{
		sessionLine(session.ID, order, enums.DeliveryStatusDelivered, 8000, 8000, 1000),
	}

	lockLog := &recordingLocks{}
	svc := newTestService(t, testDeps{
		dispatch: newFakeDispatchRepo(session),
		orders:   newFakeOrdersRepo(order),
		rates:    &fakeRatesService{carrier: carrier},
		locks:    lockLog,
	})

	if _, err := svc.ComputeForSession(context.Background(), ComputeSessionInput{StoreID: storeID, SessionID: session.ID}); err != nil {
		t.Fatalf("ComputeForSession error: %v", err)
	}
	_, _ = svc.ComputeForDate(context.Background(), ComputeDateInput{StoreID: storeID, CarrierID: carrier.ID, Date: date})

	if len(lockLog.keys) != 2 {
		t.Fatalf("acquired keys = %v, want 2", lockLog.keys)
	}
	want := locks.ReconcileKey(storeID, carrier.ID, date)
	if lockLog.keys[0] != want || lockLog.keys[1] != want {
		t.Fatalf("both groupings must contend on %q, got %v", want, lockLog.keys)
	}
}

func TestService_ComputeForDate(t *testing.T) {
	storeID := uuid.New()
	carrier := &models.Carrier{ID: uuid.New(), StoreID: storeID, Active: true}
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	orderA := codOrder(storeID)
	orderB := codOrder(storeID)

	sessionA := &models.DispatchSession{
		ID: uuid.New(), StoreID: storeID, CarrierID: carrier.ID,
		DispatchDate: date, Status: enums.DispatchSessionStatusProcessing,
	}
	sessionA.Lines = []models.DispatchedOrder{
		sessionLine(sessionA.ID, orderA, enums.DeliveryStatusDelivered, 8000, 8000, 1000),
	}
	sessionB := &models.DispatchSession{
		ID: uuid.New(), StoreID: storeID, CarrierID: carrier.ID,
		DispatchDate: date, Status: enums.DispatchSessionStatusProcessing,
	}
	sessionB.Lines = []models.DispatchedOrder{
		sessionLine(sessionB.ID, orderB, enums.DeliveryStatusDelivered, 7000, 7000, 1000),
	}
	settledOut := &models.DispatchSession{
		ID: uuid.New(), StoreID: storeID, CarrierID: carrier.ID,
		DispatchDate: date, Status: enums.DispatchSessionStatusSettled,
	}

	deps := testDeps{
		dispatch: newFakeDispatchRepo(sessionA, sessionB, settledOut),
		orders:   newFakeOrdersRepo(orderA, orderB),
		rates:    &fakeRatesService{carrier: carrier},
	}
	svc := newTestService(t, deps)

	settlement, err := svc.ComputeForDate(context.Background(), ComputeDateInput{
		StoreID:   storeID,
		CarrierID: carrier.ID,
		Date:      date,
	})
	if err != nil {
		t.Fatalf("ComputeForDate error: %v", err)
	}

	if settlement.SessionID != nil {
		t.Fatalf("date grouping must not pin a session, got %v", settlement.SessionID)
	}
	if settlement.CodCollectedCents != 15000 {
		t.Fatalf("cod collected = %d, want 15000", settlement.CodCollectedCents)
	}
	if settlement.NetReceivableCents != 13000 {
		t.Fatalf("net receivable = %d, want 13000", settlement.NetReceivableCents)
	}
	if len(deps.dispatch.settled) != 2 {
		t.Fatalf("settled sessions = %d, want 2", len(deps.dispatch.settled))
	}
}

func TestService_ComputeForDate_NoOpenSessions(t *testing.T) {
	storeID := uuid.New()
	carrierID := uuid.New()
	svc := newTestService(t, testDeps{})

	_, err := svc.ComputeForDate(context.Background(), ComputeDateInput{
		StoreID:   storeID,
		CarrierID: carrierID,
		Date:      time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func pendingSettlement(storeID uuid.UUID, net int64) *models.Settlement {
	return &models.Settlement{
		ID:                 uuid.New(),
		StoreID:            storeID,
		CarrierID:          uuid.New(),
		SettlementCode:     "LIQ-09032026-001",
		NetReceivableCents: net,
		BalanceDueCents:    net,
		Status:             enums.SettlementStatusPending,
	}
}

func TestService_RecordPayment(t *testing.T) {
	storeID := uuid.New()
	row := pendingSettlement(storeID, 12500)
	repo := newFakeSettlementsRepo(row)
	ob := &fakeOutbox{}
	svc := newTestService(t, testDeps{repo: repo, outbox: ob})

	got, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		StoreID:      storeID,
		SettlementID: row.ID,
		AmountCents:  5000,
		Method:       strPtr("transferencia"),
	})
	if err != nil {
		t.Fatalf("RecordPayment error: %v", err)
	}
	if got.AmountPaidCents != 5000 || got.BalanceDueCents != 7500 {
		t.Fatalf("paid/balance = %d/%d, want 5000/7500", got.AmountPaidCents, got.BalanceDueCents)
	}
	if got.Status != enums.SettlementStatusPartial {
		t.Fatalf("status = %s, want partial", got.Status)
	}

	got, err = svc.RecordPayment(context.Background(), RecordPaymentInput{
		StoreID:      storeID,
		SettlementID: row.ID,
		AmountCents:  7500,
	})
	if err != nil {
		t.Fatalf("RecordPayment error: %v", err)
	}
	if got.Status != enums.SettlementStatusPaid {
		t.Fatalf("status = %s, want paid", got.Status)
	}
	if got.BalanceDueCents != 0 {
		t.Fatalf("balance = %d, want 0", got.BalanceDueCents)
	}
	if got.PaidAt == nil {
		t.Fatalf("paid_at not set")
	}
	if len(ob.events) != 2 {
		t.Fatalf("outbox events = %d, want 2", len(ob.events))
	}
}

func TestService_RecordPayment_TerminalStates(t *testing.T) {
	storeID := uuid.New()
	cases := []struct {
		status enums.SettlementStatus
		msg    string
	}{
		{enums.SettlementStatusPaid, "settlement already paid"},
		{enums.SettlementStatusDisputed, "settlement is disputed"},
		{enums.SettlementStatusCancelled, "settlement is cancelled"},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			row := pendingSettlement(storeID, 12500)
			row.Status = tc.status
			svc := newTestService(t, testDeps{repo: newFakeSettlementsRepo(row)})

			_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
				StoreID:      storeID,
				SettlementID: row.ID,
				AmountCents:  1000,
			})
			if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				t.Fatalf("expected state conflict, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("error %q does not mention %q", err, tc.msg)
			}
		})
	}
}

func TestService_RecordPayment_Validation(t *testing.T) {
	storeID := uuid.New()
	row := pendingSettlement(storeID, 12500)
	svc := newTestService(t, testDeps{repo: newFakeSettlementsRepo(row)})

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		StoreID:      storeID,
		SettlementID: row.ID,
		AmountCents:  0,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.RecordPayment(context.Background(), RecordPaymentInput{
		StoreID:      uuid.New(),
		SettlementID: row.ID,
		AmountCents:  1000,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign store, got %v", err)
	}
}

// Two payments race on the same settlement; the row lock makes the second one
// read the first one's committed total, so the sums never lose an update.
func TestService_RecordPayment_Concurrent(t *testing.T) {
	storeID := uuid.New()
	row := pendingSettlement(storeID, 12500)
	repo := newFakeSettlementsRepo(row)
	repo.serialize = true
	svc := newTestService(t, testDeps{repo: repo})

	var wg sync.WaitGroup
	for _, amount := range []int64{5000, 7500} {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
				StoreID:      storeID,
				SettlementID: row.ID,
				AmountCents:  amount,
			})
			if err != nil {
				t.Errorf("RecordPayment(%d) error: %v", amount, err)
			}
		}(amount)
	}
	wg.Wait()

	final, err := repo.FindForStore(context.Background(), storeID, row.ID)
	if err != nil {
		t.Fatalf("find settlement: %v", err)
	}
	if final.AmountPaidCents != 12500 {
		t.Fatalf("amount paid = %d, want 12500", final.AmountPaidCents)
	}
	if final.Status != enums.SettlementStatusPaid {
		t.Fatalf("status = %s, want paid", final.Status)
	}
	if final.BalanceDueCents != 0 {
		t.Fatalf("balance = %d, want 0", final.BalanceDueCents)
	}
}
