package outcomes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/internal/dispatch"
	"github.com/entregalo/entregalo-backend/internal/movements"
	"github.com/entregalo/entregalo-backend/internal/orders"
	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
	"github.com/entregalo/entregalo-backend/pkg/outbox"
)

type fakeDispatchRepo struct {
	session       *models.DispatchSession
	line          *models.DispatchedOrder
	lineUpdates   map[string]any
	sessionStatus *enums.DispatchSessionStatus
}

func (f *fakeDispatchRepo) WithTx(tx *gorm.DB) dispatch.Repository { return f }

func (f *fakeDispatchRepo) CreateSession(ctx context.Context, session *models.DispatchSession) (*models.DispatchSession, error) {
	return session, nil
}

func (f *fakeDispatchRepo) CreateLines(ctx context.Context, lines []models.DispatchedOrder) error {
	return nil
}

func (f *fakeDispatchRepo) FindSession(ctx context.Context, sessionID uuid.UUID) (*models.DispatchSession, error) {
	if f.session != nil && f.session.ID == sessionID {
		return f.session, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDispatchRepo) FindSessionForStore(ctx context.Context, storeID, sessionID uuid.UUID) (*models.DispatchSession, error) {
	if f.session != nil && f.session.ID == sessionID && f.session.StoreID == storeID {
		return f.session, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDispatchRepo) FindSessionsByDate(ctx context.Context, storeID, carrierID uuid.UUID, date time.Time) ([]models.DispatchSession, error) {
	return nil, nil
}

func (f *fakeDispatchRepo) FindActiveSessionOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeDispatchRepo) FindLine(ctx context.Context, sessionID, orderID uuid.UUID) (*models.DispatchedOrder, error) {
	if f.line != nil && f.line.SessionID == sessionID && f.line.OrderID == orderID {
		return f.line, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDispatchRepo) UpdateLineOutcome(ctx context.Context, lineID uuid.UUID, updates map[string]any) error {
	f.lineUpdates = updates
	return nil
}

func (f *fakeDispatchRepo) UpdateSessionStatus(ctx context.Context, sessionID uuid.UUID, status enums.DispatchSessionStatus, at time.Time) error {
	f.sessionStatus = &status
	return nil
}

type fakeOrdersRepo struct {
	delivered []uuid.UUID
}

func (f *fakeOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return f }

func (f *fakeOrdersRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrdersRepo) FindByIDsForStore(ctx context.Context, storeID uuid.UUID, orderIDs []uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrdersRepo) FindByIDsForStoreLocked(ctx context.Context, storeID uuid.UUID, orderIDs []uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrdersRepo) AssignToCarrier(ctx context.Context, orderIDs []uuid.UUID, carrierID uuid.UUID, status enums.OrderStatus) error {
	return nil
}

func (f *fakeOrdersRepo) MarkDelivered(ctx context.Context, orderID uuid.UUID, deliveredAt time.Time) error {
	f.delivered = append(f.delivered, orderID)
	return nil
}

func (f *fakeOrdersRepo) MarkReconciled(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, deliveredAt *time.Time) error {
	return nil
}

type fakeMovements struct {
	delivered []movements.DeliveredInput
	failed    []movements.FailedAttemptInput
	removed   []uuid.UUID
}

func (f *fakeMovements) RecordDelivered(ctx context.Context, tx *gorm.DB, input movements.DeliveredInput) error {
	f.delivered = append(f.delivered, input)
	return nil
}

func (f *fakeMovements) RecordFailedAttempt(ctx context.Context, tx *gorm.DB, input movements.FailedAttemptInput) error {
	f.failed = append(f.failed, input)
	return nil
}

func (f *fakeMovements) RemoveDeliveredMovements(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	f.removed = append(f.removed, orderID)
	return nil
}

func (f *fakeMovements) HealthReport(ctx context.Context) (*movements.HealthReport, error) {
	return &movements.HealthReport{}, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func strPtr(s string) *string { return &s }

func fixtures(status enums.DispatchSessionStatus) (*fakeDispatchRepo, RecordOutcomeInput) {
	storeID := uuid.New()
	session := &models.DispatchSession{
		ID:        uuid.New(),
		StoreID:   storeID,
		CarrierID: uuid.New(),
		Status:    status,
	}
	line := &models.DispatchedOrder{
		ID:              uuid.New(),
		SessionID:       session.ID,
		OrderID:         uuid.New(),
		PaymentMethod:   strPtr("efectivo"),
		TotalCents:      10000,
		CarrierFeeCents: 1000,
		DeliveryStatus:  enums.DeliveryStatusPending,
	}
	repo := &fakeDispatchRepo{session: session, line: line}
	input := RecordOutcomeInput{
		StoreID:              storeID,
		SessionID:            session.ID,
		OrderID:              line.OrderID,
		Status:               enums.DeliveryStatusDelivered,
		AmountCollectedCents: 10000,
	}
	return repo, input
}

func newTestService(t *testing.T, repo *fakeDispatchRepo, ordersRepo *fakeOrdersRepo, mv *fakeMovements, ob *fakeOutbox) Service {
	t.Helper()
	svc, err := NewService(repo, ordersRepo, mv, fakeTxRunner{}, ob)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_RecordOutcomeDelivered(t *testing.T) {
	repo, input := fixtures(enums.DispatchSessionStatusDispatched)
	ordersRepo := &fakeOrdersRepo{}
	mv := &fakeMovements{}
	ob := &fakeOutbox{}
	svc := newTestService(t, repo, ordersRepo, mv, ob)

	line, err := svc.RecordOutcome(context.Background(), input)
	if err != nil {
		t.Fatalf("RecordOutcome error: %v", err)
	}
	if line.DeliveryStatus != enums.DeliveryStatusDelivered {
		t.Fatalf("line status = %s, want delivered", line.DeliveryStatus)
	}
	if repo.sessionStatus == nil || *repo.sessionStatus != enums.DispatchSessionStatusProcessing {
		t.Fatalf("session should move to processing on first outcome")
	}
	if len(ordersRepo.delivered) != 1 || ordersRepo.delivered[0] != input.OrderID {
		t.Fatalf("order should be marked delivered")
	}
	if len(mv.delivered) != 1 {
		t.Fatalf("expected delivered movements to be recorded")
	}
	if mv.delivered[0].AmountCollectedCents != 10000 || mv.delivered[0].CarrierFeeCents != 1000 {
		t.Fatalf("unexpected movement input: %+v", mv.delivered[0])
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventDeliveryOutcome {
		t.Fatalf("expected delivery outcome event, got %+v", ob.events)
	}
}

func TestService_RecordOutcomeFailedAttemptDoesNotLedger(t *testing.T) {
	repo, input := fixtures(enums.DispatchSessionStatusProcessing)
	input.Status = enums.DeliveryStatusNotDelivered
	input.AmountCollectedCents = 0
	input.FailureReason = strPtr("no answer")
	ordersRepo := &fakeOrdersRepo{}
	mv := &fakeMovements{}
	svc := newTestService(t, repo, ordersRepo, mv, &fakeOutbox{})

	if _, err := svc.RecordOutcome(context.Background(), input); err != nil {
		t.Fatalf("RecordOutcome error: %v", err)
	}
	if len(mv.delivered) != 0 || len(mv.failed) != 0 {
		t.Fatalf("failed attempts settle in batch, not via the event path")
	}
	if len(ordersRepo.delivered) != 0 {
		t.Fatalf("order must not be marked delivered")
	}
	// already processing, no session transition
	if repo.sessionStatus != nil {
		t.Fatalf("session status should not change")
	}
}

func TestService_RecordOutcomeDeliveredThenFailedRemovesLedger(t *testing.T) {
	repo, input := fixtures(enums.DispatchSessionStatusDispatched)
	mv := &fakeMovements{}
	svc := newTestService(t, repo, &fakeOrdersRepo{}, mv, &fakeOutbox{})

	if _, err := svc.RecordOutcome(context.Background(), input); err != nil {
		t.Fatalf("RecordOutcome error: %v", err)
	}
	if len(mv.delivered) != 1 {
		t.Fatalf("expected delivered movements after first outcome")
	}

	// the courier corrects the report: the package came back
	input.Status = enums.DeliveryStatusNotDelivered
	input.AmountCollectedCents = 0
	input.FailureReason = strPtr("recipient refused")
	if _, err := svc.RecordOutcome(context.Background(), input); err != nil {
		t.Fatalf("RecordOutcome error: %v", err)
	}
	if len(mv.removed) != 1 || mv.removed[0] != input.OrderID {
		t.Fatalf("delivered movements should be removed on the corrected outcome, got %v", mv.removed)
	}
	if len(mv.failed) != 0 {
		t.Fatalf("failed attempts settle in batch, not via the event path")
	}
}

func TestService_RecordOutcomeTerminalSession(t *testing.T) {
	repo, input := fixtures(enums.DispatchSessionStatusSettled)
	svc := newTestService(t, repo, &fakeOrdersRepo{}, &fakeMovements{}, &fakeOutbox{})

	_, err := svc.RecordOutcome(context.Background(), input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected StateConflict, got %v", err)
	}
}

func TestService_RecordOutcomeUnknownOrder(t *testing.T) {
	repo, input := fixtures(enums.DispatchSessionStatusDispatched)
	input.OrderID = uuid.New()
	svc := newTestService(t, repo, &fakeOrdersRepo{}, &fakeMovements{}, &fakeOutbox{})

	_, err := svc.RecordOutcome(context.Background(), input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestService_RecordOutcomeValidation(t *testing.T) {
	repo, input := fixtures(enums.DispatchSessionStatusDispatched)
	input.Status = enums.DeliveryStatusPending
	svc := newTestService(t, repo, &fakeOrdersRepo{}, &fakeMovements{}, &fakeOutbox{})

	_, err := svc.RecordOutcome(context.Background(), input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
