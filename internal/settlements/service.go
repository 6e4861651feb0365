package settlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/internal/codes"
	"github.com/entregalo/entregalo-backend/internal/dispatch"
	"github.com/entregalo/entregalo-backend/internal/movements"
	"github.com/entregalo/entregalo-backend/internal/orders"
	"github.com/entregalo/entregalo-backend/internal/rates"
	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
	"github.com/entregalo/entregalo-backend/pkg/locks"
	"github.com/entregalo/entregalo-backend/pkg/metrics"
	"github.com/entregalo/entregalo-backend/pkg/money"
	"github.com/entregalo/entregalo-backend/pkg/outbox"
	"github.com/entregalo/entregalo-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type codeAllocator interface {
	Next(tx *gorm.DB, storeID uuid.UUID, scope, prefix string, day time.Time) (string, error)
}

// Service computes settlements and applies carrier payments.
type Service interface {
	ComputeForSession(ctx context.Context, input ComputeSessionInput) (*models.Settlement, error)
	ComputeForDate(ctx context.Context, input ComputeDateInput) (*models.Settlement, error)
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Settlement, error)
	GetPending(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*PendingList, error)
}

type service struct {
	repo       Repository
	dispatch   dispatch.Repository
	orders     orders.Repository
	rates      rates.Service
	movements  movements.Service
	codeGen    codeAllocator
	locks      locks.Manager
	tx         txRunner
	outbox     outboxPublisher
	metrics    *metrics.ReconciliationMetrics
	codePrefix string
}

// ServiceParams bundles the settlement service dependencies.
type ServiceParams struct {
	Repo       Repository
	Dispatch   dispatch.Repository
	Orders     orders.Repository
	Rates      rates.Service
	Movements  movements.Service
	CodeGen    codeAllocator
	Locks      locks.Manager
	Tx         txRunner
	Outbox     outboxPublisher
	Metrics    *metrics.ReconciliationMetrics
	CodePrefix string
}

// NewService builds a settlements service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("settlements repository required")
	}
	if params.Dispatch == nil {
		return nil, fmt.Errorf("dispatch repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Rates == nil {
		return nil, fmt.Errorf("rates service required")
	}
	if params.Movements == nil {
		return nil, fmt.Errorf("movements service required")
	}
	if params.CodeGen == nil {
		return nil, fmt.Errorf("code generator required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock manager required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.CodePrefix == "" {
		params.CodePrefix = "LIQ"
	}
	return &service{
		repo:       params.Repo,
		dispatch:   params.Dispatch,
		orders:     params.Orders,
		rates:      params.Rates,
		movements:  params.Movements,
		codeGen:    params.CodeGen,
		locks:      params.Locks,
		tx:         params.Tx,
		outbox:     params.Outbox,
		metrics:    params.Metrics,
		codePrefix: params.CodePrefix,
	}, nil
}

func (s *service) ComputeForSession(ctx context.Context, input ComputeSessionInput) (*models.Settlement, error) {
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.SessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if input.CollectedCents != nil && *input.CollectedCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collected total cannot be negative")
	}

	started := time.Now()
	// the lock key is derived from the session's (store, carrier, date) so a
	// session-grouped run and a date-grouped run over the same orders contend
	// on the same key; this read only resolves the key, the session reloads
	// under the lock
	keySession, err := s.dispatch.FindSessionForStore(ctx, input.StoreID, input.SessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispatch session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispatch session")
	}

	release, err := s.locks.Acquire(ctx, locks.ReconcileKey(keySession.StoreID, keySession.CarrierID, keySession.DispatchDate))
	if err != nil {
		s.metrics.IncSettlement("lock_timeout")
		return nil, err
	}
	defer release()

	var settlement *models.Settlement
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		session, err := s.dispatch.WithTx(tx).FindSessionForStore(ctx, input.StoreID, input.SessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "dispatch session not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispatch session")
		}
		settlement, err = s.compute(ctx, tx, computeUnit{
			storeID:        input.StoreID,
			carrierID:      session.CarrierID,
			sessions:       []models.DispatchSession{*session},
			sessionID:      &session.ID,
			collectedCents: input.CollectedCents,
			notes:          input.Notes,
		})
		return err
	})
	if err != nil {
		s.metrics.IncSettlement("error")
		return nil, err
	}
	s.metrics.IncSettlement("computed")
	s.metrics.ObserveCompute("session", time.Since(started))
	return settlement, nil
}

func (s *service) ComputeForDate(ctx context.Context, input ComputeDateInput) (*models.Settlement, error) {
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.CarrierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier id required")
	}
	if input.Date.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date required")
	}
	if input.CollectedCents != nil && *input.CollectedCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collected total cannot be negative")
	}

	started := time.Now()
	release, err := s.locks.Acquire(ctx, locks.ReconcileKey(input.StoreID, input.CarrierID, input.Date))
	if err != nil {
		s.metrics.IncSettlement("lock_timeout")
		return nil, err
	}
	defer release()

	var settlement *models.Settlement
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		sessions, err := s.dispatch.WithTx(tx).FindSessionsByDate(ctx, input.StoreID, input.CarrierID, input.Date)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispatch sessions")
		}
		open := sessions[:0:0]
		for _, session := range sessions {
			if !session.Status.IsTerminal() {
				open = append(open, session)
			}
		}
		if len(open) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no open dispatch sessions for carrier and date")
		}
		settlement, err = s.compute(ctx, tx, computeUnit{
			storeID:        input.StoreID,
			carrierID:      input.CarrierID,
			sessions:       open,
			collectedCents: input.CollectedCents,
			notes:          input.Notes,
		})
		return err
	})
	if err != nil {
		s.metrics.IncSettlement("error")
		return nil, err
	}
	s.metrics.IncSettlement("computed")
	s.metrics.ObserveCompute("date", time.Since(started))
	return settlement, nil
}

type computeUnit struct {
	storeID        uuid.UUID
	carrierID      uuid.UUID
	sessions       []models.DispatchSession
	sessionID      *uuid.UUID
	collectedCents *int64
	notes          *string
}

// compute performs steps shared by both groupings. The caller already holds
// the reconciliation lock; everything here runs in one transaction so the
// settlement, its movements and the order flags commit together or not at
// all.
func (s *service) compute(ctx context.Context, tx *gorm.DB, unit computeUnit) (*models.Settlement, error) {
	repo := s.repo.WithTx(tx)
	dispatchRepo := s.dispatch.WithTx(tx)
	ordersRepo := s.orders.WithTx(tx)

	for _, session := range unit.sessions {
		if session.Status.IsTerminal() {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "session already settled or cancelled").
				WithDetails(map[string]any{"session_id": session.ID, "status": session.Status})
		}
		if !session.Status.CanTransitionTo(enums.DispatchSessionStatusSettled) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "session cannot be settled").
				WithDetails(map[string]any{"session_id": session.ID, "status": session.Status})
		}
	}

	// the terminal-status check above normally catches resettlement; this
	// guard closes the gap when a session row was reopened by hand
	if unit.sessionID != nil {
		exists, err := repo.ExistsForSession(ctx, *unit.sessionID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing settlement")
		}
		if exists {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "settlement already exists for session").
				WithDetails(map[string]any{"session_id": *unit.sessionID})
		}
	}

	carrier, err := s.rates.WithTx(tx).GetCarrierForStore(ctx, unit.storeID, unit.carrierID)
	if err != nil {
		return nil, err
	}

	var lines []models.DispatchedOrder
	for _, session := range unit.sessions {
		lines = append(lines, session.Lines...)
	}
	processed := ProcessedLines(lines)
	if len(processed) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no delivery outcomes to settle")
	}

	// re-validation after lock acquisition: a competitor that held the lock
	// before us may have reconciled these orders already
	orderIDs := make([]uuid.UUID, 0, len(processed))
	for _, line := range processed {
		orderIDs = append(orderIDs, line.OrderID)
	}
	orderRows, err := ordersRepo.FindByIDsForStoreLocked(ctx, unit.storeID, orderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders for reconciliation")
	}
	var reconciled []uuid.UUID
	for _, order := range orderRows {
		if order.Reconciled {
			reconciled = append(reconciled, order.ID)
		}
	}
	if len(reconciled) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "orders already reconciled").
			WithDetails(map[string]any{"order_ids": reconciled})
	}

	percent := money.FailedFeePercentOrDefault(carrier.FailedFeePercent)
	totals := Aggregate(processed, percent, unit.collectedCents)

	now := time.Now().UTC()
	code, err := s.codeGen.Next(tx, unit.storeID, codes.ScopeSettlement, s.codePrefix, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate settlement code")
	}

	settlement := &models.Settlement{
		ID:             uuid.New(),
		StoreID:        unit.storeID,
		CarrierID:      unit.carrierID,
		SessionID:      unit.sessionID,
		SettlementCode: code,
		SettlementDate: now,

		TotalDispatched:   totals.TotalDispatched,
		TotalDelivered:    totals.TotalDelivered,
		TotalNotDelivered: totals.TotalNotDelivered,
		CodDelivered:      totals.CodDelivered,
		PrepaidDelivered:  totals.PrepaidDelivered,

		CodCollectedCents:     totals.CodCollectedCents,
		CodExpectedCents:      totals.CodExpectedCents,
		CodFeesCents:          totals.CodFeesCents,
		PrepaidFeesCents:      totals.PrepaidFeesCents,
		TotalFeesCents:        totals.TotalFeesCents,
		FailedAttemptFeeCents: totals.FailedAttemptFeeCents,
		NetReceivableCents:    totals.NetReceivableCents,
		AmountPaidCents:       0,
		BalanceDueCents:       balanceDue(totals.NetReceivableCents, 0),

		Status: deriveStatus(0, totals.NetReceivableCents, enums.SettlementStatusPending),
		Notes:  unit.notes,
	}
	if err := repo.Create(ctx, settlement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create settlement")
	}

	for _, line := range processed {
		if err := s.reconcileLine(ctx, tx, ordersRepo, settlement, line, percent, now); err != nil {
			return nil, err
		}
	}

	sessionIDs := make([]uuid.UUID, 0, len(unit.sessions))
	for _, session := range unit.sessions {
		if err := dispatchRepo.UpdateSessionStatus(ctx, session.ID, enums.DispatchSessionStatusSettled, now); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle session")
		}
		sessionIDs = append(sessionIDs, session.ID)
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventSettlementComputed,
		AggregateType: enums.AggregateSettlement,
		AggregateID:   settlement.ID,
		Data: SettlementComputedEvent{
			SettlementID:       settlement.ID,
			SettlementCode:     settlement.SettlementCode,
			StoreID:            settlement.StoreID,
			CarrierID:          settlement.CarrierID,
			SessionIDs:         sessionIDs,
			NetReceivableCents: settlement.NetReceivableCents,
			CodCollectedCents:  settlement.CodCollectedCents,
		},
		Version: 1,
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit settlement computed event")
	}
	return settlement, nil
}

func (s *service) reconcileLine(ctx context.Context, tx *gorm.DB, ordersRepo orders.Repository, settlement *models.Settlement, line models.DispatchedOrder, percent decimal.Decimal, now time.Time) error {
	sessionID := line.SessionID
	settlementID := settlement.ID

	if line.DeliveryStatus == enums.DeliveryStatusDelivered {
		err := s.movements.RecordDelivered(ctx, tx, movements.DeliveredInput{
			StoreID:              settlement.StoreID,
			CarrierID:            settlement.CarrierID,
			OrderID:              line.OrderID,
			SessionID:            &sessionID,
			SettlementID:         &settlementID,
			PaymentMethod:        line.PaymentMethod,
			PrepaidMethod:        line.PrepaidMethod,
			AmountCollectedCents: line.AmountCollectedCents,
			CarrierFeeCents:      line.CarrierFeeCents,
			MovementDate:         now,
		})
		if err != nil {
			return err
		}
		deliveredAt := now
		if line.ProcessedAt != nil {
			deliveredAt = *line.ProcessedAt
		}
		if err := ordersRepo.MarkReconciled(ctx, line.OrderID, enums.OrderStatusDelivered, &deliveredAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order reconciled")
		}
		return nil
	}

	// an earlier delivered outcome may have ledgered this order already
	if err := s.movements.RemoveDeliveredMovements(ctx, tx, line.OrderID); err != nil {
		return err
	}
	err := s.movements.RecordFailedAttempt(ctx, tx, movements.FailedAttemptInput{
		StoreID:      settlement.StoreID,
		CarrierID:    settlement.CarrierID,
		OrderID:      line.OrderID,
		SessionID:    &sessionID,
		SettlementID: &settlementID,
		FeeCents:     money.PercentOf(line.CarrierFeeCents, percent),
		Reason:       line.FailureReason,
		MovementDate: now,
	})
	if err != nil {
		return err
	}
	if err := ordersRepo.MarkReconciled(ctx, line.OrderID, terminalOrderStatus(line.DeliveryStatus), nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order reconciled")
	}
	return nil
}

func (s *service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Settlement, error) {
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.SettlementID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	var settlement *models.Settlement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		settlement, err = repo.FindForStoreLocked(ctx, input.StoreID, input.SettlementID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "settlement not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement")
		}

		switch settlement.Status {
		case enums.SettlementStatusPaid:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "settlement already paid")
		case enums.SettlementStatusDisputed:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "settlement is disputed")
		case enums.SettlementStatusCancelled:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "settlement is cancelled")
		}

		// amount_paid is monotonic; no reversal support
		newPaid := settlement.AmountPaidCents + input.AmountCents
		newStatus := deriveStatus(newPaid, settlement.NetReceivableCents, settlement.Status)
		newBalance := balanceDue(settlement.NetReceivableCents, newPaid)

		now := time.Now().UTC()
		updates := map[string]any{
			"amount_paid_cents": newPaid,
			"balance_due_cents": newBalance,
			"status":            newStatus,
			"updated_at":        now,
		}
		if input.Method != nil {
			updates["payment_method"] = *input.Method
		}
		if input.Reference != nil {
			updates["payment_reference"] = *input.Reference
		}
		if input.Notes != nil {
			updates["notes"] = *input.Notes
		}
		if newStatus == enums.SettlementStatusPaid && settlement.PaidAt == nil {
			updates["paid_at"] = now
			settlement.PaidAt = &now
		}
		if err := repo.UpdatePayment(ctx, settlement.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply payment")
		}
		settlement.AmountPaidCents = newPaid
		settlement.BalanceDueCents = newBalance
		settlement.Status = newStatus
		settlement.PaymentMethod = input.Method
		settlement.PaymentReference = input.Reference

		event := outbox.DomainEvent{
			EventType:     enums.EventSettlementPayment,
			AggregateType: enums.AggregateSettlement,
			AggregateID:   settlement.ID,
			Data: SettlementPaymentEvent{
				SettlementID:    settlement.ID,
				AmountCents:     input.AmountCents,
				AmountPaidCents: newPaid,
				BalanceDueCents: newBalance,
				Status:          newStatus,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit settlement payment event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddPayment(input.AmountCents)
	return settlement, nil
}

func (s *service) GetPending(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*PendingList, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	list, err := s.repo.ListPending(ctx, storeID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending settlements")
	}
	return list, nil
}
