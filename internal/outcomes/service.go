package outcomes

import (
	"context"
	"errors"
	"fmt"
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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service records per-order delivery outcomes inside a dispatch session. It
// never touches settlements; the batch reconciliation owns those.
type Service interface {
	RecordOutcome(ctx context.Context, input RecordOutcomeInput) (*models.DispatchedOrder, error)
}

// RecordOutcomeInput carries one courier-reported delivery result.
type RecordOutcomeInput struct {
	StoreID              uuid.UUID
	SessionID            uuid.UUID
	OrderID              uuid.UUID
	Status               enums.DeliveryStatus
	AmountCollectedCents int64
	FailureReason        *string
}

// DeliveryOutcomeEvent is emitted after an outcome is persisted.
type DeliveryOutcomeEvent struct {
	SessionID            uuid.UUID            `json:"session_id"`
	OrderID              uuid.UUID            `json:"order_id"`
	Status               enums.DeliveryStatus `json:"status"`
	AmountCollectedCents int64                `json:"amount_collected_cents"`
}

type service struct {
	repo      dispatch.Repository
	orders    orders.Repository
	movements movements.Service
	tx        txRunner
	outbox    outboxPublisher
}

// NewService builds an outcomes service with the required dependencies.
func NewService(repo dispatch.Repository, ordersRepo orders.Repository, movementsSvc movements.Service, tx txRunner, ob outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dispatch repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if movementsSvc == nil {
		return nil, fmt.Errorf("movements service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:      repo,
		orders:    ordersRepo,
		movements: movementsSvc,
		tx:        tx,
		outbox:    ob,
	}, nil
}

func (s *service) RecordOutcome(ctx context.Context, input RecordOutcomeInput) (*models.DispatchedOrder, error) {
	if input.SessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() || input.Status == enums.DeliveryStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status").
			WithDetails(map[string]any{"status": input.Status})
	}
	if input.AmountCollectedCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount collected cannot be negative")
	}

	var line *models.DispatchedOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		session, err := repo.FindSessionForStore(ctx, input.StoreID, input.SessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "dispatch session not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispatch session")
		}
		if session.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "session no longer accepts outcomes").
				WithDetails(map[string]any{"status": session.Status})
		}

		line, err = repo.FindLine(ctx, session.ID, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not part of session")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispatched order")
		}

		previous := line.DeliveryStatus

		now := time.Now().UTC()
		updates := map[string]any{
			"delivery_status":        input.Status,
			"amount_collected_cents": input.AmountCollectedCents,
			"processed_at":           now,
		}
		if input.FailureReason != nil {
			updates["failure_reason"] = *input.FailureReason
		}
		if err := repo.UpdateLineOutcome(ctx, line.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery outcome")
		}
		line.DeliveryStatus = input.Status
		line.AmountCollectedCents = input.AmountCollectedCents
		line.FailureReason = input.FailureReason
		line.ProcessedAt = &now

		// first outcome moves the session out of "dispatched"
		if session.Status == enums.DispatchSessionStatusDispatched {
			if !session.Status.CanTransitionTo(enums.DispatchSessionStatusProcessing) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "session cannot start processing").
					WithDetails(map[string]any{"status": session.Status})
			}
			if err := repo.UpdateSessionStatus(ctx, session.ID, enums.DispatchSessionStatusProcessing, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance session to processing")
			}
		}

		if input.Status == enums.DeliveryStatusDelivered {
			if err := ordersRepo.MarkDelivered(ctx, input.OrderID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
			}
			sessionID := session.ID
			err := s.movements.RecordDelivered(ctx, tx, movements.DeliveredInput{
				StoreID:              session.StoreID,
				CarrierID:            session.CarrierID,
				OrderID:              input.OrderID,
				SessionID:            &sessionID,
				PaymentMethod:        line.PaymentMethod,
				PrepaidMethod:        line.PrepaidMethod,
				AmountCollectedCents: input.AmountCollectedCents,
				CarrierFeeCents:      line.CarrierFeeCents,
				MovementDate:         now,
			})
			if err != nil {
				return err
			}
		} else if previous == enums.DeliveryStatusDelivered {
			// a re-recorded outcome walks back the delivered ledger entries
			if err := s.movements.RemoveDeliveredMovements(ctx, tx, input.OrderID); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDeliveryOutcome,
			AggregateType: enums.AggregateOrder,
			AggregateID:   input.OrderID,
			Data: DeliveryOutcomeEvent{
				SessionID:            session.ID,
				OrderID:              input.OrderID,
				Status:               input.Status,
				AmountCollectedCents: input.AmountCollectedCents,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit delivery outcome event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}
