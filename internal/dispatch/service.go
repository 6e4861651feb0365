package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/internal/codes"
	"github.com/entregalo/entregalo-backend/internal/movements"
	"github.com/entregalo/entregalo-backend/internal/orders"
	"github.com/entregalo/entregalo-backend/internal/rates"
	dbpkg "github.com/entregalo/entregalo-backend/pkg/db"
	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
	"github.com/entregalo/entregalo-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type codeAllocator interface {
	Next(tx *gorm.DB, storeID uuid.UUID, scope, prefix string, day time.Time) (string, error)
}

// Service manages dispatch session creation and lookup.
type Service interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*models.DispatchSession, error)
	GetSession(ctx context.Context, storeID, sessionID uuid.UUID) (*models.DispatchSession, error)
}

type service struct {
	repo       Repository
	orders     orders.Repository
	rates      rates.Service
	codeGen    codeAllocator
	tx         txRunner
	outbox     outboxPublisher
	codePrefix string
}

// NewService builds a dispatch service with the required dependencies.
func NewService(repo Repository, ordersRepo orders.Repository, ratesSvc rates.Service, codeGen codeAllocator, tx txRunner, ob outboxPublisher, codePrefix string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dispatch repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ratesSvc == nil {
		return nil, fmt.Errorf("rates service required")
	}
	if codeGen == nil {
		return nil, fmt.Errorf("code generator required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if codePrefix == "" {
		codePrefix = "DESP"
	}
	return &service{
		repo:       repo,
		orders:     ordersRepo,
		rates:      ratesSvc,
		codeGen:    codeGen,
		tx:         tx,
		outbox:     ob,
		codePrefix: codePrefix,
	}, nil
}

func (s *service) CreateSession(ctx context.Context, input CreateSessionInput) (*models.DispatchSession, error) {
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.CarrierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier id required")
	}
	if input.CreatedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "created by required")
	}
	orderIDs := dedupe(input.OrderIDs)
	if len(orderIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order id required")
	}

	dispatchDate := input.DispatchDate
	if dispatchDate.IsZero() {
		dispatchDate = time.Now().UTC()
	}
	dispatchDate = dispatchDate.Truncate(24 * time.Hour)

	var session *models.DispatchSession
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)
		ratesSvc := s.rates.WithTx(tx)

		carrier, err := ratesSvc.GetCarrierForStore(ctx, input.StoreID, input.CarrierID)
		if err != nil {
			return err
		}
		if !carrier.Active {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "carrier is inactive")
		}

		rows, err := ordersRepo.FindByIDsForStoreLocked(ctx, input.StoreID, orderIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
		}
		if missing := missingIDs(orderIDs, rows); len(missing) > 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "orders not found for store").
				WithDetails(map[string]any{"order_ids": missing})
		}
		for _, order := range rows {
			if !order.Status.IsDispatchEligible() {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order not dispatch eligible").
					WithDetails(map[string]any{"order_id": order.ID, "status": order.Status})
			}
		}

		active, err := repo.FindActiveSessionOrderIDs(ctx, orderIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active sessions")
		}
		if len(active) > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "orders already in an active dispatch session").
				WithDetails(map[string]any{"order_ids": active})
		}

		code, err := s.codeGen.Next(tx, input.StoreID, codes.ScopeSession, s.codePrefix, dispatchDate)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate session code")
		}

		now := time.Now().UTC()
		session = &models.DispatchSession{
			ID:           uuid.New(),
			StoreID:      input.StoreID,
			CarrierID:    carrier.ID,
			SessionCode:  code,
			DispatchDate: dispatchDate,
			Status:       enums.DispatchSessionStatusDispatched,
			CreatedBy:    input.CreatedBy,
			DispatchedAt: now,
		}

		lines := make([]models.DispatchedOrder, 0, len(rows))
		for _, order := range rows {
			fee, err := ratesSvc.ResolveFee(ctx, carrier, order.Zone, order.City)
			if err != nil {
				return err
			}
			line := models.DispatchedOrder{
				ID:              uuid.New(),
				SessionID:       session.ID,
				OrderID:         order.ID,
				CustomerName:    order.CustomerName,
				Phone:           order.Phone,
				Address:         order.Address,
				Zone:            order.Zone,
				City:            order.City,
				PaymentMethod:   order.PaymentMethod,
				PrepaidMethod:   order.PrepaidMethod,
				TotalCents:      order.TotalCents,
				Active:          true,
				CarrierFeeCents: fee,
				DeliveryStatus:  enums.DeliveryStatusPending,
			}
			if movements.IsOrderCOD(order.PaymentMethod, order.PrepaidMethod) {
				session.ExpectedCodCents += order.TotalCents
			} else {
				session.PrepaidCount++
			}
			lines = append(lines, line)
		}
		session.TotalOrders = len(lines)

		if _, err := repo.CreateSession(ctx, session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispatch session")
		}
		if err := repo.CreateLines(ctx, lines); err != nil {
			// concurrent dispatch slipping past the membership check above
			// lands on the active-order partial unique index instead
			if dbpkg.IsUniqueViolation(err, "ux_dispatched_orders_active_order") {
				return pkgerrors.New(pkgerrors.CodeConflict, "orders already in an active dispatch session")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispatched orders")
		}
		if err := ordersRepo.AssignToCarrier(ctx, orderIDs, carrier.ID, enums.OrderStatusShipped); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign orders to carrier")
		}
		session.Lines = lines

		event := outbox.DomainEvent{
			EventType:     enums.EventSessionDispatched,
			AggregateType: enums.AggregateDispatchSession,
			AggregateID:   session.ID,
			Data: SessionDispatchedEvent{
				SessionID:        session.ID,
				SessionCode:      session.SessionCode,
				StoreID:          session.StoreID,
				CarrierID:        session.CarrierID,
				TotalOrders:      session.TotalOrders,
				ExpectedCodCents: session.ExpectedCodCents,
				PrepaidCount:     session.PrepaidCount,
			},
			Version: 1,
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit session dispatched event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *service) GetSession(ctx context.Context, storeID, sessionID uuid.UUID) (*models.DispatchSession, error) {
	if sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	session, err := s.repo.FindSessionForStore(ctx, storeID, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispatch session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispatch session")
	}
	return session, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(requested []uuid.UUID, found []models.Order) []uuid.UUID {
	present := make(map[uuid.UUID]struct{}, len(found))
	for _, order := range found {
		present[order.ID] = struct{}{}
	}
	var missing []uuid.UUID
	for _, id := range requested {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
