package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/internal/movements"
	"github.com/entregalo/entregalo-backend/internal/rates"
	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
	"github.com/entregalo/entregalo-backend/pkg/logger"
	"github.com/entregalo/entregalo-backend/pkg/metrics"
	"github.com/entregalo/entregalo-backend/pkg/outbox"
)

const (
	// DefaultBatchSize bounds how many anomalies one repair pass touches at a
	// time, keeping transactions short on large ledgers.
	DefaultBatchSize = 200
	// MaxBatchSize caps operator-provided batch sizes.
	MaxBatchSize = 1000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Input controls one repair pass. Repairs only run when Apply is set; the
// zero value is a dry run that reports what would change.
type Input struct {
	Apply     bool
	BatchSize int
}

// Report summarizes one repair pass. Counts reflect rows actually changed
// when applying, or rows that would change on a dry run. SkippedOrders lists
// orders that could not be repaired; each completed batch commits on its own,
// so a skip never undoes earlier corrections.
type Report struct {
	DryRun                 bool        `json:"dry_run"`
	PrepaidCodRemoved      int         `json:"prepaid_cod_removed"`
	DeliveryFeesBackfilled int         `json:"delivery_fees_backfilled"`
	SkippedOrders          []uuid.UUID `json:"skipped_orders,omitempty"`
	Errors                 []string    `json:"errors,omitempty"`
}

// MovementsRepairedEvent is emitted after an applied repair pass that changed
// at least one row.
type MovementsRepairedEvent struct {
	PrepaidCodRemoved      int `json:"prepaid_cod_removed"`
	DeliveryFeesBackfilled int `json:"delivery_fees_backfilled"`
}

// Service repairs ledger drift left behind by older writers: cod_collected
// rows on orders that were actually prepaid, and delivered orders with no
// delivery_fee movement.
type Service interface {
	FixMovements(ctx context.Context, input Input) (*Report, error)
}

type service struct {
	movements movements.Repository
	rates     rates.Service
	tx        txRunner
	outbox    outboxPublisher
	logg      *logger.Logger
	metrics   *metrics.ReconciliationMetrics
}

func NewService(
	movementsRepo movements.Repository,
	ratesSvc rates.Service,
	tx txRunner,
	ob outboxPublisher,
	logg *logger.Logger,
	m *metrics.ReconciliationMetrics,
) (Service, error) {
	if movementsRepo == nil {
		return nil, fmt.Errorf("movements repository required")
	}
	if ratesSvc == nil {
		return nil, fmt.Errorf("rates service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		movements: movementsRepo,
		rates:     ratesSvc,
		tx:        tx,
		outbox:    ob,
		logg:      logg,
		metrics:   m,
	}, nil
}

// pass carries the mutable state of one applied repair run. Orders that fail
// or cannot be priced land in visited so the batch loops terminate even when
// the detectors keep returning them.
type pass struct {
	report  *Report
	visited map[uuid.UUID]bool
	errs    error
}

func (p *pass) skip(orderID uuid.UUID) {
	p.visited[orderID] = true
	p.report.SkippedOrders = append(p.report.SkippedOrders, orderID)
}

func (p *pass) fail(orderID uuid.UUID, err error) {
	p.visited[orderID] = true
	p.errs = multierr.Append(p.errs, fmt.Errorf("order %s: %w", orderID, err))
}

func (s *service) FixMovements(ctx context.Context, input Input) (*Report, error) {
	batchSize := input.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	report := &Report{DryRun: !input.Apply}

	if !input.Apply {
		prepaid, err := s.movements.CountPrepaidCodAnomalies(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count prepaid cod anomalies")
		}
		missing, err := s.movements.CountDeliveredOrdersMissingFee(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count missing delivery fees")
		}
		report.PrepaidCodRemoved = int(prepaid)
		report.DeliveryFeesBackfilled = int(missing)
		return report, nil
	}

	p := &pass{report: report, visited: map[uuid.UUID]bool{}}
	if err := s.removePrepaidCod(ctx, batchSize, p); err != nil {
		return nil, err
	}
	if err := s.backfillDeliveryFees(ctx, batchSize, p); err != nil {
		return nil, err
	}
	for _, err := range multierr.Errors(p.errs) {
		report.Errors = append(report.Errors, err.Error())
	}

	if report.PrepaidCodRemoved > 0 || report.DeliveryFeesBackfilled > 0 {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventMovementsRepaired,
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Data: MovementsRepairedEvent{
					PrepaidCodRemoved:      report.PrepaidCodRemoved,
					DeliveryFeesBackfilled: report.DeliveryFeesBackfilled,
				},
				Version: 1,
			})
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit movements repaired event")
		}
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"prepaid_cod_removed":      report.PrepaidCodRemoved,
			"delivery_fees_backfilled": report.DeliveryFeesBackfilled,
			"skipped_orders":           len(report.SkippedOrders),
			"errors":                   len(report.Errors),
		})
		s.logg.Info(logCtx, "movement repair pass applied")
	}
	return report, nil
}

// removePrepaidCod deletes cod_collected rows whose order carries a prepaid
// override. Each batch commits independently.
func (s *service) removePrepaidCod(ctx context.Context, batchSize int, p *pass) error {
	for {
		anomalies, err := s.movements.FindPrepaidCodAnomalies(ctx, batchSize)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find prepaid cod anomalies")
		}
		fresh := anomalies[:0:0]
		for _, movement := range anomalies {
			if !p.visited[movement.OrderID] {
				fresh = append(fresh, movement)
			}
		}
		if len(fresh) == 0 {
			return nil
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.movements.WithTx(tx)
			for _, movement := range fresh {
				if err := repo.Delete(ctx, movement.OrderID, enums.MovementTypeCodCollected); err != nil {
					p.fail(movement.OrderID, err)
					continue
				}
				p.visited[movement.OrderID] = true
				p.report.PrepaidCodRemoved++
				s.metrics.IncRepair("prepaid_cod_removed")
			}
			return nil
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove prepaid cod movements")
		}
		if len(anomalies) < batchSize {
			return nil
		}
	}
}

// backfillDeliveryFees inserts the missing delivery_fee movement for
// delivered orders. Orders without an assigned carrier cannot be priced and
// are reported as skipped rather than failing the pass.
func (s *service) backfillDeliveryFees(ctx context.Context, batchSize int, p *pass) error {
	for {
		orders, err := s.movements.FindDeliveredOrdersMissingFee(ctx, batchSize)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find delivered orders missing fee")
		}
		fresh := orders[:0:0]
		for _, order := range orders {
			if !p.visited[order.ID] {
				fresh = append(fresh, order)
			}
		}
		if len(fresh) == 0 {
			return nil
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.movements.WithTx(tx)
			ratesSvc := s.rates.WithTx(tx)
			for _, order := range fresh {
				if order.CarrierID == nil {
					p.skip(order.ID)
					continue
				}
				fee, err := s.resolveFee(ctx, ratesSvc, order)
				if err != nil {
					p.fail(order.ID, err)
					continue
				}
				movementDate := time.Now().UTC()
				if order.DeliveredAt != nil {
					movementDate = *order.DeliveredAt
				}
				movement := &models.AccountMovement{
					ID:           uuid.New(),
					StoreID:      order.StoreID,
					CarrierID:    *order.CarrierID,
					OrderID:      order.ID,
					MovementType: enums.MovementTypeDeliveryFee,
					AmountCents:  -fee,
					Description:  "delivery fee (backfilled)",
					MovementDate: movementDate,
				}
				if err := repo.Upsert(ctx, movement); err != nil {
					p.fail(order.ID, err)
					continue
				}
				p.visited[order.ID] = true
				p.report.DeliveryFeesBackfilled++
				s.metrics.IncRepair("delivery_fee_backfilled")
			}
			return nil
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backfill delivery fees")
		}
		if len(orders) < batchSize {
			return nil
		}
	}
}

func (s *service) resolveFee(ctx context.Context, ratesSvc rates.Service, order models.Order) (int64, error) {
	carrier, err := ratesSvc.GetCarrierForStore(ctx, order.StoreID, *order.CarrierID)
	if err != nil {
		return 0, err
	}
	return ratesSvc.ResolveFee(ctx, carrier, order.Zone, order.City)
}
