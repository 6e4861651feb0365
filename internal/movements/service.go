package movements

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
	"github.com/entregalo/entregalo-backend/pkg/money"
)

// Service maintains the account movement ledger. Writes run inside the
// caller's transaction so movements commit atomically with the state change
// that produced them.
type Service interface {
	RecordDelivered(ctx context.Context, tx *gorm.DB, input DeliveredInput) error
	RecordFailedAttempt(ctx context.Context, tx *gorm.DB, input FailedAttemptInput) error
	RemoveDeliveredMovements(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	HealthReport(ctx context.Context) (*HealthReport, error)
}

// DeliveredInput carries everything needed to ledger a delivered order.
type DeliveredInput struct {
	StoreID              uuid.UUID
	CarrierID            uuid.UUID
	OrderID              uuid.UUID
	SessionID            *uuid.UUID
	SettlementID         *uuid.UUID
	PaymentMethod        *string
	PrepaidMethod        *string
	AmountCollectedCents int64
	CarrierFeeCents      int64
	MovementDate         time.Time
}

// FailedAttemptInput carries the partial-fee liability of a failed delivery.
type FailedAttemptInput struct {
	StoreID      uuid.UUID
	CarrierID    uuid.UUID
	OrderID      uuid.UUID
	SessionID    *uuid.UUID
	SettlementID *uuid.UUID
	FeeCents     int64
	Reason       *string
	MovementDate time.Time
}

// HealthReport summarizes ledger anomalies for the repair tool.
type HealthReport struct {
	PrepaidCodAnomalies    int64 `json:"prepaid_cod_anomalies"`
	DeliveredMissingFee    int64 `json:"delivered_missing_fee"`
	CodCollectedMovements  int64 `json:"cod_collected_movements"`
	DeliveryFeeMovements   int64 `json:"delivery_fee_movements"`
	FailedAttemptMovements int64 `json:"failed_attempt_movements"`
}

type service struct {
	repo Repository
}

// NewService wires a movements service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("movements repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) RecordDelivered(ctx context.Context, tx *gorm.DB, input DeliveredInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	repo := s.repo.WithTx(tx)

	if IsOrderCOD(input.PaymentMethod, input.PrepaidMethod) {
		movement := &models.AccountMovement{
			StoreID:      input.StoreID,
			CarrierID:    input.CarrierID,
			OrderID:      input.OrderID,
			SessionID:    input.SessionID,
			SettlementID: input.SettlementID,
			MovementType: enums.MovementTypeCodCollected,
			AmountCents:  input.AmountCollectedCents,
			Description:  fmt.Sprintf("COD collected %s", money.FormatCents(input.AmountCollectedCents)),
			Metadata:     movementMetadata(input.PaymentMethod, input.PrepaidMethod),
			MovementDate: input.MovementDate,
		}
		if err := repo.Upsert(ctx, movement); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert cod_collected movement")
		}
	}

	fee := &models.AccountMovement{
		StoreID:      input.StoreID,
		CarrierID:    input.CarrierID,
		OrderID:      input.OrderID,
		SessionID:    input.SessionID,
		SettlementID: input.SettlementID,
		MovementType: enums.MovementTypeDeliveryFee,
		AmountCents:  -input.CarrierFeeCents,
		Description:  fmt.Sprintf("Delivery fee %s", money.FormatCents(input.CarrierFeeCents)),
		MovementDate: input.MovementDate,
	}
	if err := repo.Upsert(ctx, fee); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert delivery_fee movement")
	}
	return nil
}

func (s *service) RecordFailedAttempt(ctx context.Context, tx *gorm.DB, input FailedAttemptInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	repo := s.repo.WithTx(tx)

	movement := &models.AccountMovement{
		StoreID:      input.StoreID,
		CarrierID:    input.CarrierID,
		OrderID:      input.OrderID,
		SessionID:    input.SessionID,
		SettlementID: input.SettlementID,
		MovementType: enums.MovementTypeFailedAttemptFee,
		AmountCents:  -input.FeeCents,
		Description:  fmt.Sprintf("Failed attempt fee %s", money.FormatCents(input.FeeCents)),
		Metadata:     failedAttemptMetadata(input.Reason),
		MovementDate: input.MovementDate,
	}
	if err := repo.Upsert(ctx, movement); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert failed_attempt_fee movement")
	}
	return nil
}

// RemoveDeliveredMovements clears the cod_collected and delivery_fee rows for
// an order whose delivered outcome turned out to be wrong. A later failed
// outcome keeps only its failed_attempt_fee movement.
func (s *service) RemoveDeliveredMovements(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	repo := s.repo.WithTx(tx)

	if err := repo.Delete(ctx, orderID, enums.MovementTypeCodCollected); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cod_collected movement")
	}
	if err := repo.Delete(ctx, orderID, enums.MovementTypeDeliveryFee); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete delivery_fee movement")
	}
	return nil
}

func (s *service) HealthReport(ctx context.Context) (*HealthReport, error) {
	report := &HealthReport{}

	var err error
	if report.PrepaidCodAnomalies, err = s.repo.CountPrepaidCodAnomalies(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count prepaid cod anomalies")
	}
	if report.DeliveredMissingFee, err = s.repo.CountDeliveredOrdersMissingFee(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count delivered orders missing fee")
	}
	if report.CodCollectedMovements, err = s.repo.CountByType(ctx, enums.MovementTypeCodCollected); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count cod_collected movements")
	}
	if report.DeliveryFeeMovements, err = s.repo.CountByType(ctx, enums.MovementTypeDeliveryFee); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count delivery_fee movements")
	}
	if report.FailedAttemptMovements, err = s.repo.CountByType(ctx, enums.MovementTypeFailedAttemptFee); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count failed_attempt_fee movements")
	}
	return report, nil
}

func movementMetadata(paymentMethod, prepaidMethod *string) json.RawMessage {
	meta := map[string]any{}
	if paymentMethod != nil {
		meta["payment_method"] = *paymentMethod
	}
	if prepaidMethod != nil {
		meta["prepaid_method"] = *prepaidMethod
	}
	if len(meta) == 0 {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return raw
}

func failedAttemptMetadata(reason *string) json.RawMessage {
	if reason == nil || *reason == "" {
		return nil
	}
	raw, err := json.Marshal(map[string]any{"failure_reason": *reason})
	if err != nil {
		return nil
	}
	return raw
}
