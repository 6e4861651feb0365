package rates

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/pkg/db/models"
	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
)

// Service resolves delivery fees for a carrier with the configured fallback
// chain: exact city, exact zone, the carrier's default zone, then zero.
type Service interface {
	WithTx(tx *gorm.DB) Service
	GetCarrierForStore(ctx context.Context, storeID, carrierID uuid.UUID) (*models.Carrier, error)
	ResolveFee(ctx context.Context, carrier *models.Carrier, zone, city *string) (int64, error)
}

type service struct {
	repo Repository
}

// NewService wires a rates service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rates repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) GetCarrierForStore(ctx context.Context, storeID, carrierID uuid.UUID) (*models.Carrier, error) {
	if carrierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier id required")
	}
	carrier, err := s.repo.FindCarrierForStore(ctx, storeID, carrierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "carrier not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load carrier")
	}
	return carrier, nil
}

func (s *service) ResolveFee(ctx context.Context, carrier *models.Carrier, zone, city *string) (int64, error) {
	if carrier == nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "carrier required")
	}

	if city != nil && *city != "" {
		rate, err := s.repo.FindRateByCity(ctx, carrier.ID, *city)
		if err == nil {
			return rate.FeeCents, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup city rate")
		}
	}

	if zone != nil && *zone != "" {
		rate, err := s.repo.FindRateByZone(ctx, carrier.ID, *zone)
		if err == nil {
			return rate.FeeCents, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup zone rate")
		}
	}

	if carrier.DefaultZone != nil && *carrier.DefaultZone != "" {
		rate, err := s.repo.FindRateByZone(ctx, carrier.ID, *carrier.DefaultZone)
		if err == nil {
			return rate.FeeCents, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup default zone rate")
		}
	}

	return 0, nil
}
