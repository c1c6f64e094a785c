package slab

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
)

// Service manages a product's slab table. Every write re-reads the product's
// slabs inside the same transaction, so two concurrent adds can't both pass
// the overlap check.
type Service struct {
	store generic.TxStore
	log   *zap.Logger
}

func NewService(store generic.TxStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log.Named("slab")}
}

// Input describes a slab to create or replace.
type Input struct {
	ProductID   generic.ProductID
	QtyFrom     int
	QtyTo       int
	RatePerUnit decimal.Decimal
}

func (in Input) validate() error {
	if in.ProductID == "" {
		return &generic.ValidationError{Field: "product_id", Reason: "required"}
	}
	if err := (Range{From: in.QtyFrom, To: in.QtyTo}).Validate(); err != nil {
		return err
	}
	if !in.RatePerUnit.IsPositive() {
		return &generic.ValidationError{Field: "rate_per_unit", Reason: "must be greater than 0"}
	}
	return nil
}

// Add creates a slab. Fails with SlabOverlapError if the range intersects any
// existing slab of the product.
func (s *Service) Add(ctx context.Context, in Input) (*generic.Slab, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	slab := generic.Slab{
		ID:          uuid.NewString(),
		ProductID:   in.ProductID,
		QtyFrom:     in.QtyFrom,
		QtyTo:       in.QtyTo,
		RatePerUnit: in.RatePerUnit,
	}
	if err := s.save(ctx, slab, ""); err != nil {
		return nil, err
	}
	s.log.Info("slab added",
		zap.String("product_id", string(slab.ProductID)),
		zap.Int("qty_from", slab.QtyFrom),
		zap.Int("qty_to", slab.QtyTo),
		zap.String("rate", slab.RatePerUnit.String()))
	return &slab, nil
}

// Update replaces a slab's range and rate. The slab itself is excluded from
// the overlap check. Lines already written keep the rate they captured.
func (s *Service) Update(ctx context.Context, id string, in Input) (*generic.Slab, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var updated generic.Slab
	err := s.store.WithTx(ctx, func(tx generic.Store) error {
		existing, err := tx.GetSlab(ctx, id)
		if err != nil {
			return fmt.Errorf("load slab: %w", err)
		}
		if existing == nil {
			return &generic.NotFoundError{Resource: "slab", ID: id}
		}
		if existing.ProductID != in.ProductID {
			return &generic.ValidationError{Field: "product_id", Reason: "a slab cannot move to another product"}
		}
		updated = generic.Slab{
			ID:          id,
			ProductID:   in.ProductID,
			QtyFrom:     in.QtyFrom,
			QtyTo:       in.QtyTo,
			RatePerUnit: in.RatePerUnit,
		}
		return s.saveTx(ctx, tx, updated, id)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) save(ctx context.Context, slab generic.Slab, excludeID string) error {
	return s.store.WithTx(ctx, func(tx generic.Store) error {
		return s.saveTx(ctx, tx, slab, excludeID)
	})
}

func (s *Service) saveTx(ctx context.Context, tx generic.Store, slab generic.Slab, excludeID string) error {
	product, err := tx.GetProduct(ctx, slab.ProductID)
	if err != nil {
		return fmt.Errorf("load product: %w", err)
	}
	if product == nil {
		return &generic.NotFoundError{Resource: "product", ID: string(slab.ProductID)}
	}
	existing, err := tx.ListSlabs(ctx, slab.ProductID)
	if err != nil {
		return fmt.Errorf("load slabs: %w", err)
	}
	if Overlaps(rangesExcept(existing, excludeID), RangeOf(slab)) {
		return &generic.SlabOverlapError{ProductID: slab.ProductID, QtyFrom: slab.QtyFrom, QtyTo: slab.QtyTo}
	}
	if err := tx.SaveSlab(ctx, slab); err != nil {
		return fmt.Errorf("save slab: %w", err)
	}
	return nil
}

// Remove deletes a slab. Existing production lines are unaffected.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.store.WithTx(ctx, func(tx generic.Store) error {
		existing, err := tx.GetSlab(ctx, id)
		if err != nil {
			return fmt.Errorf("load slab: %w", err)
		}
		if existing == nil {
			return &generic.NotFoundError{Resource: "slab", ID: id}
		}
		return tx.DeleteSlab(ctx, id)
	})
}

// List returns the product's slabs ordered by QtyFrom.
func (s *Service) List(ctx context.Context, productID generic.ProductID) ([]generic.Slab, error) {
	return s.store.ListSlabs(ctx, productID)
}

// Quote previews what qty units of a product would earn.
func (s *Service) Quote(ctx context.Context, productID generic.ProductID, qty int) (Quote, error) {
	if qty < 1 {
		return Quote{}, &generic.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	slabs, err := s.store.ListSlabs(ctx, productID)
	if err != nil {
		return Quote{}, fmt.Errorf("load slabs: %w", err)
	}
	return QuoteFor(slabs, productID, qty)
}
