package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/printexchange/print-exchange-backend/internal/domain/bid"
	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
)

// BidRepository implements bid.Repository
type BidRepository struct {
	s *Store
}

var _ bid.Repository = (*BidRepository)(nil)

func (r *BidRepository) Create(ctx context.Context, b *bid.Bid) error {
	return r.s.write(ctx, func(tx *txn) error {
		r.s.mu.RLock()
		_, jobExists := r.s.lookupJob(tx, b.JobID)
		var dup bool
		for _, existing := range r.s.mergedBids(tx, b.JobID) {
			if existing.PrinterID == b.PrinterID {
				dup = true
				break
			}
		}
		r.s.mu.RUnlock()

		if !jobExists {
			return fmt.Errorf("bid references unknown job %d: %w", b.JobID, errors.ErrRecordNotFound)
		}
		if dup {
			return fmt.Errorf("bid by printer %s on job %d: %w", b.PrinterID, b.JobID, errors.ErrDuplicateRecord)
		}
		b.ID = r.s.bidSeq.Add(1)
		tx.bids[b.ID] = b.Clone()
		return nil
	})
}

func (r *BidRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	tx := txFromContext(ctx)

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if internal, ok := r.s.bidIDs[id]; ok {
		b, _ := r.s.lookupBid(tx, internal)
		return b.Clone(), nil
	}
	if tx != nil {
		for _, b := range tx.bids {
			if b.UUID == id {
				return b.Clone(), nil
			}
		}
	}
	return nil, errors.ErrRecordNotFound
}

func (r *BidRepository) GetByJobAndPrinter(ctx context.Context, jobID int64, printerID uuid.UUID) (*bid.Bid, error) {
	tx := txFromContext(ctx)

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, b := range r.s.mergedBids(tx, jobID) {
		if b.PrinterID == printerID {
			return b.Clone(), nil
		}
	}
	return nil, errors.ErrRecordNotFound
}

func (r *BidRepository) ListByJob(ctx context.Context, jobID int64) ([]*bid.Bid, error) {
	tx := txFromContext(ctx)

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	merged := r.s.mergedBids(tx, jobID)
	out := make([]*bid.Bid, len(merged))
	for i, b := range merged {
		out[i] = b.Clone()
	}
	return out, nil
}

func (r *BidRepository) Update(ctx context.Context, b *bid.Bid) error {
	return r.s.write(ctx, func(tx *txn) error {
		r.s.mu.RLock()
		_, ok := r.s.lookupBid(tx, b.ID)
		r.s.mu.RUnlock()
		if !ok {
			return errors.ErrRecordNotFound
		}
		tx.bids[b.ID] = b.Clone()
		return nil
	})
}

func (r *BidRepository) MarkOpenBidsLost(ctx context.Context, jobID, exceptID int64, now time.Time) (int64, error) {
	var changed int64
	err := r.s.write(ctx, func(tx *txn) error {
		r.s.mu.RLock()
		merged := r.s.mergedBids(tx, jobID)
		r.s.mu.RUnlock()

		for _, b := range merged {
			if b.ID == exceptID {
				continue
			}
			c := b.Clone()
			if c.MarkLost(now) {
				tx.bids[c.ID] = c
				changed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}
