package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/printexchange/print-exchange-backend/internal/domain/agreement"
	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
	"github.com/printexchange/print-exchange-backend/internal/domain/printer"
	"github.com/printexchange/print-exchange-backend/internal/domain/rating"
)

// AgreementRepository implements agreement.Repository
type AgreementRepository struct {
	s *Store
}

var _ agreement.Repository = (*AgreementRepository)(nil)

func (r *AgreementRepository) Create(ctx context.Context, a *agreement.Agreement) error {
	return r.s.write(ctx, func(tx *txn) error {
		r.s.mu.RLock()
		_, exists := r.s.agreements[a.JobID]
		r.s.mu.RUnlock()
		if _, staged := tx.agreements[a.JobID]; exists || staged {
			return fmt.Errorf("agreement for job %d: %w", a.JobID, errors.ErrDuplicateRecord)
		}
		a.ID = r.s.agreementSeq.Add(1)
		c := *a
		tx.agreements[a.JobID] = &c
		return nil
	})
}

func (r *AgreementRepository) GetByJobID(ctx context.Context, jobID int64) (*agreement.Agreement, error) {
	if tx := txFromContext(ctx); tx != nil {
		if a, ok := tx.agreements[jobID]; ok {
			c := *a
			return &c, nil
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.agreements[jobID]
	if !ok {
		return nil, errors.ErrRecordNotFound
	}
	c := *a
	return &c, nil
}

// RatingRepository implements rating.Repository
type RatingRepository struct {
	s *Store
}

var _ rating.Repository = (*RatingRepository)(nil)

func (r *RatingRepository) Create(ctx context.Context, rt *rating.Rating) error {
	return r.s.write(ctx, func(tx *txn) error {
		r.s.mu.RLock()
		_, exists := r.s.ratings[rt.JobID]
		r.s.mu.RUnlock()
		if _, staged := tx.ratings[rt.JobID]; exists || staged {
			return fmt.Errorf("rating for job %d: %w", rt.JobID, errors.ErrDuplicateRecord)
		}
		rt.ID = r.s.ratingSeq.Add(1)
		c := *rt
		tx.ratings[rt.JobID] = &c
		return nil
	})
}

func (r *RatingRepository) GetByJobID(ctx context.Context, jobID int64) (*rating.Rating, error) {
	if tx := txFromContext(ctx); tx != nil {
		if rt, ok := tx.ratings[jobID]; ok {
			c := *rt
			return &c, nil
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rt, ok := r.s.ratings[jobID]
	if !ok {
		return nil, errors.ErrRecordNotFound
	}
	c := *rt
	return &c, nil
}

// ProfileRepository implements printer.ProfileProvider over profiles seeded
// with Put
type ProfileRepository struct {
	s *Store
}

var _ printer.ProfileProvider = (*ProfileRepository)(nil)

func (r *ProfileRepository) GetProfile(_ context.Context, printerID uuid.UUID) (*printer.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.profiles[printerID]
	if !ok {
		return nil, errors.ErrRecordNotFound
	}
	return cloneProfile(p), nil
}

// Put inserts or replaces a profile
func (r *ProfileRepository) Put(p *printer.Profile) {
	c := cloneProfile(p)
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}

	r.s.mu.Lock()
	r.s.profiles[p.PrinterID] = c
	r.s.mu.Unlock()
}

func cloneProfile(p *printer.Profile) *printer.Profile {
	c := *p
	if p.MinQuantity != nil {
		v := *p.MinQuantity
		c.MinQuantity = &v
	}
	if p.MaxQuantity != nil {
		v := *p.MaxQuantity
		c.MaxQuantity = &v
	}
	return &c
}
