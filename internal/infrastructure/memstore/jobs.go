package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/printexchange/print-exchange-backend/internal/domain/bid"
	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
	"github.com/printexchange/print-exchange-backend/internal/domain/job"
)

// JobRepository implements job.Repository
type JobRepository struct {
	s *Store
}

var _ job.Repository = (*JobRepository)(nil)

func (r *JobRepository) Create(ctx context.Context, j *job.Job) error {
	return r.s.write(ctx, func(tx *txn) error {
		r.s.mu.RLock()
		_, exists := r.s.jobIDFor(tx, j.UUID)
		r.s.mu.RUnlock()
		if exists {
			return fmt.Errorf("job uuid %s: %w", j.UUID, errors.ErrDuplicateRecord)
		}
		j.ID = r.s.jobSeq.Add(1)
		tx.jobs[j.ID] = j.Clone()
		return nil
	})
}

func (r *JobRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	tx := txFromContext(ctx)

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	internal, ok := r.s.jobIDFor(tx, id)
	if !ok {
		return nil, errors.ErrRecordNotFound
	}
	j, ok := r.s.lookupJob(tx, internal)
	if !ok {
		return nil, errors.ErrRecordNotFound
	}
	return j.Clone(), nil
}

// GetForUpdate blocks until no other transaction holds the job
func (r *JobRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	tx := txFromContext(ctx)
	if tx == nil {
		return nil, fmt.Errorf("get job for update: no transaction in context")
	}
	if err := r.s.lockJob(ctx, tx, id); err != nil {
		return nil, err
	}
	return r.GetByUUID(ctx, id)
}

func (r *JobRepository) Update(ctx context.Context, j *job.Job) error {
	return r.s.write(ctx, func(tx *txn) error {
		r.s.mu.RLock()
		_, ok := r.s.lookupJob(tx, j.ID)
		r.s.mu.RUnlock()
		if !ok {
			return errors.ErrRecordNotFound
		}
		tx.jobs[j.ID] = j.Clone()
		return nil
	})
}

func (r *JobRepository) Delete(ctx context.Context, id int64) error {
	return r.s.write(ctx, func(tx *txn) error {
		r.s.mu.RLock()
		_, ok := r.s.lookupJob(tx, id)
		r.s.mu.RUnlock()
		if !ok {
			return errors.ErrRecordNotFound
		}
		delete(tx.jobs, id)
		tx.deletedJobs[id] = true
		return nil
	})
}

func (r *JobRepository) ListByCustomer(ctx context.Context, customerProfileID uuid.UUID, state *job.State) ([]*job.Job, error) {
	return r.filter(ctx, func(j *job.Job) bool {
		return j.CustomerProfileID == customerProfileID && (state == nil || j.State == *state)
	}), nil
}

func (r *JobRepository) ListByState(ctx context.Context, state job.State) ([]*job.Job, error) {
	return r.filter(ctx, func(j *job.Job) bool { return j.State == state }), nil
}

func (r *JobRepository) ListOverdue(ctx context.Context, now time.Time, after *job.Overdue, limit int) ([]job.Overdue, error) {
	candidates := r.filter(ctx, func(j *job.Job) bool {
		return j.State == job.StateOpen && j.WindowElapsed(now)
	})

	page := make([]job.Overdue, 0, len(candidates))
	for _, j := range candidates {
		o := job.Overdue{ID: j.ID, UUID: j.UUID, BiddingEndsAt: *j.BiddingEndsAt}
		if after == nil || overdueLess(*after, o) {
			page = append(page, o)
		}
	}
	sort.Slice(page, func(a, b int) bool { return overdueLess(page[a], page[b]) })
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}
	return page, nil
}

func overdueLess(a, b job.Overdue) bool {
	if !a.BiddingEndsAt.Equal(b.BiddingEndsAt) {
		return a.BiddingEndsAt.Before(b.BiddingEndsAt)
	}
	return a.ID < b.ID
}

// filter returns matching jobs newest first
func (r *JobRepository) filter(ctx context.Context, keep func(*job.Job) bool) []*job.Job {
	tx := txFromContext(ctx)

	r.s.mu.RLock()
	seen := make(map[int64]bool, len(r.s.jobs))
	out := make([]*job.Job, 0)
	for id := range r.s.jobs {
		seen[id] = true
		if j, ok := r.s.lookupJob(tx, id); ok && keep(j) {
			out = append(out, j.Clone())
		}
	}
	if tx != nil {
		for id, j := range tx.jobs {
			if !seen[id] && keep(j) {
				out = append(out, j.Clone())
			}
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID > out[b].ID
	})
	return out
}

func sortBidsByID(bids []*bid.Bid) {
	sort.Slice(bids, func(a, b int) bool { return bids[a].ID < bids[b].ID })
}
