// Package memstore is an in-process implementation of the engine's
// repositories. It offers the same guarantees the PostgreSQL store gives the
// services: GetForUpdate serializes work on one job until the surrounding
// transaction ends, writes inside a transaction become visible atomically at
// commit, and unique constraints are checked at commit.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/printexchange/print-exchange-backend/internal/domain/agreement"
	"github.com/printexchange/print-exchange-backend/internal/domain/bid"
	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/domain/printer"
	"github.com/printexchange/print-exchange-backend/internal/domain/rating"
)

// Store holds committed state and hands out repository views over it
type Store struct {
	mu         sync.RWMutex
	jobs       map[int64]*job.Job
	jobIDs     map[uuid.UUID]int64
	bids       map[int64]*bid.Bid
	bidIDs     map[uuid.UUID]int64
	bidsByJob  map[int64][]int64
	agreements map[int64]*agreement.Agreement // by job id
	ratings    map[int64]*rating.Rating       // by job id
	profiles   map[uuid.UUID]*printer.Profile

	jobSeq, bidSeq, agreementSeq, ratingSeq atomic.Int64

	locksMu  sync.Mutex
	jobLocks map[uuid.UUID]chan struct{}

	Jobs       *JobRepository
	Bids       *BidRepository
	Agreements *AgreementRepository
	Ratings    *RatingRepository
	Profiles   *ProfileRepository
}

func New() *Store {
	s := &Store{
		jobs:       make(map[int64]*job.Job),
		jobIDs:     make(map[uuid.UUID]int64),
		bids:       make(map[int64]*bid.Bid),
		bidIDs:     make(map[uuid.UUID]int64),
		bidsByJob:  make(map[int64][]int64),
		agreements: make(map[int64]*agreement.Agreement),
		ratings:    make(map[int64]*rating.Rating),
		profiles:   make(map[uuid.UUID]*printer.Profile),
		jobLocks:   make(map[uuid.UUID]chan struct{}),
	}
	s.Jobs = &JobRepository{s: s}
	s.Bids = &BidRepository{s: s}
	s.Agreements = &AgreementRepository{s: s}
	s.Ratings = &RatingRepository{s: s}
	s.Profiles = &ProfileRepository{s: s}
	return s
}

type txKey struct{}

// txn is the staged write set of one transaction
type txn struct {
	jobs        map[int64]*job.Job
	deletedJobs map[int64]bool
	bids        map[int64]*bid.Bid
	agreements  map[int64]*agreement.Agreement
	ratings     map[int64]*rating.Rating

	held    []chan struct{}
	heldSet map[uuid.UUID]bool
}

func newTxn() *txn {
	return &txn{
		jobs:        make(map[int64]*job.Job),
		deletedJobs: make(map[int64]bool),
		bids:        make(map[int64]*bid.Bid),
		agreements:  make(map[int64]*agreement.Agreement),
		ratings:     make(map[int64]*rating.Rating),
		heldSet:     make(map[uuid.UUID]bool),
	}
}

func txFromContext(ctx context.Context) *txn {
	tx, _ := ctx.Value(txKey{}).(*txn)
	return tx
}

// WithTx runs fn in a transaction. Nested calls join the outer one.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx := newTxn()
	defer s.releaseLocks(tx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return s.commit(tx)
}

// write stages fn in the caller's transaction or runs it as its own
func (s *Store) write(ctx context.Context, fn func(tx *txn) error) error {
	if tx := txFromContext(ctx); tx != nil {
		return fn(tx)
	}
	tx := newTxn()
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) lockJob(ctx context.Context, tx *txn, id uuid.UUID) error {
	if tx.heldSet[id] {
		return nil
	}

	s.locksMu.Lock()
	ch, ok := s.jobLocks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.jobLocks[id] = ch
	}
	s.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for job lock: %w", ctx.Err())
	}
	tx.held = append(tx.held, ch)
	tx.heldSet[id] = true
	return nil
}

func (s *Store) releaseLocks(tx *txn) {
	for _, ch := range tx.held {
		<-ch
	}
	tx.held = nil
	tx.heldSet = nil
}

// commit validates constraints against committed state and applies the
// write set. Nothing is applied when a constraint fails.
func (s *Store) commit(tx *txn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkConstraints(tx); err != nil {
		return err
	}

	for id := range tx.deletedJobs {
		j, ok := s.jobs[id]
		if !ok {
			continue
		}
		delete(s.jobIDs, j.UUID)
		delete(s.jobs, id)
		for _, bidID := range s.bidsByJob[id] {
			if b, ok := s.bids[bidID]; ok {
				delete(s.bidIDs, b.UUID)
			}
			delete(s.bids, bidID)
		}
		delete(s.bidsByJob, id)
		delete(s.agreements, id)
		delete(s.ratings, id)
	}
	for id, j := range tx.jobs {
		if tx.deletedJobs[id] {
			continue
		}
		s.jobs[id] = j
		s.jobIDs[j.UUID] = id
	}
	for id, b := range tx.bids {
		if _, exists := s.bids[id]; !exists {
			s.bidsByJob[b.JobID] = append(s.bidsByJob[b.JobID], id)
		}
		s.bids[id] = b
		s.bidIDs[b.UUID] = id
	}
	for jobID, a := range tx.agreements {
		s.agreements[jobID] = a
	}
	for jobID, r := range tx.ratings {
		s.ratings[jobID] = r
	}
	return nil
}

func (s *Store) checkConstraints(tx *txn) error {
	for id, j := range tx.jobs {
		if existing, ok := s.jobIDs[j.UUID]; ok && existing != id {
			return fmt.Errorf("job uuid %s: %w", j.UUID, errors.ErrDuplicateRecord)
		}
	}

	touched := make(map[int64]bool)
	for _, b := range tx.bids {
		if _, ok := s.jobs[b.JobID]; !ok {
			if _, staged := tx.jobs[b.JobID]; !staged {
				return fmt.Errorf("bid %s references unknown job: %w", b.UUID, errors.ErrRecordNotFound)
			}
		}
		touched[b.JobID] = true
	}
	for jobID := range touched {
		printers := make(map[uuid.UUID]int64)
		accepted := 0
		for _, b := range s.mergedBids(tx, jobID) {
			if other, dup := printers[b.PrinterID]; dup && other != b.ID {
				return fmt.Errorf("bid by printer %s on job %d: %w", b.PrinterID, jobID, errors.ErrDuplicateRecord)
			}
			printers[b.PrinterID] = b.ID
			if b.Status == bid.StatusAccepted {
				accepted++
			}
		}
		if accepted > 1 {
			return fmt.Errorf("second accepted bid on job %d: %w", jobID, errors.ErrDuplicateRecord)
		}
	}

	for jobID, a := range tx.agreements {
		if _, exists := s.agreements[jobID]; exists {
			return fmt.Errorf("agreement for job %d: %w", jobID, errors.ErrDuplicateRecord)
		}
		for _, other := range s.agreements {
			if other.BidID == a.BidID {
				return fmt.Errorf("agreement for bid %d: %w", a.BidID, errors.ErrDuplicateRecord)
			}
		}
	}
	for jobID := range tx.ratings {
		if _, exists := s.ratings[jobID]; exists {
			return fmt.Errorf("rating for job %d: %w", jobID, errors.ErrDuplicateRecord)
		}
	}
	return nil
}

// mergedBids returns the job's bids as the transaction sees them, oldest
// first. Callers hold s.mu.
func (s *Store) mergedBids(tx *txn, jobID int64) []*bid.Bid {
	ids := s.bidsByJob[jobID]
	out := make([]*bid.Bid, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
		if tx != nil {
			if staged, ok := tx.bids[id]; ok {
				out = append(out, staged)
				continue
			}
		}
		out = append(out, s.bids[id])
	}
	if tx != nil {
		// new bids carry increasing ids, so sorting by id keeps creation order
		var fresh []*bid.Bid
		for id, b := range tx.bids {
			if b.JobID == jobID && !seen[id] {
				fresh = append(fresh, b)
			}
		}
		sortBidsByID(fresh)
		out = append(out, fresh...)
	}
	return out
}

// lookupJob returns the job as the transaction sees it. Callers hold s.mu.
func (s *Store) lookupJob(tx *txn, id int64) (*job.Job, bool) {
	if tx != nil {
		if tx.deletedJobs[id] {
			return nil, false
		}
		if j, ok := tx.jobs[id]; ok {
			return j, true
		}
	}
	j, ok := s.jobs[id]
	return j, ok
}

func (s *Store) jobIDFor(tx *txn, id uuid.UUID) (int64, bool) {
	if internal, ok := s.jobIDs[id]; ok {
		return internal, true
	}
	if tx != nil {
		for internal, j := range tx.jobs {
			if j.UUID == id {
				return internal, true
			}
		}
	}
	return 0, false
}

func (s *Store) lookupBid(tx *txn, id int64) (*bid.Bid, bool) {
	if tx != nil {
		if b, ok := tx.bids[id]; ok {
			return b, true
		}
	}
	b, ok := s.bids[id]
	return b, ok
}
