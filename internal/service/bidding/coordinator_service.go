package bidding

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/printexchange/print-exchange-backend/internal/domain/account"
	"github.com/printexchange/print-exchange-backend/internal/domain/agreement"
	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/telemetry"
)

// AcceptBid awards the job to one of its bids. In one transaction holding
// the job lock it accepts the bid, marks every other OPEN bid LOST, moves the
// job to IN_PROGRESS and records the agreement. A concurrent acceptance or
// expiry that committed first leaves the job no longer OPEN, so the loser
// gets a Conflict.
func (s *service) AcceptBid(ctx context.Context, caller account.Principal, jobID, bidID uuid.UUID) (accepted *agreement.Agreement, err error) {
	ctx, span := s.startSpan(ctx, "AcceptBid", jobID, attribute.String("bid.uuid", bidID.String()))
	defer func() { finish(span, err) }()

	if !caller.IsCustomer() {
		return nil, errors.NewForbiddenError("only the job's customer can accept bids")
	}

	start := time.Now()
	var lost int64

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		j, err := s.jobs.GetForUpdate(ctx, jobID)
		if err != nil {
			return errors.FromStorage(err, "job")
		}
		if !caller.Owns(j.CustomerProfileID) {
			return errors.NewNotFoundError("job")
		}

		b, err := s.bids.GetByUUID(ctx, bidID)
		if err != nil {
			return errors.FromStorage(err, "bid")
		}
		if b.JobID != j.ID {
			return errors.NewNotFoundError("bid")
		}

		if j.State != job.StateOpen {
			return errors.NewConflictError(errors.CodeInvalidState,
				fmt.Sprintf("job is not open for acceptance, current state: %s", j.State))
		}

		now := s.clock.Now()
		if err := b.Accept(now); err != nil {
			return err
		}
		if err := s.bids.Update(ctx, b); err != nil {
			return errors.FromStorage(err, "bid")
		}

		lost, err = s.bids.MarkOpenBidsLost(ctx, j.ID, b.ID, now)
		if err != nil {
			return errors.FromStorage(err, "bid")
		}

		if err := j.StartFulfillment(now); err != nil {
			return err
		}
		if err := s.jobs.Update(ctx, j); err != nil {
			return errors.FromStorage(err, "job")
		}

		a := agreement.NewFromBid(j, b, now)
		if err := s.agreements.Create(ctx, a); err != nil {
			return errors.FromStorage(err, "agreement")
		}
		accepted = a
		return nil
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrDuplicateRecord) {
			// a unique constraint caught a competing acceptance
			return nil, errors.NewConflictError(errors.CodeAlreadyDecided, "job already has an accepted bid").WithCause(err)
		}
		return nil, errors.FromStorage(err, "job")
	}

	s.metrics.RecordAcceptance(ctx, lost, time.Since(start))
	telemetry.WithTrace(ctx, s.logger).Info("bid accepted",
		zap.String("job_uuid", jobID.String()),
		zap.String("bid_uuid", bidID.String()),
		zap.String("agreement_uuid", accepted.UUID.String()),
		zap.Int64("bids_lost", lost))
	return accepted, nil
}
