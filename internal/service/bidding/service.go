// Package bidding owns the bid ledger: submission, visibility, losing bids
// and the acceptance coordinator that awards a job.
package bidding

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/printexchange/print-exchange-backend/internal/domain/account"
	"github.com/printexchange/print-exchange-backend/internal/domain/agreement"
	"github.com/printexchange/print-exchange-backend/internal/domain/bid"
	"github.com/printexchange/print-exchange-backend/internal/domain/clock"
	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/domain/matching"
	"github.com/printexchange/print-exchange-backend/internal/domain/printer"
	"github.com/printexchange/print-exchange-backend/internal/domain/validation"
	"github.com/printexchange/print-exchange-backend/internal/domain/values"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/telemetry"
	"github.com/printexchange/print-exchange-backend/internal/metrics"
)

// Dependencies are the collaborators of the bidding service. Metrics and
// Limiter may be nil.
type Dependencies struct {
	Jobs       job.Repository
	Bids       bid.Repository
	Agreements agreement.Repository
	Profiles   printer.ProfileProvider
	// Terms supplies the profile a new bid snapshots its payment terms
	// from. It must not be cached. Defaults to Profiles.
	Terms   printer.ProfileProvider
	Tx      Transactor
	Clock   clock.Clock
	Limiter RateLimiter
	Metrics *metrics.Registry
	Logger  *zap.Logger
}

// Options tune service defaults
type Options struct {
	// Currency of submitted prices
	Currency string
}

// service implements the Service interface
type service struct {
	jobs       job.Repository
	bids       bid.Repository
	agreements agreement.Repository
	profiles   printer.ProfileProvider
	terms      printer.ProfileProvider
	tx         Transactor
	clock      clock.Clock
	limiter    RateLimiter
	metrics    *metrics.Registry
	logger     *zap.Logger
	validator  *validation.Validator
	tracer     trace.Tracer

	currency string
}

// NewService creates a new bidding service
func NewService(deps Dependencies, opts Options) (Service, error) {
	if deps.Jobs == nil || deps.Bids == nil || deps.Agreements == nil || deps.Profiles == nil {
		return nil, fmt.Errorf("bidding: repositories are required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("bidding: transactor is required")
	}
	if deps.Terms == nil {
		deps.Terms = deps.Profiles
	}
	if deps.Clock == nil {
		deps.Clock = clock.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.Currency == "" {
		opts.Currency = values.GBP
	}

	return &service{
		jobs:       deps.Jobs,
		bids:       deps.Bids,
		agreements: deps.Agreements,
		profiles:   deps.Profiles,
		terms:      deps.Terms,
		tx:         deps.Tx,
		clock:      deps.Clock,
		limiter:    deps.Limiter,
		metrics:    deps.Metrics,
		logger:     deps.Logger.Named("bidding"),
		validator:  validation.New(),
		tracer:     telemetry.Tracer("printx/service/bidding"),
		currency:   opts.Currency,
	}, nil
}

func (s *service) startSpan(ctx context.Context, op string, jobID uuid.UUID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("job.uuid", jobID.String()))
	return s.tracer.Start(ctx, "bidding."+op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	telemetry.RecordError(span, err)
	span.End()
}

// SubmitBid records the calling printer's offer. The job must be visible to
// the printer (published and matching its profile) and still inside its
// bidding window.
func (s *service) SubmitBid(ctx context.Context, caller account.Principal, jobID uuid.UUID, req *SubmitBidRequest) (submitted *bid.Bid, err error) {
	ctx, span := s.startSpan(ctx, "SubmitBid", jobID, attribute.String("printer.id", caller.UserID.String()))
	defer func() {
		if err != nil {
			s.metrics.RecordBidRejected(ctx, rejectionReason(err))
		}
		finish(span, err)
	}()

	if !caller.IsPrinter() {
		return nil, errors.NewForbiddenError("only printers can submit bids")
	}
	if req == nil {
		return nil, errors.NewValidationError("INVALID_REQUEST", "request is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	price, err := values.NewMoneyFromString(req.Price, s.currency)
	if err != nil {
		return nil, err
	}
	if s.limiter != nil && !s.limiter.Allow(caller.UserID) {
		return nil, errors.NewRateLimitError("too many bid submissions, slow down")
	}

	profile, err := s.terms.GetProfile(ctx, caller.UserID)
	if err != nil {
		// a printer without a profile sees no jobs at all
		return nil, errors.FromStorage(err, "job")
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		j, err := s.jobs.GetForUpdate(ctx, jobID)
		if err != nil {
			return errors.FromStorage(err, "job")
		}
		if j.State == job.StateDraft || !matching.Matches(j, profile) {
			return errors.NewNotFoundError("job")
		}

		now := s.clock.Now()
		if !j.AcceptsBids(now) {
			return errors.NewConflictError(errors.CodeBiddingClosed, "bidding window is closed for this job").
				WithDetails(map[string]interface{}{"state": j.State.String()})
		}

		if _, err := s.bids.GetByJobAndPrinter(ctx, j.ID, caller.UserID); err == nil {
			return duplicateBid(nil)
		} else if !stderrors.Is(err, errors.ErrRecordNotFound) {
			return errors.FromStorage(err, "bid")
		}

		b, err := bid.NewBid(j.ID, caller.UserID, bid.Offer{
			Price:                   price,
			EstimatedTurnaroundDays: req.EstimatedTurnaroundDays,
			Notes:                   req.Notes,
		}, profile.PaymentTerms, now)
		if err != nil {
			return err
		}
		if err := s.bids.Create(ctx, b); err != nil {
			if stderrors.Is(err, errors.ErrDuplicateRecord) {
				return duplicateBid(err)
			}
			return errors.FromStorage(err, "bid")
		}
		submitted = b
		return nil
	})
	if err != nil {
		if isUnmappedDuplicate(err) {
			return nil, duplicateBid(err)
		}
		return nil, errors.FromStorage(err, "bid")
	}

	s.metrics.RecordBidSubmitted(ctx)
	telemetry.WithTrace(ctx, s.logger).Info("bid submitted",
		zap.String("job_uuid", jobID.String()),
		zap.String("bid_uuid", submitted.UUID.String()),
		zap.String("printer_id", caller.UserID.String()),
		zap.String("price", submitted.Price.String()))
	return submitted, nil
}

func duplicateBid(cause error) error {
	e := errors.NewConflictError(errors.CodeDuplicateBid, "printer has already bid on this job")
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

// isUnmappedDuplicate catches unique violations raised at commit
func isUnmappedDuplicate(err error) bool {
	var appErr *errors.AppError
	return stderrors.Is(err, errors.ErrDuplicateRecord) && !stderrors.As(err, &appErr)
}

func rejectionReason(err error) string {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return "error"
	}
	switch appErr.Code {
	case errors.CodeDuplicateBid:
		return "duplicate"
	case errors.CodeBiddingClosed:
		return "bidding_closed"
	}
	return string(appErr.Type)
}

// ListBidsForJob returns the job's bids to its owner. A printer gets only its
// own bid, or an empty list while the job is open to it.
func (s *service) ListBidsForJob(ctx context.Context, caller account.Principal, jobID uuid.UUID) (list []*bid.Bid, err error) {
	ctx, span := s.startSpan(ctx, "ListBidsForJob", jobID)
	defer func() { finish(span, err) }()

	j, err := s.jobs.GetByUUID(ctx, jobID)
	if err != nil {
		return nil, errors.FromStorage(err, "job")
	}

	switch {
	case caller.Owns(j.CustomerProfileID):
		list, err = s.bids.ListByJob(ctx, j.ID)
		if err != nil {
			return nil, errors.FromStorage(err, "bid")
		}
		return list, nil

	case caller.IsPrinter() && j.State != job.StateDraft:
		own, err := s.bids.GetByJobAndPrinter(ctx, j.ID, caller.UserID)
		if err == nil {
			return []*bid.Bid{own}, nil
		}
		if !stderrors.Is(err, errors.ErrRecordNotFound) {
			return nil, errors.FromStorage(err, "bid")
		}
		if j.State == job.StateOpen && s.visibleTo(ctx, j, caller.UserID) {
			return []*bid.Bid{}, nil
		}
	}
	return nil, errors.NewNotFoundError("job")
}

func (s *service) visibleTo(ctx context.Context, j *job.Job, printerID uuid.UUID) bool {
	p, err := s.profiles.GetProfile(ctx, printerID)
	if err != nil {
		if !stderrors.Is(err, errors.ErrRecordNotFound) {
			s.logger.Warn("profile lookup failed", zap.String("printer_id", printerID.String()), zap.Error(err))
		}
		return false
	}
	return matching.Matches(j, p)
}

// MarkLost closes every OPEN bid on the job except exceptBidID. Running it
// again changes nothing.
func (s *service) MarkLost(ctx context.Context, jobID, exceptBidID uuid.UUID) (changed int64, err error) {
	ctx, span := s.startSpan(ctx, "MarkLost", jobID)
	defer func() { finish(span, err) }()

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		j, err := s.jobs.GetForUpdate(ctx, jobID)
		if err != nil {
			return errors.FromStorage(err, "job")
		}

		var exceptID int64
		if exceptBidID != uuid.Nil {
			b, err := s.bids.GetByUUID(ctx, exceptBidID)
			if err != nil {
				return errors.FromStorage(err, "bid")
			}
			if b.JobID != j.ID {
				return errors.NewNotFoundError("bid")
			}
			exceptID = b.ID
		}

		changed, err = s.bids.MarkOpenBidsLost(ctx, j.ID, exceptID, s.clock.Now())
		return errors.FromStorage(err, "bid")
	})
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("bids.lost", changed))
	return changed, nil
}
