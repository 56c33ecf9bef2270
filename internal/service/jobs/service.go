// Package jobs implements the job lifecycle operations: drafting, publishing,
// visibility, completion and rating.
package jobs

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/printexchange/print-exchange-backend/internal/domain/account"
	"github.com/printexchange/print-exchange-backend/internal/domain/agreement"
	"github.com/printexchange/print-exchange-backend/internal/domain/clock"
	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/domain/matching"
	"github.com/printexchange/print-exchange-backend/internal/domain/printer"
	"github.com/printexchange/print-exchange-backend/internal/domain/rating"
	"github.com/printexchange/print-exchange-backend/internal/domain/validation"
	"github.com/printexchange/print-exchange-backend/internal/domain/values"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/telemetry"
	"github.com/printexchange/print-exchange-backend/internal/metrics"
)

// Dependencies are the collaborators of the job service. Metrics may be nil.
type Dependencies struct {
	Jobs       job.Repository
	Agreements agreement.Repository
	Ratings    rating.Repository
	Profiles   printer.ProfileProvider
	Tx         Transactor
	Clock      clock.Clock
	Metrics    *metrics.Registry
	Logger     *zap.Logger
}

// Options tune service defaults
type Options struct {
	// DefaultDurationHours applies to jobs created without a bidding duration
	DefaultDurationHours int
}

type service struct {
	jobs       job.Repository
	agreements agreement.Repository
	ratings    rating.Repository
	profiles   printer.ProfileProvider
	tx         Transactor
	clock      clock.Clock
	metrics    *metrics.Registry
	logger     *zap.Logger
	validator  *validation.Validator
	tracer     trace.Tracer

	defaultDuration int
}

// NewService creates a new job service
func NewService(deps Dependencies, opts Options) (Service, error) {
	if deps.Jobs == nil || deps.Agreements == nil || deps.Ratings == nil || deps.Profiles == nil {
		return nil, fmt.Errorf("jobs: repositories are required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("jobs: transactor is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.DefaultDurationHours <= 0 {
		opts.DefaultDurationHours = job.DefaultBiddingDurationHours
	}

	return &service{
		jobs:            deps.Jobs,
		agreements:      deps.Agreements,
		ratings:         deps.Ratings,
		profiles:        deps.Profiles,
		tx:              deps.Tx,
		clock:           deps.Clock,
		metrics:         deps.Metrics,
		logger:          deps.Logger.Named("jobs"),
		validator:       validation.New(),
		tracer:          telemetry.Tracer("printx/service/jobs"),
		defaultDuration: opts.DefaultDurationHours,
	}, nil
}

func (s *service) startSpan(ctx context.Context, op string, jobID uuid.UUID) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{}
	if jobID != uuid.Nil {
		attrs = append(attrs, attribute.String("job.uuid", jobID.String()))
	}
	return s.tracer.Start(ctx, "jobs."+op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	telemetry.RecordError(span, err)
	span.End()
}

func requireCustomer(caller account.Principal) error {
	if !caller.IsCustomer() {
		return errors.NewForbiddenError("only customers can manage jobs")
	}
	return nil
}

// CreateJob stores a new DRAFT job for the calling customer
func (s *service) CreateJob(ctx context.Context, caller account.Principal, req *CreateJobRequest) (j *job.Job, err error) {
	ctx, span := s.startSpan(ctx, "CreateJob", uuid.Nil)
	defer func() { finish(span, err) }()

	if err := requireCustomer(caller); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.NewValidationError("INVALID_REQUEST", "request is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	d := job.Details{
		Quantity:             req.Quantity,
		Description:          strings.TrimSpace(req.Description),
		SpecialInstructions:  strings.TrimSpace(req.SpecialInstructions),
		FileURL:              req.FileURL,
		BiddingDurationHours: req.BiddingDurationHours,
		DeliveryLocation:     strings.TrimSpace(req.DeliveryLocation),
		PickupPreferred:      req.PickupPreferred,
	}
	if req.ProductType != "" {
		d.ProductType, _ = values.ParseProductType(req.ProductType)
	}
	if req.DueDate != nil {
		d.DueDate = req.DueDate.UTC()
	}
	if d.BiddingDurationHours == 0 {
		d.BiddingDurationHours = s.defaultDuration
	}

	j, err = job.NewJob(caller.CustomerProfileID, d, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Create(ctx, j); err != nil {
		return nil, errors.FromStorage(err, "job")
	}

	s.metrics.RecordJobCreated(ctx)
	s.logger.Debug("job created",
		zap.String("job_uuid", j.UUID.String()),
		zap.String("customer_profile_id", caller.CustomerProfileID.String()))
	return j, nil
}

// UpdateJob edits a DRAFT job owned by the caller
func (s *service) UpdateJob(ctx context.Context, caller account.Principal, jobID uuid.UUID, req *UpdateJobRequest) (updated *job.Job, err error) {
	ctx, span := s.startSpan(ctx, "UpdateJob", jobID)
	defer func() { finish(span, err) }()

	if err := requireCustomer(caller); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.NewValidationError("INVALID_REQUEST", "request is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	patch := toPatch(req)

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		j, err := s.lockOwnedJob(ctx, caller, jobID)
		if err != nil {
			return err
		}
		if err := j.ApplyPatch(patch, s.clock.Now()); err != nil {
			return err
		}
		if err := s.jobs.Update(ctx, j); err != nil {
			return errors.FromStorage(err, "job")
		}
		updated = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func toPatch(req *UpdateJobRequest) job.Patch {
	p := job.Patch{
		Quantity:             req.Quantity,
		Description:          trimmed(req.Description),
		SpecialInstructions:  trimmed(req.SpecialInstructions),
		FileURL:              req.FileURL,
		BiddingDurationHours: req.BiddingDurationHours,
		DeliveryLocation:     trimmed(req.DeliveryLocation),
		PickupPreferred:      req.PickupPreferred,
	}
	if req.ProductType != nil {
		// an explicit empty string clears the type
		pt, _ := values.ParseProductType(*req.ProductType)
		p.ProductType = &pt
	}
	if req.DueDate != nil {
		d := req.DueDate.UTC()
		p.DueDate = &d
	}
	return p
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// PublishJob validates a DRAFT job and opens its bidding window
func (s *service) PublishJob(ctx context.Context, caller account.Principal, jobID uuid.UUID) (published *job.Job, err error) {
	ctx, span := s.startSpan(ctx, "PublishJob", jobID)
	defer func() { finish(span, err) }()

	if err := requireCustomer(caller); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		j, err := s.lockOwnedJob(ctx, caller, jobID)
		if err != nil {
			return err
		}
		if err := j.Publish(s.clock.Now()); err != nil {
			return err
		}
		if err := s.jobs.Update(ctx, j); err != nil {
			return errors.FromStorage(err, "job")
		}
		published = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordJobPublished(ctx, published.ProductType.String())
	telemetry.WithTrace(ctx, s.logger).Info("job published",
		zap.String("job_uuid", published.UUID.String()),
		zap.Timep("bidding_ends_at", published.BiddingEndsAt))
	return published, nil
}

// DeleteJob removes a DRAFT job owned by the caller
func (s *service) DeleteJob(ctx context.Context, caller account.Principal, jobID uuid.UUID) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteJob", jobID)
	defer func() { finish(span, err) }()

	if err := requireCustomer(caller); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		j, err := s.lockOwnedJob(ctx, caller, jobID)
		if err != nil {
			return err
		}
		if err := j.EnsureDeletable(); err != nil {
			return err
		}
		return errors.FromStorage(s.jobs.Delete(ctx, j.ID), "job")
	})
}

// GetJob returns the job to its owner, or to a printer when the job is OPEN
// and matches the printer's profile. Every other caller sees NotFound.
func (s *service) GetJob(ctx context.Context, caller account.Principal, jobID uuid.UUID) (j *job.Job, err error) {
	ctx, span := s.startSpan(ctx, "GetJob", jobID)
	defer func() { finish(span, err) }()

	j, err = s.jobs.GetByUUID(ctx, jobID)
	if err != nil {
		return nil, errors.FromStorage(err, "job")
	}

	switch {
	case caller.Owns(j.CustomerProfileID):
		return j, nil
	case caller.IsPrinter() && j.State == job.StateOpen:
		profile, err := s.printerProfile(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		if profile != nil && matching.Matches(j, profile) {
			return j, nil
		}
	}
	return nil, errors.NewNotFoundError("job")
}

// ListJobsForCustomer returns the caller's jobs newest first
func (s *service) ListJobsForCustomer(ctx context.Context, caller account.Principal, state *job.State) (list []*job.Job, err error) {
	ctx, span := s.startSpan(ctx, "ListJobsForCustomer", uuid.Nil)
	defer func() { finish(span, err) }()

	if err := requireCustomer(caller); err != nil {
		return nil, err
	}
	if state != nil {
		span.SetAttributes(attribute.String("job.state", state.String()))
	}

	list, err = s.jobs.ListByCustomer(ctx, caller.CustomerProfileID, state)
	if err != nil {
		return nil, errors.FromStorage(err, "job")
	}
	return list, nil
}

// ListMatchingJobsForPrinter filters OPEN jobs by the caller's profile. A
// printer without a profile matches nothing.
func (s *service) ListMatchingJobsForPrinter(ctx context.Context, caller account.Principal) (list []*job.Job, err error) {
	ctx, span := s.startSpan(ctx, "ListMatchingJobsForPrinter", uuid.Nil)
	defer func() { finish(span, err) }()

	if !caller.IsPrinter() {
		return nil, errors.NewForbiddenError("only printers can browse open jobs")
	}

	profile, err := s.printerProfile(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return []*job.Job{}, nil
	}

	caps, parseErr := profile.ParseCapabilities()
	if parseErr != nil {
		s.logger.Warn("printer profile has malformed capabilities",
			zap.String("printer_id", caller.UserID.String()), zap.Error(parseErr))
		return []*job.Job{}, nil
	}

	open, err := s.jobs.ListByState(ctx, job.StateOpen)
	if err != nil {
		return nil, errors.FromStorage(err, "job")
	}

	list = make([]*job.Job, 0, len(open))
	for _, j := range open {
		if matching.MatchesCapabilities(j, caps) {
			list = append(list, j)
		}
	}
	span.SetAttributes(attribute.Int("jobs.open", len(open)), attribute.Int("jobs.matched", len(list)))
	return list, nil
}

// CompleteJob confirms fulfillment of an IN_PROGRESS job
func (s *service) CompleteJob(ctx context.Context, caller account.Principal, jobID uuid.UUID) (completed *job.Job, err error) {
	ctx, span := s.startSpan(ctx, "CompleteJob", jobID)
	defer func() { finish(span, err) }()

	if err := requireCustomer(caller); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		j, err := s.lockOwnedJob(ctx, caller, jobID)
		if err != nil {
			return err
		}
		if err := j.Complete(s.clock.Now()); err != nil {
			return err
		}
		if err := s.jobs.Update(ctx, j); err != nil {
			return errors.FromStorage(err, "job")
		}
		completed = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordJobCompleted(ctx)
	return completed, nil
}

// RatePrinter records the owner's one rating of the printer that fulfilled
// a COMPLETED job
func (s *service) RatePrinter(ctx context.Context, caller account.Principal, jobID uuid.UUID, req *RatePrinterRequest) (r *rating.Rating, err error) {
	ctx, span := s.startSpan(ctx, "RatePrinter", jobID)
	defer func() { finish(span, err) }()

	if err := requireCustomer(caller); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errors.NewValidationError("INVALID_REQUEST", "request is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		j, err := s.lockOwnedJob(ctx, caller, jobID)
		if err != nil {
			return err
		}
		if j.State != job.StateCompleted {
			return errors.NewConflictError(errors.CodeInvalidState,
				fmt.Sprintf("only completed jobs can be rated, current state: %s", j.State))
		}

		if _, err := s.ratings.GetByJobID(ctx, j.ID); err == nil {
			return errors.NewConflictError(errors.CodeAlreadyRated, "job has already been rated")
		} else if !stderrors.Is(err, errors.ErrRecordNotFound) {
			return errors.FromStorage(err, "rating")
		}

		a, err := s.agreements.GetByJobID(ctx, j.ID)
		if err != nil {
			return errors.FromStorage(err, "agreement")
		}

		rt, err := rating.NewRating(j.ID, a.PrinterID, caller.CustomerProfileID, req.Score, req.Feedback, s.clock.Now())
		if err != nil {
			return err
		}
		if err := s.ratings.Create(ctx, rt); err != nil {
			if stderrors.Is(err, errors.ErrDuplicateRecord) {
				return errors.NewConflictError(errors.CodeAlreadyRated, "job has already been rated").WithCause(err)
			}
			return errors.FromStorage(err, "rating")
		}
		r = rt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetAgreement returns the agreement to the job owner or the winning printer
func (s *service) GetAgreement(ctx context.Context, caller account.Principal, jobID uuid.UUID) (a *agreement.Agreement, err error) {
	ctx, span := s.startSpan(ctx, "GetAgreement", jobID)
	defer func() { finish(span, err) }()

	j, err := s.jobs.GetByUUID(ctx, jobID)
	if err != nil {
		return nil, errors.FromStorage(err, "agreement")
	}
	isOwner := caller.Owns(j.CustomerProfileID)
	if !isOwner && !caller.IsPrinter() {
		return nil, errors.NewNotFoundError("agreement")
	}

	a, err = s.agreements.GetByJobID(ctx, j.ID)
	if err != nil {
		return nil, errors.FromStorage(err, "agreement")
	}
	if !isOwner && a.PrinterID != caller.UserID {
		return nil, errors.NewNotFoundError("agreement")
	}
	return a, nil
}

// lockOwnedJob locks the job for the rest of the transaction. Jobs owned by
// someone else are reported as missing.
func (s *service) lockOwnedJob(ctx context.Context, caller account.Principal, jobID uuid.UUID) (*job.Job, error) {
	j, err := s.jobs.GetForUpdate(ctx, jobID)
	if err != nil {
		return nil, errors.FromStorage(err, "job")
	}
	if !caller.Owns(j.CustomerProfileID) {
		return nil, errors.NewNotFoundError("job")
	}
	return j, nil
}

// printerProfile returns nil without error when the printer has no profile
func (s *service) printerProfile(ctx context.Context, printerID uuid.UUID) (*printer.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, printerID)
	if err != nil {
		if stderrors.Is(err, errors.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.FromStorage(err, "printer profile")
	}
	return p, nil
}
