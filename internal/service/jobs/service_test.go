package jobs

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/printexchange/print-exchange-backend/internal/domain/account"
	"github.com/printexchange/print-exchange-backend/internal/domain/agreement"
	"github.com/printexchange/print-exchange-backend/internal/domain/clock"
	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/domain/values"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/memstore"
	"github.com/printexchange/print-exchange-backend/internal/testutil"
	"github.com/printexchange/print-exchange-backend/internal/testutil/fixtures"
	"github.com/printexchange/print-exchange-backend/internal/testutil/mocks"
)

type harness struct {
	svc      Service
	store    *memstore.Store
	clock    *clock.MockClock
	customer account.Principal
	printer  account.Principal
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memstore.New()
	clk := clock.NewMockClock(fixtures.ReferenceTime)

	svc, err := NewService(Dependencies{
		Jobs:       store.Jobs,
		Agreements: store.Agreements,
		Ratings:    store.Ratings,
		Profiles:   store.Profiles,
		Tx:         store,
		Clock:      clk,
		Logger:     zaptest.NewLogger(t),
	}, Options{DefaultDurationHours: 36})
	require.NoError(t, err)

	printerID := uuid.New()
	store.Profiles.Put(fixtures.NewProfileBuilder().
		WithPrinter(printerID).
		WithQuantityRange(100, 1000).
		Build())

	return &harness{
		svc:      svc,
		store:    store,
		clock:    clk,
		customer: account.NewCustomer(uuid.New(), uuid.New()),
		printer:  account.NewPrinter(printerID),
	}
}

func (h *harness) createDraft(t *testing.T) *job.Job {
	t.Helper()
	due := h.clock.Now().Add(10 * 24 * time.Hour)
	j, err := h.svc.CreateJob(context.Background(), h.customer, &CreateJobRequest{
		ProductType:      "posters",
		Quantity:         500,
		DueDate:          &due,
		DeliveryLocation: "Austin",
	})
	require.NoError(t, err)
	return j
}

func (h *harness) createOpen(t *testing.T) *job.Job {
	t.Helper()
	j := h.createDraft(t)
	j, err := h.svc.PublishJob(context.Background(), h.customer, j.UUID)
	require.NoError(t, err)
	return j
}

func TestService_CreateJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		caller   account.Principal
		req      *CreateJobRequest
		wantType errors.ErrorType
		wantCode string
		validate func(*testing.T, *job.Job)
	}{
		{
			name:   "empty draft gets default duration",
			caller: h.customer,
			req:    &CreateJobRequest{},
			validate: func(t *testing.T, j *job.Job) {
				assert.Equal(t, job.StateDraft, j.State)
				assert.Equal(t, 36, j.BiddingDurationHours)
				assert.Nil(t, j.BiddingEndsAt)
				assert.Equal(t, h.customer.CustomerProfileID, j.CustomerProfileID)
				assert.NotZero(t, j.ID)
			},
		},
		{
			name:   "product type is normalized",
			caller: h.customer,
			req:    &CreateJobRequest{ProductType: " business_cards ", Quantity: 200, BiddingDurationHours: 6},
			validate: func(t *testing.T, j *job.Job) {
				assert.Equal(t, values.ProductTypeBusinessCards, j.ProductType)
				assert.Equal(t, 6, j.BiddingDurationHours)
			},
		},
		{
			name:     "printer cannot create jobs",
			caller:   h.printer,
			req:      &CreateJobRequest{},
			wantType: errors.ErrorTypeForbidden,
		},
		{
			name:     "unknown product type",
			caller:   h.customer,
			req:      &CreateJobRequest{ProductType: "mugs"},
			wantType: errors.ErrorTypeValidation,
			wantCode: "INVALID_PRODUCT_TYPE",
		},
		{
			name:     "negative quantity",
			caller:   h.customer,
			req:      &CreateJobRequest{Quantity: -3},
			wantType: errors.ErrorTypeValidation,
			wantCode: "INVALID_QUANTITY",
		},
		{
			name:     "negative bidding duration",
			caller:   h.customer,
			req:      &CreateJobRequest{BiddingDurationHours: -1},
			wantType: errors.ErrorTypeValidation,
			wantCode: "INVALID_BIDDING_DURATION_HOURS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := h.svc.CreateJob(ctx, tt.caller, tt.req)
			if tt.wantType != "" {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, tt.wantType), "got %v", err)
				if tt.wantCode != "" {
					assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
				}
				return
			}
			require.NoError(t, err)
			tt.validate(t, j)
		})
	}
}

func TestService_UpdateJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	j := h.createDraft(t)

	t.Run("edits draft fields", func(t *testing.T) {
		updated, err := h.svc.UpdateJob(ctx, h.customer, j.UUID, &UpdateJobRequest{
			Quantity:    testutil.Ptr(750),
			Description: testutil.Ptr("  matte finish "),
		})
		require.NoError(t, err)
		assert.Equal(t, 750, updated.Quantity)
		assert.Equal(t, "matte finish", updated.Description)
		assert.Equal(t, values.ProductTypePosters, updated.ProductType)
	})

	t.Run("another customer sees not found", func(t *testing.T) {
		stranger := account.NewCustomer(uuid.New(), uuid.New())
		_, err := h.svc.UpdateJob(ctx, stranger, j.UUID, &UpdateJobRequest{Quantity: testutil.Ptr(1)})
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})

	t.Run("open job is a conflict", func(t *testing.T) {
		open := h.createOpen(t)
		_, err := h.svc.UpdateJob(ctx, h.customer, open.UUID, &UpdateJobRequest{Quantity: testutil.Ptr(1)})
		assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
	})

	t.Run("invalid patch is rejected before storage", func(t *testing.T) {
		_, err := h.svc.UpdateJob(ctx, h.customer, j.UUID, &UpdateJobRequest{Quantity: testutil.Ptr(-1)})
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

		got, err := h.store.Jobs.GetByUUID(ctx, j.UUID)
		require.NoError(t, err)
		assert.Equal(t, 750, got.Quantity)
	})
}

func TestService_PublishJob(t *testing.T) {
	ctx := context.Background()

	t.Run("opens the bidding window", func(t *testing.T) {
		h := newHarness(t)
		j := h.createDraft(t)

		h.clock.Advance(time.Hour)
		open, err := h.svc.PublishJob(ctx, h.customer, j.UUID)
		require.NoError(t, err)

		now := h.clock.Now()
		assert.Equal(t, job.StateOpen, open.State)
		require.NotNil(t, open.BiddingEndsAt)
		assert.Equal(t, now.Add(36*time.Hour), *open.BiddingEndsAt)
		require.NotNil(t, open.PublishedAt)
		assert.Equal(t, now, *open.PublishedAt)
	})

	t.Run("already open is a conflict", func(t *testing.T) {
		h := newHarness(t)
		j := h.createOpen(t)
		_, err := h.svc.PublishJob(ctx, h.customer, j.UUID)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
	})

	t.Run("past due date is a validation error and changes nothing", func(t *testing.T) {
		h := newHarness(t)
		past := h.clock.Now().Add(-time.Minute)
		j, err := h.svc.CreateJob(ctx, h.customer, &CreateJobRequest{ProductType: "FLYERS", Quantity: 10, DueDate: &past})
		require.NoError(t, err)

		_, err = h.svc.PublishJob(ctx, h.customer, j.UUID)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		assert.True(t, errors.HasCode(err, "DUE_DATE_IN_PAST"))

		got, err := h.store.Jobs.GetByUUID(ctx, j.UUID)
		require.NoError(t, err)
		assert.Equal(t, job.StateDraft, got.State)
		assert.Nil(t, got.BiddingEndsAt)
	})

	t.Run("incomplete draft", func(t *testing.T) {
		h := newHarness(t)
		j, err := h.svc.CreateJob(ctx, h.customer, &CreateJobRequest{Quantity: 10})
		require.NoError(t, err)
		_, err = h.svc.PublishJob(ctx, h.customer, j.UUID)
		assert.True(t, errors.HasCode(err, "MISSING_PRODUCT_TYPE"))
	})

	t.Run("printer is forbidden", func(t *testing.T) {
		h := newHarness(t)
		j := h.createDraft(t)
		_, err := h.svc.PublishJob(ctx, h.printer, j.UUID)
		assert.True(t, errors.IsType(err, errors.ErrorTypeForbidden))
	})

	t.Run("unknown job", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.PublishJob(ctx, h.customer, uuid.New())
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})
}

func TestService_DeleteJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	draft := h.createDraft(t)
	require.NoError(t, h.svc.DeleteJob(ctx, h.customer, draft.UUID))
	_, err := h.store.Jobs.GetByUUID(ctx, draft.UUID)
	assert.ErrorIs(t, err, errors.ErrRecordNotFound)

	open := h.createOpen(t)
	err = h.svc.DeleteJob(ctx, h.customer, open.UUID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
}

func TestService_GetJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	draft := h.createDraft(t)
	open := h.createOpen(t)

	tests := []struct {
		name    string
		caller  account.Principal
		jobID   uuid.UUID
		visible bool
	}{
		{name: "owner sees draft", caller: h.customer, jobID: draft.UUID, visible: true},
		{name: "owner sees open", caller: h.customer, jobID: open.UUID, visible: true},
		{name: "matching printer sees open", caller: h.printer, jobID: open.UUID, visible: true},
		{name: "printer never sees draft", caller: h.printer, jobID: draft.UUID},
		{name: "other customer", caller: account.NewCustomer(uuid.New(), uuid.New()), jobID: open.UUID},
		{name: "printer without profile", caller: account.NewPrinter(uuid.New()), jobID: open.UUID},
		{name: "missing job", caller: h.customer, jobID: uuid.New()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := h.svc.GetJob(ctx, tt.caller, tt.jobID)
			if tt.visible {
				require.NoError(t, err)
				assert.Equal(t, tt.jobID, j.UUID)
				return
			}
			assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound), "got %v", err)
		})
	}

	t.Run("non-matching printer", func(t *testing.T) {
		bulk := uuid.New()
		h.store.Profiles.Put(fixtures.NewProfileBuilder().WithPrinter(bulk).WithQuantityRange(1000, 5000).Build())
		_, err := h.svc.GetJob(ctx, account.NewPrinter(bulk), open.UUID)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})
}

func TestService_ListJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.createOpen(t)
	h.clock.Advance(time.Minute)
	second := h.createOpen(t)
	h.clock.Advance(time.Minute)
	draft := h.createDraft(t)

	other := account.NewCustomer(uuid.New(), uuid.New())
	due := h.clock.Now().Add(72 * time.Hour)
	_, err := h.svc.CreateJob(ctx, other, &CreateJobRequest{ProductType: "POSTERS", Quantity: 50, DueDate: &due})
	require.NoError(t, err)

	t.Run("customer sees own jobs newest first", func(t *testing.T) {
		list, err := h.svc.ListJobsForCustomer(ctx, h.customer, nil)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, draft.UUID, list[0].UUID)
		assert.Equal(t, second.UUID, list[1].UUID)
		assert.Equal(t, first.UUID, list[2].UUID)
	})

	t.Run("state filter", func(t *testing.T) {
		open := job.StateOpen
		list, err := h.svc.ListJobsForCustomer(ctx, h.customer, &open)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("printer sees matching open jobs newest first", func(t *testing.T) {
		list, err := h.svc.ListMatchingJobsForPrinter(ctx, h.printer)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.UUID, list[0].UUID)
		assert.Equal(t, first.UUID, list[1].UUID)
	})

	t.Run("malformed profile matches nothing", func(t *testing.T) {
		broken := uuid.New()
		h.store.Profiles.Put(fixtures.NewProfileBuilder().WithPrinter(broken).WithRawProductTypes("POSTERS").Build())
		list, err := h.svc.ListMatchingJobsForPrinter(ctx, account.NewPrinter(broken))
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("customer cannot browse as printer", func(t *testing.T) {
		_, err := h.svc.ListMatchingJobsForPrinter(ctx, h.customer)
		assert.True(t, errors.IsType(err, errors.ErrorTypeForbidden))
	})
}

// awardJob moves an OPEN job to IN_PROGRESS with an agreement for the
// harness printer, the way acceptance leaves it
func (h *harness) awardJob(t *testing.T, j *job.Job) {
	t.Helper()
	ctx := context.Background()
	b := fixtures.NewBidBuilder(j.ID).WithPrinter(h.printer.UserID).At(h.clock.Now()).Create(ctx, t, h.store.Bids)

	require.NoError(t, h.store.WithTx(ctx, func(ctx context.Context) error {
		locked, err := h.store.Jobs.GetForUpdate(ctx, j.UUID)
		if err != nil {
			return err
		}
		if err := b.Accept(h.clock.Now()); err != nil {
			return err
		}
		if err := h.store.Bids.Update(ctx, b); err != nil {
			return err
		}
		if err := locked.StartFulfillment(h.clock.Now()); err != nil {
			return err
		}
		if err := h.store.Jobs.Update(ctx, locked); err != nil {
			return err
		}
		return h.store.Agreements.Create(ctx, agreement.NewFromBid(locked, b, h.clock.Now()))
	}))
}

func TestService_CompleteAndRate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	j := h.createOpen(t)

	_, err := h.svc.RatePrinter(ctx, h.customer, j.UUID, &RatePrinterRequest{Score: 5})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict), "open job cannot be rated")

	_, err = h.svc.CompleteJob(ctx, h.customer, j.UUID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict), "open job cannot complete")

	h.awardJob(t, j)
	h.clock.Advance(48 * time.Hour)

	done, err := h.svc.CompleteJob(ctx, h.customer, j.UUID)
	require.NoError(t, err)
	assert.Equal(t, job.StateCompleted, done.State)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, h.clock.Now(), *done.CompletedAt)

	_, err = h.svc.RatePrinter(ctx, h.customer, j.UUID, &RatePrinterRequest{Score: 6})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	r, err := h.svc.RatePrinter(ctx, h.customer, j.UUID, &RatePrinterRequest{Score: 4, Feedback: "crisp colours"})
	require.NoError(t, err)
	assert.Equal(t, h.printer.UserID, r.PrinterID)
	assert.Equal(t, 4, r.Score)

	_, err = h.svc.RatePrinter(ctx, h.customer, j.UUID, &RatePrinterRequest{Score: 3})
	assert.True(t, errors.HasCode(err, errors.CodeAlreadyRated))
}

func TestService_GetAgreement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	j := h.createOpen(t)

	_, err := h.svc.GetAgreement(ctx, h.customer, j.UUID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound), "no agreement before acceptance")

	h.awardJob(t, j)

	a, err := h.svc.GetAgreement(ctx, h.customer, j.UUID)
	require.NoError(t, err)
	assert.True(t, a.CustomerConfirmed)
	assert.Equal(t, j.UUID, a.JobUUID)

	a, err = h.svc.GetAgreement(ctx, h.printer, j.UUID)
	require.NoError(t, err)
	assert.Equal(t, h.printer.UserID, a.PrinterID)

	_, err = h.svc.GetAgreement(ctx, account.NewPrinter(uuid.New()), j.UUID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestService_StorageFailures(t *testing.T) {
	ctx := context.Background()
	customer := account.NewCustomer(uuid.New(), uuid.New())
	boom := stderrors.New("connection reset")

	newMocked := func(t *testing.T) (Service, *mocks.JobRepository, *mocks.Transactor) {
		jobs := &mocks.JobRepository{}
		tx := &mocks.Transactor{}
		svc, err := NewService(Dependencies{
			Jobs:       jobs,
			Agreements: &mocks.AgreementRepository{},
			Ratings:    &mocks.RatingRepository{},
			Profiles:   &mocks.ProfileProvider{},
			Tx:         tx,
			Clock:      clock.NewMockClock(fixtures.ReferenceTime),
		}, Options{})
		require.NoError(t, err)
		t.Cleanup(func() { jobs.AssertExpectations(t) })
		return svc, jobs, tx
	}

	t.Run("create failure is internal", func(t *testing.T) {
		svc, jobs, _ := newMocked(t)
		jobs.On("Create", mock.Anything, mock.AnythingOfType("*job.Job")).Return(boom)

		_, err := svc.CreateJob(ctx, customer, &CreateJobRequest{})
		assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("transaction failure surfaces", func(t *testing.T) {
		svc, _, tx := newMocked(t)
		tx.Err = boom

		_, err := svc.PublishJob(ctx, customer, uuid.New())
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, tx.Calls)
	})

	t.Run("update failure after publish", func(t *testing.T) {
		svc, jobs, _ := newMocked(t)
		j := fixtures.NewJobBuilder().WithCustomer(customer.CustomerProfileID).Build(t)
		jobs.On("GetForUpdate", mock.Anything, j.UUID).Return(j, nil)
		jobs.On("Update", mock.Anything, j).Return(boom)

		_, err := svc.PublishJob(ctx, customer, j.UUID)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
	})
}

func TestNewService_RequiresDependencies(t *testing.T) {
	_, err := NewService(Dependencies{}, Options{})
	assert.Error(t, err)
}
