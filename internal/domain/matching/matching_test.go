package matching_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/domain/matching"
	"github.com/printexchange/print-exchange-backend/internal/domain/printer"
	"github.com/printexchange/print-exchange-backend/internal/domain/values"
)

func intPtr(v int) *int { return &v }

func austinPosters() *job.Job {
	return &job.Job{
		ProductType:      values.ProductTypePosters,
		Quantity:         500,
		DeliveryLocation: "Austin",
		State:            job.StateOpen,
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		job     func() *job.Job
		profile printer.Profile
		want    bool
	}{
		{
			name: "posters in austin within range",
			job:  austinPosters,
			profile: printer.Profile{
				SupportedProductTypes: `["POSTERS","FLYERS"]`,
				MinQuantity:           intPtr(100),
				MaxQuantity:           intPtr(1000),
				ServiceAreas:          `["Austin, TX"]`,
			},
			want: true,
		},
		{
			name: "quantity below printer minimum",
			job:  austinPosters,
			profile: printer.Profile{
				SupportedProductTypes: `["POSTERS","FLYERS"]`,
				MinQuantity:           intPtr(1000),
				MaxQuantity:           intPtr(5000),
				ServiceAreas:          `["Austin, TX"]`,
			},
			want: false,
		},
		{
			name: "quantity above printer maximum",
			job:  austinPosters,
			profile: printer.Profile{
				SupportedProductTypes: `["POSTERS"]`,
				MaxQuantity:           intPtr(499),
			},
			want: false,
		},
		{
			name:    "unsupported product type",
			job:     austinPosters,
			profile: printer.Profile{SupportedProductTypes: `["FLYERS"]`},
			want:    false,
		},
		{
			name:    "malformed product types exclude the printer",
			job:     austinPosters,
			profile: printer.Profile{SupportedProductTypes: `[POSTERS`},
			want:    false,
		},
		{
			name:    "no service areas skips geography",
			job:     austinPosters,
			profile: printer.Profile{SupportedProductTypes: `["POSTERS"]`},
			want:    true,
		},
		{
			name:    "empty service area list skips geography",
			job:     austinPosters,
			profile: printer.Profile{SupportedProductTypes: `["POSTERS"]`, ServiceAreas: `[]`},
			want:    true,
		},
		{
			name:    "malformed service areas skip geography",
			job:     austinPosters,
			profile: printer.Profile{SupportedProductTypes: `["POSTERS"]`, ServiceAreas: `{bad`},
			want:    true,
		},
		{
			name:    "service area outside delivery location",
			job:     austinPosters,
			profile: printer.Profile{SupportedProductTypes: `["POSTERS"]`, ServiceAreas: `["Houston"]`},
			want:    false,
		},
		{
			name: "area contained in location ignoring case",
			job: func() *job.Job {
				j := austinPosters()
				j.DeliveryLocation = "12 Congress Ave, AUSTIN, TX"
				return j
			},
			profile: printer.Profile{SupportedProductTypes: `["POSTERS"]`, ServiceAreas: `["austin"]`},
			want:    true,
		},
		{
			name: "job without delivery location skips geography",
			job: func() *job.Job {
				j := austinPosters()
				j.DeliveryLocation = ""
				return j
			},
			profile: printer.Profile{SupportedProductTypes: `["POSTERS"]`, ServiceAreas: `["Houston"]`},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.profile
			assert.Equal(t, tt.want, matching.Matches(tt.job(), &p))
		})
	}
}

func TestMatches_NilInputs(t *testing.T) {
	assert.False(t, matching.Matches(nil, &printer.Profile{SupportedProductTypes: `["POSTERS"]`}))
	assert.False(t, matching.Matches(austinPosters(), nil))
}

func TestFilter(t *testing.T) {
	flyers := austinPosters()
	flyers.ProductType = values.ProductTypeFlyers
	posters := austinPosters()

	profile := &printer.Profile{SupportedProductTypes: `["POSTERS"]`}
	got := matching.Filter([]*job.Job{flyers, posters}, profile)
	assert.Equal(t, []*job.Job{posters}, got)

	broken := &printer.Profile{SupportedProductTypes: `nope`}
	assert.Empty(t, matching.Filter([]*job.Job{posters}, broken))
}
