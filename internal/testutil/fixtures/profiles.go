package fixtures

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/printexchange/print-exchange-backend/internal/domain/printer"
)

// ProfileBuilder builds printer capability profiles
type ProfileBuilder struct {
	p     printer.Profile
	types []string
	areas []string
	raw   *string
}

// NewProfileBuilder creates a profile that matches the JobBuilder defaults
func NewProfileBuilder() *ProfileBuilder {
	return &ProfileBuilder{
		p: printer.Profile{
			PrinterID:    uuid.New(),
			BusinessName: "Lone Star Print Co",
			PaymentTerms: "Net 30",
			UpdatedAt:    ReferenceTime,
		},
		types: []string{"POSTERS", "FLYERS"},
		areas: []string{"Austin, TX"},
	}
}

func (b *ProfileBuilder) WithPrinter(id uuid.UUID) *ProfileBuilder {
	b.p.PrinterID = id
	return b
}

func (b *ProfileBuilder) WithProductTypes(types ...string) *ProfileBuilder {
	b.types = types
	return b
}

// WithRawProductTypes stores the product type column verbatim
func (b *ProfileBuilder) WithRawProductTypes(raw string) *ProfileBuilder {
	b.raw = &raw
	return b
}

// WithQuantityRange sets the bounds; zero leaves a side unbounded
func (b *ProfileBuilder) WithQuantityRange(lo, hi int) *ProfileBuilder {
	b.p.MinQuantity, b.p.MaxQuantity = nil, nil
	if lo > 0 {
		b.p.MinQuantity = &lo
	}
	if hi > 0 {
		b.p.MaxQuantity = &hi
	}
	return b
}

func (b *ProfileBuilder) WithServiceAreas(areas ...string) *ProfileBuilder {
	b.areas = areas
	return b
}

func (b *ProfileBuilder) WithPaymentTerms(terms string) *ProfileBuilder {
	b.p.PaymentTerms = terms
	return b
}

// Build creates the Profile
func (b *ProfileBuilder) Build() *printer.Profile {
	p := b.p
	if b.raw != nil {
		p.SupportedProductTypes = *b.raw
	} else {
		p.SupportedProductTypes = mustJSON(b.types)
	}
	if len(b.areas) > 0 {
		p.ServiceAreas = mustJSON(b.areas)
	}
	return &p
}

func mustJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
