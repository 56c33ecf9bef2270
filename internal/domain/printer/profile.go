// Package printer holds the read-only view of a printer's capability profile
// that job matching and bid submission consume.
package printer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/printexchange/print-exchange-backend/internal/domain/values"
)

// Profile is a printer's capability profile as stored. SupportedProductTypes
// and ServiceAreas hold the JSON arrays the profile owner saved; they are
// parsed on every evaluation through ParseCapabilities.
type Profile struct {
	PrinterID             uuid.UUID `json:"printer_id"`
	BusinessName          string    `json:"business_name"`
	SupportedProductTypes string    `json:"supported_product_types"`
	MinQuantity           *int      `json:"min_quantity,omitempty"`
	MaxQuantity           *int      `json:"max_quantity,omitempty"`
	ServiceAreas          string    `json:"service_areas,omitempty"`
	PaymentTerms          string    `json:"payment_terms"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Capabilities is the parsed, matchable form of a Profile
type Capabilities struct {
	ProductTypes map[values.ProductType]struct{}
	MinQuantity  *int
	MaxQuantity  *int
	// ServiceAreas is empty when the profile declares none or the stored
	// value is not a JSON array
	ServiceAreas []string
}

// Supports reports whether the product type is in the supported set
func (c Capabilities) Supports(pt values.ProductType) bool {
	_, ok := c.ProductTypes[pt]
	return ok
}

// AcceptsQuantity checks the optional inclusive bounds
func (c Capabilities) AcceptsQuantity(q int) bool {
	if c.MinQuantity != nil && q < *c.MinQuantity {
		return false
	}
	if c.MaxQuantity != nil && q > *c.MaxQuantity {
		return false
	}
	return true
}

// ParseCapabilities decodes the stored profile. A malformed product type list
// is an error; a malformed service area list only disables geography.
func (p *Profile) ParseCapabilities() (Capabilities, error) {
	var rawTypes []interface{}
	if err := json.Unmarshal([]byte(p.SupportedProductTypes), &rawTypes); err != nil {
		return Capabilities{}, fmt.Errorf("supported_product_types is not a JSON array: %w", err)
	}
	if rawTypes == nil {
		return Capabilities{}, fmt.Errorf("supported_product_types is null")
	}

	caps := Capabilities{
		ProductTypes: make(map[values.ProductType]struct{}, len(rawTypes)),
		MinQuantity:  p.MinQuantity,
		MaxQuantity:  p.MaxQuantity,
	}
	for _, v := range rawTypes {
		if s, ok := v.(string); ok {
			caps.ProductTypes[values.ProductType(s)] = struct{}{}
		}
	}

	caps.ServiceAreas = parseServiceAreas(p.ServiceAreas)
	return caps, nil
}

func parseServiceAreas(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var entries []interface{}
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}
	areas := make([]string, 0, len(entries))
	for _, v := range entries {
		if s, ok := v.(string); ok {
			areas = append(areas, s)
		}
	}
	return areas
}

// ProfileProvider resolves a printer's current capability profile. It returns
// errors.ErrRecordNotFound when the printer has no profile.
type ProfileProvider interface {
	GetProfile(ctx context.Context, printerID uuid.UUID) (*Profile, error)
}
