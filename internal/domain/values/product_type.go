package values

import (
	"strings"

	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
)

// ProductType is the kind of printed product a job asks for
type ProductType string

// Supported product types
const (
	ProductTypeLeaflets      ProductType = "LEAFLETS"
	ProductTypePosters       ProductType = "POSTERS"
	ProductTypeBrochures     ProductType = "BROCHURES"
	ProductTypeFlyers        ProductType = "FLYERS"
	ProductTypeBusinessCards ProductType = "BUSINESS_CARDS"
	ProductTypeOther         ProductType = "OTHER"
)

var supportedProductTypes = map[ProductType]bool{
	ProductTypeLeaflets:      true,
	ProductTypePosters:       true,
	ProductTypeBrochures:     true,
	ProductTypeFlyers:        true,
	ProductTypeBusinessCards: true,
	ProductTypeOther:         true,
}

// ParseProductType normalizes and validates a product type name
func ParseProductType(s string) (ProductType, error) {
	normalized := ProductType(strings.ToUpper(strings.TrimSpace(s)))
	if normalized == "" {
		return "", errors.NewValidationError("EMPTY_PRODUCT_TYPE", "product type cannot be empty")
	}
	if !supportedProductTypes[normalized] {
		return "", errors.NewValidationError("INVALID_PRODUCT_TYPE", "unsupported product type: "+s)
	}
	return normalized, nil
}

// IsValid reports whether p is one of the supported product types
func (p ProductType) IsValid() bool {
	return supportedProductTypes[p]
}

func (p ProductType) String() string {
	return string(p)
}

// AllProductTypes returns every supported product type
func AllProductTypes() []ProductType {
	return []ProductType{
		ProductTypeLeaflets,
		ProductTypePosters,
		ProductTypeBrochures,
		ProductTypeFlyers,
		ProductTypeBusinessCards,
		ProductTypeOther,
	}
}
