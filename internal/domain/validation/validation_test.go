package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
)

type sampleRequest struct {
	ProductType string `json:"product_type" validate:"omitempty,product_type"`
	Quantity    int    `json:"quantity" validate:"gte=0"`
	Price       string `json:"price" validate:"required,price"`
	FileURL     string `json:"file_url" validate:"omitempty,file_ref"`
	Notes       string `json:"notes" validate:"max=10"`
}

func TestValidator_Struct(t *testing.T) {
	v := New()

	valid := func() sampleRequest {
		return sampleRequest{ProductType: "posters", Quantity: 5, Price: "12.50", FileURL: "https://files.example.com/a.pdf"}
	}

	tests := []struct {
		name     string
		mutate   func(r *sampleRequest)
		wantCode string
	}{
		{name: "valid", mutate: func(r *sampleRequest) {}},
		{name: "storage key file ref", mutate: func(r *sampleRequest) { r.FileURL = "uploads/2026/a.pdf" }},
		{name: "unknown product type", mutate: func(r *sampleRequest) { r.ProductType = "MUGS" }, wantCode: "INVALID_PRODUCT_TYPE"},
		{name: "negative quantity", mutate: func(r *sampleRequest) { r.Quantity = -1 }, wantCode: "INVALID_QUANTITY"},
		{name: "missing price", mutate: func(r *sampleRequest) { r.Price = "" }, wantCode: "MISSING_PRICE"},
		{name: "zero price", mutate: func(r *sampleRequest) { r.Price = "0" }, wantCode: "INVALID_PRICE"},
		{name: "three decimals", mutate: func(r *sampleRequest) { r.Price = "1.005" }, wantCode: "INVALID_PRICE"},
		{name: "not a number", mutate: func(r *sampleRequest) { r.Price = "ten" }, wantCode: "INVALID_PRICE"},
		{name: "file ref with spaces", mutate: func(r *sampleRequest) { r.FileURL = "my file.pdf" }, wantCode: "INVALID_FILE_URL"},
		{name: "url without host", mutate: func(r *sampleRequest) { r.FileURL = "https://" }, wantCode: "INVALID_FILE_URL"},
		{name: "notes too long", mutate: func(r *sampleRequest) { r.Notes = "01234567890" }, wantCode: "INVALID_NOTES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)

			err := v.Struct(req)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}
