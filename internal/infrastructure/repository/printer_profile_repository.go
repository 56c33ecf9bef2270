package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/printexchange/print-exchange-backend/internal/domain/printer"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/database"
)

// PrinterProfileRepository reads capability profiles. Profile CRUD belongs to
// the profile service; Upsert exists for seeding and tests.
type PrinterProfileRepository struct {
	pool *pgxpool.Pool
}

func NewPrinterProfileRepository(pool *pgxpool.Pool) *PrinterProfileRepository {
	return &PrinterProfileRepository{pool: pool}
}

var _ printer.ProfileProvider = (*PrinterProfileRepository)(nil)

// GetProfile implements printer.ProfileProvider
func (r *PrinterProfileRepository) GetProfile(ctx context.Context, printerID uuid.UUID) (*printer.Profile, error) {
	const query = `
		SELECT printer_id, business_name, supported_product_types, min_quantity,
			max_quantity, COALESCE(service_areas, ''), payment_terms, updated_at
		FROM printer_profiles WHERE printer_id = $1`

	var p printer.Profile
	err := database.Conn(ctx, r.pool).QueryRow(ctx, query, printerID).Scan(
		&p.PrinterID, &p.BusinessName, &p.SupportedProductTypes, &p.MinQuantity,
		&p.MaxQuantity, &p.ServiceAreas, &p.PaymentTerms, &p.UpdatedAt,
	)
	if err != nil {
		return nil, WrapRepositoryError(err, "get printer profile")
	}
	return &p, nil
}

func (r *PrinterProfileRepository) Upsert(ctx context.Context, p *printer.Profile) error {
	const query = `
		INSERT INTO printer_profiles (
			printer_id, business_name, supported_product_types, min_quantity,
			max_quantity, service_areas, payment_terms, updated_at
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		ON CONFLICT (printer_id) DO UPDATE SET
			business_name = EXCLUDED.business_name,
			supported_product_types = EXCLUDED.supported_product_types,
			min_quantity = EXCLUDED.min_quantity,
			max_quantity = EXCLUDED.max_quantity,
			service_areas = EXCLUDED.service_areas,
			payment_terms = EXCLUDED.payment_terms,
			updated_at = EXCLUDED.updated_at`

	_, err := database.Conn(ctx, r.pool).Exec(ctx, query,
		p.PrinterID, p.BusinessName, p.SupportedProductTypes, p.MinQuantity,
		p.MaxQuantity, p.ServiceAreas, p.PaymentTerms, p.UpdatedAt,
	)
	return WrapRepositoryError(err, "upsert printer profile")
}
