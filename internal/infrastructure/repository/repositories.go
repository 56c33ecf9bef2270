package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/printexchange/print-exchange-backend/internal/infrastructure/database"
)

// Repositories holds all repository instances sharing one pool. Every
// repository joins the transaction started by Tx.
type Repositories struct {
	Jobs       *JobRepository
	Bids       *BidRepository
	Agreements *AgreementRepository
	Ratings    *RatingRepository
	Profiles   *PrinterProfileRepository
	Tx         *database.Transactor
}

// NewRepositories creates a new repository collection
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Jobs:       NewJobRepository(pool),
		Bids:       NewBidRepository(pool),
		Agreements: NewAgreementRepository(pool),
		Ratings:    NewRatingRepository(pool),
		Profiles:   NewPrinterProfileRepository(pool),
		Tx:         database.NewTransactor(pool),
	}
}
