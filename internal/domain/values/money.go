package values

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with currency and precision handling
type Money struct {
	amount   decimal.Decimal
	currency string
}

// Supported currency codes (ISO 4217)
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	CAD = "CAD"
	AUD = "AUD"
)

// maxPriceDigits mirrors the NUMERIC(10,2) price columns.
const maxPriceDigits = 8

var validCurrencies = map[string]bool{
	USD: true, EUR: true, GBP: true, CAD: true, AUD: true,
}

// NewMoney creates a new Money value object
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if err := validateCurrency(currency); err != nil {
		return Money{}, err
	}

	return Money{
		amount:   amount,
		currency: currency,
	}, nil
}

// NewMoneyFromString creates Money from string amount and currency
func NewMoneyFromString(amount, currency string) (Money, error) {
	dec, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount: %w", err)
	}

	return NewMoney(dec, currency)
}

// NewPrice creates a strictly positive amount with at most two decimal places
// that fits the stored precision.
func NewPrice(amount decimal.Decimal, currency string) (Money, error) {
	if !amount.IsPositive() {
		return Money{}, fmt.Errorf("price must be greater than 0")
	}
	if !amount.Equal(amount.Round(2)) {
		return Money{}, fmt.Errorf("price must have at most 2 decimal places")
	}
	if amount.IntPart() >= decimal.New(1, maxPriceDigits).IntPart() {
		return Money{}, fmt.Errorf("price exceeds maximum allowed value")
	}
	return NewMoney(amount, currency)
}

// MustNewMoney creates Money and panics on error (for constants/tests)
func MustNewMoney(amount decimal.Decimal, currency string) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// MustNewMoneyFromString creates Money from a string and panics on error (for tests)
func MustNewMoneyFromString(amount, currency string) Money {
	m, err := NewMoneyFromString(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() string {
	return m.currency
}

// String returns money with currency code (e.g., "123.45 USD")
func (m Money) String() string {
	return m.amount.StringFixed(2) + " " + m.currency
}

// IsZero checks if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive checks if the amount is positive
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// Equal checks if two Money values are equal (same amount and currency)
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount) && m.currency == other.currency
}

// MarshalJSON encodes the amount as a string to keep precision
func (m Money) MarshalJSON() ([]byte, error) {
	data := struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}{
		Amount:   m.amount.StringFixed(2),
		Currency: m.currency,
	}
	return json.Marshal(data)
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var temp struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}

	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	money, err := NewMoneyFromString(temp.Amount, temp.Currency)
	if err != nil {
		return err
	}

	*m = money
	return nil
}

func validateCurrency(currency string) error {
	if currency == "" {
		return fmt.Errorf("currency cannot be empty")
	}
	if len(currency) != 3 {
		return fmt.Errorf("currency code must be 3 characters")
	}
	if !validCurrencies[currency] {
		return fmt.Errorf("unsupported currency: %s", currency)
	}
	return nil
}
