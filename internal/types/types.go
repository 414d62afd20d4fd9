// Package types provides the shared value objects used by every aggregate.
// They carry no identity and are compared by value.
package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matthewbaird/rentalops/internal/apperr"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// DefaultCurrency applies wherever no currency is configured.
const DefaultCurrency = "BRL"

// CurrencyOr returns currency, or fallback when currency is blank.
func CurrencyOr(currency, fallback string) string {
	if strings.TrimSpace(currency) == "" {
		return fallback
	}
	return currency
}

// Money represents a monetary amount using integer cents to eliminate
// floating-point errors in financial operations.
type Money struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"` // ISO 4217, e.g. "BRL"
}

// ZeroMoney returns the zero amount in the given currency.
func ZeroMoney(currency string) Money {
	return Money{Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// NewMoney builds Money from cents. Amounts must be non-negative.
func NewMoney(cents int64, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !currencyPattern.MatchString(currency) {
		return Money{}, apperr.Validation("money", "invalid currency code %q", currency)
	}
	if cents < 0 {
		return Money{}, apperr.Validation("money", "amount must be >= 0, got %d cents", cents)
	}
	return Money{AmountCents: cents, Currency: currency}, nil
}

// MoneyFromDecimal converts a decimal amount (e.g. "1250.50") to Money.
// More than two fractional digits is a validation error rather than a
// silent rounding.
func MoneyFromDecimal(amount decimal.Decimal, currency string) (Money, error) {
	cents := amount.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return Money{}, apperr.Validation("money", "amount %s has more than two decimal places", amount.String())
	}
	return NewMoney(cents.IntPart(), currency)
}

// ParseMoney parses a decimal string amount.
func ParseMoney(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, apperr.Validation("money", "invalid amount %q", amount)
	}
	return MoneyFromDecimal(d, currency)
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.AmountCents, -2)
}

func (m Money) IsZero() bool { return m.AmountCents == 0 }

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Currency, m.Decimal().StringFixed(2))
}

// Address is a postal address. Fields are free-form; the core never
// interprets them.
type Address struct {
	Street     string `json:"street"`
	Number     string `json:"number,omitempty"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

// SourceRef identifies an entity referenced by a domain event.
type SourceRef struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Role       string `json:"role"` // "subject", "target", "related", "context"
}

// ActivityEntry is a secondary index entry over the domain event log,
// keyed by a referenced entity. One event produces multiple entries.
type ActivityEntry struct {
	EventID           string          `json:"event_id"`
	EventType         string          `json:"event_type"`
	OccurredAt        time.Time       `json:"occurred_at"`
	Actor             string          `json:"actor"`
	IndexedEntityType string          `json:"indexed_entity_type"`
	IndexedEntityID   string          `json:"indexed_entity_id"`
	EntityRole        string          `json:"entity_role"`
	SourceRefs        []SourceRef     `json:"source_refs"`
	Summary           string          `json:"summary"`
	Category          string          `json:"category"`
	Weight            string          `json:"weight"`
	Polarity          string          `json:"polarity"`
	Payload           json.RawMessage `json:"payload"`
}
