package entity

import "time"

// ExchangeRate is a persisted operator override of the reference-to-target
// rate. BaseCurrency is always the reference currency; deleting an override
// reverts the target currency to the compiled-in fallback.
type ExchangeRate struct {
	ID uint64

	BaseCurrency   string
	TargetCurrency string
	Rate           float64

	CreatedAt time.Time
	UpdatedAt time.Time
}
