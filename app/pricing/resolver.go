// Package pricing turns a catalog variant into the immutable price terms an
// order is created with.
package pricing

import (
	"errors"
	"strings"

	"github.com/Topupio/game-topup-sub000/app/currency"
	"github.com/Topupio/game-topup-sub000/app/entity"
)

var ErrPricingUnavailable = errors.New("pricing unavailable")

// Quote is a resolved price for one order: the values to charge plus the
// frozen snapshot recorded for audit.
type Quote struct {
	UnitPriceCents int64
	AmountCents    int64
	Currency       string
	Snapshot       entity.ProductSnapshot
}

// Resolve picks the variant price entry for the requested currency, falling
// back to the variant's first configured entry, then applies quantity and an
// optional display-currency conversion. When a conversion occurs the native
// values and the rates used are preserved in the snapshot.
func Resolve(variant *entity.ItemVariant, quantity int64, requestedCurrency, displayCurrency string, rates map[string]float64) (*Quote, error) {
	if variant == nil || len(variant.Prices) == 0 {
		return nil, ErrPricingUnavailable
	}

	requestedCurrency = strings.ToUpper(strings.TrimSpace(requestedCurrency))
	displayCurrency = strings.ToUpper(strings.TrimSpace(displayCurrency))

	entry := variant.Prices[0]
	for _, candidate := range variant.Prices {
		if strings.EqualFold(candidate.Currency, requestedCurrency) {
			entry = candidate
			break
		}
	}

	nativeCurrency := strings.ToUpper(entry.Currency)
	unitPrice := entry.PriceCents
	if entry.DiscountedCents > 0 {
		unitPrice = entry.DiscountedCents
	}
	amount := unitPrice * quantity

	quote := &Quote{
		UnitPriceCents: unitPrice,
		AmountCents:    amount,
		Currency:       nativeCurrency,
		Snapshot: entity.ProductSnapshot{
			Name:                 variant.Name,
			UnitPriceCents:       entry.PriceCents,
			DiscountedPriceCents: entry.DiscountedCents,
			Quantity:             quantity,
			DeliveryTime:         variant.DeliveryTime,
		},
	}

	if displayCurrency == "" || displayCurrency == nativeCurrency {
		return quote, nil
	}

	convertedUnit := currency.Convert(unitPrice, nativeCurrency, displayCurrency, rates)
	convertedAmount := currency.Convert(amount, nativeCurrency, displayCurrency, rates)

	quote.Snapshot.OriginalCurrency = nativeCurrency
	quote.Snapshot.OriginalUnitPriceCents = unitPrice
	quote.Snapshot.OriginalTotalCents = amount
	quote.Snapshot.ConversionRateFrom = rateOrOne(rates, nativeCurrency)
	quote.Snapshot.ConversionRateTo = rateOrOne(rates, displayCurrency)
	quote.Snapshot.UnitPriceCents = currency.Convert(entry.PriceCents, nativeCurrency, displayCurrency, rates)
	if entry.DiscountedCents > 0 {
		quote.Snapshot.DiscountedPriceCents = convertedUnit
	}

	quote.UnitPriceCents = convertedUnit
	quote.AmountCents = convertedAmount
	quote.Currency = displayCurrency

	return quote, nil
}

// ResolveLegacy prices an order from the pre-catalog product shape reachable
// through the fallback lookup path. Legacy products carry a single currency,
// so no display conversion applies.
func ResolveLegacy(product *entity.LegacyProduct, quantity int64) (*Quote, error) {
	if product == nil || product.PriceCents <= 0 {
		return nil, ErrPricingUnavailable
	}

	unitPrice := product.PriceCents
	if product.DiscountedCents > 0 {
		unitPrice = product.DiscountedCents
	}

	return &Quote{
		UnitPriceCents: unitPrice,
		AmountCents:    unitPrice * quantity,
		Currency:       strings.ToUpper(product.Currency),
		Snapshot: entity.ProductSnapshot{
			Name:                 product.Name,
			UnitPriceCents:       product.PriceCents,
			DiscountedPriceCents: product.DiscountedCents,
			Quantity:             quantity,
			DeliveryTime:         product.DeliveryTime,
		},
	}, nil
}

func rateOrOne(rates map[string]float64, code string) float64 {
	if rate, ok := rates[code]; ok && rate > 0 {
		return rate
	}
	return 1
}
