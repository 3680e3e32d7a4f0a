// Package currency converts order amounts between storefront currencies by
// pivoting through the single reference currency the gateway settles in.
package currency

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Topupio/game-topup-sub000/app/entity"
)

// ReferenceCurrency maps to rate 1 in every rate table.
const ReferenceCurrency = "USD"

// fallbackRates covers the storefront's launch currencies. Persisted operator
// overrides win per currency.
var fallbackRates = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"INR": 83.5,
	"IDR": 15600,
	"PHP": 56.2,
	"BRL": 5.4,
	"MYR": 4.4,
	"BDT": 117.5,
	"PKR": 278,
}

type rateStore interface {
	ListOverrides(ctx context.Context) ([]*entity.ExchangeRate, error)
	Upsert(ctx context.Context, rate *entity.ExchangeRate) error
	Delete(ctx context.Context, targetCurrency string) error
}

// ErrInvalidRate rejects operator overrides that would corrupt the table.
var ErrInvalidRate = errors.New("invalid exchange rate")

type Service struct {
	rates  rateStore
	logger logrus.FieldLogger
}

func NewService(rates rateStore, logger logrus.FieldLogger) *Service {
	return &Service{rates: rates, logger: logger}
}

// Rates returns the effective rate table: compiled-in fallbacks overwritten
// per-currency by persisted overrides. It never fails; if the store is
// unreachable the fallback table alone is returned.
func (s *Service) Rates(ctx context.Context) map[string]float64 {
	rates := make(map[string]float64, len(fallbackRates))
	for code, rate := range fallbackRates {
		rates[code] = rate
	}

	overrides, err := s.rates.ListOverrides(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Exchange rate overrides unavailable, using fallback table")
		return rates
	}

	for _, override := range overrides {
		if override == nil || override.Rate <= 0 {
			continue
		}
		rates[strings.ToUpper(override.TargetCurrency)] = override.Rate
	}
	rates[ReferenceCurrency] = 1

	return rates
}

// SetOverride upserts an operator rate override for a target currency.
func (s *Service) SetOverride(ctx context.Context, targetCurrency string, rate float64) error {
	targetCurrency = strings.ToUpper(strings.TrimSpace(targetCurrency))
	if len(targetCurrency) != 3 {
		return ErrInvalidRate
	}
	if rate <= 0 {
		return ErrInvalidRate
	}
	if targetCurrency == ReferenceCurrency {
		return ErrInvalidRate
	}

	return s.rates.Upsert(ctx, &entity.ExchangeRate{
		BaseCurrency:   ReferenceCurrency,
		TargetCurrency: targetCurrency,
		Rate:           rate,
	})
}

// DeleteOverride removes an override, reverting the currency to the fallback.
func (s *Service) DeleteOverride(ctx context.Context, targetCurrency string) error {
	return s.rates.Delete(ctx, strings.ToUpper(strings.TrimSpace(targetCurrency)))
}

// Convert translates cents between currencies through the reference pivot.
// Same-currency conversion is exact. An unknown code behaves as rate 1 so an
// unexpected currency never fails an order.
func Convert(amountCents int64, from, to string, rates map[string]float64) int64 {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return amountCents
	}

	converted := float64(amountCents) / rateOrOne(rates, from) * rateOrOne(rates, to)
	return roundHalfAway(converted)
}

func rateOrOne(rates map[string]float64, code string) float64 {
	if rate, ok := rates[code]; ok && rate > 0 {
		return rate
	}
	return 1
}

func roundHalfAway(v float64) int64 {
	if v < 0 {
		return -int64(math.Floor(-v + 0.5))
	}
	return int64(math.Floor(v + 0.5))
}
