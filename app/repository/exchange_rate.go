package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Topupio/game-topup-sub000/app/entity"
)

var ErrRateNotFound = errors.New("exchange rate not found")

type ExchangeRateRepository struct {
	db DBTX
}

func NewExchangeRateRepository(db DBTX) *ExchangeRateRepository {
	return &ExchangeRateRepository{db: db}
}

func (r *ExchangeRateRepository) ListOverrides(ctx context.Context) ([]*entity.ExchangeRate, error) {
	query := `
		SELECT id, base_currency, target_currency, rate, created_at, updated_at
		FROM exchange_rates
		ORDER BY target_currency ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rates := make([]*entity.ExchangeRate, 0)
	for rows.Next() {
		item := &entity.ExchangeRate{}
		if err := rows.Scan(&item.ID, &item.BaseCurrency, &item.TargetCurrency, &item.Rate, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		rates = append(rates, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rates, nil
}

func (r *ExchangeRateRepository) Upsert(ctx context.Context, rate *entity.ExchangeRate) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO exchange_rates (base_currency, target_currency, rate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE rate = VALUES(rate), updated_at = VALUES(updated_at)
	`

	_, err := r.db.ExecContext(ctx, query,
		rate.BaseCurrency,
		rate.TargetCurrency,
		rate.Rate,
		now,
		now,
	)
	return err
}

func (r *ExchangeRateRepository) Delete(ctx context.Context, targetCurrency string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM exchange_rates WHERE target_currency = ?`, targetCurrency)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRateNotFound
	}
	return nil
}
