package repository

import (
	"context"
	"database/sql"

	"github.com/Topupio/game-topup-sub000/app/entity"
)

// CatalogRepository reads the variant catalog the storefront CRUD side
// maintains. Region pricing lives in a JSON column authored per item.
type CatalogRepository struct {
	db DBTX
}

func NewCatalogRepository(db DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) FindVariant(ctx context.Context, itemID, variantID string) (*entity.ItemVariant, error) {
	query := `
		SELECT item_id, variant_id, name, delivery_time, region_pricing_json
		FROM item_variants
		WHERE item_id = ? AND variant_id = ?
		LIMIT 1
	`

	var variant entity.ItemVariant
	var deliveryTime sql.NullString
	var pricingJSON string

	err := r.db.QueryRowContext(ctx, query, itemID, variantID).Scan(
		&variant.ItemID,
		&variant.VariantID,
		&variant.Name,
		&deliveryTime,
		&pricingJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if deliveryTime.Valid {
		variant.DeliveryTime = deliveryTime.String
	}
	if err := parseJSON(pricingJSON, &variant.Prices); err != nil {
		return nil, err
	}

	return &variant, nil
}

// FindLegacyProduct serves items published before the variant catalog existed.
func (r *CatalogRepository) FindLegacyProduct(ctx context.Context, productID, itemID string) (*entity.LegacyProduct, error) {
	query := `
		SELECT product_id, name, currency, price_cents, discounted_cents, delivery_time
		FROM legacy_products
		WHERE product_id = ? AND item_id = ?
		LIMIT 1
	`

	var product entity.LegacyProduct
	var deliveryTime sql.NullString

	err := r.db.QueryRowContext(ctx, query, productID, itemID).Scan(
		&product.ProductID,
		&product.Name,
		&product.Currency,
		&product.PriceCents,
		&product.DiscountedCents,
		&deliveryTime,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if deliveryTime.Valid {
		product.DeliveryTime = deliveryTime.String
	}

	return &product, nil
}
