package entity

// RegionPrice is one price entry on a variant for a supported region/currency.
// DiscountedCents is zero when no discount applies.
type RegionPrice struct {
	Region          string `json:"region,omitempty"`
	Currency        string `json:"currency"`
	PriceCents      int64  `json:"priceCents"`
	DiscountedCents int64  `json:"discountedCents,omitempty"`
}

// ItemVariant is a purchasable variant of a catalog item (a denomination of a
// top-up, a gift card face value, a subscription tier).
type ItemVariant struct {
	ItemID       string
	VariantID    string
	Name         string
	DeliveryTime string
	Prices       []RegionPrice
}

// LegacyProduct is the pre-catalog product shape still reachable through the
// fallback lookup path.
type LegacyProduct struct {
	ProductID       string
	Name            string
	Currency        string
	PriceCents      int64
	DiscountedCents int64
	DeliveryTime    string
}
