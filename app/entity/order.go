package entity

import "time"

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderPaid       OrderStatus = "paid"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderFailed     OrderStatus = "failed"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// TerminalOrderStatus reports whether an order may no longer be moved by this
// subsystem. Failed orders may still be cancelled by an operator.
func TerminalOrderStatus(status OrderStatus) bool {
	return status == OrderCompleted || status == OrderCancelled
}

// TrackingEntry is one immutable journal record of an order status change.
// Entries are only ever appended, never edited or removed.
type TrackingEntry struct {
	Status    OrderStatus `json:"status"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

// ProductSnapshot freezes the pricing terms at order-creation time. The
// Original* fields are set only when a display-currency conversion occurred.
type ProductSnapshot struct {
	Name                 string `json:"name"`
	UnitPriceCents       int64  `json:"unitPriceCents"`
	DiscountedPriceCents int64  `json:"discountedPriceCents"`
	Quantity             int64  `json:"quantity"`
	DeliveryTime         string `json:"deliveryTime,omitempty"`

	OriginalCurrency        string  `json:"originalCurrency,omitempty"`
	OriginalUnitPriceCents  int64   `json:"originalUnitPriceCents,omitempty"`
	OriginalTotalCents      int64   `json:"originalTotalCents,omitempty"`
	ConversionRateFrom      float64 `json:"conversionRateFrom,omitempty"`
	ConversionRateTo        float64 `json:"conversionRateTo,omitempty"`
}

// PaymentInfo correlates the order with the gateway.
type PaymentInfo struct {
	Gateway       string `json:"gateway,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	RawResponse   string `json:"rawResponse,omitempty"`
}

// UserInput is one checkout form field captured with the order (player id,
// server, zone id and the like, driven by the item's field catalog).
type UserInput struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Order struct {
	ID   uint64
	Code string

	UserID    string
	ItemID    string
	VariantID string

	OrderStatus   OrderStatus
	PaymentStatus PaymentStatus

	AmountCents    int64
	UnitPriceCents int64
	Quantity       int64
	Currency       string

	Snapshot    ProductSnapshot
	PaymentInfo PaymentInfo
	UserInputs  []UserInput
	Tracking    []TrackingEntry

	AdminNote *string

	// Version guards every status write; a conditional update that misses
	// means a concurrent caller moved the order first.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppendTracking adds one journal entry. The slice is never mutated in place
// anywhere else.
func (o *Order) AppendTracking(status OrderStatus, message string, at time.Time) {
	o.Tracking = append(o.Tracking, TrackingEntry{Status: status, Message: message, Timestamp: at})
}
