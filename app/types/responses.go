package types

import "time"

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type TrackingEntryResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type ProductSnapshotResponse struct {
	Name                string  `json:"name"`
	UnitPrice           string  `json:"unitPrice"`
	DiscountedPrice     string  `json:"discountedPrice,omitempty"`
	Quantity            int64   `json:"quantity"`
	DeliveryTime        string  `json:"deliveryTime,omitempty"`
	OriginalCurrency    string  `json:"originalCurrency,omitempty"`
	OriginalUnitPrice   string  `json:"originalUnitPrice,omitempty"`
	OriginalTotalAmount string  `json:"originalTotalAmount,omitempty"`
	ConversionRate      float64 `json:"conversionRate,omitempty"`
}

type PaymentInfoResponse struct {
	Gateway       string `json:"gateway,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
}

type OrderResponse struct {
	ID            uint64                  `json:"id"`
	Code          string                  `json:"code"`
	ItemID        string                  `json:"itemId"`
	VariantID     string                  `json:"variantId"`
	OrderStatus   string                  `json:"orderStatus"`
	PaymentStatus string                  `json:"paymentStatus"`
	Amount        string                  `json:"amount"`
	UnitPrice     string                  `json:"unitPrice"`
	Quantity      int64                   `json:"quantity"`
	Currency      string                  `json:"currency"`
	Snapshot      ProductSnapshotResponse `json:"snapshot"`
	PaymentInfo   PaymentInfoResponse     `json:"paymentInfo"`
	Tracking      []TrackingEntryResponse `json:"tracking"`
	AdminNote     string                  `json:"adminNote,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

type OrderEnvelopeResponse struct {
	Order *OrderResponse `json:"order"`
}

type ListOrdersResponse struct {
	Orders []*OrderResponse `json:"orders"`
}

type RefundResponse struct {
	Refunded   bool       `json:"refunded"`
	RefundID   string     `json:"refundId,omitempty"`
	Amount     string     `json:"amount,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	RefundedAt *time.Time `json:"refundedAt,omitempty"`
}

type PaymentResponse struct {
	ID            uint64          `json:"id"`
	OrderID       uint64          `json:"orderId"`
	Gateway       string          `json:"gateway"`
	Status        string          `json:"status"`
	Amount        string          `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transactionId,omitempty"`
	Refund        *RefundResponse `json:"refund,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type ListPaymentsResponse struct {
	Payments []*PaymentResponse `json:"payments"`
}

type RatesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}
