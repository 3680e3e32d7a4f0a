package entity

import "time"

type PaymentRecordStatus string

const (
	PaymentRecordSuccess  PaymentRecordStatus = "success"
	PaymentRecordFailed   PaymentRecordStatus = "failed"
	PaymentRecordRefunded PaymentRecordStatus = "refunded"
)

// Refund is the outcome attached to a success Payment when money is returned.
type Refund struct {
	Refunded    bool       `json:"refunded"`
	RefundID    string     `json:"refundId,omitempty"`
	AmountCents int64      `json:"amountCents,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	RefundedAt  *time.Time `json:"refundedAt,omitempty"`
}

// Payment is one audit record per gateway attempt outcome. An order may own
// several across retries, but at most one success under normal operation;
// the unique transaction id is the dedupe key.
type Payment struct {
	ID uint64

	OrderID uint64
	UserID  string

	Gateway string
	Status  PaymentRecordStatus

	AmountCents int64
	Currency    string

	TransactionID  string
	GatewayOrderID string
	RawResponse    string

	Refund *Refund

	CreatedAt time.Time
	UpdatedAt time.Time
}
