// Package gateway adapts the external payment processor. The reconciliation
// engine only ever talks to the Gateway interface; the PayPal implementation
// is constructed and injected at startup.
package gateway

import (
	"context"
	"errors"
	"net/http"
)

// ErrInstrumentDeclined distinguishes a declined funding instrument from
// other gateway failures so the payer can be prompted to retry with a
// different funding source.
var ErrInstrumentDeclined = errors.New("payment instrument declined")

type Intent struct {
	IntentID string
	Status   string
}

type CaptureResult struct {
	Status      string
	CaptureID   string
	AmountValue string
	Currency    string
	RawResponse string
}

type RefundResult struct {
	RefundID    string
	Status      string
	RawResponse string
}

type Gateway interface {
	Name() string

	// CreateIntent registers a payment with the gateway in its settlement
	// currency. referenceCode travels with the intent and is echoed back on
	// webhook resources.
	CreateIntent(ctx context.Context, amountValue, currency, referenceCode string) (*Intent, error)

	// Capture finalizes money movement for a previously created intent.
	Capture(ctx context.Context, intentID string) (*CaptureResult, error)

	// Refund returns captured funds. amountValue empty means full refund.
	Refund(ctx context.Context, captureID, amountValue, currency, reason string) (*RefundResult, error)

	// VerifyWebhook checks an asynchronous notification against the gateway's
	// shared secret. A false result fails closed: the event must not reach
	// any state-mutating logic.
	VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (bool, error)
}
