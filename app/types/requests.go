package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Topupio/game-topup-sub000/app/entity"
	"github.com/Topupio/game-topup-sub000/app/money"
)

// HeaderUserID carries the authenticated user id, set by the edge proxy.
const HeaderUserID = "X-User-ID"

type UserInputRequest struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type CreateOrderRequest struct {
	UserID          string             `json:"-"`
	ItemID          string             `json:"itemId"`
	VariantID       string             `json:"variantId"`
	Quantity        int64              `json:"quantity"`
	Currency        string             `json:"currency"`
	DisplayCurrency string             `json:"displayCurrency"`
	UserInputs      []UserInputRequest `json:"userInputs"`
}

func NewCreateOrderRequestFromContext(ctx echo.Context) (*CreateOrderRequest, error) {
	var body CreateOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.UserID = strings.TrimSpace(ctx.Request().Header.Get(HeaderUserID))
	body.ItemID = strings.TrimSpace(body.ItemID)
	body.VariantID = strings.TrimSpace(body.VariantID)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.DisplayCurrency = strings.ToUpper(strings.TrimSpace(body.DisplayCurrency))

	return &body, nil
}

func (r *CreateOrderRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("user id is required")
	}
	if r.ItemID == "" {
		return errors.New("itemId is required")
	}
	if r.VariantID == "" {
		return errors.New("variantId is required")
	}
	if r.Quantity <= 0 {
		return errors.New("quantity must be a positive integer")
	}
	if r.Currency != "" && len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	if r.DisplayCurrency != "" && len(r.DisplayCurrency) != 3 {
		return errors.New("displayCurrency must be 3 letters")
	}
	for _, input := range r.UserInputs {
		if strings.TrimSpace(input.Label) == "" {
			return errors.New("every user input needs a label")
		}
		if strings.TrimSpace(input.Value) == "" {
			return errors.New("every user input needs a value")
		}
	}
	return nil
}

type TransitionRequest struct {
	OrderStatus   string `json:"orderStatus"`
	PaymentStatus string `json:"paymentStatus"`
	AdminNote     string `json:"adminNote"`
}

func NewTransitionRequestFromContext(ctx echo.Context) (*TransitionRequest, error) {
	var body TransitionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.OrderStatus = strings.ToLower(strings.TrimSpace(body.OrderStatus))
	body.PaymentStatus = strings.ToLower(strings.TrimSpace(body.PaymentStatus))
	body.AdminNote = strings.TrimSpace(body.AdminNote)

	return &body, nil
}

func (r *TransitionRequest) Validate() error {
	if r.OrderStatus == "" && r.PaymentStatus == "" && r.AdminNote == "" {
		return errors.New("nothing to update")
	}
	if r.OrderStatus != "" && !knownOrderStatus(entity.OrderStatus(r.OrderStatus)) {
		return errors.New("unknown orderStatus")
	}
	if r.PaymentStatus != "" && !knownPaymentStatus(entity.PaymentStatus(r.PaymentStatus)) {
		return errors.New("unknown paymentStatus")
	}
	return nil
}

type RefundRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

func NewRefundRequestFromContext(ctx echo.Context) (*RefundRequest, error) {
	var body RefundRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Amount = strings.TrimSpace(body.Amount)
	body.Reason = strings.TrimSpace(body.Reason)

	return &body, nil
}

func (r *RefundRequest) Validate() error {
	if r.Amount == "" {
		return nil
	}
	cents, err := money.ParseCents(r.Amount)
	if err != nil || cents <= 0 {
		return errors.New("amount must be a positive decimal with at most 2 fraction digits")
	}
	return nil
}

// AmountCents returns the requested refund amount, nil for a full refund.
func (r *RefundRequest) AmountCents() *int64 {
	if r.Amount == "" {
		return nil
	}
	cents, err := money.ParseCents(r.Amount)
	if err != nil || cents <= 0 {
		return nil
	}
	return &cents
}

type UpsertRateRequest struct {
	Rate float64 `json:"rate"`
}

func NewUpsertRateRequestFromContext(ctx echo.Context) (*UpsertRateRequest, error) {
	var body UpsertRateRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *UpsertRateRequest) Validate() error {
	if r.Rate <= 0 {
		return errors.New("rate must be > 0")
	}
	return nil
}

func OrderIDFromContext(ctx echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid order id")
	}
	return id, nil
}

func UserIDFromContext(ctx echo.Context) string {
	return strings.TrimSpace(ctx.Request().Header.Get(HeaderUserID))
}

func knownOrderStatus(status entity.OrderStatus) bool {
	switch status {
	case entity.OrderPending, entity.OrderPaid, entity.OrderProcessing,
		entity.OrderCompleted, entity.OrderCancelled, entity.OrderFailed:
		return true
	default:
		return false
	}
}

func knownPaymentStatus(status entity.PaymentStatus) bool {
	switch status {
	case entity.PaymentPending, entity.PaymentPaid, entity.PaymentFailed, entity.PaymentRefunded:
		return true
	default:
		return false
	}
}
