package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Topupio/game-topup-sub000/app/currency"
	"github.com/Topupio/game-topup-sub000/app/entity"
	"github.com/Topupio/game-topup-sub000/app/gateway"
	"github.com/Topupio/game-topup-sub000/app/money"
	"github.com/Topupio/game-topup-sub000/app/repository"
	"github.com/Topupio/game-topup-sub000/config"
)

// transitionAttempts bounds the reload-and-retry loop around the version
// guard. Conflicts only come from capture/webhook/operator racing on the same
// order, so contention is tiny.
const transitionAttempts = 3

const gatewayCaptureCompleted = "COMPLETED"

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	SetRefund(ctx context.Context, payment *entity.Payment) error
	FindByTransactionID(ctx context.Context, transactionID string) (*entity.Payment, error)
	FindSuccessByOrderID(ctx context.Context, orderID uint64) (*entity.Payment, error)
	ListByOrderID(ctx context.Context, orderID uint64) ([]*entity.Payment, error)
}

// PaymentService drives the order ledger and the payment audit trail through
// create -> capture -> (webhook-confirm | webhook-deny) -> refund. The same
// real-world event can be observed twice, once by the paying client's capture
// call and once by the gateway webhook; the guards here make both observers
// idempotent.
type PaymentService struct {
	orderRepo   orderRepository
	paymentRepo paymentRepository
	gw          gateway.Gateway
	currency    rateProvider
	cfg         config.PaymentsConfig
	logger      logrus.FieldLogger
}

func NewPaymentService(
	orderRepo orderRepository,
	paymentRepo paymentRepository,
	gw gateway.Gateway,
	currencySvc rateProvider,
	cfg config.PaymentsConfig,
	logger logrus.FieldLogger,
) *PaymentService {
	if strings.TrimSpace(cfg.SettlementCurrency) == "" {
		cfg.SettlementCurrency = currency.ReferenceCurrency
	}

	return &PaymentService{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		gw:          gw,
		currency:    currencySvc,
		cfg:         cfg,
		logger:      logger,
	}
}

// CreateIntent registers a payment with the gateway for a pending order. The
// gateway is always quoted in its settlement currency; the order amount is
// converted when it was placed in another one. Repeated calls while pending
// simply create fresh intents — only capture moves money.
func (s *PaymentService) CreateIntent(ctx context.Context, userID string, orderID uint64) (*entity.Order, error) {
	order, err := s.loadOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	switch order.PaymentStatus {
	case entity.PaymentPending:
	case entity.PaymentPaid:
		return nil, ErrAlreadyPaid
	default:
		return nil, fmt.Errorf("%w: payment is %s", ErrInvalidState, order.PaymentStatus)
	}

	chargeCents := order.AmountCents
	if !strings.EqualFold(order.Currency, s.cfg.SettlementCurrency) {
		rates := s.currency.Rates(ctx)
		chargeCents = currency.Convert(chargeCents, order.Currency, s.cfg.SettlementCurrency, rates)
	}

	intent, err := s.gw.CreateIntent(ctx, money.FormatCents(chargeCents), s.cfg.SettlementCurrency, order.Code)
	if err != nil {
		return nil, err
	}

	order.PaymentInfo.Gateway = s.gw.Name()
	order.PaymentInfo.TransactionID = intent.IntentID
	order.UpdatedAt = time.Now().UTC()

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// Capture finalizes payment for the order. Returning the order unchanged when
// it is already paid is the primary defense against duplicate client capture
// calls. A declined funding instrument surfaces as a distinguished error and
// leaves the order untouched so the payer can retry another funding source.
func (s *PaymentService) Capture(ctx context.Context, userID string, orderID uint64) (*entity.Order, error) {
	order, err := s.loadOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if order.PaymentStatus == entity.PaymentPaid {
		return order, nil
	}
	if order.PaymentStatus != entity.PaymentPending {
		return nil, fmt.Errorf("%w: payment is %s", ErrInvalidState, order.PaymentStatus)
	}

	intentID := strings.TrimSpace(order.PaymentInfo.TransactionID)
	if intentID == "" {
		return nil, fmt.Errorf("%w: no payment intent created", ErrInvalidState)
	}

	result, err := s.gw.Capture(ctx, intentID)
	if err != nil {
		// The declined-instrument error passes through untouched; any other
		// gateway error likewise leaves the order pending and retryable.
		return nil, err
	}

	if result.Status == gatewayCaptureCompleted {
		return s.settleCapture(ctx, order.ID, captureOutcome{
			CaptureID:      result.CaptureID,
			GatewayOrderID: intentID,
			AmountValue:    result.AmountValue,
			Currency:       result.Currency,
			RawResponse:    result.RawResponse,
		})
	}

	return s.failCapture(ctx, order.ID, result.CaptureID, intentID, result.Status, result.RawResponse)
}

// Refund is the operator-initiated mirror of the webhook refund path. Without
// an amount the full captured amount is returned.
func (s *PaymentService) Refund(ctx context.Context, orderID uint64, amountCents *int64, reason string) (*entity.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.PaymentStatus != entity.PaymentPaid {
		return nil, fmt.Errorf("%w: payment is %s", ErrNotPaid, order.PaymentStatus)
	}
	if !strings.EqualFold(order.PaymentInfo.Gateway, s.gw.Name()) {
		return nil, fmt.Errorf("%w: order was not settled through %s", ErrNoCaptureFound, s.gw.Name())
	}

	payment, err := s.paymentRepo.FindSuccessByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.TransactionID == "" {
		return nil, ErrNoCaptureFound
	}

	refundCents := payment.AmountCents
	if amountCents != nil && *amountCents > 0 {
		refundCents = *amountCents
	}

	result, err := s.gw.Refund(ctx, payment.TransactionID, money.FormatCents(refundCents), payment.Currency, reason)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.applyRefund(ctx, payment, result.RefundID, refundCents, reason, now); err != nil {
		return nil, err
	}

	return s.cascadeRefundToOrder(ctx, order.ID, reason)
}

func (s *PaymentService) ListPayments(ctx context.Context, orderID uint64) ([]*entity.Payment, error) {
	return s.paymentRepo.ListByOrderID(ctx, orderID)
}

type captureOutcome struct {
	CaptureID      string
	GatewayOrderID string
	AmountValue    string
	Currency       string
	RawResponse    string
}

// settleCapture moves the order to paid and records the success payment,
// regardless of whether the synchronous capture response or the webhook got
// here first. The version guard serializes racing observers: the loser
// reloads, finds the order paid, and backs off without a second record.
func (s *PaymentService) settleCapture(ctx context.Context, orderID uint64, outcome captureOutcome) (*entity.Order, error) {
	for attempt := 0; attempt < transitionAttempts; attempt++ {
		order, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, ErrOrderNotFound
		}

		if order.PaymentStatus == entity.PaymentPaid {
			return order, nil
		}
		if order.PaymentStatus != entity.PaymentPending {
			return nil, fmt.Errorf("%w: payment is %s", ErrInvalidState, order.PaymentStatus)
		}

		now := time.Now().UTC()
		order.PaymentStatus = entity.PaymentPaid
		order.OrderStatus = entity.OrderPaid
		order.PaymentInfo.Gateway = s.gw.Name()
		order.PaymentInfo.TransactionID = outcome.CaptureID
		order.PaymentInfo.RawResponse = outcome.RawResponse
		order.AppendTracking(entity.OrderPaid, "Payment received. Order confirmed.", now)
		order.UpdatedAt = now

		if err := s.orderRepo.Update(ctx, order); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return nil, err
		}

		if err := s.recordSuccessPayment(ctx, order, outcome, now); err != nil {
			// The paid order stands; the gateway redelivers the
			// capture-completed webhook until the record lands, so the audit
			// trail recovers without rolling back the settlement.
			s.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to record success payment")
		}
		return order, nil
	}

	return nil, repository.ErrVersionConflict
}

// recordSuccessPayment creates the success audit record unless one already
// exists for the transaction id. The lookup plus the unique index together
// make at-least-once delivery safe.
func (s *PaymentService) recordSuccessPayment(ctx context.Context, order *entity.Order, outcome captureOutcome, now time.Time) error {
	if outcome.CaptureID != "" {
		existing, err := s.paymentRepo.FindByTransactionID(ctx, outcome.CaptureID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
	}

	amountCents := order.AmountCents
	paymentCurrency := order.Currency
	if parsed, err := money.ParseCents(outcome.AmountValue); err == nil && parsed > 0 {
		amountCents = parsed
		paymentCurrency = strings.ToUpper(outcome.Currency)
	}

	err := s.paymentRepo.Create(ctx, &entity.Payment{
		OrderID:        order.ID,
		UserID:         order.UserID,
		Gateway:        s.gw.Name(),
		Status:         entity.PaymentRecordSuccess,
		AmountCents:    amountCents,
		Currency:       paymentCurrency,
		TransactionID:  outcome.CaptureID,
		GatewayOrderID: outcome.GatewayOrderID,
		RawResponse:    outcome.RawResponse,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if errors.Is(err, repository.ErrDuplicateKey) {
		return nil
	}
	return err
}

// failCapture marks the payment failed without touching the fulfillment
// status and records a failed audit entry.
func (s *PaymentService) failCapture(ctx context.Context, orderID uint64, captureID, gatewayOrderID, gatewayStatus, raw string) (*entity.Order, error) {
	for attempt := 0; attempt < transitionAttempts; attempt++ {
		order, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, ErrOrderNotFound
		}
		if order.PaymentStatus != entity.PaymentPending {
			return order, nil
		}

		now := time.Now().UTC()
		order.PaymentStatus = entity.PaymentFailed
		order.PaymentInfo.Gateway = s.gw.Name()
		if captureID != "" {
			order.PaymentInfo.TransactionID = captureID
		}
		order.PaymentInfo.RawResponse = raw
		order.AppendTracking(order.OrderStatus, fmt.Sprintf("Payment failed (gateway status: %s).", gatewayStatus), now)
		order.UpdatedAt = now

		if err := s.orderRepo.Update(ctx, order); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return nil, err
		}

		createErr := s.paymentRepo.Create(ctx, &entity.Payment{
			OrderID:        order.ID,
			UserID:         order.UserID,
			Gateway:        s.gw.Name(),
			Status:         entity.PaymentRecordFailed,
			AmountCents:    order.AmountCents,
			Currency:       order.Currency,
			TransactionID:  captureID,
			GatewayOrderID: gatewayOrderID,
			RawResponse:    raw,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if createErr != nil && !errors.Is(createErr, repository.ErrDuplicateKey) {
			s.logger.WithError(createErr).WithField("order_id", order.ID).Error("Failed to record failed payment")
		}
		return order, nil
	}

	return nil, repository.ErrVersionConflict
}

func (s *PaymentService) applyRefund(ctx context.Context, payment *entity.Payment, refundID string, amountCents int64, reason string, now time.Time) error {
	payment.Status = entity.PaymentRecordRefunded
	payment.Refund = &entity.Refund{
		Refunded:    true,
		RefundID:    refundID,
		AmountCents: amountCents,
		Reason:      reason,
		RefundedAt:  &now,
	}
	payment.UpdatedAt = now
	return s.paymentRepo.SetRefund(ctx, payment)
}

// cascadeRefundToOrder moves the owning order to refunded/cancelled once the
// payment record carries the refund outcome.
func (s *PaymentService) cascadeRefundToOrder(ctx context.Context, orderID uint64, reason string) (*entity.Order, error) {
	for attempt := 0; attempt < transitionAttempts; attempt++ {
		order, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, ErrOrderNotFound
		}
		if order.PaymentStatus == entity.PaymentRefunded {
			return order, nil
		}

		now := time.Now().UTC()
		order.PaymentStatus = entity.PaymentRefunded
		order.OrderStatus = entity.OrderCancelled
		message := "Payment refunded. Order cancelled."
		if strings.TrimSpace(reason) != "" {
			message = fmt.Sprintf("Payment refunded. Order cancelled. Reason: %s", reason)
		}
		order.AppendTracking(entity.OrderCancelled, message, now)
		order.UpdatedAt = now

		if err := s.orderRepo.Update(ctx, order); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return nil, err
		}
		return order, nil
	}

	return nil, repository.ErrVersionConflict
}

func (s *PaymentService) loadOwnedOrder(ctx context.Context, userID string, orderID uint64) (*entity.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, ErrForbidden
	}
	return order, nil
}
