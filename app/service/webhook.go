package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Topupio/game-topup-sub000/app/entity"
	"github.com/Topupio/game-topup-sub000/app/gateway"
	"github.com/Topupio/game-topup-sub000/app/money"
)

// HandleWebhook processes one asynchronous gateway notification. Delivery is
// at least once and races arbitrarily with the synchronous capture call, so
// every branch must tolerate replays. The caller acknowledges the transport
// regardless of the returned error; an invalid signature fails closed before
// any state is touched.
func (s *PaymentService) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	verified, err := s.gw.VerifyWebhook(ctx, headers, body)
	if err != nil {
		return fmt.Errorf("%w: signature verification failed: %s", ErrWebhookRejected, err.Error())
	}
	if !verified {
		return fmt.Errorf("%w: invalid signature", ErrWebhookRejected)
	}

	event, err := gateway.ParseWebhookEvent(body)
	if err != nil {
		return fmt.Errorf("%w: unparseable payload: %s", ErrWebhookRejected, err.Error())
	}

	logger := s.logger.WithFields(map[string]interface{}{
		"event_id":   event.EventID,
		"event_type": string(event.Type),
	})

	switch event.Type {
	case gateway.EventCaptureCompleted:
		return s.handleCaptureCompleted(ctx, event)
	case gateway.EventCaptureDenied:
		return s.handleCaptureDenied(ctx, event)
	case gateway.EventCaptureRefunded:
		return s.handleCaptureRefunded(ctx, event)
	default:
		logger.Info("Ignoring unrecognized webhook event")
		return nil
	}
}

func (s *PaymentService) handleCaptureCompleted(ctx context.Context, event *gateway.WebhookEvent) error {
	order, err := s.locateOrder(ctx, event)
	if err != nil {
		return err
	}
	if order == nil {
		s.logger.WithField("event_id", event.EventID).Warn("Capture-completed webhook matched no order")
		return nil
	}
	if order.PaymentStatus == entity.PaymentPaid {
		// The synchronous capture path commits the order before the audit
		// insert; if that insert was lost, redelivery of the matching capture
		// event recreates it. The dedupe guard keeps replays to one record.
		if event.CaptureID != "" && event.CaptureID == order.PaymentInfo.TransactionID {
			return s.recordSuccessPayment(ctx, order, captureOutcome{
				CaptureID:      event.CaptureID,
				GatewayOrderID: event.GatewayOrderID,
				AmountValue:    event.AmountValue,
				Currency:       event.Currency,
				RawResponse:    event.RawResource,
			}, time.Now().UTC())
		}
		return nil
	}
	if order.PaymentStatus != entity.PaymentPending {
		return nil
	}

	_, err = s.settleCapture(ctx, order.ID, captureOutcome{
		CaptureID:      event.CaptureID,
		GatewayOrderID: event.GatewayOrderID,
		AmountValue:    event.AmountValue,
		Currency:       event.Currency,
		RawResponse:    event.RawResource,
	})
	if errors.Is(err, ErrInvalidState) {
		// A racing observer resolved the order first.
		return nil
	}
	return err
}

func (s *PaymentService) handleCaptureDenied(ctx context.Context, event *gateway.WebhookEvent) error {
	order, err := s.locateOrder(ctx, event)
	if err != nil {
		return err
	}
	if order == nil || order.PaymentStatus != entity.PaymentPending {
		return nil
	}

	_, err = s.failCapture(ctx, order.ID, event.CaptureID, event.GatewayOrderID, "DENIED", event.RawResource)
	return err
}

func (s *PaymentService) handleCaptureRefunded(ctx context.Context, event *gateway.WebhookEvent) error {
	if event.CaptureID == "" {
		return nil
	}

	payment, err := s.paymentRepo.FindByTransactionID(ctx, event.CaptureID)
	if err != nil {
		return err
	}
	if payment == nil {
		s.logger.WithField("event_id", event.EventID).Warn("Capture-refunded webhook matched no payment")
		return nil
	}
	if payment.Refund != nil && payment.Refund.Refunded {
		return nil
	}

	refundCents := payment.AmountCents
	if parsed, err := money.ParseCents(event.AmountValue); err == nil && parsed > 0 {
		refundCents = parsed
	}

	now := time.Now().UTC()
	if err := s.applyRefund(ctx, payment, event.RefundID, refundCents, "Refunded by gateway.", now); err != nil {
		return err
	}

	_, err = s.cascadeRefundToOrder(ctx, payment.OrderID, "Refunded by gateway.")
	return err
}

// locateOrder resolves a capture event to an order: first by the stored
// gateway transaction id (the capture id after settlement, the intent id
// before), then by the reference code among orders still pending.
func (s *PaymentService) locateOrder(ctx context.Context, event *gateway.WebhookEvent) (*entity.Order, error) {
	for _, transactionID := range []string{event.CaptureID, event.GatewayOrderID} {
		if strings.TrimSpace(transactionID) == "" {
			continue
		}
		order, err := s.orderRepo.FindByTransactionID(ctx, transactionID)
		if err != nil {
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}

	if strings.TrimSpace(event.ReferenceCode) == "" {
		return nil, nil
	}
	return s.orderRepo.FindPendingByCode(ctx, event.ReferenceCode)
}
