package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/Topupio/game-topup-sub000/app/entity"
	"github.com/Topupio/game-topup-sub000/app/pricing"
	"github.com/Topupio/game-topup-sub000/app/repository"
	"github.com/Topupio/game-topup-sub000/app/types"
)

const (
	defaultListLimit = int32(50)

	// Order-code uniqueness is best effort: regenerate and re-insert up to
	// three times, then give up with a typed terminal failure.
	orderCodeAttempts = 3
)

type orderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	Update(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id uint64) (*entity.Order, error)
	FindByCode(ctx context.Context, code string) (*entity.Order, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*entity.Order, error)
	FindPendingByCode(ctx context.Context, code string) (*entity.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*entity.Order, error)
}

type catalogRepository interface {
	FindVariant(ctx context.Context, itemID, variantID string) (*entity.ItemVariant, error)
	FindLegacyProduct(ctx context.Context, productID, itemID string) (*entity.LegacyProduct, error)
}

type rateProvider interface {
	Rates(ctx context.Context) map[string]float64
}

type OrderService struct {
	orderRepo orderRepository
	catalog   catalogRepository
	currency  rateProvider
	logger    logrus.FieldLogger
}

func NewOrderService(
	orderRepo orderRepository,
	catalog catalogRepository,
	currency rateProvider,
	logger logrus.FieldLogger,
) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		catalog:   catalog,
		currency:  currency,
		logger:    logger,
	}
}

// CreateOrder prices the requested variant and persists a pending order with
// a freshly generated order code. The priced snapshot is frozen here and
// never mutated afterwards.
func (s *OrderService) CreateOrder(ctx context.Context, req *types.CreateOrderRequest) (*entity.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	quote, err := s.resolveQuote(ctx, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &entity.Order{
		UserID:         req.UserID,
		ItemID:         req.ItemID,
		VariantID:      req.VariantID,
		OrderStatus:    entity.OrderPending,
		PaymentStatus:  entity.PaymentPending,
		AmountCents:    quote.AmountCents,
		UnitPriceCents: quote.UnitPriceCents,
		Quantity:       req.Quantity,
		Currency:       quote.Currency,
		Snapshot:       quote.Snapshot,
		UserInputs:     toUserInputs(req.UserInputs),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	order.AppendTracking(entity.OrderPending, "Order placed successfully. Awaiting payment.", now)

	backoff := retry.WithMaxRetries(orderCodeAttempts-1, retry.NewConstant(5*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		order.Code = newOrderCode(now)
		if err := s.orderRepo.Create(ctx, order); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			s.logger.WithField("item_id", req.ItemID).Error("Order code generation exhausted retries")
			return nil, ErrOrderCreationFailed
		}
		return nil, err
	}

	return order, nil
}

func (s *OrderService) resolveQuote(ctx context.Context, req *types.CreateOrderRequest) (*pricing.Quote, error) {
	var rates map[string]float64
	if req.DisplayCurrency != "" {
		rates = s.currency.Rates(ctx)
	}

	variant, err := s.catalog.FindVariant(ctx, req.ItemID, req.VariantID)
	if err != nil {
		return nil, err
	}
	if variant != nil {
		return pricing.Resolve(variant, req.Quantity, req.Currency, req.DisplayCurrency, rates)
	}

	// Items published before the variant catalog existed resolve through the
	// legacy product path.
	product, err := s.catalog.FindLegacyProduct(ctx, req.VariantID, req.ItemID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrItemNotFound
	}
	return pricing.ResolveLegacy(product, req.Quantity)
}

func (s *OrderService) GetOrder(ctx context.Context, userID string, id uint64) (*entity.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
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

func (s *OrderService) ListOrders(ctx context.Context, userID string, limit, offset int32) ([]*entity.Order, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.orderRepo.ListByUser(ctx, userID, limit, offset)
}

// Transition applies an operator status update. Only provided fields are
// applied; every accepted orderStatus change appends exactly one tracking
// entry. Terminal orders accept notes but no status changes.
func (s *OrderService) Transition(ctx context.Context, orderID uint64, req *types.TransitionRequest) (*entity.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	nextOrderStatus := entity.OrderStatus(req.OrderStatus)
	nextPaymentStatus := entity.PaymentStatus(req.PaymentStatus)

	orderStatusChanges := req.OrderStatus != "" && nextOrderStatus != order.OrderStatus
	paymentStatusChanges := req.PaymentStatus != "" && nextPaymentStatus != order.PaymentStatus
	noteChanges := req.AdminNote != "" && (order.AdminNote == nil || *order.AdminNote != req.AdminNote)

	if !orderStatusChanges && !paymentStatusChanges && !noteChanges {
		return nil, ErrNoChange
	}

	if entity.TerminalOrderStatus(order.OrderStatus) && (orderStatusChanges || paymentStatusChanges) {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidState, order.OrderStatus)
	}
	if orderStatusChanges && !validOrderTransition(order.OrderStatus, nextOrderStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, order.OrderStatus, nextOrderStatus)
	}
	if paymentStatusChanges && !validPaymentTransition(order.PaymentStatus, nextPaymentStatus) {
		return nil, fmt.Errorf("%w: payment %s -> %s", ErrInvalidState, order.PaymentStatus, nextPaymentStatus)
	}

	now := time.Now().UTC()
	if noteChanges {
		note := req.AdminNote
		order.AdminNote = &note
	}
	if paymentStatusChanges {
		order.PaymentStatus = nextPaymentStatus
	}
	if orderStatusChanges {
		order.OrderStatus = nextOrderStatus
		message := fmt.Sprintf("Order status changed to %s.", nextOrderStatus)
		if req.AdminNote != "" {
			message = fmt.Sprintf("Order status changed to %s. Note: %s", nextOrderStatus, req.AdminNote)
		}
		order.AppendTracking(nextOrderStatus, message, now)
	}
	order.UpdatedAt = now

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// validOrderTransition encodes the fulfillment state machine. cancelled and
// failed stay reachable from any non-terminal state.
func validOrderTransition(from, to entity.OrderStatus) bool {
	if entity.TerminalOrderStatus(from) {
		return false
	}
	switch to {
	case entity.OrderCancelled, entity.OrderFailed:
		return true
	case entity.OrderPaid:
		return from == entity.OrderPending
	case entity.OrderProcessing:
		return from == entity.OrderPaid
	case entity.OrderCompleted:
		return from == entity.OrderProcessing
	default:
		return false
	}
}

func validPaymentTransition(from, to entity.PaymentStatus) bool {
	switch from {
	case entity.PaymentPending:
		return to == entity.PaymentPaid || to == entity.PaymentFailed
	case entity.PaymentPaid:
		return to == entity.PaymentRefunded
	default:
		return false
	}
}

func toUserInputs(inputs []types.UserInputRequest) []entity.UserInput {
	result := make([]entity.UserInput, 0, len(inputs))
	for _, input := range inputs {
		result = append(result, entity.UserInput{
			Label: strings.TrimSpace(input.Label),
			Value: strings.TrimSpace(input.Value),
		})
	}
	return result
}

const orderCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// newOrderCode combines a date component with a random component. Collisions
// are astronomically unlikely but not impossible, hence the retry above.
func newOrderCode(now time.Time) string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = orderCodeAlphabet[int(b)%len(orderCodeAlphabet)]
	}
	return fmt.Sprintf("TPU-%s-%s", now.Format("060102"), string(buf))
}
