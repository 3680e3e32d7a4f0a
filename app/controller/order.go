package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/Topupio/game-topup-sub000/app/factory"
	"github.com/Topupio/game-topup-sub000/app/gateway"
	"github.com/Topupio/game-topup-sub000/app/mapper"
	"github.com/Topupio/game-topup-sub000/app/pricing"
	"github.com/Topupio/game-topup-sub000/app/repository"
	"github.com/Topupio/game-topup-sub000/app/service"
	"github.com/Topupio/game-topup-sub000/app/types"
)

type OrderController struct {
	orderService   *service.OrderService
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewOrderController(orderService *service.OrderService, paymentService *service.PaymentService) *OrderController {
	return &OrderController{
		orderService:   orderService,
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("orders-controller"),
	}
}

func (c *OrderController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *OrderController) CreateOrder(ctx echo.Context) error {
	req, err := types.NewCreateOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	order, err := c.orderService.CreateOrder(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrItemNotFound):
			return c.writeError(ctx, http.StatusNotFound, "item not found")
		case errors.Is(err, pricing.ErrPricingUnavailable):
			return c.writeError(ctx, http.StatusUnprocessableEntity, "no pricing configured for this variant")
		case errors.Is(err, service.ErrOrderCreationFailed):
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Order creation failed")
			return c.writeError(ctx, http.StatusInternalServerError, "order creation failed")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create order failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(order)})
}

func (c *OrderController) GetOrder(ctx echo.Context) error {
	id, err := types.OrderIDFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.orderService.GetOrder(ctx.Request().Context(), types.UserIDFromContext(ctx), id)
	if err != nil {
		return c.mapOrderError(ctx, err, "Get order failed")
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(order)})
}

func (c *OrderController) ListOrders(ctx echo.Context) error {
	userID := types.UserIDFromContext(ctx)
	if userID == "" {
		return c.writeError(ctx, http.StatusBadRequest, "user id is required")
	}

	orders, err := c.orderService.ListOrders(ctx.Request().Context(), userID, 0, 0)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List orders failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListOrdersResponse{Orders: mapper.OrdersToResponse(orders)})
}

func (c *OrderController) Pay(ctx echo.Context) error {
	id, err := types.OrderIDFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.paymentService.CreateIntent(ctx.Request().Context(), types.UserIDFromContext(ctx), id)
	if err != nil {
		return c.mapOrderError(ctx, err, "Create payment intent failed")
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(order)})
}

func (c *OrderController) Capture(ctx echo.Context) error {
	id, err := types.OrderIDFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.paymentService.Capture(ctx.Request().Context(), types.UserIDFromContext(ctx), id)
	if err != nil {
		if errors.Is(err, gateway.ErrInstrumentDeclined) {
			// The payer can retry with a different funding source; the order
			// stays pending.
			return c.writeError(ctx, http.StatusPaymentRequired, "payment instrument declined, try another funding source")
		}
		return c.mapOrderError(ctx, err, "Capture failed")
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(order)})
}

func (c *OrderController) Transition(ctx echo.Context) error {
	id, err := types.OrderIDFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}
	req, err := types.NewTransitionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	order, err := c.orderService.Transition(ctx.Request().Context(), id, req)
	if err != nil {
		if errors.Is(err, service.ErrNoChange) {
			return c.writeError(ctx, http.StatusBadRequest, "nothing to change")
		}
		return c.mapOrderError(ctx, err, "Transition failed")
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(order)})
}

func (c *OrderController) Refund(ctx echo.Context) error {
	id, err := types.OrderIDFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}
	req, err := types.NewRefundRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.paymentService.Refund(ctx.Request().Context(), id, req.AmountCents(), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotPaid):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrNoCaptureFound):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			return c.mapOrderError(ctx, err, "Refund failed")
		}
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(order)})
}

func (c *OrderController) ListPayments(ctx echo.Context) error {
	id, err := types.OrderIDFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	payments, err := c.paymentService.ListPayments(ctx.Request().Context(), id)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List payments failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListPaymentsResponse{Payments: mapper.PaymentsToResponse(payments)})
}

func (c *OrderController) mapOrderError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		return c.writeError(ctx, http.StatusNotFound, "order not found")
	case errors.Is(err, service.ErrForbidden):
		return c.writeError(ctx, http.StatusForbidden, "order belongs to another user")
	case errors.Is(err, service.ErrAlreadyPaid):
		return c.writeError(ctx, http.StatusConflict, "order is already paid")
	case errors.Is(err, service.ErrInvalidState):
		return c.writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidRequest):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrVersionConflict):
		return c.writeError(ctx, http.StatusConflict, "order was updated concurrently, retry")
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *OrderController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
