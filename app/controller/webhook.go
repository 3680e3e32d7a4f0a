package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/Topupio/game-topup-sub000/app/factory"
	"github.com/Topupio/game-topup-sub000/app/service"
	"github.com/Topupio/game-topup-sub000/app/types"
)

type WebhookController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewWebhookController(paymentService *service.PaymentService) *WebhookController {
	return &WebhookController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("webhook-controller"),
	}
}

// PayPal retries any delivery that does not come back 2xx, so every outcome
// after signature verification has been attempted is acknowledged with 200.
// A rejected signature mutates nothing and is only logged; internal faults
// are likewise logged and swallowed here.
func (c *WebhookController) HandlePayPal(ctx echo.Context) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "unreadable body"})
	}

	err = c.paymentService.HandleWebhook(ctx.Request().Context(), ctx.Request().Header, body)
	if err != nil {
		if errors.Is(err, service.ErrWebhookRejected) {
			factory.LoggerWithContext(c.logger, ctx).Warn("Webhook signature verification failed")
		} else {
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Webhook processing failed")
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "received"})
}
