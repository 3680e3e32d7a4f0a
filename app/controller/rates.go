package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/Topupio/game-topup-sub000/app/currency"
	"github.com/Topupio/game-topup-sub000/app/factory"
	"github.com/Topupio/game-topup-sub000/app/repository"
	"github.com/Topupio/game-topup-sub000/app/types"
)

type RateController struct {
	currencyService *currency.Service
	logger          logrus.FieldLogger
}

func NewRateController(currencyService *currency.Service) *RateController {
	return &RateController{
		currencyService: currencyService,
		logger:          factory.NewModuleLogger("rates-controller"),
	}
}

func (c *RateController) ListRates(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.RatesResponse{
		Base:  currency.ReferenceCurrency,
		Rates: c.currencyService.Rates(ctx.Request().Context()),
	})
}

func (c *RateController) UpsertRate(ctx echo.Context) error {
	req, err := types.NewUpsertRateRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	code := strings.ToUpper(strings.TrimSpace(ctx.Param("currency")))
	if err := c.currencyService.SetOverride(ctx.Request().Context(), code, req.Rate); err != nil {
		if errors.Is(err, currency.ErrInvalidRate) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Upsert rate failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "rate saved"})
}

func (c *RateController) DeleteRate(ctx echo.Context) error {
	code := strings.ToUpper(strings.TrimSpace(ctx.Param("currency")))
	if err := c.currencyService.DeleteOverride(ctx.Request().Context(), code); err != nil {
		switch {
		case errors.Is(err, currency.ErrInvalidRate):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrRateNotFound):
			return c.writeError(ctx, http.StatusNotFound, "no override for this currency")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Delete rate failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "rate override removed"})
}

func (c *RateController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
