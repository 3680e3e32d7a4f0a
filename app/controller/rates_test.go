package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/Topupio/game-topup-sub000/app/currency"
	"github.com/Topupio/game-topup-sub000/app/entity"
	"github.com/Topupio/game-topup-sub000/app/repository"
)

type controllerRateStore struct {
	overrides []*entity.ExchangeRate
	deleteErr error
}

func (s *controllerRateStore) ListOverrides(context.Context) ([]*entity.ExchangeRate, error) {
	return s.overrides, nil
}

func (s *controllerRateStore) Upsert(_ context.Context, rate *entity.ExchangeRate) error {
	s.overrides = append(s.overrides, rate)
	return nil
}

func (s *controllerRateStore) Delete(context.Context, string) error {
	return s.deleteErr
}

func newRateControllerForTest(store *controllerRateStore) *RateController {
	svc := currency.NewService(store, logrus.WithField("module", "rates-test"))
	return NewRateController(svc)
}

func TestListRates(t *testing.T) {
	ctrl := newRateControllerForTest(&controllerRateStore{overrides: []*entity.ExchangeRate{
		{BaseCurrency: "USD", TargetCurrency: "INR", Rate: 90},
	}})

	req, rec := jsonRequest(http.MethodGet, "/rates", "", "")
	ctx := echo.New().NewContext(req, rec)

	_ = ctrl.ListRates(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Base  string             `json:"base"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Base != "USD" {
		t.Fatalf("unexpected base: %s", payload.Base)
	}
	if payload.Rates["INR"] != 90 {
		t.Fatalf("expected override applied, got %v", payload.Rates["INR"])
	}
	if payload.Rates["USD"] != 1 {
		t.Fatalf("reference rate must be 1, got %v", payload.Rates["USD"])
	}
}

func TestUpsertRateValidation(t *testing.T) {
	store := &controllerRateStore{}
	ctrl := newRateControllerForTest(store)

	req, rec := jsonRequest(http.MethodPut, "/admin/rates/INR", `{"rate":-2}`, "")
	ctx := echo.New().NewContext(req, rec)
	ctx.SetParamNames("currency")
	ctx.SetParamValues("INR")

	_ = ctrl.UpsertRate(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(store.overrides) != 0 {
		t.Fatal("invalid rate must not be stored")
	}

	req, rec = jsonRequest(http.MethodPut, "/admin/rates/inr", `{"rate":90}`, "")
	ctx = echo.New().NewContext(req, rec)
	ctx.SetParamNames("currency")
	ctx.SetParamValues("inr")

	_ = ctrl.UpsertRate(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if len(store.overrides) != 1 || store.overrides[0].TargetCurrency != "INR" {
		t.Fatalf("unexpected stored override: %+v", store.overrides)
	}
}

func TestDeleteRateNotFound(t *testing.T) {
	ctrl := newRateControllerForTest(&controllerRateStore{deleteErr: repository.ErrRateNotFound})

	req, rec := jsonRequest(http.MethodDelete, "/admin/rates/JPY", "", "")
	ctx := echo.New().NewContext(req, rec)
	ctx.SetParamNames("currency")
	ctx.SetParamValues("JPY")

	_ = ctrl.DeleteRate(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
