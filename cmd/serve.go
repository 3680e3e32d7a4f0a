package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Topupio/game-topup-sub000/app/controller"
	"github.com/Topupio/game-topup-sub000/app/currency"
	"github.com/Topupio/game-topup-sub000/app/factory"
	"github.com/Topupio/game-topup-sub000/app/gateway"
	"github.com/Topupio/game-topup-sub000/app/repository"
	"github.com/Topupio/game-topup-sub000/app/service"
	"github.com/Topupio/game-topup-sub000/app/types"
	"github.com/Topupio/game-topup-sub000/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server for the storefront orders service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, services, cleanup := mustCreateServices()
	defer cleanup()

	orderController := controller.NewOrderController(services.orders, services.payments)
	webhookController := controller.NewWebhookController(services.payments)
	rateController := controller.NewRateController(services.currency)

	e := setupHTTPServer(orderController, webhookController, rateController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	orderController *controller.OrderController,
	webhookController *controller.WebhookController,
	rateController *controller.RateController,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"request_id": v.RequestID,
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", orderController.Health)

	// Signed gateway deliveries do not carry user headers, so the webhook
	// route stays outside the user-facing groups.
	e.POST("/webhooks/paypal", webhookController.HandlePayPal)

	e.GET("/rates", rateController.ListRates)

	orders := e.Group("/orders", requireUserID())
	orders.POST("", orderController.CreateOrder)
	orders.GET("", orderController.ListOrders)
	orders.GET("/:id", orderController.GetOrder)
	orders.POST("/:id/pay", orderController.Pay)
	orders.POST("/:id/capture", orderController.Capture)

	admin := e.Group("/admin")
	admin.POST("/orders/:id/status", orderController.Transition)
	admin.POST("/orders/:id/refund", orderController.Refund)
	admin.GET("/orders/:id/payments", orderController.ListPayments)
	admin.PUT("/rates/:currency", rateController.UpsertRate)
	admin.DELETE("/rates/:currency", rateController.DeleteRate)

	return e
}

func requireUserID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			userID := strings.TrimSpace(ctx.Request().Header.Get(types.HeaderUserID))
			if userID == "" {
				return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "x-user-id header is required"})
			}
			return next(ctx)
		}
	}
}

type serviceSet struct {
	orders   *service.OrderService
	payments *service.PaymentService
	currency *currency.Service
}

func mustCreateServices() (*config.Config, *serviceSet, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	rateRepo := repository.NewExchangeRateRepository(db)

	currencyService := currency.NewService(rateRepo, factory.NewModuleLogger("currency"))

	paypalGateway := gateway.NewPayPalGateway(gateway.PayPalConfig{
		ClientID:    cfg.PayPal.ClientID,
		Secret:      cfg.PayPal.Secret,
		BaseURL:     cfg.PayPal.BaseURL,
		WebhookID:   cfg.PayPal.WebhookID,
		HTTPTimeout: cfg.PayPal.HTTPTimeout,
	})

	orderService := service.NewOrderService(
		orderRepo,
		catalogRepo,
		currencyService,
		factory.NewModuleLogger("orders-service"),
	)
	paymentService := service.NewPaymentService(
		orderRepo,
		paymentRepo,
		paypalGateway,
		currencyService,
		cfg.Payments,
		factory.NewModuleLogger("payments-service"),
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, &serviceSet{
		orders:   orderService,
		payments: paymentService,
		currency: currencyService,
	}, cleanup
}

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	return nil
}
