package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	unsetEnv(t, "MYSQL_DSN")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MYSQL_DSN")
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/orders?parseTime=true")
	setEnv(t, "APP_SERVICE_NAME", "orders-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_MAX_IDLE_CONNS", "8")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "PAYPAL_CLIENT_ID", "client-id")
	setEnv(t, "PAYPAL_SECRET", "client-secret")
	setEnv(t, "PAYPAL_WEBHOOK_ID", "WH-123")
	setEnv(t, "PAYPAL_HTTP_TIMEOUT_SECONDS", "7")
	setEnv(t, "PAYMENTS_SETTLEMENT_CURRENCY", "EUR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "orders-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" {
		t.Fatalf("unexpected http port: %s", cfg.HTTP.Port)
	}
	if cfg.MySQL.MaxOpenConns != 20 || cfg.MySQL.MaxIdleConns != 8 {
		t.Fatalf("unexpected mysql pool config: %+v", cfg.MySQL)
	}
	if cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql lifetime: %v", cfg.MySQL.ConnMaxLifetime)
	}
	if cfg.PayPal.ClientID != "client-id" || cfg.PayPal.Secret != "client-secret" {
		t.Fatal("unexpected paypal credentials")
	}
	if cfg.PayPal.WebhookID != "WH-123" {
		t.Fatalf("unexpected paypal webhook id: %s", cfg.PayPal.WebhookID)
	}
	if cfg.PayPal.HTTPTimeout != 7*time.Second {
		t.Fatalf("unexpected paypal timeout: %v", cfg.PayPal.HTTPTimeout)
	}
	if cfg.Payments.SettlementCurrency != "EUR" {
		t.Fatalf("unexpected settlement currency: %s", cfg.Payments.SettlementCurrency)
	}
}

func TestLoadFallsBackOnDefaults(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/orders?parseTime=true")
	unsetEnv(t, "HTTP_HOST")
	unsetEnv(t, "HTTP_PORT")
	unsetEnv(t, "PAYPAL_BASE_URL")
	unsetEnv(t, "PAYMENTS_SETTLEMENT_CURRENCY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.HTTP.Host != "0.0.0.0" || cfg.HTTP.Port != "8080" {
		t.Fatalf("unexpected http defaults: %s:%s", cfg.HTTP.Host, cfg.HTTP.Port)
	}
	if cfg.PayPal.BaseURL != "https://api-m.sandbox.paypal.com" {
		t.Fatalf("unexpected paypal base url: %s", cfg.PayPal.BaseURL)
	}
	if cfg.Payments.SettlementCurrency != "USD" {
		t.Fatalf("unexpected settlement currency: %s", cfg.Payments.SettlementCurrency)
	}
}
