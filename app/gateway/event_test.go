package gateway

import "testing"

func TestParseWebhookEventCaptureCompleted(t *testing.T) {
	body := []byte(`{
		"id": "WH-EVT-1",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "CAP-1",
			"status": "COMPLETED",
			"amount": {"value": "24.00", "currency_code": "USD"},
			"custom_id": "TPU-260830-ABC234",
			"supplementary_data": {"related_ids": {"order_id": "PPORD-9"}}
		}
	}`)

	event, err := ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.Type != EventCaptureCompleted || !event.Recognized() {
		t.Fatalf("unexpected event type: %s", event.Type)
	}
	if event.EventID != "WH-EVT-1" {
		t.Fatalf("unexpected event id: %s", event.EventID)
	}
	if event.CaptureID != "CAP-1" {
		t.Fatalf("unexpected capture id: %s", event.CaptureID)
	}
	if event.GatewayOrderID != "PPORD-9" {
		t.Fatalf("unexpected gateway order id: %s", event.GatewayOrderID)
	}
	if event.ReferenceCode != "TPU-260830-ABC234" {
		t.Fatalf("unexpected reference code: %s", event.ReferenceCode)
	}
	if event.AmountValue != "24.00" || event.Currency != "USD" {
		t.Fatalf("unexpected amount: %s %s", event.AmountValue, event.Currency)
	}
}

func TestParseWebhookEventRefundResolvesCaptureFromUpLink(t *testing.T) {
	body := []byte(`{
		"id": "WH-EVT-2",
		"event_type": "PAYMENT.CAPTURE.REFUNDED",
		"resource": {
			"id": "REF-1",
			"status": "COMPLETED",
			"amount": {"value": "24.00", "currency_code": "USD"},
			"links": [
				{"href": "https://api-m.paypal.com/v2/payments/refunds/REF-1", "rel": "self"},
				{"href": "https://api-m.paypal.com/v2/payments/captures/CAP-1", "rel": "up"}
			]
		}
	}`)

	event, err := ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.RefundID != "REF-1" {
		t.Fatalf("unexpected refund id: %s", event.RefundID)
	}
	if event.CaptureID != "CAP-1" {
		t.Fatalf("expected capture id from rel=up link, got %s", event.CaptureID)
	}
}

func TestParseWebhookEventUnrecognizedType(t *testing.T) {
	event, err := ParseWebhookEvent([]byte(`{"id":"WH-EVT-3","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"PPORD-9"}}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.Recognized() {
		t.Fatalf("expected unrecognized type, got %s", event.Type)
	}
}

func TestParseWebhookEventInvalidJSON(t *testing.T) {
	if _, err := ParseWebhookEvent([]byte("not-json")); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}

func TestLastPathSegment(t *testing.T) {
	if got := lastPathSegment("https://api.example/v2/payments/captures/CAP-1/"); got != "CAP-1" {
		t.Fatalf("unexpected segment: %s", got)
	}
	if got := lastPathSegment("CAP-1"); got != "CAP-1" {
		t.Fatalf("unexpected segment: %s", got)
	}
}
