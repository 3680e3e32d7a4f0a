package gateway

import (
	"encoding/json"
	"strings"
)

type EventType string

const (
	EventCaptureCompleted EventType = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied    EventType = "PAYMENT.CAPTURE.DENIED"
	EventCaptureRefunded  EventType = "PAYMENT.CAPTURE.REFUNDED"
)

// WebhookEvent is the normalized form of a gateway notification. Fields are
// populated when the payload carries them; unrecognized event types keep the
// raw type string and nothing else.
type WebhookEvent struct {
	EventID        string
	Type           EventType
	CaptureID      string
	GatewayOrderID string
	ReferenceCode  string
	RefundID       string
	AmountValue    string
	Currency       string
	RawResource    string
}

// Recognized reports whether the event type drives a state transition.
func (e *WebhookEvent) Recognized() bool {
	switch e.Type {
	case EventCaptureCompleted, EventCaptureDenied, EventCaptureRefunded:
		return true
	default:
		return false
	}
}

// ParseWebhookEvent decodes a PayPal webhook payload. Parsing is independent
// of signature verification, which must have succeeded first.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var payload struct {
		ID       string `json:"id"`
		Type     string `json:"event_type"`
		Resource struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Amount struct {
				Value        string `json:"value"`
				CurrencyCode string `json:"currency_code"`
			} `json:"amount"`
			CustomID          string `json:"custom_id"`
			SupplementaryData struct {
				RelatedIDs struct {
					OrderID string `json:"order_id"`
				} `json:"related_ids"`
			} `json:"supplementary_data"`
			Links []struct {
				Href string `json:"href"`
				Rel  string `json:"rel"`
			} `json:"links"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	rawResource, _ := json.Marshal(payload.Resource)

	event := &WebhookEvent{
		EventID:        strings.TrimSpace(payload.ID),
		Type:           EventType(strings.TrimSpace(payload.Type)),
		GatewayOrderID: strings.TrimSpace(payload.Resource.SupplementaryData.RelatedIDs.OrderID),
		ReferenceCode:  strings.TrimSpace(payload.Resource.CustomID),
		AmountValue:    strings.TrimSpace(payload.Resource.Amount.Value),
		Currency:       strings.TrimSpace(payload.Resource.Amount.CurrencyCode),
		RawResource:    string(rawResource),
	}

	resourceID := strings.TrimSpace(payload.Resource.ID)
	switch event.Type {
	case EventCaptureRefunded:
		// The resource is the refund; the owning capture is linked under
		// rel=up.
		event.RefundID = resourceID
		for _, link := range payload.Resource.Links {
			if strings.EqualFold(link.Rel, "up") {
				event.CaptureID = lastPathSegment(link.Href)
				break
			}
		}
	default:
		event.CaptureID = resourceID
	}

	return event, nil
}

func lastPathSegment(href string) string {
	href = strings.TrimRight(strings.TrimSpace(href), "/")
	if idx := strings.LastIndexByte(href, '/'); idx >= 0 {
		return href[idx+1:]
	}
	return href
}
