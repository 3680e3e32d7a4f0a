package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrItemNotFound        = errors.New("item not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderCreationFailed = errors.New("order creation failed")
	ErrForbidden           = errors.New("order belongs to another user")
	ErrAlreadyPaid         = errors.New("order already paid")
	ErrInvalidState        = errors.New("invalid order state")
	ErrNotPaid             = errors.New("order is not paid")
	ErrNoCaptureFound      = errors.New("no capture found for order")
	ErrNoChange            = errors.New("nothing to change")
	ErrWebhookRejected     = errors.New("webhook rejected")
)
