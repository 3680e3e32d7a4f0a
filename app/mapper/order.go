package mapper

import (
	"github.com/Topupio/game-topup-sub000/app/entity"
	"github.com/Topupio/game-topup-sub000/app/money"
	"github.com/Topupio/game-topup-sub000/app/types"
)

func OrderToResponse(order *entity.Order) *types.OrderResponse {
	if order == nil {
		return nil
	}

	response := &types.OrderResponse{
		ID:            order.ID,
		Code:          order.Code,
		ItemID:        order.ItemID,
		VariantID:     order.VariantID,
		OrderStatus:   string(order.OrderStatus),
		PaymentStatus: string(order.PaymentStatus),
		Amount:        money.FormatCents(order.AmountCents),
		UnitPrice:     money.FormatCents(order.UnitPriceCents),
		Quantity:      order.Quantity,
		Currency:      order.Currency,
		Snapshot:      snapshotToResponse(order.Snapshot),
		PaymentInfo: types.PaymentInfoResponse{
			Gateway:       order.PaymentInfo.Gateway,
			TransactionID: order.PaymentInfo.TransactionID,
		},
		Tracking:  make([]types.TrackingEntryResponse, 0, len(order.Tracking)),
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}

	if order.AdminNote != nil {
		response.AdminNote = *order.AdminNote
	}
	for _, entry := range order.Tracking {
		response.Tracking = append(response.Tracking, types.TrackingEntryResponse{
			Status:    string(entry.Status),
			Message:   entry.Message,
			Timestamp: entry.Timestamp,
		})
	}

	return response
}

func OrdersToResponse(orders []*entity.Order) []*types.OrderResponse {
	items := make([]*types.OrderResponse, 0, len(orders))
	for _, order := range orders {
		items = append(items, OrderToResponse(order))
	}
	return items
}

func PaymentToResponse(payment *entity.Payment) *types.PaymentResponse {
	if payment == nil {
		return nil
	}

	response := &types.PaymentResponse{
		ID:            payment.ID,
		OrderID:       payment.OrderID,
		Gateway:       payment.Gateway,
		Status:        string(payment.Status),
		Amount:        money.FormatCents(payment.AmountCents),
		Currency:      payment.Currency,
		TransactionID: payment.TransactionID,
		CreatedAt:     payment.CreatedAt,
	}

	if payment.Refund != nil {
		response.Refund = &types.RefundResponse{
			Refunded:   payment.Refund.Refunded,
			RefundID:   payment.Refund.RefundID,
			Amount:     money.FormatCents(payment.Refund.AmountCents),
			Reason:     payment.Refund.Reason,
			RefundedAt: payment.Refund.RefundedAt,
		}
	}

	return response
}

func PaymentsToResponse(payments []*entity.Payment) []*types.PaymentResponse {
	items := make([]*types.PaymentResponse, 0, len(payments))
	for _, payment := range payments {
		items = append(items, PaymentToResponse(payment))
	}
	return items
}

func snapshotToResponse(snapshot entity.ProductSnapshot) types.ProductSnapshotResponse {
	response := types.ProductSnapshotResponse{
		Name:         snapshot.Name,
		UnitPrice:    money.FormatCents(snapshot.UnitPriceCents),
		Quantity:     snapshot.Quantity,
		DeliveryTime: snapshot.DeliveryTime,
	}

	if snapshot.DiscountedPriceCents > 0 {
		response.DiscountedPrice = money.FormatCents(snapshot.DiscountedPriceCents)
	}
	if snapshot.OriginalCurrency != "" {
		response.OriginalCurrency = snapshot.OriginalCurrency
		response.OriginalUnitPrice = money.FormatCents(snapshot.OriginalUnitPriceCents)
		response.OriginalTotalAmount = money.FormatCents(snapshot.OriginalTotalCents)
		if snapshot.ConversionRateTo > 0 {
			response.ConversionRate = snapshot.ConversionRateFrom / snapshot.ConversionRateTo
		}
	}

	return response
}
