package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/service"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

func TransactionToProto(item *entity.PaymentTransaction) *types.Transaction {
	if item == nil {
		return nil
	}

	lineItems := make([]*types.LineItem, 0, len(item.Metadata.LineItems))
	for _, line := range item.Metadata.LineItems {
		lineItems = append(lineItems, &types.LineItem{
			ProductId: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice.InexactFloat64(),
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal.InexactFloat64(),
		})
	}

	return &types.Transaction{
		Id:            item.ID,
		SessionId:     item.SessionID,
		Amount:        item.Amount.InexactFloat64(),
		Currency:      item.Currency,
		Status:        string(item.Status),
		PaymentStatus: string(item.PaymentStatus),
		ItemCount:     int32(item.Metadata.ItemCount),
		LineItems:     lineItems,
		CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func TransactionsToProto(items []*entity.PaymentTransaction) []*types.Transaction {
	result := make([]*types.Transaction, 0, len(items))
	for _, item := range items {
		result = append(result, TransactionToProto(item))
	}
	return result
}

func CheckoutSessionToProto(session *service.CheckoutSession) *types.CreateCheckoutResponse {
	if session == nil || session.Transaction == nil {
		return nil
	}

	return &types.CreateCheckoutResponse{
		Url:           session.RedirectURL,
		SessionId:     session.Transaction.SessionID,
		Amount:        session.Transaction.Amount.InexactFloat64(),
		Currency:      session.Transaction.Currency,
		TransactionId: session.Transaction.ID,
	}
}

func ReconcileResultToProto(result *service.ReconcileResult) *types.CheckoutStatusResponse {
	if result == nil {
		return nil
	}

	return &types.CheckoutStatusResponse{
		Status:        string(result.Status),
		PaymentStatus: string(result.PaymentStatus),
		AmountTotal:   result.AmountTotal.InexactFloat64(),
		Currency:      result.Currency,
		TransactionId: result.TransactionID,
		Message:       result.Message(),
	}
}

func TransactionEventsToProto(sessionID string, items []*entity.TransactionEvent) *types.ListTransactionEventsResponse {
	events := make([]*types.TransactionEvent, 0, len(items))
	for _, item := range items {
		event := &types.TransactionEvent{
			EventType:        item.EventType,
			NewStatus:        string(item.NewStatus),
			NewPaymentStatus: string(item.NewPaymentStatus),
			CreatedAt:        item.CreatedAt.UTC().Format(time.RFC3339),
		}
		if item.OldStatus != nil {
			event.OldStatus = string(*item.OldStatus)
		}
		if item.OldPaymentStatus != nil {
			event.OldPaymentStatus = string(*item.OldPaymentStatus)
		}
		if item.Detail != nil {
			event.Detail = *item.Detail
		}
		events = append(events, event)
	}
	return &types.ListTransactionEventsResponse{SessionId: sessionID, Events: events}
}
