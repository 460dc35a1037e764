package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/hamropasal/storefront/internal/logging"
	"github.com/hamropasal/storefront/internal/models"
	"github.com/hamropasal/storefront/internal/mykafka"
)

const (
	TopicOrderEvents        = "order_events"
	TopicProductEvents      = "product_events"
	TopicWalletEvents       = "wallet_events"
	TopicNotificationEvents = "notification_events"
)

// Notifier publishes fire-and-forget events. Delivery failures are
// logged and never surfaced to the caller; a nil Notifier or nil
// Producer is a no-op so tests and partial deployments work unchanged.
type Notifier struct {
	Producer *mykafka.Producer
}

func (n *Notifier) publish(ctx context.Context, topic, key string, event map[string]any) {
	if n == nil || n.Producer == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := n.Producer.PublishEvent(pubCtx, topic, key, event); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "topic", topic, "error", err)
	}
}

func (n *Notifier) OrderPlaced(ctx context.Context, order *models.Order) {
	n.publish(ctx, TopicOrderEvents, fmt.Sprint(order.UserID), map[string]any{
		"type":           "order_placed",
		"order_number":   order.Number,
		"user_id":        order.UserID,
		"final_amount":   order.FinalAmount,
		"payment_method": order.PaymentMethod,
		"status":         order.Status,
	})
}

func (n *Notifier) OrderStatusChanged(ctx context.Context, order *models.Order) {
	event := map[string]any{
		"type":         "order_status_changed",
		"order_number": order.Number,
		"user_id":      order.UserID,
		"status":       order.Status,
	}
	n.publish(ctx, TopicOrderEvents, fmt.Sprint(order.UserID), event)
	n.publish(ctx, TopicNotificationEvents, fmt.Sprint(order.UserID), event)
}

func (n *Notifier) TopupResolved(ctx context.Context, req *models.TopupRequest) {
	event := map[string]any{
		"type":       "topup_resolved",
		"request_id": req.ID,
		"user_id":    req.UserID,
		"amount":     req.Amount,
		"status":     req.Status,
	}
	n.publish(ctx, TopicWalletEvents, fmt.Sprint(req.UserID), event)
	n.publish(ctx, TopicNotificationEvents, fmt.Sprint(req.UserID), event)
}

func (n *Notifier) ProductChanged(ctx context.Context, typ string, productID uint) {
	n.publish(ctx, TopicProductEvents, fmt.Sprint(productID), map[string]any{
		"type":       typ,
		"product_id": productID,
	})
}
