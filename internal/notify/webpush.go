package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/safedrive/reminderd/internal/domain"
	"github.com/safedrive/reminderd/internal/store"
)

// pushTTL is how long the push service may queue an undelivered message.
const pushTTL = 60

// PushSink delivers notifications to Web Push subscribers. The notification
// slot doubles as the push tag so a repeat emission replaces the displayed
// notification on the client.
type PushSink struct {
	repo            store.Repository
	vapidPublicKey  string
	vapidPrivateKey string
	subscriber      string
	logger          *slog.Logger
}

// NewPushSink creates a Web Push sink using the given VAPID key pair.
func NewPushSink(repo store.Repository, publicKey, privateKey, subscriber string, logger *slog.Logger) *PushSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushSink{
		repo:            repo,
		vapidPublicKey:  publicKey,
		vapidPrivateKey: privateKey,
		subscriber:      subscriber,
		logger:          logger,
	}
}

// Deliver pushes the notification to every registered subscription.
// Individual endpoint failures are logged and skipped; endpoints reported
// gone by the push service are forgotten.
func (s *PushSink) Deliver(ctx context.Context, n *domain.Notification) error {
	subs, err := s.repo.ListPushSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list push subscriptions: %w", err)
	}

	payload, err := json.Marshal(map[string]string{
		"title": n.Title,
		"body":  n.Body,
		"tag":   n.Slot,
	})
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	for _, sub := range subs {
		resp, err := webpush.SendNotification(payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}, &webpush.Options{
			Subscriber:      s.subscriber,
			VAPIDPublicKey:  s.vapidPublicKey,
			VAPIDPrivateKey: s.vapidPrivateKey,
			TTL:             pushTTL,
		})
		if err != nil {
			s.logger.Warn("Failed to send push notification", "endpoint", sub.Endpoint, "error", err)
			continue
		}
		if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
			s.logger.Debug("Forgetting gone push endpoint", "endpoint", sub.Endpoint, "status", resp.StatusCode)
			if err := s.repo.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
				s.logger.Debug("Failed to delete push subscription", "error", err)
			}
		}
		if err := resp.Body.Close(); err != nil {
			s.logger.Debug("Failed to close push response body", "error", err)
		}
	}
	return nil
}
