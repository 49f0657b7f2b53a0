package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/safedrive/reminderd/internal/domain"
	"github.com/safedrive/reminderd/internal/metrics"
)

// Sink delivers a posted notification to one display surface. Delivery is
// best effort: a failing sink is logged and does not fail the post.
type Sink interface {
	Deliver(ctx context.Context, n *domain.Notification) error
}

// Center is the in-process notification surface. It holds at most one
// notification per (channel, slot) identity and fans posted notifications
// out to the registered sinks.
type Center struct {
	logger *slog.Logger

	mu       sync.Mutex
	channels map[string]struct{}
	current  map[string]*domain.Notification
	sinks    []Sink
}

// NewCenter creates an empty notification center.
func NewCenter(logger *slog.Logger) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		logger:   logger,
		channels: make(map[string]struct{}),
		current:  make(map[string]*domain.Notification),
	}
}

// AddSink registers a delivery sink.
func (c *Center) AddSink(s Sink) {
	c.mu.Lock()
	c.sinks = append(c.sinks, s)
	c.mu.Unlock()
}

// EnsureChannel registers a notification channel. Safe to call repeatedly
// with the same identity.
func (c *Center) EnsureChannel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.channels[id]; ok {
		return
	}
	c.channels[id] = struct{}{}
	c.logger.Debug("Registered notification channel", "channel", id)
}

// Post publishes a notification. A notification with the same channel and
// slot as an earlier one replaces it. The channel must have been registered.
func (c *Center) Post(ctx context.Context, n *domain.Notification) error {
	c.mu.Lock()
	if _, ok := c.channels[n.Channel]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown notification channel %q", n.Channel)
	}
	if n.PostedAt.IsZero() {
		n.PostedAt = time.Now()
	}
	key := slotKey(n.Channel, n.Slot)
	_, replaced := c.current[key]
	c.current[key] = n
	sinks := make([]Sink, len(c.sinks))
	copy(sinks, c.sinks)
	c.mu.Unlock()

	metrics.NotificationsPosted.Inc()
	c.logger.Info("Posted notification",
		"channel", n.Channel, "slot", n.Slot, "replaced", replaced)

	for _, s := range sinks {
		if err := s.Deliver(ctx, n); err != nil {
			c.logger.Warn("Notification sink delivery failed", "error", err)
		}
	}
	return nil
}

// Current returns the notification posted under (channel, slot), if any.
func (c *Center) Current(channel, slot string) (*domain.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.current[slotKey(channel, slot)]
	return n, ok
}

func slotKey(channel, slot string) string {
	return channel + "/" + slot
}
