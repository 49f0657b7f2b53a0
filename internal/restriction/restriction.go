// Package restriction connects to the platform's distraction-restriction
// feed. The current state lives in a Redis key and changes are published on
// a Redis channel; one Conn corresponds to one subscription.
package restriction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/safedrive/reminderd/internal/domain"
)

// DefaultConnectTimeout bounds the initial reachability check. The connector
// fails fast rather than blocking a caller on an unreachable feed.
const DefaultConnectTimeout = 2 * time.Second

// Config holds connection parameters for the restriction feed.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Channel carries JSON-encoded state-change events.
	Channel string
	// StateKey holds the current restriction state.
	StateKey string

	ConnectTimeout time.Duration
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return DefaultConnectTimeout
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}
}

// Connector establishes subscriptions to the restriction feed.
type Connector struct {
	cfg    Config
	logger *slog.Logger
}

// NewConnector creates a connector for the given feed configuration.
func NewConnector(cfg Config, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{cfg: cfg, logger: logger}
}

// Connect opens a connection to the feed and subscribes to state changes.
// It pings the feed with a short timeout first so an unreachable feed fails
// fast instead of blocking. The returned Conn must be closed by the caller;
// Close is safe to call more than once.
func (c *Connector) Connect(ctx context.Context) (*Conn, error) {
	client := redis.NewClient(c.cfg.options())

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.connectTimeout())
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			c.logger.Debug("close restriction client after failed ping", "error", closeErr)
		}
		return nil, fmt.Errorf("restriction feed unreachable at %s: %w", c.cfg.Addr, err)
	}

	pubsub := client.Subscribe(ctx, c.cfg.Channel)
	// Force the subscription handshake so a broken channel surfaces here.
	if _, err := pubsub.Receive(pingCtx); err != nil {
		_ = pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", c.cfg.Channel, err)
	}

	conn := &Conn{
		client:   client,
		pubsub:   pubsub,
		stateKey: c.cfg.StateKey,
		events:   make(chan domain.StateChange, 8),
		logger:   c.logger,
	}
	go conn.readLoop()

	c.logger.Info("Connected to restriction feed", "addr", c.cfg.Addr, "channel", c.cfg.Channel)
	return conn, nil
}

// Conn is an open subscription to the restriction feed.
type Conn struct {
	client   *redis.Client
	pubsub   *redis.PubSub
	stateKey string
	events   chan domain.StateChange
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Events returns the stream of state changes. The channel is closed when the
// connection is closed or the feed goes away.
func (c *Conn) Events() <-chan domain.StateChange {
	return c.events
}

// Current reads the restriction state right now. A missing state key means
// the platform has never restricted the UI, which reads as unrestricted.
func (c *Conn) Current(ctx context.Context) (bool, error) {
	val, err := c.client.Get(ctx, c.stateKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read restriction state: %w", err)
	}
	return parseState(val), nil
}

// Close tears down the subscription and the client. Redundant calls are
// no-ops and return the first error.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if err := c.pubsub.Close(); err != nil {
			c.closeErr = err
		}
		if err := c.client.Close(); err != nil && c.closeErr == nil {
			c.closeErr = err
		}
	})
	return c.closeErr
}

func (c *Conn) readLoop() {
	defer close(c.events)
	for msg := range c.pubsub.Channel() {
		ev, err := parseStateChange([]byte(msg.Payload))
		if err != nil {
			c.logger.Debug("Skipping malformed restriction event", "error", err)
			continue
		}
		c.events <- ev
	}
}

// statePayload is the wire shape of a feed event.
type statePayload struct {
	Restricted *bool     `json:"restricted"`
	At         time.Time `json:"at"`
}

func parseStateChange(payload []byte) (domain.StateChange, error) {
	var p statePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.StateChange{}, fmt.Errorf("decode restriction event: %w", err)
	}
	if p.Restricted == nil {
		return domain.StateChange{}, errors.New("restriction event missing restricted field")
	}
	at := p.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return domain.StateChange{Restricted: *p.Restricted, At: at}, nil
}

func parseState(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "on", "restricted":
		return true
	default:
		return false
	}
}
