package restriction

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// CheckOnce performs a one-shot restriction check on its own connection and
// disconnects immediately after. It is used by the "start only if currently
// restricted" intake helper, which must not hold a feed subscription open.
func CheckOnce(ctx context.Context, cfg Config) (bool, error) {
	client := redis.NewClient(cfg.options())
	defer func() { _ = client.Close() }()

	checkCtx, cancel := context.WithTimeout(ctx, cfg.connectTimeout())
	defer cancel()

	val, err := client.Get(checkCtx, cfg.StateKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check restriction state: %w", err)
	}
	return parseState(val), nil
}
