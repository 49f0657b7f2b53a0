package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/safedrive/reminderd/internal/domain"
)

// Presenter wires the composer to the notification center. It implements the
// deferral unit's presenter interface.
type Presenter struct {
	center   *Center
	resolver Resolver
	logger   *slog.Logger
}

// NewPresenter creates a presenter posting through the given center.
func NewPresenter(center *Center, resolver Resolver, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{center: center, resolver: resolver, logger: logger}
}

// Present composes and posts the grouped notification for the reminder
// snapshot. When no reminder resolves to displayable labels the notification
// is skipped rather than posted empty.
func (p *Presenter) Present(ctx context.Context, reminders []domain.Reminder) error {
	n, err := Compose(ctx, reminders, p.resolver, p.logger)
	if errors.Is(err, ErrNothingToShow) {
		p.logger.Warn("No resolvable reminders, skipping notification", "reminders", len(reminders))
		return nil
	}
	if err != nil {
		return err
	}

	p.center.EnsureChannel(n.Channel)
	return p.center.Post(ctx, n)
}
