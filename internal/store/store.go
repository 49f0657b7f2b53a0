// Package store provides the label registry and push subscription storage.
package store

import (
	"context"

	"github.com/safedrive/reminderd/internal/domain"
)

// Repository defines persistence for display labels and push subscriptions.
// Pending reminders are deliberately not stored here: they are process-local
// and lost on restart.
type Repository interface {
	// SubjectLabel returns the human-readable label for an application,
	// or "" when the subject is unknown.
	SubjectLabel(ctx context.Context, id string) (string, error)

	// UpsertSubject creates or updates a subject label.
	UpsertSubject(ctx context.Context, id, label string) error

	// CategoryLabel returns the human-readable label for a permission
	// category, or "" when the category is unknown.
	CategoryLabel(ctx context.Context, id string) (string, error)

	// UpsertCategory creates or updates a category label.
	UpsertCategory(ctx context.Context, id, label string) error

	// PrincipalName returns the display name for a user, or "" when unknown.
	PrincipalName(ctx context.Context, id string) (string, error)

	// UpsertPrincipal creates or updates a principal display name.
	UpsertPrincipal(ctx context.Context, id, name string) error

	// SavePushSubscription stores a Web Push subscription, replacing any
	// existing subscription for the same endpoint.
	SavePushSubscription(ctx context.Context, sub *domain.PushSubscription) error

	// ListPushSubscriptions returns all registered push subscriptions.
	ListPushSubscriptions(ctx context.Context) ([]*domain.PushSubscription, error)

	// DeletePushSubscription removes the subscription for an endpoint.
	DeletePushSubscription(ctx context.Context, endpoint string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
