// Package notify composes and posts the grouped reminder notification.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/safedrive/reminderd/internal/domain"
)

// Fixed notification identity. Reposting under the same channel and slot
// replaces the previous notification instead of stacking a new one.
const (
	// ChannelID is the notification channel for deferred permission reminders.
	ChannelID = "permission-reminders"
	// SlotTag is the single notification slot used by the deferral unit.
	SlotTag = "driving-decision-reminder"
	// Title is the fixed notification title.
	Title = "Permission decisions made while driving"

	// ExtraPrincipalName carries the acting user's display name when the
	// registry can supply one.
	ExtraPrincipalName = "principal_name"
)

// ErrNothingToShow is returned when no reminder resolves to displayable labels.
var ErrNothingToShow = errors.New("no resolvable reminders to show")

// Resolver looks up human-readable labels for reminder identifiers.
// An unknown identifier resolves to "" without error.
type Resolver interface {
	SubjectLabel(ctx context.Context, id string) (string, error)
	CategoryLabel(ctx context.Context, id string) (string, error)
	PrincipalName(ctx context.Context, id string) (string, error)
}

// Compose builds the grouped notification for a set of pending reminders.
// The body lists the distinct subject labels and the distinct category labels
// in set-iteration order. A reminder whose subject or category has no label
// is skipped with a warning; if nothing resolves, ErrNothingToShow is
// returned and no notification should be posted.
func Compose(ctx context.Context, reminders []domain.Reminder, res Resolver, logger *slog.Logger) (*domain.Notification, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var subjects, categories []string
	seenSubjects := make(map[string]bool)
	seenCategories := make(map[string]bool)
	seenLabels := make(map[string]bool)

	for _, r := range reminders {
		if !seenSubjects[r.SubjectID] {
			seenSubjects[r.SubjectID] = true
			label, err := res.SubjectLabel(ctx, r.SubjectID)
			if err != nil {
				return nil, fmt.Errorf("resolve subject %s: %w", r.SubjectID, err)
			}
			if label == "" {
				logger.Warn("Skipping reminder subject with no label", "subject", r.SubjectID)
			} else if !seenLabels["s:"+label] {
				seenLabels["s:"+label] = true
				subjects = append(subjects, label)
			}
		}
		if !seenCategories[r.CategoryID] {
			seenCategories[r.CategoryID] = true
			label, err := res.CategoryLabel(ctx, r.CategoryID)
			if err != nil {
				return nil, fmt.Errorf("resolve category %s: %w", r.CategoryID, err)
			}
			if label == "" {
				logger.Warn("Skipping reminder category with no label", "category", r.CategoryID)
			} else if !seenLabels["c:"+label] {
				seenLabels["c:"+label] = true
				categories = append(categories, label)
			}
		}
	}

	if len(subjects) == 0 || len(categories) == 0 {
		return nil, ErrNothingToShow
	}

	n := &domain.Notification{
		Channel: ChannelID,
		Slot:    SlotTag,
		Title:   Title,
		Body: fmt.Sprintf("You granted %s access to %s",
			strings.Join(subjects, ", "), strings.Join(categories, ", ")),
	}

	// All reminders in one unit belong to the same driving session, so the
	// first principal stands in for the group.
	if len(reminders) > 0 {
		name, err := res.PrincipalName(ctx, reminders[0].PrincipalID)
		if err != nil {
			return nil, fmt.Errorf("resolve principal %s: %w", reminders[0].PrincipalID, err)
		}
		if name != "" {
			n.Extras = map[string]string{ExtraPrincipalName: name}
		}
	}

	return n, nil
}
