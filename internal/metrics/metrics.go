// Package metrics exposes Prometheus counters for reminderd.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemindersAccepted counts valid intake requests added to the pending set.
	RemindersAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_reminders_accepted_total",
		Help: "Valid reminder requests accepted into the pending set.",
	})

	// RemindersRejected counts intake requests dropped for missing fields.
	RemindersRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_reminders_rejected_total",
		Help: "Malformed reminder requests rejected without side effects.",
	})

	// RemindersDuplicate counts requests that collapsed into an existing entry.
	RemindersDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_reminders_duplicate_total",
		Help: "Reminder requests identical to an already-pending reminder.",
	})

	// NotificationsPosted counts grouped notifications posted to the surface.
	NotificationsPosted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_notifications_posted_total",
		Help: "Grouped reminder notifications posted to the notification surface.",
	})

	// RestrictionConnectFailures counts failed restriction feed connections.
	RestrictionConnectFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_restriction_connect_failures_total",
		Help: "Failed attempts to connect to the platform restriction feed.",
	})

	// RestrictionEvents counts state-change events observed on the feed.
	RestrictionEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminderd_restriction_events_total",
		Help: "Restriction state-change events observed while waiting.",
	})
)
