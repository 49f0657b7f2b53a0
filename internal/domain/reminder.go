// Package domain contains core domain types for reminderd.
package domain

import "time"

// Reminder is a deferred notice that a permission decision was made while
// the vehicle was in a distraction-restricted driving state. It is a value
// type: two reminders with the same three identifiers are the same reminder,
// and collections of reminders are keyed on the full triple.
type Reminder struct {
	// SubjectID identifies the application the decision was made about.
	SubjectID string `json:"subject_id"`
	// CategoryID identifies the permission category that was granted.
	CategoryID string `json:"category_id"`
	// PrincipalID identifies the user the decision was made for.
	PrincipalID string `json:"principal_id"`
}

// StateChange is a single event from the platform restriction feed.
type StateChange struct {
	// Restricted reports whether distraction optimization is still required.
	Restricted bool      `json:"restricted"`
	At         time.Time `json:"at"`
}
