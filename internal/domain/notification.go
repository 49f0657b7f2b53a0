package domain

import "time"

// Notification is a message posted to the car's notification surface.
// Channel and Slot form the notification identity: posting a second
// notification with the same identity replaces the first.
type Notification struct {
	Channel  string            `json:"channel"`
	Slot     string            `json:"slot"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Extras   map[string]string `json:"extras,omitempty"`
	PostedAt time.Time         `json:"posted_at"`
}

// PushSubscription is a Web Push endpoint registered by a display client.
type PushSubscription struct {
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}
