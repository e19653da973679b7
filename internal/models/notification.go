package models

import "time"

type NotificationKind string

const (
	NotifyAppointmentCancelled NotificationKind = "appointment_cancelled"
	NotifyAppointmentConfirmed NotificationKind = "appointment_confirmed"
	NotifyRentalActivated      NotificationKind = "rental_activated"
	NotifyRentalCancelled      NotificationKind = "rental_cancelled"
)

// Notification is an addressed email the notification gateway delivers.
type Notification struct {
	Kind          NotificationKind `json:"kind"`
	RecipientID   int32            `json:"recipient_id"`
	RecipientName string           `json:"recipient_name"`
	To            string           `json:"to"`
	Subject       string           `json:"subject"`
	Body          string           `json:"body"`
}

// StatusEvent is published after every committed status transition.
type StatusEvent struct {
	EventID  string    `json:"event_id"`
	Entity   string    `json:"entity"`
	EntityID int32     `json:"entity_id"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}
