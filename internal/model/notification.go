package model

import "time"

const (
	NotificationAnnouncement   = "announcement"
	NotificationOrderCompleted = "order_completed"
)

// Notification is the event pushed to every connected subscriber.
type Notification struct {
	Type        string    `json:"type"`
	Content     string    `json:"content"`
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}
