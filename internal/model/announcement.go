package model

import "time"

type Announcement struct {
	ID             int       `json:"id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	ScheduledStart time.Time `json:"scheduledStart"`
	ScheduledEnd   time.Time `json:"scheduledEnd"`
	Published      bool      `json:"published"`
}

type AnnouncementInput struct {
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	ScheduledStart time.Time `json:"scheduledStart"`
	ScheduledEnd   time.Time `json:"scheduledEnd"`
}
