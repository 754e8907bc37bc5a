package model

import "time"

// Photo is a gallery image record.
type Photo struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Caption       string    `json:"caption,omitempty"`
	ImageURL      string    `json:"image_url"`
	StorageMedium string    `json:"storage_medium"`
	CreatedAt     time.Time `json:"created_at"`
}

// Event is a calendar entry.
type Event struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	ImageURL    string     `json:"image_url,omitempty"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
