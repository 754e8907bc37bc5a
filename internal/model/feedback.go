package model

import "time"

// Feedback statuses.
const (
	FeedbackNew      = "new"
	FeedbackReviewed = "reviewed"
	FeedbackResolved = "resolved"
)

// Feedback is a citizen submission.
type Feedback struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// BufferedFeedback is a pending submission held in the write-behind buffer.
type BufferedFeedback struct {
	Key        string    `json:"key"`
	Feedback   Feedback  `json:"feedback"`
	ReceivedAt time.Time `json:"received_at"`
}
