// internal/notification/models.go

package notification

import (
	"context"
	"time"
)

// NotificationType represents different notification types
type NotificationType string

const (
	TypeMutualMatch         NotificationType = "mutual_match"
	TypeRecommendationReady NotificationType = "recommendations_ready"
)

// Priority represents notification priority levels
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Notification is one message addressed to one user
type Notification struct {
	ID        string           `json:"id" bson:"_id"`
	UserID    string           `json:"userId" bson:"userId"`
	Type      NotificationType `json:"type" bson:"type"`
	Title     string           `json:"title" bson:"title"`
	Message   string           `json:"message" bson:"message"`
	Priority  Priority         `json:"priority" bson:"priority"`
	Metadata  map[string]any   `json:"metadata,omitempty" bson:"metadata,omitempty"`
	IsRead    bool             `json:"isRead" bson:"isRead"`
	CreatedAt time.Time        `json:"createdAt" bson:"createdAt"`
}

// Sink delivers notifications. Callers treat delivery as fire-and-forget and
// only log a returned error.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}
