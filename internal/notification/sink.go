// internal/notification/sink.go

package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imadgeboyega/kiekky-matchcore/internal/store"
)

const Collection = "notifications"

// StoreSink writes notifications into the user's in-app inbox
type StoreSink struct {
	store store.Store
	now   func() time.Time
}

func NewStoreSink(s store.Store) *StoreSink {
	return &StoreSink{store: s, now: time.Now}
}

func (s *StoreSink) Notify(ctx context.Context, n Notification) error {
	if n.UserID == "" {
		return errors.New("notification has no recipient")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	if err := s.store.Create(ctx, Collection, n.ID, n, store.WithACL(n.UserID)); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

// Inbox returns the user's most recent notifications
func (s *StoreSink) Inbox(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, int, error) {
	preds := []store.Predicate{store.Eq("userId", userID)}
	if unreadOnly {
		preds = append(preds, store.Eq("isRead", false))
	}
	var out []Notification
	total, err := s.store.List(ctx, Collection, store.Query{
		Predicates: preds,
		Sort:       []store.Sort{{Field: "createdAt", Desc: true, Time: true}},
		Limit:      limit,
	}, &out)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// MultiSink fans a notification out to every sink and joins their errors
type MultiSink []Sink

func (m MultiSink) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
