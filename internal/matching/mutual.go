package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imadgeboyega/kiekky-matchcore/internal/common/logger"
	"github.com/imadgeboyega/kiekky-matchcore/internal/notification"
)

const (
	baseMatchScore     = 70
	perInterestBonus   = 5
	bothMessagesBonus  = 10
	quickResponseBonus = 10
	quickResponse      = 24 * time.Hour
)

// allowedTransitions maps a status to the statuses it may move to
var allowedTransitions = map[MatchStatus][]MatchStatus{
	MatchActive:    {MatchContacted, MatchInactive, MatchBlocked},
	MatchContacted: {MatchInactive, MatchBlocked},
	MatchInactive:  {MatchActive, MatchBlocked},
}

// BatchResult summarises a batch mutual-match run
type BatchResult struct {
	Processed      int `json:"processed"`
	MatchesCreated int `json:"matchesCreated"`
	Errors         int `json:"errors"`
}

// Detector creates one MutualMatch per unordered pair once both directions
// of interest are accepted.
type Detector struct {
	repo      *Repository
	interests InterestProvider
	extractor InterestExtractor
	notifier  notification.Sink
	log       *logger.Logger
	now       func() time.Time
}

func NewDetector(repo *Repository, interests InterestProvider, extractor InterestExtractor, notifier notification.Sink, log *logger.Logger) *Detector {
	if extractor == nil {
		extractor = NewKeywordExtractor()
	}
	return &Detector{
		repo:      repo,
		interests: interests,
		extractor: extractor,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

// CheckAndCreateMutualMatch reports whether the pair has an active match,
// creating it if both accepted interests exist. Concurrent calls for the same
// pair create at most one record.
func (d *Detector) CheckAndCreateMutualMatch(ctx context.Context, userA, userB string) (bool, error) {
	if userA == "" || userB == "" || userA == userB {
		return false, fmt.Errorf("%w: mutual match needs two distinct users", ErrValidation)
	}

	ab, err := d.acceptedInterest(ctx, userA, userB)
	if err != nil || ab == nil {
		return false, err
	}
	ba, err := d.acceptedInterest(ctx, userB, userA)
	if err != nil || ba == nil {
		return false, err
	}

	m := d.buildMatch(ab, ba)
	err = d.repo.CreateMutualMatch(ctx, m)
	switch {
	case err == nil:
	case errors.Is(err, ErrExists):
		RecordMutualMatch("exists")
		existing, gerr := d.repo.GetMutualMatch(ctx, m.ID)
		if gerr != nil {
			return false, gerr
		}
		return existing.Status == MatchActive, nil
	default:
		RecordMutualMatch("error")
		return false, err
	}

	RecordMutualMatch("created")
	d.log.Info("Mutual match created",
		"match_id", m.ID,
		"combined_score", m.CombinedScore,
		"quality", m.MatchQuality,
	)
	d.notifyPair(ctx, m)
	return true, nil
}

// acceptedInterest returns the accepted interest from sender to receiver, or nil
func (d *Detector) acceptedInterest(ctx context.Context, sender, receiver string) (*Interest, error) {
	list, err := d.interests.GetSentInterests(ctx, sender, &InterestFilters{
		CounterpartID: receiver,
		Status:        InterestAccepted,
	})
	if err != nil {
		return nil, err
	}
	for _, in := range list {
		if in.ReceiverID == receiver && in.Status == InterestAccepted {
			return in, nil
		}
	}
	return nil, nil
}

// buildMatch orders the pair canonically so user1 < user2
func (d *Detector) buildMatch(ab, ba *Interest) *MutualMatch {
	first, second := ab, ba
	if second.SenderID < first.SenderID {
		first, second = second, first
	}
	common := commonInterests(d.extractor, first.Message, second.Message)
	score := combinedScore(first, second, len(common))
	now := d.now().UTC()
	return &MutualMatch{
		ID:              PairKey(first.SenderID, second.SenderID),
		User1ID:         first.SenderID,
		User2ID:         second.SenderID,
		Interest1ID:     first.ID,
		Interest2ID:     second.ID,
		MatchedAt:       now,
		CombinedScore:   score,
		CommonInterests: common,
		MatchQuality:    qualityFor(score),
		Status:          MatchActive,
		StatusUpdatedAt: now,
	}
}

func combinedScore(a, b *Interest, common int) int {
	score := baseMatchScore + perInterestBonus*common
	if a.Message != "" && b.Message != "" {
		score += bothMessagesBonus
	}
	if respondedWithin(a, quickResponse) && respondedWithin(b, quickResponse) {
		score += quickResponseBonus
	}
	return min(score, 100)
}

func respondedWithin(in *Interest, d time.Duration) bool {
	return in.RespondedAt != nil && !in.SentAt.IsZero() && in.RespondedAt.Sub(in.SentAt) <= d
}

func qualityFor(score int) MatchQuality {
	switch {
	case score >= 90:
		return QualityExcellent
	case score >= 75:
		return QualityGood
	case score >= 60:
		return QualityFair
	default:
		return QualityPoor
	}
}

// notifyPair tells both participants. Failures are logged only.
func (d *Detector) notifyPair(ctx context.Context, m *MutualMatch) {
	if d.notifier == nil {
		return
	}
	for _, uid := range []string{m.User1ID, m.User2ID} {
		n := notification.Notification{
			UserID:   uid,
			Type:     notification.TypeMutualMatch,
			Title:    "It's a match!",
			Message:  "You both accepted each other's interest",
			Priority: notification.PriorityHigh,
			Metadata: map[string]any{
				"matchId":       m.ID,
				"matchedUserId": m.Other(uid),
				"combinedScore": m.CombinedScore,
				"matchQuality":  string(m.MatchQuality),
			},
		}
		if err := d.notifier.Notify(ctx, n); err != nil {
			d.log.Warn("Failed to send match notification", "user_id", uid, "match_id", m.ID, "error", err)
		}
	}
}

// BatchProcessMutualMatches checks every accepted interest each user has
// received. Per-user and per-pair errors are counted and skipped.
func (d *Detector) BatchProcessMutualMatches(ctx context.Context, userIDs []string) BatchResult {
	start := d.now()
	var res BatchResult
	for _, uid := range userIDs {
		if ctx.Err() != nil {
			break
		}
		res.Processed++

		received, err := d.interests.GetReceivedInterests(ctx, uid, &InterestFilters{Status: InterestAccepted})
		if err != nil {
			d.log.Warn("Batch: failed to list received interests", "user_id", uid, "error", err)
			res.Errors++
			continue
		}

		seen := make(map[string]bool, len(received))
		for _, in := range received {
			sender := in.SenderID
			if sender == "" || sender == uid || seen[sender] {
				continue
			}
			seen[sender] = true

			if _, err := d.repo.GetMutualMatch(ctx, PairKey(uid, sender)); err == nil {
				continue
			} else if !errors.Is(err, ErrNotFound) {
				d.log.Warn("Batch: match lookup failed", "user_id", uid, "sender_id", sender, "error", err)
				res.Errors++
				continue
			}

			created, err := d.CheckAndCreateMutualMatch(ctx, uid, sender)
			if err != nil {
				d.log.Warn("Batch: mutual match check failed", "user_id", uid, "sender_id", sender, "error", err)
				res.Errors++
				continue
			}
			if created {
				res.MatchesCreated++
			}
		}
	}
	RecordDuration("mutual_batch", d.now().Sub(start))
	d.log.Info("Batch mutual match run finished",
		"processed", res.Processed,
		"created", res.MatchesCreated,
		"errors", res.Errors,
	)
	return res
}

// GetUserMatches lists the user's matches, optionally by status
func (d *Detector) GetUserMatches(ctx context.Context, userID string, status MatchStatus) ([]*MutualMatch, error) {
	if status != "" && !validStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return d.repo.ListUserMatches(ctx, userID, status, 0)
}

// UpdateMatchStatus moves a match along its lifecycle. Only participants may
// change it and blocked is terminal.
func (d *Detector) UpdateMatchStatus(ctx context.Context, matchID, userID string, status MatchStatus) (*MutualMatch, error) {
	if !validStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	m, err := d.repo.GetMutualMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Involves(userID) {
		return nil, ErrForbidden
	}
	if m.Status == status {
		return m, nil
	}
	if !canTransition(m.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, m.Status, status)
	}

	now := d.now().UTC()
	if err := d.repo.UpdateMatchStatus(ctx, matchID, status, userID, now); err != nil {
		return nil, err
	}
	m.Status = status
	m.StatusUpdatedAt = now
	m.StatusUpdatedBy = userID
	return m, nil
}

func validStatus(s MatchStatus) bool {
	switch s {
	case MatchActive, MatchContacted, MatchInactive, MatchBlocked:
		return true
	}
	return false
}

func canTransition(from, to MatchStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
