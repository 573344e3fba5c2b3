package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imadgeboyega/kiekky-matchcore/internal/common/logger"
)

// ageMargin is how far around an observed target age the learned range widens
const ageMargin = 2

// Learner maintains each user's implicit preference model. Updates are
// read-modify-write without locking; concurrent writers may overwrite each
// other and the ranges converge as more interactions arrive.
type Learner struct {
	repo     *Repository
	profiles ProfileProvider
	scorer   *Scorer
	log      *logger.Logger
	now      func() time.Time
}

func NewLearner(repo *Repository, profiles ProfileProvider, scorer *Scorer, log *logger.Logger) *Learner {
	return &Learner{repo: repo, profiles: profiles, scorer: scorer, log: log, now: time.Now}
}

// GetLearningData returns the user's model, or an empty one if none exists yet
func (l *Learner) GetLearningData(ctx context.Context, userID string) (*LearningData, error) {
	ld, err := l.repo.GetLearningData(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return &LearningData{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return ld, nil
}

func (l *Learner) RecordInteraction(ctx context.Context, in Interaction) error {
	if in.UserID == "" || in.TargetUserID == "" {
		return fmt.Errorf("%w: interaction needs a user and a target", ErrValidation)
	}
	if in.UserID == in.TargetUserID {
		return fmt.Errorf("%w: cannot interact with your own profile", ErrValidation)
	}
	switch in.Type {
	case InteractionView, InteractionInterest, InteractionFavorite, InteractionSkip:
	default:
		return fmt.Errorf("%w: unknown interaction type %q", ErrValidation, in.Type)
	}

	if in.Type == InteractionView || in.Type == InteractionInterest {
		if err := l.fillTarget(ctx, &in); err != nil {
			return err
		}
	}

	ld, err := l.GetLearningData(ctx, in.UserID)
	if err != nil {
		return err
	}
	applyInteraction(ld, &in)
	ld.UpdatedAt = l.now().UTC()
	if err := l.repo.SaveLearningData(ctx, ld); err != nil {
		return err
	}
	RecordInteraction(in.Type)

	in.ID = uuid.NewString()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = l.now().UTC()
	}
	if err := l.repo.LogInteraction(ctx, &in); err != nil {
		l.log.Warn("Failed to log interaction", "user_id", in.UserID, "type", in.Type, "error", err)
	}
	return nil
}

// fillTarget loads the target profile when the interaction carries no
// snapshot. A missing target leaves the model unwidened.
func (l *Learner) fillTarget(ctx context.Context, in *Interaction) error {
	if in.TargetAge > 0 && in.TargetDistrict != "" && in.TargetEducation != "" && in.TargetOccupation != "" {
		return nil
	}
	p, err := l.profiles.GetProfile(ctx, in.TargetUserID)
	if errors.Is(err, ErrNotFound) {
		l.log.Debug("Interaction target profile not found", "target_id", in.TargetUserID)
		return nil
	}
	if err != nil {
		return err
	}
	if in.TargetAge == 0 {
		in.TargetAge = p.Age
	}
	if in.TargetDistrict == "" {
		in.TargetDistrict = p.District
	}
	if in.TargetEducation == "" {
		in.TargetEducation = p.Education
	}
	if in.TargetOccupation == "" {
		in.TargetOccupation = p.Occupation
	}
	if in.TargetSect == "" {
		in.TargetSect = p.Sect
	}
	return nil
}

func applyInteraction(ld *LearningData, in *Interaction) {
	switch in.Type {
	case InteractionView:
		ld.ViewedProfiles++
	case InteractionInterest:
		ld.SentInterests++
		ld.PreferredSects = addUnique(ld.PreferredSects, in.TargetSect)
	case InteractionFavorite:
		ld.FavoritedProfiles++
	case InteractionSkip:
		ld.SkippedProfiles++
	}
	if in.Type != InteractionView && in.Type != InteractionInterest {
		return
	}
	ld.PreferredAgeRange = widenAgeRange(ld.PreferredAgeRange, in.TargetAge)
	ld.PreferredLocations = addUnique(ld.PreferredLocations, in.TargetDistrict)
	ld.PreferredEducation = addUnique(ld.PreferredEducation, in.TargetEducation)
	ld.PreferredOccupations = addUnique(ld.PreferredOccupations, in.TargetOccupation)
}

// widenAgeRange returns a range covering r and age±ageMargin. It never narrows.
func widenAgeRange(r *AgeRange, age int) *AgeRange {
	if age <= 0 {
		return r
	}
	lo, hi := age-ageMargin, age+ageMargin
	if r == nil {
		return &AgeRange{Min: lo, Max: hi}
	}
	return &AgeRange{Min: min(r.Min, lo), Max: max(r.Max, hi)}
}

func addUnique(set []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return set
	}
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return set
		}
	}
	return append(set, v)
}

// RecordInterestOutcome counts an accepted interest for its sender, at most
// once per interest. It reports whether the counter moved.
func (l *Learner) RecordInterestOutcome(ctx context.Context, in *Interest) (bool, error) {
	if in == nil || in.ID == "" || in.SenderID == "" {
		return false, fmt.Errorf("%w: interest outcome needs an interest", ErrValidation)
	}
	if in.Status != InterestAccepted {
		return false, nil
	}
	err := l.repo.ClaimInterestOutcome(ctx, &InterestOutcome{
		InterestID: in.ID,
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		CountedAt:  l.now().UTC(),
	})
	if errors.Is(err, ErrExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ld, err := l.GetLearningData(ctx, in.SenderID)
	if err != nil {
		return false, err
	}
	ld.AcceptedInterests++
	ld.UpdatedAt = l.now().UTC()
	return true, l.repo.SaveLearningData(ctx, ld)
}

// RecordFeedback blends post-match feedback into the running compatibility
// estimate: new = (old + score*weight) / 2.
func (l *Learner) RecordFeedback(ctx context.Context, userID, matchUserID string, fb Feedback, reasons []string) error {
	weight, ok := feedbackWeights[fb]
	if !ok {
		return fmt.Errorf("%w: unknown feedback %q", ErrValidation, fb)
	}
	if userID == "" || matchUserID == "" || userID == matchUserID {
		return fmt.Errorf("%w: feedback needs two distinct users", ErrValidation)
	}

	score, err := l.feedbackScore(ctx, userID, matchUserID)
	if err != nil {
		return err
	}

	ld, err := l.GetLearningData(ctx, userID)
	if err != nil {
		return err
	}
	if score != nil {
		ld.AverageCompatibilityOfInterests = (ld.AverageCompatibilityOfInterests + *score*weight) / 2
	}
	ld.FeedbackCount++
	ld.UpdatedAt = l.now().UTC()
	if err := l.repo.SaveLearningData(ctx, ld); err != nil {
		return err
	}

	rec := &FeedbackRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		MatchUserID: matchUserID,
		Feedback:    fb,
		Reasons:     reasons,
		Score:       score,
		CreatedAt:   l.now().UTC(),
	}
	if err := l.repo.LogFeedback(ctx, rec); err != nil {
		l.log.Warn("Failed to log match feedback", "user_id", userID, "error", err)
	}
	return nil
}

// feedbackScore finds the score the feedback refers to: the cached
// compatibility first, then the mutual match. Nil when neither exists.
func (l *Learner) feedbackScore(ctx context.Context, userID, matchUserID string) (*float64, error) {
	if l.scorer != nil {
		cs, err := l.scorer.GetCachedCompatibility(ctx, userID, matchUserID)
		if err == nil {
			v := float64(cs.Overall)
			return &v, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			l.log.Warn("Compatibility lookup for feedback failed", "user_id", userID, "error", err)
		}
	}
	m, err := l.repo.GetMutualMatch(ctx, PairKey(userID, matchUserID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v := float64(m.CombinedScore)
	return &v, nil
}
