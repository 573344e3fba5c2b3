package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imadgeboyega/kiekky-matchcore/internal/common/logger"
	"github.com/imadgeboyega/kiekky-matchcore/internal/oracle"
)

const DefaultCompatibilityTTL = 30 * 24 * time.Hour

// Scorer produces compatibility scores from the oracle and the classifier and
// caches them per ordered pair.
type Scorer struct {
	adapter  *OracleAdapter
	repo     *Repository
	profiles ProfileProvider
	cache    CompatibilityCache
	ttl      time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func NewScorer(adapter *OracleAdapter, repo *Repository, profiles ProfileProvider, cache CompatibilityCache, ttl time.Duration, log *logger.Logger) *Scorer {
	if cache == nil {
		cache = NoopCache{}
	}
	if ttl <= 0 {
		ttl = DefaultCompatibilityTTL
	}
	return &Scorer{
		adapter:  adapter,
		repo:     repo,
		profiles: profiles,
		cache:    cache,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
	}
}

// Score computes a fresh score for user against cand and persists it.
// Persistence failures are logged; the score is still returned.
func (s *Scorer) Score(ctx context.Context, user, cand *Profile, prefs *Preferences) (*CompatibilityScore, error) {
	if user == nil || cand == nil {
		return nil, fmt.Errorf("%w: both profiles are required", ErrValidation)
	}
	if user.ID == cand.ID {
		return nil, ErrSelfScore
	}

	eval, err := s.adapter.Evaluate(ctx, user, cand, prefs)
	if err != nil {
		return nil, err
	}
	cs := compose(user, cand, eval, s.now().UTC(), s.ttl)
	RecordCompatibilityScore(cs.Overall)

	if err := s.repo.SaveCompatibility(ctx, cs); err != nil {
		s.log.Warn("Failed to persist compatibility score", "user_id", user.ID, "candidate_id", cand.ID, "error", err)
	}
	if err := s.cache.Set(ctx, cs); err != nil {
		s.log.Warn("Failed to cache compatibility score", "user_id", user.ID, "candidate_id", cand.ID, "error", err)
	}
	return cs, nil
}

// compose is the deterministic part of scoring
func compose(user, cand *Profile, eval *oracle.Evaluation, now time.Time, ttl time.Duration) *CompatibilityScore {
	breakdown := Classify(user, cand, eval)
	overall := combineOverall(eval.Overall, breakdown)
	reasons := eval.MatchReasons
	if reasons == nil {
		reasons = []string{}
	}
	concerns := eval.PotentialConcerns
	if concerns == nil {
		concerns = []string{}
	}
	return &CompatibilityScore{
		ID:                fmt.Sprintf("%s:%s:%d", user.ID, cand.ID, now.UnixNano()),
		UserID:            user.ID,
		CandidateUserID:   cand.ID,
		Overall:           overall,
		Breakdown:         breakdown,
		Explanation:       eval.Explanation,
		MatchReasons:      reasons,
		PotentialConcerns: concerns,
		ConfidenceLevel:   confidenceFor(user, cand, overall),
		ComputedAt:        now,
		ExpiresAt:         now.Add(ttl),
	}
}

// GetCachedCompatibility returns the newest unexpired score for the ordered
// pair, or ErrCacheMiss.
func (s *Scorer) GetCachedCompatibility(ctx context.Context, userID, candidateID string) (*CompatibilityScore, error) {
	cs, err := s.cache.Get(ctx, userID, candidateID)
	switch {
	case err == nil:
		RecordCacheLookup("hot", true)
		return cs, nil
	case errors.Is(err, ErrCacheMiss):
		RecordCacheLookup("hot", false)
	default:
		s.log.Warn("Compatibility cache lookup failed", "user_id", userID, "candidate_id", candidateID, "error", err)
	}

	cs, err = s.repo.LatestCompatibility(ctx, userID, candidateID, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			RecordCacheLookup("store", false)
		}
		return nil, err
	}
	RecordCacheLookup("store", true)
	if err := s.cache.Set(ctx, cs); err != nil {
		s.log.Debug("Failed to backfill compatibility cache", "error", err)
	}
	return cs, nil
}

// GetOrCompute prefers an unexpired cached score and computes one otherwise.
// A failing cache read falls back to computing.
func (s *Scorer) GetOrCompute(ctx context.Context, user, cand *Profile, prefs *Preferences) (*CompatibilityScore, error) {
	if user != nil && cand != nil && user.ID != cand.ID {
		cs, err := s.GetCachedCompatibility(ctx, user.ID, cand.ID)
		if err == nil {
			return cs, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("Cached compatibility unavailable, recomputing", "user_id", user.ID, "candidate_id", cand.ID, "error", err)
		}
	}
	return s.Score(ctx, user, cand, prefs)
}

// CompatibilityFor loads both profiles and the user's preferences, then
// returns a cached or fresh score.
func (s *Scorer) CompatibilityFor(ctx context.Context, userID, candidateID string) (*CompatibilityScore, error) {
	if userID == candidateID {
		return nil, ErrSelfScore
	}
	user, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	cand, err := s.profiles.GetProfile(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		prefs = nil
	}
	return s.GetOrCompute(ctx, user, cand, prefs)
}
