package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/imadgeboyega/kiekky-matchcore/internal/common/logger"
	"github.com/imadgeboyega/kiekky-matchcore/internal/notification"
)

const (
	DefaultRecommendationTTL = 7 * 24 * time.Hour
	DefaultLimit             = 10
	MaxLimit                 = 50
	MinRecommendationScore   = 60
	trendingWindow           = 7 * 24 * time.Hour
)

// RecommendationFilters are caller-supplied overrides. They replace the
// corresponding explicit and learned constraints.
type RecommendationFilters struct {
	AgeMin       int      `json:"ageMin,omitempty" validate:"omitempty,min=18,max=100"`
	AgeMax       int      `json:"ageMax,omitempty" validate:"omitempty,min=18,max=100"`
	Districts    []string `json:"districts,omitempty"`
	Education    []string `json:"education,omitempty"`
	Sect         string   `json:"sect,omitempty"`
	VerifiedOnly *bool    `json:"verifiedOnly,omitempty"`
	HasPhoto     *bool    `json:"hasPhoto,omitempty"`
}

type EngineConfig struct {
	Concurrency int
	TTL         time.Duration
}

// TrendingMatch is a candidate ranked by activity rather than compatibility
type TrendingMatch struct {
	Profile       *Profile `json:"profile"`
	TrendingScore float64  `json:"trendingScore"`
	RecentViews   int      `json:"recentViews"`
}

// Engine builds ranked recommendation lists
type Engine struct {
	repo     *Repository
	profiles ProfileProvider
	scorer   *Scorer
	learner  *Learner
	notifier notification.Sink
	cfg      EngineConfig
	log      *logger.Logger
	now      func() time.Time
}

func NewEngine(repo *Repository, profiles ProfileProvider, scorer *Scorer, learner *Learner, notifier notification.Sink, cfg EngineConfig, log *logger.Logger) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRecommendationTTL
	}
	return &Engine{
		repo:     repo,
		profiles: profiles,
		scorer:   scorer,
		learner:  learner,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

type scoredCandidate struct {
	profile *Profile
	score   *CompatibilityScore
	bonus   float64
}

func (e *Engine) GetPersonalizedRecommendations(ctx context.Context, userID string, limit int, filters *RecommendationFilters) ([]*MatchRecommendation, error) {
	start := e.now()
	limit = clampLimit(limit)

	user, err := e.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs := e.loadPreferences(ctx, userID)
	ld, err := e.learner.GetLearningData(ctx, userID)
	if err != nil {
		e.log.Warn("Learning data unavailable, ranking without it", "user_id", userID, "error", err)
		ld = &LearningData{UserID: userID}
	}

	pf, err := effectiveFilters(user, prefs, ld, filters, limit)
	if err != nil {
		return nil, err
	}
	page, err := e.profiles.SearchProfiles(ctx, pf)
	if err != nil {
		return nil, err
	}

	candidates := make([]*Profile, 0, len(page.Profiles))
	for _, p := range page.Profiles {
		if p.ID != userID {
			candidates = append(candidates, p)
		}
	}

	scored, failed := e.scoreAll(ctx, user, prefs, candidates)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(candidates) > 0 && failed == len(candidates) {
		return nil, fmt.Errorf("score candidates for %s: %w: every candidate failed", userID, ErrDependency)
	}

	// the whole ranked batch is persisted; only the top limit is returned
	ranked := rank(scored, ld)

	now := e.now().UTC()
	recs := make([]*MatchRecommendation, 0, len(ranked))
	for _, sc := range ranked {
		rec := &MatchRecommendation{
			ID:                 uuid.NewString(),
			UserID:             userID,
			ProfileID:          sc.profile.ID,
			Profile:            sc.profile,
			CompatibilityScore: *sc.score,
			Score:              float64(sc.score.Overall) + sc.bonus,
			Reason:             reasonFor(sc.score),
			Priority:           priorityFor(sc.score.Overall),
			GeneratedAt:        now,
			ExpiresAt:          now.Add(e.cfg.TTL),
		}
		if err := e.repo.SaveRecommendation(ctx, rec); err != nil {
			e.log.Warn("Failed to persist recommendation", "user_id", userID, "profile_id", rec.ProfileID, "error", err)
		}
		recs = append(recs, rec)
	}
	stored := len(recs)
	if len(recs) > limit {
		recs = recs[:limit]
	}
	RecordRecommendations(len(recs))

	session := &RecommendationSession{
		ID:         uuid.NewString(),
		UserID:     userID,
		Requested:  limit,
		Candidates: len(candidates),
		Scored:     len(candidates) - failed,
		Failed:     failed,
		Returned:   len(recs),
		DurationMs: e.now().Sub(start).Milliseconds(),
		CreatedAt:  now,
	}
	if err := e.repo.SaveSession(ctx, session); err != nil {
		e.log.Warn("Failed to store recommendation session", "user_id", userID, "error", err)
	}
	RecordDuration("recommendations", e.now().Sub(start))
	e.log.Info("Generated recommendations", "user_id", userID, "candidates", len(candidates), "stored", stored, "returned", len(recs), "failed", failed)
	return recs, nil
}

func (e *Engine) loadPreferences(ctx context.Context, userID string) *Preferences {
	prefs, err := e.repo.GetPreferences(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			e.log.Warn("Preferences unavailable, using none", "user_id", userID, "error", err)
		}
		return nil
	}
	return prefs
}

// scoreAll scores every candidate with bounded concurrency and waits for all
// of them. Failed candidates are dropped and counted.
func (e *Engine) scoreAll(ctx context.Context, user *Profile, prefs *Preferences, candidates []*Profile) ([]scoredCandidate, int) {
	results := make([]*CompatibilityScore, len(candidates))
	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i, cand := range candidates {
		g.Go(func() error {
			cs, err := e.scorer.GetOrCompute(ctx, user, cand, prefs)
			if err != nil {
				e.log.Warn("Candidate scoring failed", "user_id", user.ID, "candidate_id", cand.ID, "error", err)
				return nil
			}
			results[i] = cs
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	scored := make([]scoredCandidate, 0, len(candidates))
	for i, cs := range results {
		if cs == nil {
			failed++
			continue
		}
		if cs.Overall < MinRecommendationScore {
			continue
		}
		scored = append(scored, scoredCandidate{profile: candidates[i], score: cs})
	}
	return scored, failed
}

// rank sorts best first by overall score, then id. The learning bonus is a
// function of the overall score, so it never reorders candidates; it is
// carried into the recommendation's Score.
func rank(scored []scoredCandidate, ld *LearningData) []scoredCandidate {
	for i := range scored {
		scored[i].bonus = learningBonus(ld, scored[i].score.Overall)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.score.Overall != b.score.Overall {
			return a.score.Overall > b.score.Overall
		}
		return a.profile.ID < b.profile.ID
	})
	return scored
}

func learningBonus(ld *LearningData, overall int) float64 {
	if ld == nil {
		return 0
	}
	bonus := 0.0
	if math.Abs(float64(overall)-ld.AverageCompatibilityOfInterests) <= 10 {
		bonus += 5
	}
	if ld.AcceptRate() > 0.3 && overall >= 80 {
		bonus += 3
	}
	return bonus
}

// effectiveFilters merges explicit preferences, learned ranges and caller
// overrides, in that order.
func effectiveFilters(user *Profile, prefs *Preferences, ld *LearningData, override *RecommendationFilters, limit int) (ProfileFilters, error) {
	gender := oppositeGender(user.Gender)
	if gender == "" {
		return ProfileFilters{}, fmt.Errorf("%w: profile %s has no gender", ErrValidation, user.ID)
	}
	f := ProfileFilters{Gender: gender, ActiveOnly: true, Limit: 2 * limit}

	if prefs != nil {
		if prefs.AgeRange != nil {
			f.AgeMin, f.AgeMax = prefs.AgeRange.Min, prefs.AgeRange.Max
		}
		f.Districts = append([]string(nil), prefs.Districts...)
		f.Education = append([]string(nil), prefs.Education...)
		f.Sect = prefs.Sect
		f.VerifiedOnly = prefs.VerifiedOnly
		f.HasPhoto = prefs.HasPhoto
	}

	// learned data only widens constraints that are already set
	if ld != nil {
		if r := ld.PreferredAgeRange; r != nil && prefs != nil && prefs.AgeRange != nil {
			f.AgeMin, f.AgeMax = min(f.AgeMin, r.Min), max(f.AgeMax, r.Max)
		}
		if len(f.Districts) > 0 {
			for _, d := range ld.PreferredLocations {
				f.Districts = addUnique(f.Districts, d)
			}
		}
		if len(f.Education) > 0 {
			for _, ed := range ld.PreferredEducation {
				f.Education = addUnique(f.Education, ed)
			}
		}
	}

	if o := override; o != nil {
		if o.AgeMin > 0 {
			f.AgeMin = o.AgeMin
		}
		if o.AgeMax > 0 {
			f.AgeMax = o.AgeMax
		}
		if len(o.Districts) > 0 {
			f.Districts = o.Districts
		}
		if len(o.Education) > 0 {
			f.Education = o.Education
		}
		if o.Sect != "" {
			f.Sect = o.Sect
		}
		if o.VerifiedOnly != nil {
			f.VerifiedOnly = *o.VerifiedOnly
		}
		if o.HasPhoto != nil {
			f.HasPhoto = *o.HasPhoto
		}
	}
	if f.AgeMin > 0 && f.AgeMax > 0 && f.AgeMin > f.AgeMax {
		return ProfileFilters{}, fmt.Errorf("%w: age range %d-%d is empty", ErrValidation, f.AgeMin, f.AgeMax)
	}
	return f, nil
}

func oppositeGender(g string) string {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case "male", "m":
		return "female"
	case "female", "f":
		return "male"
	default:
		return ""
	}
}

func priorityFor(overall int) Priority {
	switch {
	case overall >= 85:
		return PriorityHigh
	case overall >= 70:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// reasonFor prefers the oracle's first reason, then the strongest dimension
func reasonFor(cs *CompatibilityScore) string {
	if len(cs.MatchReasons) > 0 && cs.MatchReasons[0] != "" {
		return cs.MatchReasons[0]
	}
	b := cs.Breakdown
	best := b.Location
	for _, d := range []DimensionScore{b.Education, b.Religious, b.Family, b.Lifestyle, b.Personality} {
		if d.Score > best.Score {
			best = d
		}
	}
	if best.Explanation == "" {
		return fmt.Sprintf("%d%% compatible", cs.Overall)
	}
	return best.Explanation
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// GetCachedRecommendations returns stored recommendations generated within
// the last maxAgeHours, best score first. It never recomputes.
func (e *Engine) GetCachedRecommendations(ctx context.Context, userID string, maxAgeHours int) ([]*MatchRecommendation, error) {
	if maxAgeHours <= 0 {
		maxAgeHours = 24
	}
	now := e.now().UTC()
	recs, err := e.repo.ListRecommendations(ctx, userID, now.Add(-time.Duration(maxAgeHours)*time.Hour), 0)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, r := range recs {
		if r.ExpiresAt.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

// RefreshRecommendations clears the user's stored recommendations and
// generates a new batch.
func (e *Engine) RefreshRecommendations(ctx context.Context, userID string, limit int) ([]*MatchRecommendation, error) {
	if _, err := e.profiles.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	cleared, err := e.repo.DeleteRecommendations(ctx, userID)
	if err != nil {
		return nil, err
	}
	recs, err := e.GetPersonalizedRecommendations(ctx, userID, limit, nil)
	if err != nil {
		return nil, err
	}
	e.log.Debug("Refreshed recommendations", "user_id", userID, "cleared", cleared, "generated", len(recs))

	if len(recs) > 0 && e.notifier != nil {
		n := notification.Notification{
			UserID:   userID,
			Type:     notification.TypeRecommendationReady,
			Title:    "New matches for you",
			Message:  fmt.Sprintf("We found %d new recommendations", len(recs)),
			Priority: notification.PriorityLow,
			Metadata: map[string]any{"count": len(recs)},
		}
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.log.Warn("Failed to send recommendations notification", "user_id", userID, "error", err)
		}
	}
	return recs, nil
}

// GetTrendingMatches ranks verified, active, opposite-gender profiles by
// recent activity and view counts over the last week.
func (e *Engine) GetTrendingMatches(ctx context.Context, userID string, limit int) ([]*TrendingMatch, error) {
	limit = clampLimit(limit)
	user, err := e.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	gender := oppositeGender(user.Gender)
	if gender == "" {
		return nil, fmt.Errorf("%w: profile %s has no gender", ErrValidation, user.ID)
	}
	page, err := e.profiles.SearchProfiles(ctx, ProfileFilters{
		Gender:       gender,
		ActiveOnly:   true,
		VerifiedOnly: true,
		Limit:        limit * 5,
	})
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	ids := make([]string, 0, len(page.Profiles))
	for _, p := range page.Profiles {
		if p.ID != userID {
			ids = append(ids, p.ID)
		}
	}
	views, err := e.repo.RecentViewCounts(ctx, ids, now.Add(-trendingWindow))
	if err != nil {
		return nil, err
	}
	maxViews := 0
	for _, v := range views {
		maxViews = max(maxViews, v)
	}

	out := make([]*TrendingMatch, 0, len(ids))
	for _, p := range page.Profiles {
		if p.ID == userID {
			continue
		}
		out = append(out, &TrendingMatch{
			Profile:       p,
			TrendingScore: trendingScore(now, p.LastActiveAt, views[p.ID], maxViews),
			RecentViews:   views[p.ID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TrendingScore != out[j].TrendingScore {
			return out[i].TrendingScore > out[j].TrendingScore
		}
		return out[i].Profile.ID < out[j].Profile.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// trendingScore is 0.6*recency + 0.4*normalized views, both in [0,1]
func trendingScore(now, lastActive time.Time, views, maxViews int) float64 {
	recency := 0.0
	if !lastActive.IsZero() {
		hours := now.Sub(lastActive).Hours()
		recency = math.Max(0, 1-hours/trendingWindow.Hours())
		recency = math.Min(recency, 1)
	}
	viewScore := 0.0
	if maxViews > 0 {
		viewScore = float64(views) / float64(maxViews)
	}
	return 0.6*recency + 0.4*viewScore
}

// CleanupExpired deletes recommendations past their expiry
func (e *Engine) CleanupExpired(ctx context.Context) error {
	n, err := e.repo.DeleteExpiredRecommendations(ctx, e.now().UTC())
	if err != nil {
		return err
	}
	e.log.Info("Cleaned up expired recommendations", "deleted", n)
	return nil
}
