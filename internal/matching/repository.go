package matching

import (
	"context"
	"errors"
	"time"

	"github.com/imadgeboyega/kiekky-matchcore/internal/store"
)

// Upper bounds for client-side aggregation over list results.
const (
	maxPageSize     = 500
	maxViewScan     = 5000
	maxInterestScan = 200
)

// Repository is the typed view of the document store used by the matching
// core. It also serves as the default Profile and Interest provider.
type Repository struct {
	store store.Store
}

func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// Profiles

func (r *Repository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	if err := r.store.Get(ctx, ColProfiles, userID, &p); err != nil {
		return nil, storeErr("get profile", err)
	}
	return &p, nil
}

func (r *Repository) SearchProfiles(ctx context.Context, f ProfileFilters) (*ProfilePage, error) {
	var preds []store.Predicate
	if f.Gender != "" {
		preds = append(preds, store.Eq("gender", f.Gender))
	}
	if f.ActiveOnly {
		preds = append(preds, store.Eq("isActive", true))
	}
	if f.VerifiedOnly {
		preds = append(preds, store.Eq("isVerified", true))
	}
	if f.HasPhoto {
		preds = append(preds, store.Eq("hasPhoto", true))
	}
	if f.AgeMin > 0 {
		preds = append(preds, store.Gte("age", f.AgeMin))
	}
	if f.AgeMax > 0 {
		preds = append(preds, store.Lte("age", f.AgeMax))
	}
	if len(f.Districts) > 0 {
		preds = append(preds, store.InStrings("district", f.Districts))
	}
	if len(f.Education) > 0 {
		preds = append(preds, store.InStrings("education", f.Education))
	}
	if f.Sect != "" {
		preds = append(preds, store.Eq("sect", f.Sect))
	}

	limit := f.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	var profiles []*Profile
	total, err := r.store.List(ctx, ColProfiles, store.Query{
		Predicates: preds,
		Sort:       []store.Sort{{Field: "lastActiveAt", Desc: true, Time: true}},
		Limit:      limit,
		Offset:     f.Offset,
	}, &profiles)
	if err != nil {
		return nil, storeErr("search profiles", err)
	}
	return &ProfilePage{
		Profiles: profiles,
		Total:    total,
		HasMore:  f.Offset+len(profiles) < total,
	}, nil
}

// ActiveUserIDs returns users active since the given time, most recent first
func (r *Repository) ActiveUserIDs(ctx context.Context, since time.Time, limit int) ([]string, error) {
	var profiles []*Profile
	_, err := r.store.List(ctx, ColProfiles, store.Query{
		Predicates: []store.Predicate{
			store.Eq("isActive", true),
			store.Gte("lastActiveAt", since),
		},
		Sort:  []store.Sort{{Field: "lastActiveAt", Desc: true, Time: true}},
		Limit: limit,
	}, &profiles)
	if err != nil {
		return nil, storeErr("list active users", err)
	}
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// Preferences

func (r *Repository) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	var p Preferences
	if err := r.store.Get(ctx, ColPreferences, userID, &p); err != nil {
		return nil, storeErr("get preferences", err)
	}
	return &p, nil
}

// Interests

func (r *Repository) GetSentInterests(ctx context.Context, userID string, f *InterestFilters) ([]*Interest, error) {
	return r.listInterests(ctx, "senderId", "receiverId", userID, f)
}

func (r *Repository) GetReceivedInterests(ctx context.Context, userID string, f *InterestFilters) ([]*Interest, error) {
	return r.listInterests(ctx, "receiverId", "senderId", userID, f)
}

func (r *Repository) listInterests(ctx context.Context, selfField, otherField, userID string, f *InterestFilters) ([]*Interest, error) {
	preds := []store.Predicate{store.Eq(selfField, userID)}
	limit := maxInterestScan
	if f != nil {
		if f.CounterpartID != "" {
			preds = append(preds, store.Eq(otherField, f.CounterpartID))
		}
		if f.Status != "" {
			preds = append(preds, store.Eq("status", string(f.Status)))
		}
		if f.Limit > 0 && f.Limit < limit {
			limit = f.Limit
		}
	}

	var interests []*Interest
	_, err := r.store.List(ctx, ColInterests, store.Query{
		Predicates: preds,
		Sort:       []store.Sort{{Field: "sentAt", Desc: true, Time: true}},
		Limit:      limit,
	}, &interests)
	if err != nil {
		return nil, storeErr("list interests", err)
	}
	return interests, nil
}

// Compatibility scores

func (r *Repository) SaveCompatibility(ctx context.Context, cs *CompatibilityScore) error {
	err := r.store.Create(ctx, ColCompatibility, cs.ID, cs, store.WithACL(cs.UserID))
	return storeErr("save compatibility", err)
}

// LatestCompatibility returns the newest record for the ordered pair that
// expires after now.
func (r *Repository) LatestCompatibility(ctx context.Context, userID, candidateID string, now time.Time) (*CompatibilityScore, error) {
	var scores []*CompatibilityScore
	_, err := r.store.List(ctx, ColCompatibility, store.Query{
		Predicates: []store.Predicate{
			store.Eq("userId", userID),
			store.Eq("candidateUserId", candidateID),
			store.Gt("expiresAt", now),
		},
		Sort:  []store.Sort{{Field: "computedAt", Desc: true, Time: true}},
		Limit: 1,
	}, &scores)
	if err != nil {
		return nil, storeErr("get compatibility", err)
	}
	if len(scores) == 0 {
		return nil, ErrCacheMiss
	}
	return scores[0], nil
}

// Learning data

func (r *Repository) GetLearningData(ctx context.Context, userID string) (*LearningData, error) {
	var ld LearningData
	if err := r.store.Get(ctx, ColLearning, userID, &ld); err != nil {
		return nil, storeErr("get learning data", err)
	}
	return &ld, nil
}

// SaveLearningData writes the whole record. Last writer wins.
func (r *Repository) SaveLearningData(ctx context.Context, ld *LearningData) error {
	err := r.store.Update(ctx, ColLearning, ld.UserID, ld.patch())
	if err == nil {
		return nil
	}
	if !isStoreNotFound(err) {
		return storeErr("update learning data", err)
	}
	err = r.store.Create(ctx, ColLearning, ld.UserID, ld, store.WithACL(ld.UserID))
	if isStoreConflict(err) {
		// lost a create race; overwrite
		err = r.store.Update(ctx, ColLearning, ld.UserID, ld.patch())
	}
	return storeErr("save learning data", err)
}

func (l *LearningData) patch() map[string]any {
	p := map[string]any{
		"preferredEducation":              l.PreferredEducation,
		"preferredOccupations":            l.PreferredOccupations,
		"preferredLocations":              l.PreferredLocations,
		"preferredSects":                  l.PreferredSects,
		"viewedProfiles":                  l.ViewedProfiles,
		"sentInterests":                   l.SentInterests,
		"acceptedInterests":               l.AcceptedInterests,
		"favoritedProfiles":               l.FavoritedProfiles,
		"skippedProfiles":                 l.SkippedProfiles,
		"feedbackCount":                   l.FeedbackCount,
		"averageCompatibilityOfInterests": l.AverageCompatibilityOfInterests,
		"updatedAt":                       l.UpdatedAt,
	}
	if l.PreferredAgeRange != nil {
		p["preferredAgeRange"] = map[string]any{"min": l.PreferredAgeRange.Min, "max": l.PreferredAgeRange.Max}
	}
	return p
}

// Recommendations

func (r *Repository) SaveRecommendation(ctx context.Context, rec *MatchRecommendation) error {
	err := r.store.Create(ctx, ColRecommendations, rec.ID, rec, store.WithACL(rec.UserID))
	return storeErr("save recommendation", err)
}

// ListRecommendations returns the user's recommendations generated at or after
// since, best score first. A zero since lists everything.
func (r *Repository) ListRecommendations(ctx context.Context, userID string, since time.Time, limit int) ([]*MatchRecommendation, error) {
	preds := []store.Predicate{store.Eq("userId", userID)}
	if !since.IsZero() {
		preds = append(preds, store.Gte("generatedAt", since))
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	var recs []*MatchRecommendation
	_, err := r.store.List(ctx, ColRecommendations, store.Query{
		Predicates: preds,
		Sort:       []store.Sort{{Field: "score", Desc: true}},
		Limit:      limit,
	}, &recs)
	if err != nil {
		return nil, storeErr("list recommendations", err)
	}
	return recs, nil
}

// DeleteRecommendations removes every recommendation of the user
func (r *Repository) DeleteRecommendations(ctx context.Context, userID string) (int, error) {
	return r.deleteWhere(ctx, ColRecommendations, store.Eq("userId", userID))
}

func (r *Repository) DeleteExpiredRecommendations(ctx context.Context, now time.Time) (int, error) {
	return r.deleteWhere(ctx, ColRecommendations, store.Lt("expiresAt", now))
}

// deleteWhere lists matching ids page by page and deletes them. Documents
// deleted concurrently are skipped.
func (r *Repository) deleteWhere(ctx context.Context, collection string, pred store.Predicate) (int, error) {
	deleted := 0
	for {
		var page []struct {
			ID string `json:"id" bson:"_id"`
		}
		_, err := r.store.List(ctx, collection, store.Query{
			Predicates: []store.Predicate{pred},
			Limit:      maxPageSize,
		}, &page)
		if err != nil {
			return deleted, storeErr("list "+collection, err)
		}
		if len(page) == 0 {
			return deleted, nil
		}
		progressed := false
		for _, doc := range page {
			err := r.store.Delete(ctx, collection, doc.ID)
			switch {
			case err == nil:
				deleted++
				progressed = true
			case isStoreNotFound(err):
			default:
				return deleted, storeErr("delete "+collection, err)
			}
		}
		if !progressed {
			return deleted, nil
		}
	}
}

func (r *Repository) SaveSession(ctx context.Context, s *RecommendationSession) error {
	err := r.store.Create(ctx, ColSessions, s.ID, s, store.WithACL(s.UserID))
	return storeErr("save recommendation session", err)
}

// Mutual matches

// CreateMutualMatch is a conditional insert on the canonical pair key.
// Returns ErrExists when the pair already has a record.
func (r *Repository) CreateMutualMatch(ctx context.Context, m *MutualMatch) error {
	err := r.store.Create(ctx, ColMutualMatches, m.ID, m, store.WithACL(m.User1ID, m.User2ID))
	return storeErr("create mutual match", err)
}

func (r *Repository) GetMutualMatch(ctx context.Context, id string) (*MutualMatch, error) {
	var m MutualMatch
	if err := r.store.Get(ctx, ColMutualMatches, id, &m); err != nil {
		return nil, storeErr("get mutual match", err)
	}
	return &m, nil
}

func (r *Repository) ListUserMatches(ctx context.Context, userID string, status MatchStatus, limit int) ([]*MutualMatch, error) {
	preds := []store.Predicate{
		store.Or(store.Eq("user1Id", userID), store.Eq("user2Id", userID)),
	}
	if status != "" {
		preds = append(preds, store.Eq("status", string(status)))
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	var matches []*MutualMatch
	_, err := r.store.List(ctx, ColMutualMatches, store.Query{
		Predicates: preds,
		Sort:       []store.Sort{{Field: "matchedAt", Desc: true, Time: true}},
		Limit:      limit,
	}, &matches)
	if err != nil {
		return nil, storeErr("list mutual matches", err)
	}
	return matches, nil
}

func (r *Repository) UpdateMatchStatus(ctx context.Context, id string, status MatchStatus, by string, at time.Time) error {
	err := r.store.Update(ctx, ColMutualMatches, id, map[string]any{
		"status":          string(status),
		"statusUpdatedAt": at,
		"statusUpdatedBy": by,
	})
	return storeErr("update mutual match", err)
}

// ClaimInterestOutcome is a conditional insert keyed by interest id.
// Returns ErrExists when the outcome was already counted.
func (r *Repository) ClaimInterestOutcome(ctx context.Context, o *InterestOutcome) error {
	err := r.store.Create(ctx, ColInterestOutcome, o.InterestID, o, store.WithACL(o.SenderID, o.ReceiverID))
	return storeErr("claim interest outcome", err)
}

// Interaction and feedback logs

func (r *Repository) LogInteraction(ctx context.Context, in *Interaction) error {
	err := r.store.Create(ctx, ColInteractions, in.ID, in, store.WithACL(in.UserID))
	return storeErr("log interaction", err)
}

func (r *Repository) LogFeedback(ctx context.Context, fb *FeedbackRecord) error {
	err := r.store.Create(ctx, ColFeedback, fb.ID, fb, store.WithACL(fb.UserID))
	return storeErr("log feedback", err)
}

// RecentViewCounts counts view interactions per target since the given time.
// The store has no aggregation, so counting happens over a bounded scan.
func (r *Repository) RecentViewCounts(ctx context.Context, targetIDs []string, since time.Time) (map[string]int, error) {
	counts := make(map[string]int, len(targetIDs))
	if len(targetIDs) == 0 {
		return counts, nil
	}
	var views []*Interaction
	_, err := r.store.List(ctx, ColInteractions, store.Query{
		Predicates: []store.Predicate{
			store.Eq("type", string(InteractionView)),
			store.InStrings("targetUserId", targetIDs),
			store.Gte("createdAt", since),
		},
		Limit: maxViewScan,
	}, &views)
	if err != nil {
		return nil, storeErr("count views", err)
	}
	for _, v := range views {
		counts[v.TargetUserID]++
	}
	return counts, nil
}

func isStoreNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }
func isStoreConflict(err error) bool { return errors.Is(err, store.ErrConflict) }
