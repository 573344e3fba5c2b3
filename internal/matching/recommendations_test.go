package matching

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/imadgeboyega/kiekky-matchcore/internal/notification"
	"github.com/imadgeboyega/kiekky-matchcore/internal/store"
)

// seedCandidates stores a female user u1 and male candidates whose stub
// scores blend to 96, 80, 70 and 47.
func seedCandidates(t *testing.T, f *fixture) {
	t.Helper()
	f.putProfile(t, baseProfile("u1", "Asha", "female"))

	raws := []struct {
		id, name string
		raw      float64
	}{
		{"c1", "Ravi", 95},
		{"c2", "Mohan", 71},
		{"c3", "Arun", 51},
		{"c4", "Deepak", 5},
	}
	for _, r := range raws {
		f.oracle.set(r.name, r.raw)
		f.putProfile(t, baseProfile(r.id, r.name, "male"))
	}

	// never candidates
	f.putProfile(t, baseProfile("f2", "Sita", "female"))
	inactive := baseProfile("c5", "Gopal", "male")
	inactive.IsActive = false
	f.putProfile(t, inactive)
}

func profileIDs(recs []*MatchRecommendation) []string {
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ProfileID)
	}
	return ids
}

func TestGetPersonalizedRecommendations(t *testing.T) {
	f := newFixture(t)
	seedCandidates(t, f)

	recs, err := f.svc.Engine.GetPersonalizedRecommendations(context.Background(), "u1", 10, nil)
	if err != nil {
		t.Fatalf("GetPersonalizedRecommendations: %v", err)
	}
	if got, want := profileIDs(recs), []string{"c1", "c2", "c3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("profiles = %v, want %v", got, want)
	}

	wantOverall := []int{96, 80, 70}
	wantPriority := []Priority{PriorityHigh, PriorityMedium, PriorityMedium}
	for i, r := range recs {
		if r.ProfileID == "u1" {
			t.Error("user recommended to themselves")
		}
		if r.CompatibilityScore.Overall != wantOverall[i] {
			t.Errorf("%s overall = %d, want %d", r.ProfileID, r.CompatibilityScore.Overall, wantOverall[i])
		}
		if r.Priority != wantPriority[i] {
			t.Errorf("%s priority = %s, want %s", r.ProfileID, r.Priority, wantPriority[i])
		}
		if r.Reason != "Shared values" {
			t.Errorf("%s reason = %q", r.ProfileID, r.Reason)
		}
		if !r.ExpiresAt.Equal(testNow.Add(DefaultRecommendationTTL)) {
			t.Errorf("%s expiresAt = %v", r.ProfileID, r.ExpiresAt)
		}
		if r.Profile == nil || r.Profile.ID != r.ProfileID {
			t.Errorf("%s carries no profile", r.ProfileID)
		}
	}

	if n := f.countDocs(t, ColRecommendations, store.Eq("userId", "u1")); n != 3 {
		t.Errorf("stored %d recommendations, want 3", n)
	}
	if n := f.countDocs(t, ColSessions); n != 1 {
		t.Errorf("stored %d sessions, want 1", n)
	}
}

func TestGetPersonalizedRecommendations_Limit(t *testing.T) {
	f := newFixture(t)
	seedCandidates(t, f)

	recs, err := f.svc.Engine.GetPersonalizedRecommendations(context.Background(), "u1", 2, nil)
	if err != nil {
		t.Fatalf("GetPersonalizedRecommendations: %v", err)
	}
	if len(recs) > 2 {
		t.Fatalf("got %d recommendations, limit 2", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i-1].CompatibilityScore.Overall < recs[i].CompatibilityScore.Overall {
			t.Errorf("not sorted: %d before %d", recs[i-1].CompatibilityScore.Overall, recs[i].CompatibilityScore.Overall)
		}
	}
	for _, r := range recs {
		if r.CompatibilityScore.Overall < MinRecommendationScore {
			t.Errorf("%s below threshold: %d", r.ProfileID, r.CompatibilityScore.Overall)
		}
	}
	if ids := profileIDs(recs); !reflect.DeepEqual(ids, []string{"c1", "c2"}) {
		t.Errorf("returned %v, want [c1 c2]", ids)
	}
	// the whole ranked batch above the threshold is stored
	if n := f.countDocs(t, ColRecommendations, store.Eq("userId", "u1")); n != 3 {
		t.Errorf("stored %d recommendations, want 3", n)
	}
}

func TestGetPersonalizedRecommendations_Filters(t *testing.T) {
	f := newFixture(t)
	seedCandidates(t, f)
	far := baseProfile("c6", "Vikas", "male")
	far.District = "Patna"
	f.putProfile(t, far)

	recs, err := f.svc.Engine.GetPersonalizedRecommendations(context.Background(), "u1", 10, &RecommendationFilters{Districts: []string{"Patna"}})
	if err != nil {
		t.Fatalf("GetPersonalizedRecommendations: %v", err)
	}
	for _, r := range recs {
		if r.Profile.District != "Patna" {
			t.Errorf("%s from %s ignored the district filter", r.ProfileID, r.Profile.District)
		}
	}
}

func TestGetPersonalizedRecommendations_Errors(t *testing.T) {
	t.Run("missing profile", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Engine.GetPersonalizedRecommendations(context.Background(), "ghost", 10, nil)
		wantErr(t, err, ErrNotFound)
	})

	t.Run("every candidate fails", func(t *testing.T) {
		f := newFixture(t)
		seedCandidates(t, f)
		for _, name := range []string{"Ravi", "Mohan", "Arun", "Deepak"} {
			f.oracle.failFor(name)
		}
		_, err := f.svc.Engine.GetPersonalizedRecommendations(context.Background(), "u1", 10, nil)
		wantErr(t, err, ErrDependency)
	})

	t.Run("partial failure drops the candidate", func(t *testing.T) {
		f := newFixture(t)
		seedCandidates(t, f)
		f.oracle.failFor("Ravi")
		recs, err := f.svc.Engine.GetPersonalizedRecommendations(context.Background(), "u1", 10, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got, want := profileIDs(recs), []string{"c2", "c3"}; !reflect.DeepEqual(got, want) {
			t.Errorf("profiles = %v, want %v", got, want)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		f := newFixture(t)
		f.putProfile(t, baseProfile("u1", "Asha", "female"))
		recs, err := f.svc.Engine.GetPersonalizedRecommendations(context.Background(), "u1", 10, nil)
		if err != nil || len(recs) != 0 {
			t.Errorf("got %d recs, err %v", len(recs), err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := newFixture(t)
		seedCandidates(t, f)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := f.svc.Engine.GetPersonalizedRecommendations(ctx, "u1", 10, nil); err == nil {
			t.Error("expected an error for a cancelled context")
		}
	})
}

func TestRank(t *testing.T) {
	mk := func(id string, overall int) scoredCandidate {
		return scoredCandidate{profile: &Profile{ID: id}, score: &CompatibilityScore{Overall: overall}}
	}
	tests := []struct {
		name string
		ld   *LearningData
		in   []scoredCandidate
		want []string
	}{
		{"by overall", &LearningData{}, []scoredCandidate{mk("a", 70), mk("b", 90), mk("c", 80)}, []string{"b", "c", "a"}},
		{"ties by id", nil, []scoredCandidate{mk("b", 75), mk("a", 75)}, []string{"a", "b"}},
		{"bonus never beats a higher overall", &LearningData{AverageCompatibilityOfInterests: 70}, []scoredCandidate{mk("a", 82), mk("b", 79)}, []string{"a", "b"}},
		{"near learned average", &LearningData{AverageCompatibilityOfInterests: 72}, []scoredCandidate{mk("b", 80), mk("a", 83)}, []string{"a", "b"}},
		{
			"accept rate bonus",
			&LearningData{SentInterests: 10, AcceptedInterests: 4},
			[]scoredCandidate{mk("a", 81), mk("b", 79), mk("c", 82)},
			[]string{"c", "a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rank(tt.in, tt.ld)
			ids := make([]string, 0, len(got))
			for _, sc := range got {
				ids = append(ids, sc.profile.ID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("got %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestRank_CarriesBonus(t *testing.T) {
	ld := &LearningData{AverageCompatibilityOfInterests: 70}
	got := rank([]scoredCandidate{
		{profile: &Profile{ID: "b"}, score: &CompatibilityScore{Overall: 79}},
		{profile: &Profile{ID: "a"}, score: &CompatibilityScore{Overall: 82}},
	}, ld)
	if got[0].profile.ID != "a" || got[0].bonus != 0 {
		t.Errorf("first = %s bonus %v, want a bonus 0", got[0].profile.ID, got[0].bonus)
	}
	if got[1].profile.ID != "b" || got[1].bonus != 5 {
		t.Errorf("second = %s bonus %v, want b bonus 5", got[1].profile.ID, got[1].bonus)
	}
}

func TestLearningBonus(t *testing.T) {
	ld := &LearningData{AverageCompatibilityOfInterests: 75, SentInterests: 10, AcceptedInterests: 4}
	tests := []struct {
		overall int
		want    float64
	}{
		{65, 5},
		{60, 0},
		{80, 8},
		{86, 3},
	}
	for _, tt := range tests {
		if got := learningBonus(ld, tt.overall); got != tt.want {
			t.Errorf("learningBonus(%d) = %v, want %v", tt.overall, got, tt.want)
		}
	}
	inflated := &LearningData{SentInterests: 1, AcceptedInterests: 5}
	if got := inflated.AcceptRate(); got != 1 {
		t.Errorf("accept rate = %v, want capped at 1", got)
	}
	if got := learningBonus(nil, 90); got != 0 {
		t.Errorf("nil learning data bonus = %v", got)
	}
}

func TestEffectiveFilters(t *testing.T) {
	male := &Profile{ID: "u1", Gender: "Male"}
	yes, no := true, false

	tests := []struct {
		name     string
		user     *Profile
		prefs    *Preferences
		ld       *LearningData
		override *RecommendationFilters
		want     ProfileFilters
		wantErr  error
	}{
		{
			name: "defaults",
			user: male,
			want: ProfileFilters{Gender: "female", ActiveOnly: true, Limit: 20},
		},
		{
			name:    "unknown gender",
			user:    &Profile{ID: "u2", Gender: "other"},
			wantErr: ErrValidation,
		},
		{
			name:  "learned range widens explicit range",
			user:  male,
			prefs: &Preferences{AgeRange: &AgeRange{Min: 25, Max: 30}},
			ld:    &LearningData{PreferredAgeRange: &AgeRange{Min: 22, Max: 35}},
			want:  ProfileFilters{Gender: "female", ActiveOnly: true, Limit: 20, AgeMin: 22, AgeMax: 35, Districts: []string{}, Education: []string{}},
		},
		{
			name: "learned range alone does not constrain",
			user: male,
			ld:   &LearningData{PreferredAgeRange: &AgeRange{Min: 22, Max: 35}, PreferredLocations: []string{"Darbhanga"}},
			want: ProfileFilters{Gender: "female", ActiveOnly: true, Limit: 20},
		},
		{
			name:  "learned locations join explicit ones",
			user:  male,
			prefs: &Preferences{Districts: []string{"Madhubani"}, Education: []string{"Master's"}, VerifiedOnly: true},
			ld:    &LearningData{PreferredLocations: []string{"madhubani", "Darbhanga"}, PreferredEducation: []string{"Doctorate"}},
			want: ProfileFilters{
				Gender: "female", ActiveOnly: true, Limit: 20, VerifiedOnly: true,
				Districts: []string{"Madhubani", "Darbhanga"},
				Education: []string{"Master's", "Doctorate"},
			},
		},
		{
			name:     "overrides win",
			user:     male,
			prefs:    &Preferences{Districts: []string{"Madhubani"}, VerifiedOnly: true, Sect: "Maithil"},
			override: &RecommendationFilters{Districts: []string{"Patna"}, VerifiedOnly: &no, HasPhoto: &yes, Sect: "Kanyakubja", AgeMin: 24},
			want: ProfileFilters{
				Gender: "female", ActiveOnly: true, Limit: 20, HasPhoto: true, AgeMin: 24,
				Sect: "Kanyakubja", Districts: []string{"Patna"}, Education: []string{},
			},
		},
		{
			name:     "empty age range",
			user:     male,
			prefs:    &Preferences{AgeRange: &AgeRange{Min: 25, Max: 30}},
			override: &RecommendationFilters{AgeMin: 40},
			wantErr:  ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := effectiveFilters(tt.user, tt.prefs, tt.ld, tt.override, 10)
			if tt.wantErr != nil {
				wantErr(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got.Districts) == 0 && len(tt.want.Districts) == 0 {
				got.Districts, tt.want.Districts = nil, nil
			}
			if len(got.Education) == 0 && len(tt.want.Education) == 0 {
				got.Education, tt.want.Education = nil, nil
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v\nwant %+v", got, tt.want)
			}
		})
	}
}

func TestClampLimit(t *testing.T) {
	tests := map[int]int{-1: DefaultLimit, 0: DefaultLimit, 5: 5, MaxLimit: MaxLimit, 500: MaxLimit}
	for in, want := range tests {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func saveRec(t *testing.T, f *fixture, id, userID, profileID string, score float64, generated, expires time.Time) {
	t.Helper()
	err := f.svc.Repo.SaveRecommendation(context.Background(), &MatchRecommendation{
		ID:          id,
		UserID:      userID,
		ProfileID:   profileID,
		Score:       score,
		GeneratedAt: generated,
		ExpiresAt:   expires,
	})
	if err != nil {
		t.Fatalf("save recommendation %s: %v", id, err)
	}
}

func TestGetCachedRecommendations(t *testing.T) {
	f := newFixture(t)
	week := testNow.Add(6 * 24 * time.Hour)
	saveRec(t, f, "r1", "u1", "c1", 80, testNow.Add(-25*time.Hour), week)
	saveRec(t, f, "r2", "u1", "c2", 70, testNow.Add(-time.Hour), week)
	saveRec(t, f, "r3", "u1", "c3", 90, testNow.Add(-30*time.Minute), week)
	saveRec(t, f, "r4", "u1", "c4", 95, testNow.Add(-2*time.Hour), testNow.Add(-time.Minute))
	saveRec(t, f, "r5", "u2", "c5", 99, testNow.Add(-time.Hour), week)

	recs, err := f.svc.Engine.GetCachedRecommendations(context.Background(), "u1", 24)
	if err != nil {
		t.Fatalf("GetCachedRecommendations: %v", err)
	}
	if got, want := profileIDs(recs), []string{"c3", "c2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("profiles = %v, want %v", got, want)
	}

	recs, _ = f.svc.Engine.GetCachedRecommendations(context.Background(), "u1", 48)
	if len(recs) != 3 {
		t.Errorf("48h window returned %d, want 3", len(recs))
	}
	if n := f.oracle.calls.Load(); n != 0 {
		t.Errorf("cached read scored %d candidates", n)
	}
}

func TestRefreshRecommendations(t *testing.T) {
	f := newFixture(t)
	seedCandidates(t, f)
	saveRec(t, f, "old", "u1", "gone", 99, testNow.Add(-time.Hour), testNow.Add(time.Hour))

	recs, err := f.svc.Engine.RefreshRecommendations(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("RefreshRecommendations: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d recommendations", len(recs))
	}
	if n := f.countDocs(t, ColRecommendations, store.Eq("profileId", "gone")); n != 0 {
		t.Error("old recommendation survived a refresh")
	}
	if n := f.countDocs(t, ColRecommendations); n != 3 {
		t.Errorf("stored %d recommendations, want 3", n)
	}
	if f.sink.count() != 1 || f.sink.sent[0].Type != notification.TypeRecommendationReady || f.sink.sent[0].UserID != "u1" {
		t.Errorf("notifications = %+v", f.sink.sent)
	}

	_, err = f.svc.Engine.RefreshRecommendations(context.Background(), "ghost", 10)
	wantErr(t, err, ErrNotFound)
}

func TestGetTrendingMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putProfile(t, baseProfile("u1", "Asha", "female"))

	recent := baseProfile("c1", "Ravi", "male")
	f.putProfile(t, recent)
	viewed := baseProfile("c2", "Mohan", "male")
	viewed.LastActiveAt = testNow.Add(-72 * time.Hour)
	f.putProfile(t, viewed)
	unverified := baseProfile("c3", "Arun", "male")
	unverified.IsVerified = false
	f.putProfile(t, unverified)

	for i, viewer := range []string{"v1", "v2", "v3"} {
		in := &Interaction{
			ID:           "view-" + viewer,
			UserID:       viewer,
			TargetUserID: "c2",
			Type:         InteractionView,
			CreatedAt:    testNow.Add(-time.Duration(i+1) * time.Hour),
		}
		if err := f.svc.Repo.LogInteraction(ctx, in); err != nil {
			t.Fatalf("log view: %v", err)
		}
	}
	stale := &Interaction{ID: "stale", UserID: "v4", TargetUserID: "c1", Type: InteractionView, CreatedAt: testNow.Add(-10 * 24 * time.Hour)}
	if err := f.svc.Repo.LogInteraction(ctx, stale); err != nil {
		t.Fatalf("log stale view: %v", err)
	}

	trending, err := f.svc.Engine.GetTrendingMatches(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("GetTrendingMatches: %v", err)
	}
	if len(trending) != 2 {
		t.Fatalf("got %d trending profiles, want 2", len(trending))
	}
	if trending[0].Profile.ID != "c2" || trending[0].RecentViews != 3 {
		t.Errorf("first = %s with %d views", trending[0].Profile.ID, trending[0].RecentViews)
	}
	if trending[1].Profile.ID != "c1" || trending[1].RecentViews != 0 {
		t.Errorf("second = %s with %d views", trending[1].Profile.ID, trending[1].RecentViews)
	}
}

func TestTrendingScore(t *testing.T) {
	tests := []struct {
		name       string
		lastActive time.Time
		views, max int
		want       float64
	}{
		{"just active, most viewed", testNow, 10, 10, 1},
		{"never active, no views", time.Time{}, 0, 0, 0},
		{"a week idle", testNow.Add(-trendingWindow), 5, 10, 0.2},
		{"future activity is capped", testNow.Add(time.Hour), 0, 0, 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := trendingScore(testNow, tt.lastActive, tt.views, tt.max)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCleanupExpired(t *testing.T) {
	f := newFixture(t)
	saveRec(t, f, "fresh", "u1", "c1", 80, testNow, testNow.Add(time.Hour))
	saveRec(t, f, "stale1", "u1", "c2", 80, testNow.Add(-8*24*time.Hour), testNow.Add(-time.Hour))
	saveRec(t, f, "stale2", "u2", "c3", 80, testNow.Add(-8*24*time.Hour), testNow.Add(-time.Minute))

	if err := f.svc.Engine.CleanupExpired(context.Background()); err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if n := f.countDocs(t, ColRecommendations); n != 1 {
		t.Errorf("%d recommendations left, want 1", n)
	}
}
