package matching

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/imadgeboyega/kiekky-matchcore/internal/common/logger"
	"github.com/imadgeboyega/kiekky-matchcore/internal/notification"
	"github.com/imadgeboyega/kiekky-matchcore/internal/oracle"
	"github.com/imadgeboyega/kiekky-matchcore/internal/store"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// stubOracle returns every dimension at the raw value registered for the
// candidate's name, or fallback. Names in fail return an error.
type stubOracle struct {
	mu       sync.Mutex
	raw      map[string]float64
	fail     map[string]bool
	fallback float64
	calls    atomic.Int32
}

func newStubOracle(fallback float64) *stubOracle {
	return &stubOracle{raw: map[string]float64{}, fail: map[string]bool{}, fallback: fallback}
}

func (s *stubOracle) set(name string, raw float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[name] = raw
}

func (s *stubOracle) failFor(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[name] = true
}

func (s *stubOracle) Evaluate(ctx context.Context, a, b oracle.Summary, prefs *oracle.Preferences) (*oracle.Evaluation, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[b.Name] {
		return nil, oracle.ErrUnavailable
	}
	v, ok := s.raw[b.Name]
	if !ok {
		v = s.fallback
	}
	return &oracle.Evaluation{
		Overall: v, Location: v, Education: v, Religious: v,
		Family: v, Lifestyle: v, Personality: v,
		Explanation:  "stub",
		MatchReasons: []string{"Shared values"},
	}, nil
}

// recordingSink captures notifications and can be told to fail
type recordingSink struct {
	mu   sync.Mutex
	sent []notification.Notification
	err  error
}

func (r *recordingSink) Notify(ctx context.Context, n notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type fixture struct {
	mem    *store.MemoryStore
	oracle *stubOracle
	sink   *recordingSink
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemoryStore()
	o := newStubOracle(95)
	sink := &recordingSink{}
	svc := NewService(mem, o, nil, sink, Options{OracleProvider: "stub", ScoringConcurrency: 4}, logger.Nop())
	clock := func() time.Time { return testNow }
	svc.Scorer.now = clock
	svc.Learner.now = clock
	svc.Engine.now = clock
	svc.Detector.now = clock
	return &fixture{mem: mem, oracle: o, sink: sink, svc: svc}
}

// baseProfile is a complete, verified profile. Profiles built from it share
// every attribute, so classification lands in the top tier of each dimension.
func baseProfile(id, name, gender string) *Profile {
	return &Profile{
		ID:                id,
		Name:              name,
		Age:               28,
		Gender:            gender,
		District:          "Madhubani",
		Block:             "Jainagar",
		Village:           "Basopatti",
		Education:         "Bachelor's",
		Occupation:        "Teacher",
		Skills:            []string{"teaching", "cooking"},
		Sect:              "Maithil",
		ReligiousPractice: "Daily prayer",
		FamilyBackground:  "Educated farming family with strong traditions",
		FamilyType:        "Joint",
		Bio:               "Enjoys reading books, music and travelling with family",
		HasPhoto:          true,
		IsVerified:        true,
		IsActive:          true,
		ProfileComplete:   true,
		LastActiveAt:      testNow.Add(-time.Hour),
		CreatedAt:         testNow.AddDate(-1, 0, 0),
	}
}

func (f *fixture) putProfile(t *testing.T, p *Profile) {
	t.Helper()
	if err := f.mem.Create(context.Background(), ColProfiles, p.ID, p); err != nil {
		t.Fatalf("create profile %s: %v", p.ID, err)
	}
}

func (f *fixture) putPreferences(t *testing.T, p *Preferences) {
	t.Helper()
	if err := f.mem.Create(context.Background(), ColPreferences, p.UserID, p); err != nil {
		t.Fatalf("create preferences %s: %v", p.UserID, err)
	}
}

func (f *fixture) putInterest(t *testing.T, in *Interest) {
	t.Helper()
	if err := f.mem.Create(context.Background(), ColInterests, in.ID, in); err != nil {
		t.Fatalf("create interest %s: %v", in.ID, err)
	}
}

func acceptedInterest(id, from, to, message string, responseDelay time.Duration) *Interest {
	sent := testNow.Add(-48 * time.Hour)
	responded := sent.Add(responseDelay)
	return &Interest{
		ID:          id,
		SenderID:    from,
		ReceiverID:  to,
		Status:      InterestAccepted,
		Message:     message,
		SentAt:      sent,
		RespondedAt: &responded,
	}
}

func (f *fixture) countDocs(t *testing.T, collection string, preds ...store.Predicate) int {
	t.Helper()
	var out []map[string]any
	n, err := f.mem.List(context.Background(), collection, store.Query{Predicates: preds}, &out)
	if err != nil {
		t.Fatalf("list %s: %v", collection, err)
	}
	return n
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("want %v, got %v", target, err)
	}
}
