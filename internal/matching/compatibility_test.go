package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string]*CompatibilityScore
	err  error
}

func newMapCache() *mapCache { return &mapCache{data: map[string]*CompatibilityScore{}} }

func (c *mapCache) Get(ctx context.Context, userID, candidateID string) (*CompatibilityScore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	cs, ok := c.data[compatKey(userID, candidateID)]
	if !ok {
		return nil, ErrCacheMiss
	}
	return cs, nil
}

func (c *mapCache) Set(ctx context.Context, cs *CompatibilityScore) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.data[compatKey(cs.UserID, cs.CandidateUserID)] = cs
	return nil
}

func TestScore_RejectsSelf(t *testing.T) {
	f := newFixture(t)
	p := baseProfile("u1", "Asha", "female")

	_, err := f.svc.Scorer.Score(context.Background(), p, p, nil)
	wantErr(t, err, ErrValidation)

	_, err = f.svc.Scorer.CompatibilityFor(context.Background(), "u1", "u1")
	wantErr(t, err, ErrValidation)

	if n := f.oracle.calls.Load(); n != 0 {
		t.Errorf("oracle called %d times for a self score", n)
	}
}

func TestScore_Persists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := baseProfile("u1", "Asha", "female")
	c := baseProfile("c1", "Ravi", "male")

	cs, err := f.svc.Scorer.Score(ctx, u, c, nil)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if cs.Overall != 96 || cs.ConfidenceLevel != ConfidenceHigh {
		t.Errorf("got overall %d confidence %s", cs.Overall, cs.ConfidenceLevel)
	}
	if !cs.ExpiresAt.Equal(testNow.Add(DefaultCompatibilityTTL)) {
		t.Errorf("expiresAt = %v", cs.ExpiresAt)
	}
	if cs.PotentialConcerns == nil || len(cs.MatchReasons) != 1 {
		t.Errorf("reasons %v concerns %v", cs.MatchReasons, cs.PotentialConcerns)
	}
	if n := f.countDocs(t, ColCompatibility); n != 1 {
		t.Fatalf("stored %d scores, want 1", n)
	}
	if acl := f.mem.ACL(ColCompatibility, cs.ID); len(acl) != 1 || acl[0] != "u1" {
		t.Errorf("acl = %v", acl)
	}

	cached, err := f.svc.Scorer.GetCachedCompatibility(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("GetCachedCompatibility: %v", err)
	}
	if cached.ID != cs.ID || cached.Overall != cs.Overall {
		t.Errorf("cached %s/%d, want %s/%d", cached.ID, cached.Overall, cs.ID, cs.Overall)
	}

	// the pair is ordered
	_, err = f.svc.Scorer.GetCachedCompatibility(ctx, "c1", "u1")
	wantErr(t, err, ErrCacheMiss)
}

func TestGetCachedCompatibility_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Scorer.Score(ctx, baseProfile("u1", "Asha", "female"), baseProfile("c1", "Ravi", "male"), nil); err != nil {
		t.Fatalf("Score: %v", err)
	}

	f.svc.Scorer.now = func() time.Time { return testNow.Add(DefaultCompatibilityTTL + time.Second) }
	_, err := f.svc.Scorer.GetCachedCompatibility(ctx, "u1", "c1")
	wantErr(t, err, ErrCacheMiss)
}

func TestGetOrCompute_ScoresOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := baseProfile("u1", "Asha", "female")
	c := baseProfile("c1", "Ravi", "male")

	first, err := f.svc.Scorer.GetOrCompute(ctx, u, c, nil)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := f.svc.Scorer.GetOrCompute(ctx, u, c, nil)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second call recomputed: %s != %s", first.ID, second.ID)
	}
	if n := f.oracle.calls.Load(); n != 1 {
		t.Errorf("oracle called %d times, want 1", n)
	}

	// after expiry a new record is written and the old one is left alone
	f.svc.Scorer.now = func() time.Time { return testNow.Add(DefaultCompatibilityTTL + time.Hour) }
	third, err := f.svc.Scorer.GetOrCompute(ctx, u, c, nil)
	if err != nil {
		t.Fatalf("third: %v", err)
	}
	if third.ID == first.ID {
		t.Error("expired score was reused")
	}
	if n := f.countDocs(t, ColCompatibility); n != 2 {
		t.Errorf("stored %d scores, want 2", n)
	}
}

func TestScore_OracleFailure(t *testing.T) {
	f := newFixture(t)
	f.oracle.failFor("Ravi")

	_, err := f.svc.Scorer.Score(context.Background(), baseProfile("u1", "Asha", "female"), baseProfile("c1", "Ravi", "male"), nil)
	wantErr(t, err, ErrDependency)
	if n := f.countDocs(t, ColCompatibility); n != 0 {
		t.Errorf("stored %d scores after failure", n)
	}
}

func TestScorer_HotCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := newMapCache()
	f.svc.Scorer.cache = cache

	u := baseProfile("u1", "Asha", "female")
	c := baseProfile("c1", "Ravi", "male")
	cs, err := f.svc.Scorer.Score(ctx, u, c, nil)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got, _ := cache.Get(ctx, "u1", "c1"); got == nil || got.ID != cs.ID {
		t.Fatal("score was not written to the hot cache")
	}

	// a store hit backfills an empty cache
	cache.data = map[string]*CompatibilityScore{}
	if _, err := f.svc.Scorer.GetCachedCompatibility(ctx, "u1", "c1"); err != nil {
		t.Fatalf("GetCachedCompatibility: %v", err)
	}
	if _, err := cache.Get(ctx, "u1", "c1"); err != nil {
		t.Errorf("cache not backfilled: %v", err)
	}

	// a broken cache falls through to the store
	cache.err = errors.New("connection refused")
	got, err := f.svc.Scorer.GetOrCompute(ctx, u, c, nil)
	if err != nil {
		t.Fatalf("GetOrCompute with broken cache: %v", err)
	}
	if got.ID != cs.ID {
		t.Errorf("got %s, want stored %s", got.ID, cs.ID)
	}
	if n := f.oracle.calls.Load(); n != 1 {
		t.Errorf("oracle called %d times, want 1", n)
	}
}

func TestCompatibilityFor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putProfile(t, baseProfile("u1", "Asha", "female"))
	f.putProfile(t, baseProfile("c1", "Ravi", "male"))

	cs, err := f.svc.Scorer.CompatibilityFor(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("CompatibilityFor: %v", err)
	}
	if cs.UserID != "u1" || cs.CandidateUserID != "c1" {
		t.Errorf("pair = %s/%s", cs.UserID, cs.CandidateUserID)
	}

	_, err = f.svc.Scorer.CompatibilityFor(ctx, "u1", "missing")
	wantErr(t, err, ErrNotFound)
	_, err = f.svc.Scorer.CompatibilityFor(ctx, "missing", "c1")
	wantErr(t, err, ErrNotFound)
}
