package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imadgeboyega/kiekky-matchcore/internal/common/logger"
)

func TestSweepMutualMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{"u1", "u2"} {
		f.putProfile(t, baseProfile(id, id, "female"))
	}
	idle := baseProfile("u3", "u3", "male")
	idle.LastActiveAt = testNow.AddDate(0, 0, -30)
	f.putProfile(t, idle)

	f.putInterest(t, acceptedInterest("i1", "u1", "u2", "", time.Hour))
	f.putInterest(t, acceptedInterest("i2", "u2", "u1", "", time.Hour))
	f.putInterest(t, acceptedInterest("i3", "u1", "u3", "", time.Hour))
	f.putInterest(t, acceptedInterest("i4", "u3", "u1", "", time.Hour))

	s := NewScheduler(f.svc.Engine, f.svc.Detector, f.svc.Repo, SchedulerConfig{}, logger.Nop())
	s.now = func() time.Time { return testNow }
	if err := s.SweepMutualMatches(ctx); err != nil {
		t.Fatalf("SweepMutualMatches: %v", err)
	}

	if _, err := f.svc.Repo.GetMutualMatch(ctx, PairKey("u1", "u2")); err != nil {
		t.Errorf("u1/u2 not matched: %v", err)
	}
	// u1 is active, so its received interest from the idle u3 is still checked
	if _, err := f.svc.Repo.GetMutualMatch(ctx, PairKey("u1", "u3")); err != nil {
		t.Errorf("u1/u3 not matched: %v", err)
	}
}

func TestSchedulerRun_LogsFailures(t *testing.T) {
	s := NewScheduler(nil, nil, nil, SchedulerConfig{}, logger.Nop())
	if s.cfg.SweepInterval != time.Hour || s.cfg.SweepActiveDays != 7 {
		t.Errorf("defaults = %+v", s.cfg)
	}

	called := 0
	s.run(context.Background(), "failing", func(context.Context) error {
		called++
		return errors.New("boom")
	})
	if called != 1 {
		t.Errorf("task ran %d times", called)
	}
}
