package matching

import (
	"time"

	"github.com/imadgeboyega/kiekky-matchcore/internal/common/logger"
	"github.com/imadgeboyega/kiekky-matchcore/internal/notification"
	"github.com/imadgeboyega/kiekky-matchcore/internal/oracle"
	"github.com/imadgeboyega/kiekky-matchcore/internal/store"
)

type Options struct {
	OracleProvider     string
	ScoringConcurrency int
	CompatibilityTTL   time.Duration
	RecommendationTTL  time.Duration
}

// Service wires the matching components over one store
type Service struct {
	Repo     *Repository
	Scorer   *Scorer
	Learner  *Learner
	Engine   *Engine
	Detector *Detector
}

func NewService(st store.Store, o oracle.Oracle, cache CompatibilityCache, sink notification.Sink, opts Options, log *logger.Logger) *Service {
	repo := NewRepository(st)
	scorer := NewScorer(NewOracleAdapter(o, opts.OracleProvider), repo, repo, cache, opts.CompatibilityTTL, log.With("component", "scorer"))
	learner := NewLearner(repo, repo, scorer, log.With("component", "learner"))
	engine := NewEngine(repo, repo, scorer, learner, sink, EngineConfig{
		Concurrency: opts.ScoringConcurrency,
		TTL:         opts.RecommendationTTL,
	}, log.With("component", "engine"))
	detector := NewDetector(repo, repo, NewKeywordExtractor(), sink, log.With("component", "detector"))

	return &Service{
		Repo:     repo,
		Scorer:   scorer,
		Learner:  learner,
		Engine:   engine,
		Detector: detector,
	}
}

func (s *Service) Handler(log *logger.Logger) *Handler {
	return NewHandler(s.Engine, s.Scorer, s.Learner, s.Detector, log)
}
