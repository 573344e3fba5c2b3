package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/imadgeboyega/kiekky-matchcore/internal/common/logger"
)

type BreakerConfig struct {
	Name         string
	MinRequests  uint32
	FailureRatio float64
	OpenTimeout  time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "scoring-oracle",
		MinRequests:  10,
		FailureRatio: 0.6,
		OpenTimeout:  time.Minute,
	}
}

// Breaker stops calling a failing oracle until it recovers. Open-circuit
// rejections surface as ErrUnavailable.
type Breaker struct {
	next Oracle
	cb   *gobreaker.CircuitBreaker[*Evaluation]
	name string
	log  *logger.Logger
}

func NewBreaker(next Oracle, cfg BreakerConfig, log *logger.Logger) *Breaker {
	breakerState.WithLabelValues(cfg.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*Evaluation](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= cfg.FailureRatio {
				log.Warn("Opening oracle circuit", "failures", counts.TotalFailures, "failure_ratio", ratio)
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("Oracle circuit state transition", "from", from.String(), "to", to.String())
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
			breakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		// a caller giving up is not an oracle failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Breaker{next: next, cb: cb, name: cfg.Name, log: log}
}

func (br *Breaker) Evaluate(ctx context.Context, a, b Summary, prefs *Preferences) (*Evaluation, error) {
	eval, err := br.cb.Execute(func() (*Evaluation, error) {
		return br.next.Evaluate(ctx, a, b, prefs)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		requestsTotal.WithLabelValues(br.name, "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return eval, err
}

func (br *Breaker) State() gobreaker.State {
	return br.cb.State()
}
