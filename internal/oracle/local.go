package oracle

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// LocalOracle is a deterministic stand-in for the remote oracle. It scores a
// pair from field equality alone and is meant for development and tests.
type LocalOracle struct{}

func NewLocalOracle() *LocalOracle {
	return &LocalOracle{}
}

func (LocalOracle) Evaluate(ctx context.Context, a, b Summary, prefs *Preferences) (*Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { requestDuration.WithLabelValues("local").Observe(time.Since(start).Seconds()) }()

	e := &Evaluation{
		Location:    tiered(a.Village, b.Village, 100, tiered(a.Block, b.Block, 85, tiered(a.District, b.District, 70, 40))),
		Education:   tiered(a.Education, b.Education, 95, 65),
		Religious:   tiered(a.Sect, b.Sect, tiered(a.ReligiousPractice, b.ReligiousPractice, 95, 80), 40),
		Family:      tiered(a.FamilyType, b.FamilyType, 80, 60),
		Lifestyle:   tiered(a.Occupation, b.Occupation, 85, 65),
		Personality: 65,
	}
	if a.Bio != "" && b.Bio != "" {
		e.Personality = 70
	}

	e.Overall = math.Round((e.Location*0.2 + e.Education*0.2 + e.Religious*0.2 +
		e.Family*0.15 + e.Lifestyle*0.15 + e.Personality*0.1))

	if e.Location >= 70 {
		e.MatchReasons = append(e.MatchReasons, "Lives in the same area")
	}
	if e.Religious >= 80 {
		e.MatchReasons = append(e.MatchReasons, "Shares religious background")
	}
	if e.Education >= 95 {
		e.MatchReasons = append(e.MatchReasons, "Similar education")
	}
	if e.Religious < 50 {
		e.PotentialConcerns = append(e.PotentialConcerns, "Different religious background")
	}
	if prefs != nil && prefs.AgeMax > 0 && (b.Age < prefs.AgeMin || b.Age > prefs.AgeMax) {
		e.PotentialConcerns = append(e.PotentialConcerns, "Outside preferred age range")
		e.Overall = math.Max(0, e.Overall-10)
	}
	e.Explanation = fmt.Sprintf("Estimated compatibility of %.0f based on location, education, religion, family and lifestyle.", e.Overall)

	e.normalize()
	requestsTotal.WithLabelValues("local", "success").Inc()
	return e, nil
}

func tiered(x, y string, match, otherwise float64) float64 {
	if x != "" && strings.EqualFold(strings.TrimSpace(x), strings.TrimSpace(y)) {
		return match
	}
	return otherwise
}
