package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/imadgeboyega/kiekky-matchcore/internal/oracle"
)

// OracleAdapter serialises profiles into oracle summaries and classifies
// oracle failures as dependency failures.
type OracleAdapter struct {
	oracle   oracle.Oracle
	provider string
}

func NewOracleAdapter(o oracle.Oracle, provider string) *OracleAdapter {
	return &OracleAdapter{oracle: o, provider: provider}
}

func (a *OracleAdapter) Evaluate(ctx context.Context, user, cand *Profile, prefs *Preferences) (*oracle.Evaluation, error) {
	start := time.Now()
	eval, err := a.oracle.Evaluate(ctx, summarize(user), summarize(cand), oraclePreferences(prefs))
	RecordScoringDuration(a.provider, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("evaluate %s/%s: %w: %w", user.ID, cand.ID, ErrDependency, err)
	}
	if eval == nil {
		return nil, fmt.Errorf("evaluate %s/%s: %w: empty evaluation", user.ID, cand.ID, ErrDependency)
	}
	return eval, nil
}

func summarize(p *Profile) oracle.Summary {
	return oracle.Summary{
		Name:              p.Name,
		Age:               p.Age,
		Gender:            p.Gender,
		District:          p.District,
		Block:             p.Block,
		Village:           p.Village,
		Education:         p.Education,
		Occupation:        p.Occupation,
		Skills:            p.Skills,
		Sect:              p.Sect,
		SubSect:           p.SubSect,
		ReligiousPractice: p.ReligiousPractice,
		FamilyBackground:  p.FamilyBackground,
		FamilyType:        p.FamilyType,
		Bio:               p.Bio,
	}
}

func oraclePreferences(p *Preferences) *oracle.Preferences {
	if p == nil {
		return nil
	}
	out := &oracle.Preferences{
		Districts:    p.Districts,
		Education:    p.Education,
		Sect:         p.Sect,
		VerifiedOnly: p.VerifiedOnly,
	}
	if p.AgeRange != nil {
		out.AgeMin, out.AgeMax = p.AgeRange.Min, p.AgeRange.Max
	}
	return out
}
