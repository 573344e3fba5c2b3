// Package oracle talks to the external compatibility scoring backend.
//
// The oracle is opaque and possibly slow. It receives two profile summaries and
// returns raw per-dimension numbers plus free text. Callers are expected to cache
// results; nothing here assumes the same pair scores the same twice.
package oracle

import (
	"context"
	"errors"
)

var (
	ErrUnavailable = errors.New("scoring oracle unavailable")
	ErrBadResponse = errors.New("scoring oracle returned an unusable response")
)

// Summary is the profile view sent to the oracle.
type Summary struct {
	Name              string   `json:"name,omitempty"`
	Age               int      `json:"age"`
	Gender            string   `json:"gender"`
	District          string   `json:"district,omitempty"`
	Block             string   `json:"block,omitempty"`
	Village           string   `json:"village,omitempty"`
	Education         string   `json:"education,omitempty"`
	Occupation        string   `json:"occupation,omitempty"`
	Skills            []string `json:"skills,omitempty"`
	Sect              string   `json:"sect,omitempty"`
	SubSect           string   `json:"subSect,omitempty"`
	ReligiousPractice string   `json:"religiousPractice,omitempty"`
	FamilyBackground  string   `json:"familyBackground,omitempty"`
	FamilyType        string   `json:"familyType,omitempty"`
	Bio               string   `json:"bio,omitempty"`
}

// Preferences are the requesting user's stated preferences, if any.
type Preferences struct {
	AgeMin       int      `json:"ageMin,omitempty"`
	AgeMax       int      `json:"ageMax,omitempty"`
	Districts    []string `json:"districts,omitempty"`
	Education    []string `json:"education,omitempty"`
	Sect         string   `json:"sect,omitempty"`
	VerifiedOnly bool     `json:"verifiedOnly,omitempty"`
}

// Evaluation is the raw oracle output. Numbers are nominally 0-100.
type Evaluation struct {
	Overall           float64  `json:"overall"`
	Location          float64  `json:"location"`
	Education         float64  `json:"education"`
	Religious         float64  `json:"religious"`
	Family            float64  `json:"family"`
	Lifestyle         float64  `json:"lifestyle"`
	Personality       float64  `json:"personality"`
	Explanation       string   `json:"explanation"`
	MatchReasons      []string `json:"matchReasons"`
	PotentialConcerns []string `json:"potentialConcerns"`
}

type Oracle interface {
	Evaluate(ctx context.Context, a, b Summary, prefs *Preferences) (*Evaluation, error)
}

// normalize clamps every number into [0,100] and fills nil slices.
func (e *Evaluation) normalize() {
	for _, v := range []*float64{&e.Overall, &e.Location, &e.Education, &e.Religious, &e.Family, &e.Lifestyle, &e.Personality} {
		*v = clamp(*v)
	}
	if e.MatchReasons == nil {
		e.MatchReasons = []string{}
	}
	if e.PotentialConcerns == nil {
		e.PotentialConcerns = []string{}
	}
}

func clamp(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
