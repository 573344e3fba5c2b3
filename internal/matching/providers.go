package matching

import (
	"context"
)

// ProfileFilters narrows a profile search. Zero values mean "no constraint".
type ProfileFilters struct {
	Gender       string
	ActiveOnly   bool
	VerifiedOnly bool
	HasPhoto     bool
	AgeMin       int
	AgeMax       int
	Districts    []string
	Education    []string
	Sect         string
	Limit        int
	Offset       int
}

type ProfilePage struct {
	Profiles []*Profile `json:"profiles"`
	Total    int        `json:"total"`
	HasMore  bool       `json:"hasMore"`
}

// ProfileProvider is the read-only view of the profile subsystem
type ProfileProvider interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	SearchProfiles(ctx context.Context, filters ProfileFilters) (*ProfilePage, error)
}

type InterestFilters struct {
	CounterpartID string
	Status        InterestStatus
	Limit         int
}

// InterestProvider is the read-only view of the interest subsystem
type InterestProvider interface {
	GetSentInterests(ctx context.Context, userID string, filters *InterestFilters) ([]*Interest, error)
	GetReceivedInterests(ctx context.Context, userID string, filters *InterestFilters) ([]*Interest, error)
}
