package matching

import (
	"math"
	"time"
)

// Collections used by the matching core
const (
	ColProfiles        = "profiles"
	ColPreferences     = "preferences"
	ColInterests       = "interests"
	ColCompatibility   = "compatibility_scores"
	ColLearning        = "learning_data"
	ColRecommendations = "recommendations"
	ColSessions        = "recommendation_sessions"
	ColMutualMatches   = "mutual_matches"
	ColInteractions    = "interactions"
	ColFeedback        = "match_feedback"
	ColInterestOutcome = "interest_outcomes"
)

// Profile is owned by the profile subsystem. The matching core only reads it.
type Profile struct {
	ID                string    `json:"id" bson:"_id"`
	Name              string    `json:"name" bson:"name"`
	Age               int       `json:"age" bson:"age"`
	Gender            string    `json:"gender" bson:"gender"`
	District          string    `json:"district" bson:"district"`
	Block             string    `json:"block" bson:"block"`
	Village           string    `json:"village" bson:"village"`
	Education         string    `json:"education" bson:"education"`
	Occupation        string    `json:"occupation" bson:"occupation"`
	Skills            []string  `json:"skills" bson:"skills"`
	Sect              string    `json:"sect" bson:"sect"`
	SubSect           string    `json:"subSect" bson:"subSect"`
	ReligiousPractice string    `json:"religiousPractice" bson:"religiousPractice"`
	FamilyBackground  string    `json:"familyBackground" bson:"familyBackground"`
	FamilyType        string    `json:"familyType" bson:"familyType"`
	Bio               string    `json:"bio" bson:"bio"`
	HasPhoto          bool      `json:"hasPhoto" bson:"hasPhoto"`
	IsVerified        bool      `json:"isVerified" bson:"isVerified"`
	IsActive          bool      `json:"isActive" bson:"isActive"`
	ProfileComplete   bool      `json:"profileComplete" bson:"profileComplete"`
	LastActiveAt      time.Time `json:"lastActiveAt" bson:"lastActiveAt"`
	CreatedAt         time.Time `json:"createdAt" bson:"createdAt"`
}

type AgeRange struct {
	Min int `json:"min" bson:"min"`
	Max int `json:"max" bson:"max"`
}

// Preferences are the user's explicitly stated preferences, keyed by user id.
type Preferences struct {
	UserID       string    `json:"id" bson:"_id"`
	AgeRange     *AgeRange `json:"ageRange,omitempty" bson:"ageRange,omitempty"`
	Districts    []string  `json:"districts,omitempty" bson:"districts,omitempty"`
	Education    []string  `json:"education,omitempty" bson:"education,omitempty"`
	Sect         string    `json:"sect,omitempty" bson:"sect,omitempty"`
	VerifiedOnly bool      `json:"verifiedOnly" bson:"verifiedOnly"`
	HasPhoto     bool      `json:"hasPhoto" bson:"hasPhoto"`
}

type InterestStatus string

const (
	InterestPending   InterestStatus = "pending"
	InterestAccepted  InterestStatus = "accepted"
	InterestDeclined  InterestStatus = "declined"
	InterestWithdrawn InterestStatus = "withdrawn"
	InterestExpired   InterestStatus = "expired"
)

// Interest is a one-way expression of intent, owned by the interest subsystem.
type Interest struct {
	ID              string         `json:"id" bson:"_id"`
	SenderID        string         `json:"senderId" bson:"senderId"`
	ReceiverID      string         `json:"receiverId" bson:"receiverId"`
	Status          InterestStatus `json:"status" bson:"status"`
	Message         string         `json:"message" bson:"message"`
	CommonInterests []string       `json:"commonInterests,omitempty" bson:"commonInterests,omitempty"`
	SentAt          time.Time      `json:"sentAt" bson:"sentAt"`
	RespondedAt     *time.Time     `json:"respondedAt,omitempty" bson:"respondedAt,omitempty"`
}

type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// DimensionScore is one classified dimension of a compatibility score
type DimensionScore struct {
	Score       int    `json:"score" bson:"score"`
	Tag         string `json:"tag" bson:"tag"`
	Explanation string `json:"explanation" bson:"explanation"`
}

type Breakdown struct {
	Location    DimensionScore `json:"location" bson:"location"`
	Education   DimensionScore `json:"education" bson:"education"`
	Religious   DimensionScore `json:"religious" bson:"religious"`
	Family      DimensionScore `json:"family" bson:"family"`
	Lifestyle   DimensionScore `json:"lifestyle" bson:"lifestyle"`
	Personality DimensionScore `json:"personality" bson:"personality"`
}

// CompatibilityScore is immutable once written. A fresh computation after
// expiry writes a new record instead of updating the old one.
type CompatibilityScore struct {
	ID                string          `json:"id" bson:"_id"`
	UserID            string          `json:"userId" bson:"userId"`
	CandidateUserID   string          `json:"candidateUserId" bson:"candidateUserId"`
	Overall           int             `json:"overall" bson:"overall"`
	Breakdown         Breakdown       `json:"breakdown" bson:"breakdown"`
	Explanation       string          `json:"explanation" bson:"explanation"`
	MatchReasons      []string        `json:"matchReasons" bson:"matchReasons"`
	PotentialConcerns []string        `json:"potentialConcerns" bson:"potentialConcerns"`
	ConfidenceLevel   ConfidenceLevel `json:"confidenceLevel" bson:"confidenceLevel"`
	ComputedAt        time.Time       `json:"computedAt" bson:"computedAt"`
	ExpiresAt         time.Time       `json:"expiresAt" bson:"expiresAt"`
}

// LearningData is the per-user implicit preference model. Preference sets only
// ever grow. Writes are last-writer-wins.
type LearningData struct {
	UserID                          string    `json:"id" bson:"_id"`
	PreferredAgeRange               *AgeRange `json:"preferredAgeRange,omitempty" bson:"preferredAgeRange,omitempty"`
	PreferredEducation              []string  `json:"preferredEducation" bson:"preferredEducation"`
	PreferredOccupations            []string  `json:"preferredOccupations" bson:"preferredOccupations"`
	PreferredLocations              []string  `json:"preferredLocations" bson:"preferredLocations"`
	PreferredSects                  []string  `json:"preferredSects" bson:"preferredSects"`
	ViewedProfiles                  int       `json:"viewedProfiles" bson:"viewedProfiles"`
	SentInterests                   int       `json:"sentInterests" bson:"sentInterests"`
	AcceptedInterests               int       `json:"acceptedInterests" bson:"acceptedInterests"`
	FavoritedProfiles               int       `json:"favoritedProfiles" bson:"favoritedProfiles"`
	SkippedProfiles                 int       `json:"skippedProfiles" bson:"skippedProfiles"`
	FeedbackCount                   int       `json:"feedbackCount" bson:"feedbackCount"`
	AverageCompatibilityOfInterests float64   `json:"averageCompatibilityOfInterests" bson:"averageCompatibilityOfInterests"`
	UpdatedAt                       time.Time `json:"updatedAt" bson:"updatedAt"`
}

// AcceptRate is accepted/sent, zero when nothing was sent
func (l *LearningData) AcceptRate() float64 {
	if l == nil || l.SentInterests == 0 {
		return 0
	}
	return math.Min(1, float64(l.AcceptedInterests)/float64(l.SentInterests))
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type MatchRecommendation struct {
	ID                 string             `json:"id" bson:"_id"`
	UserID             string             `json:"userId" bson:"userId"`
	ProfileID          string             `json:"profileId" bson:"profileId"`
	Profile            *Profile           `json:"profile,omitempty" bson:"profile,omitempty"`
	CompatibilityScore CompatibilityScore `json:"compatibilityScore" bson:"compatibilityScore"`
	Score              float64            `json:"score" bson:"score"`
	Reason             string             `json:"reason" bson:"reason"`
	Priority           Priority           `json:"priority" bson:"priority"`
	GeneratedAt        time.Time          `json:"generatedAt" bson:"generatedAt"`
	ExpiresAt          time.Time          `json:"expiresAt" bson:"expiresAt"`
}

// RecommendationSession is an analytics record of one generation run
type RecommendationSession struct {
	ID         string    `json:"id" bson:"_id"`
	UserID     string    `json:"userId" bson:"userId"`
	Requested  int       `json:"requested" bson:"requested"`
	Candidates int       `json:"candidates" bson:"candidates"`
	Scored     int       `json:"scored" bson:"scored"`
	Failed     int       `json:"failed" bson:"failed"`
	Returned   int       `json:"returned" bson:"returned"`
	DurationMs int64     `json:"durationMs" bson:"durationMs"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

type MatchQuality string

const (
	QualityExcellent MatchQuality = "excellent"
	QualityGood      MatchQuality = "good"
	QualityFair      MatchQuality = "fair"
	QualityPoor      MatchQuality = "poor"
)

type MatchStatus string

const (
	MatchActive    MatchStatus = "active"
	MatchContacted MatchStatus = "contacted"
	MatchInactive  MatchStatus = "inactive"
	MatchBlocked   MatchStatus = "blocked"
)

// MutualMatch is keyed by the canonical pair key, so the store's conditional
// create guarantees one record per unordered pair.
type MutualMatch struct {
	ID              string       `json:"id" bson:"_id"`
	User1ID         string       `json:"user1Id" bson:"user1Id"`
	User2ID         string       `json:"user2Id" bson:"user2Id"`
	Interest1ID     string       `json:"interest1Id" bson:"interest1Id"`
	Interest2ID     string       `json:"interest2Id" bson:"interest2Id"`
	MatchedAt       time.Time    `json:"matchedAt" bson:"matchedAt"`
	CombinedScore   int          `json:"combinedScore" bson:"combinedScore"`
	CommonInterests []string     `json:"commonInterests" bson:"commonInterests"`
	MatchQuality    MatchQuality `json:"matchQuality" bson:"matchQuality"`
	Status          MatchStatus  `json:"status" bson:"status"`
	StatusUpdatedAt time.Time    `json:"statusUpdatedAt" bson:"statusUpdatedAt"`
	StatusUpdatedBy string       `json:"statusUpdatedBy,omitempty" bson:"statusUpdatedBy,omitempty"`
}

// Other returns the participant that is not userID
func (m *MutualMatch) Other(userID string) string {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

func (m *MutualMatch) Involves(userID string) bool {
	return m.User1ID == userID || m.User2ID == userID
}

type InteractionType string

const (
	InteractionView     InteractionType = "view"
	InteractionInterest InteractionType = "interest"
	InteractionFavorite InteractionType = "favorite"
	InteractionSkip     InteractionType = "skip"
)

// Interaction is an observed action by a user on another profile. The target
// fields are an optional snapshot; when absent the target profile is loaded.
type Interaction struct {
	ID               string          `json:"id" bson:"_id"`
	UserID           string          `json:"userId" bson:"userId"`
	TargetUserID     string          `json:"targetUserId" bson:"targetUserId"`
	Type             InteractionType `json:"type" bson:"type"`
	TargetAge        int             `json:"targetAge,omitempty" bson:"targetAge,omitempty"`
	TargetDistrict   string          `json:"targetDistrict,omitempty" bson:"targetDistrict,omitempty"`
	TargetEducation  string          `json:"targetEducation,omitempty" bson:"targetEducation,omitempty"`
	TargetOccupation string          `json:"targetOccupation,omitempty" bson:"targetOccupation,omitempty"`
	TargetSect       string          `json:"targetSect,omitempty" bson:"targetSect,omitempty"`
	CreatedAt        time.Time       `json:"createdAt" bson:"createdAt"`
}

type Feedback string

const (
	FeedbackExcellent Feedback = "excellent"
	FeedbackGood      Feedback = "good"
	FeedbackAverage   Feedback = "average"
	FeedbackPoor      Feedback = "poor"
)

var feedbackWeights = map[Feedback]float64{
	FeedbackExcellent: 1.0,
	FeedbackGood:      0.8,
	FeedbackAverage:   0.6,
	FeedbackPoor:      0.2,
}

type FeedbackRecord struct {
	ID          string    `json:"id" bson:"_id"`
	UserID      string    `json:"userId" bson:"userId"`
	MatchUserID string    `json:"matchUserId" bson:"matchUserId"`
	Feedback    Feedback  `json:"feedback" bson:"feedback"`
	Reasons     []string  `json:"reasons,omitempty" bson:"reasons,omitempty"`
	Score       *float64  `json:"score,omitempty" bson:"score,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// InterestOutcome marks an accepted interest as counted in its sender's
// learning data. Keyed by interest id.
type InterestOutcome struct {
	InterestID string    `json:"interestId" bson:"_id"`
	SenderID   string    `json:"senderId" bson:"senderId"`
	ReceiverID string    `json:"receiverId" bson:"receiverId"`
	CountedAt  time.Time `json:"countedAt" bson:"countedAt"`
}

// PairKey is the canonical key of an unordered user pair
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
