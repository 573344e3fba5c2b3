package matching

import (
	"testing"

	"github.com/imadgeboyega/kiekky-matchcore/internal/oracle"
)

func uniform(v float64) *oracle.Evaluation {
	return &oracle.Evaluation{
		Overall: v, Location: v, Education: v, Religious: v,
		Family: v, Lifestyle: v, Personality: v,
	}
}

func TestClassifyLocation(t *testing.T) {
	tests := []struct {
		name      string
		u, c      Profile
		raw       float64
		wantTag   string
		wantScore int
	}{
		{
			name:    "same village is always maximal",
			u:       Profile{District: "Madhubani", Block: "Jainagar", Village: "Basopatti"},
			c:       Profile{District: "madhubani", Block: "JAINAGAR", Village: "Basopatti"},
			raw:     20,
			wantTag: TagSameVillage, wantScore: 100,
		},
		{
			name:    "same block bounded above",
			u:       Profile{District: "Madhubani", Block: "Jainagar", Village: "Basopatti"},
			c:       Profile{District: "Madhubani", Block: "Jainagar", Village: "Kaluahi"},
			raw:     100,
			wantTag: TagSameBlock, wantScore: 90,
		},
		{
			name:    "different block in same district",
			u:       Profile{District: "Madhubani", Block: "Jainagar"},
			c:       Profile{District: "Madhubani", Block: "Pandaul"},
			raw:     70,
			wantTag: TagSameDistrict, wantScore: 70,
		},
		{
			name:    "nearby district bounded below",
			u:       Profile{District: "Madhubani"},
			c:       Profile{District: "Darbhanga"},
			raw:     10,
			wantTag: TagNearbyDistrict, wantScore: 45,
		},
		{
			name:    "nearby lookup is symmetric",
			u:       Profile{District: "Darbhanga"},
			c:       Profile{District: "Madhubani"},
			raw:     50,
			wantTag: TagNearbyDistrict, wantScore: 50,
		},
		{
			name:    "far district",
			u:       Profile{District: "Madhubani"},
			c:       Profile{District: "Patna"},
			raw:     80,
			wantTag: TagDifferentArea, wantScore: 45,
		},
		{
			name:    "same block name in different districts",
			u:       Profile{District: "Madhubani", Block: "Sadar"},
			c:       Profile{District: "Patna", Block: "Sadar"},
			raw:     30,
			wantTag: TagDifferentArea, wantScore: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyLocation(&tt.u, &tt.c, tt.raw)
			if got.Tag != tt.wantTag || got.Score != tt.wantScore {
				t.Errorf("got %s/%d, want %s/%d", got.Tag, got.Score, tt.wantTag, tt.wantScore)
			}
			if got.Explanation == "" {
				t.Error("missing explanation")
			}
		})
	}
}

func TestClassifyEducation(t *testing.T) {
	tests := []struct {
		u, c      string
		raw       float64
		wantTag   string
		wantScore int
	}{
		{"Bachelor's", "bachelors", 0, TagExact, 100},
		{"Bachelor's", "Master's", 95, TagCompatible, 90},
		{"Intermediate", "Master's", 60, TagComplementary, 60},
		{"High School", "Doctorate", 80, TagDifferent, 55},
		{"Diploma", "Bachelor's", 42, TagUnknown, 42},
		{"Diploma", "diploma", 10, TagExact, 100},
	}
	for _, tt := range tests {
		got := classifyEducation(&Profile{Education: tt.u}, &Profile{Education: tt.c}, tt.raw)
		if got.Tag != tt.wantTag || got.Score != tt.wantScore {
			t.Errorf("%s vs %s: got %s/%d, want %s/%d", tt.u, tt.c, got.Tag, got.Score, tt.wantTag, tt.wantScore)
		}
	}
}

func TestClassifyReligious(t *testing.T) {
	tests := []struct {
		name    string
		u, c    Profile
		raw     float64
		wantTag string
		want    int
	}{
		{"same sect and practice", Profile{Sect: "Maithil", ReligiousPractice: "Daily prayer"}, Profile{Sect: "maithil", ReligiousPractice: "daily prayer"}, 50, TagHighlyCompatible, 85},
		{"same sect only", Profile{Sect: "Maithil", ReligiousPractice: "Daily prayer"}, Profile{Sect: "Maithil", ReligiousPractice: "Festivals only"}, 90, TagCompatible, 85},
		{"different sect", Profile{Sect: "Maithil"}, Profile{Sect: "Kanyakubja"}, 90, TagDifferent, 60},
		{"unstated sect", Profile{}, Profile{}, 30, TagDifferent, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyReligious(&tt.u, &tt.c, tt.raw)
			if got.Tag != tt.wantTag || got.Score != tt.want {
				t.Errorf("got %s/%d, want %s/%d", got.Tag, got.Score, tt.wantTag, tt.want)
			}
		})
	}
}

func TestClassifyFamily(t *testing.T) {
	tests := []struct {
		name    string
		u, c    string
		wantTag string
	}{
		{"four shared terms", "Educated business family based in Madhubani", "Educated business family in Madhubani town", TagVerySimilar},
		{"two shared terms", "Educated family", "Educated farming family", TagSimilar},
		{"short words ignored", "a big new home", "a big new home", TagComplementary},
		{"nothing shared", "Farmers", "Doctors", TagComplementary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyFamily(&Profile{FamilyBackground: tt.u}, &Profile{FamilyBackground: tt.c}, 75)
			if got.Tag != tt.wantTag {
				t.Errorf("got %s, want %s", got.Tag, tt.wantTag)
			}
		})
	}

	got := classifyFamily(&Profile{FamilyType: "Joint"}, &Profile{FamilyType: "Nuclear"}, 50)
	if want := "0 shared family background terms; family types differ (joint, nuclear)"; got.Explanation != want {
		t.Errorf("explanation: got %q, want %q", got.Explanation, want)
	}
}

func TestClassifyLifestyle(t *testing.T) {
	tests := []struct {
		u, c    string
		wantTag string
	}{
		{"Teacher", "teacher", TagSimilar},
		{"Teacher", "Software Engineer", TagCompatible},
		{"Shopkeeper", "Business owner", TagCompatible},
		{"Bank clerk", "Railway officer", TagCompatible},
		{"Teacher", "Shopkeeper", TagDiverse},
		{"Artist", "Musician", TagCompatible}, // both "other"
	}
	for _, tt := range tests {
		got := classifyLifestyle(&Profile{Occupation: tt.u}, &Profile{Occupation: tt.c}, 75)
		if got.Tag != tt.wantTag {
			t.Errorf("%s vs %s: got %s, want %s", tt.u, tt.c, got.Tag, tt.wantTag)
		}
	}
}

func TestSkillsOverlap(t *testing.T) {
	tests := []struct {
		user, cand []string
		want       int
	}{
		{nil, []string{"a"}, 0},
		{[]string{"cooking", "music", "yoga", "art"}, []string{"Music", "cooking"}, 50},
		{[]string{"cooking"}, []string{"cooking", "music"}, 100},
	}
	for _, tt := range tests {
		if got := skillsOverlap(tt.user, tt.cand); got != tt.want {
			t.Errorf("skillsOverlap(%v, %v) = %d, want %d", tt.user, tt.cand, got, tt.want)
		}
	}
}

func TestClassifyPersonality(t *testing.T) {
	tests := []struct {
		name    string
		u, c    string
		wantTag string
	}{
		{"identical", "love reading books and music", "love reading books and music", TagVeryCompatible},
		{"one fifth shared", "reading books music travel cooking poetry", "reading books cricket movies dance yoga", TagCompatible},
		{"one ninth shared", "reading books music travel cooking", "reading cricket movies dance yoga", TagNeutral},
		{"disjoint", "quiet homely person", "loves adventure sports", TagChallenging},
		{"empty", "", "", TagChallenging},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyPersonality(&Profile{Bio: tt.u}, &Profile{Bio: tt.c}, 50)
			if got.Tag != tt.wantTag {
				t.Errorf("got %s (%s), want %s", got.Tag, got.Explanation, tt.wantTag)
			}
		})
	}
}

func TestClassify_SelfIsMaximal(t *testing.T) {
	for _, raw := range []float64{0, 37, 100} {
		p := baseProfile("u1", "Asha", "female")
		b := Classify(p, p, uniform(raw))
		if b.Location.Score != 100 || b.Location.Tag != TagSameVillage {
			t.Errorf("raw %v: location %s/%d", raw, b.Location.Tag, b.Location.Score)
		}
		if b.Education.Score != 100 || b.Education.Tag != TagExact {
			t.Errorf("raw %v: education %s/%d", raw, b.Education.Tag, b.Education.Score)
		}
	}
}

func TestCombineOverall_Bounded(t *testing.T) {
	profiles := []*Profile{
		baseProfile("a", "A", "female"),
		{ID: "b", District: "Patna", Education: "High School", Sect: "Other", Occupation: "Artist"},
		{ID: "c"},
	}
	for _, raw := range []float64{-500, -1, 0, 50, 100, 101, 1e6} {
		for _, u := range profiles {
			for _, c := range profiles {
				b := Classify(u, c, uniform(raw))
				overall := combineOverall(raw, b)
				if overall < 0 || overall > 100 {
					t.Fatalf("raw %v %s/%s: overall %d out of range", raw, u.ID, c.ID, overall)
				}
				for _, d := range []DimensionScore{b.Location, b.Education, b.Religious, b.Family, b.Lifestyle, b.Personality} {
					if d.Score < 0 || d.Score > 100 {
						t.Fatalf("raw %v: dimension %s score %d out of range", raw, d.Tag, d.Score)
					}
				}
			}
		}
	}
}

func TestCombineOverall_Blend(t *testing.T) {
	p := baseProfile("a", "A", "female")
	tests := []struct {
		raw  float64
		want int
	}{
		{95, 96},
		{71, 80},
		{51, 70},
		{5, 47},
	}
	for _, tt := range tests {
		if got := combineOverall(tt.raw, Classify(p, p, uniform(tt.raw))); got != tt.want {
			t.Errorf("raw %v: got %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestConfidenceFor(t *testing.T) {
	full := &Profile{ProfileComplete: true, IsVerified: true}
	complete := &Profile{ProfileComplete: true}
	bare := &Profile{}

	tests := []struct {
		name    string
		u, c    *Profile
		overall int
		want    ConfidenceLevel
	}{
		{"both full, strong score", full, full, 70, ConfidenceHigh},
		{"both full, weak score", full, full, 69, ConfidenceMedium},
		{"both full, poor score", full, full, 49, ConfidenceLow},
		{"one unverified", full, complete, 90, ConfidenceHigh}, // 0.925
		{"both unverified", complete, complete, 90, ConfidenceMedium},
		{"one bare", full, bare, 90, ConfidenceMedium}, // 0.8
		{"both bare", bare, bare, 90, ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confidenceFor(tt.u, tt.c, tt.overall); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
