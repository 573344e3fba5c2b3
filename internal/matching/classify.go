package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/imadgeboyega/kiekky-matchcore/internal/oracle"
)

// Dimension tags
const (
	TagSameVillage      = "same_village"
	TagSameBlock        = "same_block"
	TagSameDistrict     = "same_district"
	TagNearbyDistrict   = "nearby_district"
	TagDifferentArea    = "different_district"
	TagExact            = "exact"
	TagCompatible       = "compatible"
	TagComplementary    = "complementary"
	TagDifferent        = "different"
	TagUnknown          = "unknown"
	TagHighlyCompatible = "highly_compatible"
	TagVerySimilar      = "very_similar"
	TagSimilar          = "similar"
	TagDiverse          = "diverse"
	TagVeryCompatible   = "very_compatible"
	TagNeutral          = "neutral"
	TagChallenging      = "challenging"
)

// Dimension weights for the rule-adjusted overall score
const (
	weightLocation    = 0.20
	weightEducation   = 0.20
	weightReligious   = 0.20
	weightFamily      = 0.15
	weightLifestyle   = 0.15
	weightPersonality = 0.10
)

// band bounds the oracle's raw number for a classified tier
type band struct{ lo, hi int }

func (b band) bound(raw float64) int {
	v := int(math.Round(raw))
	if v < b.lo {
		return b.lo
	}
	if v > b.hi {
		return b.hi
	}
	return v
}

var (
	bandExact = band{100, 100}

	locationBands = map[string]band{
		TagSameVillage:    bandExact,
		TagSameBlock:      {75, 90},
		TagSameDistrict:   {60, 80},
		TagNearbyDistrict: {45, 65},
		TagDifferentArea:  {0, 45},
	}
	educationBands = map[string]band{
		TagExact:         bandExact,
		TagCompatible:    {70, 90},
		TagComplementary: {50, 75},
		TagDifferent:     {0, 55},
		TagUnknown:       {0, 100},
	}
	religiousBands = map[string]band{
		TagHighlyCompatible: {85, 100},
		TagCompatible:       {60, 85},
		TagDifferent:        {0, 60},
	}
	familyBands = map[string]band{
		TagVerySimilar:   {80, 100},
		TagSimilar:       {60, 85},
		TagComplementary: {30, 70},
	}
	lifestyleBands = map[string]band{
		TagSimilar:    {80, 100},
		TagCompatible: {60, 85},
		TagDiverse:    {30, 70},
	}
	personalityBands = map[string]band{
		TagVeryCompatible: {80, 100},
		TagCompatible:     {60, 85},
		TagNeutral:        {40, 65},
		TagChallenging:    {0, 45},
	}
)

// nearbyDistricts lists neighbouring districts. Lookups are symmetric.
var nearbyDistricts = buildNearby(map[string][]string{
	"madhubani":   {"darbhanga", "sitamarhi", "supaul"},
	"darbhanga":   {"samastipur", "sitamarhi", "muzaffarpur", "saharsa"},
	"sitamarhi":   {"muzaffarpur", "sheohar"},
	"supaul":      {"saharsa", "araria"},
	"samastipur":  {"muzaffarpur", "begusarai"},
	"muzaffarpur": {"vaishali"},
	"saharsa":     {"madhepura"},
	"madhepura":   {"purnia", "supaul"},
})

func buildNearby(adj map[string][]string) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	add := func(a, b string) {
		if out[a] == nil {
			out[a] = make(map[string]bool)
		}
		out[a][b] = true
	}
	for a, list := range adj {
		for _, b := range list {
			add(a, b)
			add(b, a)
		}
	}
	return out
}

// educationLevels is the ordinal hierarchy, keyed by normalized name
var educationLevels = map[string]int{
	"high school": 1, "matric": 1, "10th": 1, "secondary": 1,
	"intermediate": 2, "12th": 2, "higher secondary": 2,
	"bachelor s": 3, "bachelors": 3, "bachelor": 3, "graduate": 3, "ba": 3, "bsc": 3, "bcom": 3, "btech": 3, "be": 3,
	"master s": 4, "masters": 4, "master": 4, "post graduate": 4, "ma": 4, "msc": 4, "mcom": 4, "mba": 4, "mtech": 4,
	"professional": 5, "mbbs": 5, "llb": 5, "ca": 5,
	"doctorate": 6, "phd": 6,
}

var educationNames = []string{"", "High School", "Intermediate", "Bachelor's", "Master's", "Professional", "Doctorate"}

func educationLevel(s string) int {
	return educationLevels[normalizeText(s)]
}

var occupationGroups = []struct {
	name     string
	keywords []string
}{
	{"professional", []string{"doctor", "engineer", "teacher", "lawyer", "professor", "accountant", "software", "nurse", "architect", "scientist", "developer", "lecturer"}},
	{"business", []string{"business", "trader", "shop", "entrepreneur", "merchant", "self employed", "contractor"}},
	{"service", []string{"government", "bank", "clerk", "police", "army", "railway", "officer", "service", "defence"}},
}

func occupationGroup(s string) string {
	padded := " " + normalizeText(s) + " "
	for _, g := range occupationGroups {
		for _, kw := range g.keywords {
			if strings.Contains(padded, " "+kw) {
				return g.name
			}
		}
	}
	return "other"
}

func sameText(a, b string) bool {
	a, b = normalizeText(a), normalizeText(b)
	return a != "" && a == b
}

// Classify applies the deterministic domain rules to the oracle's raw scores.
// It performs no I/O.
func Classify(user, cand *Profile, eval *oracle.Evaluation) Breakdown {
	return Breakdown{
		Location:    classifyLocation(user, cand, eval.Location),
		Education:   classifyEducation(user, cand, eval.Education),
		Religious:   classifyReligious(user, cand, eval.Religious),
		Family:      classifyFamily(user, cand, eval.Family),
		Lifestyle:   classifyLifestyle(user, cand, eval.Lifestyle),
		Personality: classifyPersonality(user, cand, eval.Personality),
	}
}

func classifyLocation(u, c *Profile, raw float64) DimensionScore {
	district := sameText(u.District, c.District)
	block := district && sameText(u.Block, c.Block)

	var tag, why string
	switch {
	case block && sameText(u.Village, c.Village):
		tag, why = TagSameVillage, fmt.Sprintf("Both from %s village", c.Village)
	case block:
		tag, why = TagSameBlock, fmt.Sprintf("Both from %s block", c.Block)
	case district:
		tag, why = TagSameDistrict, fmt.Sprintf("Both from %s district", c.District)
	case nearbyDistricts[normalizeText(u.District)][normalizeText(c.District)]:
		tag, why = TagNearbyDistrict, fmt.Sprintf("%s is near %s", c.District, u.District)
	default:
		tag, why = TagDifferentArea, "From different districts"
	}
	return DimensionScore{Score: locationBands[tag].bound(raw), Tag: tag, Explanation: why}
}

func classifyEducation(u, c *Profile, raw float64) DimensionScore {
	lu, lc := educationLevel(u.Education), educationLevel(c.Education)

	var tag, why string
	switch {
	case (lu > 0 && lu == lc) || sameText(u.Education, c.Education):
		tag, why = TagExact, "Same education level"
	case lu == 0 || lc == 0:
		tag, why = TagUnknown, "Education level not comparable"
	default:
		d := lu - lc
		if d < 0 {
			d = -d
		}
		switch d {
		case 1:
			tag = TagCompatible
		case 2:
			tag = TagComplementary
		default:
			tag = TagDifferent
		}
		why = fmt.Sprintf("%s and %s", educationNames[lu], educationNames[lc])
	}
	return DimensionScore{Score: educationBands[tag].bound(raw), Tag: tag, Explanation: why}
}

func classifyReligious(u, c *Profile, raw float64) DimensionScore {
	var tag, why string
	switch {
	case !sameText(u.Sect, c.Sect):
		tag, why = TagDifferent, "Different sects"
	case sameText(u.ReligiousPractice, c.ReligiousPractice):
		tag, why = TagHighlyCompatible, fmt.Sprintf("Same sect (%s) and religious practice", c.Sect)
	default:
		tag, why = TagCompatible, fmt.Sprintf("Same sect (%s) with different practice", c.Sect)
	}
	return DimensionScore{Score: religiousBands[tag].bound(raw), Tag: tag, Explanation: why}
}

func classifyFamily(u, c *Profile, raw float64) DimensionScore {
	shared := sharedTokens(u.FamilyBackground, c.FamilyBackground)

	var tag string
	switch {
	case shared > 3:
		tag = TagVerySimilar
	case shared > 1:
		tag = TagSimilar
	default:
		tag = TagComplementary
	}
	why := fmt.Sprintf("%d shared family background terms", shared)
	switch {
	case sameText(u.FamilyType, c.FamilyType):
		why += fmt.Sprintf("; both %s families", strings.ToLower(c.FamilyType))
	case u.FamilyType != "" && c.FamilyType != "":
		why += fmt.Sprintf("; family types differ (%s, %s)", strings.ToLower(u.FamilyType), strings.ToLower(c.FamilyType))
	}
	return DimensionScore{Score: familyBands[tag].bound(raw), Tag: tag, Explanation: why}
}

func classifyLifestyle(u, c *Profile, raw float64) DimensionScore {
	var tag, why string
	switch {
	case sameText(u.Occupation, c.Occupation):
		tag, why = TagSimilar, "Same occupation"
	case occupationGroup(u.Occupation) == occupationGroup(c.Occupation):
		tag, why = TagCompatible, fmt.Sprintf("Both in %s occupations", occupationGroup(c.Occupation))
	default:
		tag, why = TagDiverse, "Different occupation groups"
	}
	why += fmt.Sprintf("; %d%% skills overlap", skillsOverlap(u.Skills, c.Skills))
	return DimensionScore{Score: lifestyleBands[tag].bound(raw), Tag: tag, Explanation: why}
}

func classifyPersonality(u, c *Profile, raw float64) DimensionScore {
	ratio := tokenOverlap(u.Bio, c.Bio)

	var tag string
	switch {
	case ratio > 0.30:
		tag = TagVeryCompatible
	case ratio > 0.15:
		tag = TagCompatible
	case ratio > 0.05:
		tag = TagNeutral
	default:
		tag = TagChallenging
	}
	why := fmt.Sprintf("%d%% overlap in self description", int(math.Round(ratio*100)))
	return DimensionScore{Score: personalityBands[tag].bound(raw), Tag: tag, Explanation: why}
}

// skillsOverlap is |user ∩ candidate| / |user| as a percentage in [0,100]
func skillsOverlap(user, cand []string) int {
	if len(user) == 0 {
		return 0
	}
	have := make(map[string]bool, len(cand))
	for _, s := range cand {
		have[normalizeText(s)] = true
	}
	seen := make(map[string]bool, len(user))
	shared := 0
	for _, s := range user {
		s = normalizeText(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		if have[s] {
			shared++
		}
	}
	pct := int(math.Round(float64(shared) / float64(len(user)) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}

// tokens returns the distinct lowercase words longer than three characters
func tokens(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalizeText(text)) {
		if len([]rune(w)) > 3 {
			set[w] = struct{}{}
		}
	}
	return set
}

func sharedTokens(a, b string) int {
	ta, tb := tokens(a), tokens(b)
	n := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			n++
		}
	}
	return n
}

// tokenOverlap is the Jaccard ratio of the two texts' token sets
func tokenOverlap(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	union := len(ta)
	shared := 0
	for w := range tb {
		if _, ok := ta[w]; ok {
			shared++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// combineOverall blends the oracle's overall with the weighted breakdown
func combineOverall(oracleOverall float64, b Breakdown) int {
	weighted := float64(b.Location.Score)*weightLocation +
		float64(b.Education.Score)*weightEducation +
		float64(b.Religious.Score)*weightReligious +
		float64(b.Family.Score)*weightFamily +
		float64(b.Lifestyle.Score)*weightLifestyle +
		float64(b.Personality.Score)*weightPersonality
	return band{0, 100}.bound((oracleOverall + weighted) / 2)
}

func profileConfidence(p *Profile) float64 {
	c := 0.6
	if p.ProfileComplete {
		c += 0.25
	}
	if p.IsVerified {
		c += 0.15
	}
	return c
}

// confidenceFor gates the composite profile confidence with the overall score
func confidenceFor(user, cand *Profile, overall int) ConfidenceLevel {
	c := (profileConfidence(user) + profileConfidence(cand)) / 2
	switch {
	case c >= 0.9-1e-9 && overall >= 70:
		return ConfidenceHigh
	case c >= 0.7-1e-9 && overall >= 50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
