package matching

import (
	"sort"
	"strings"
	"unicode"
)

// InterestExtractor derives interest labels from free text. The detector only
// depends on this interface so the keyword scan can be swapped for a proper
// classifier.
type InterestExtractor interface {
	Extract(text string) []string
}

// DefaultVocabulary is the hobby and interest list scanned in interest messages
var DefaultVocabulary = []string{
	"reading", "books", "music", "singing", "dancing", "cooking", "travel", "travelling",
	"movies", "cricket", "football", "sports", "yoga", "meditation", "painting", "art",
	"photography", "gardening", "writing", "poetry", "teaching", "volunteering",
	"social work", "family", "religion", "prayer", "education", "technology", "business",
	"farming", "fitness", "walking", "nature", "culture", "festivals", "languages",
}

// KeywordExtractor matches whole words and phrases against a fixed vocabulary
type KeywordExtractor struct {
	vocab []string
}

func NewKeywordExtractor(vocab ...string) *KeywordExtractor {
	if len(vocab) == 0 {
		vocab = DefaultVocabulary
	}
	seen := make(map[string]bool, len(vocab))
	norm := make([]string, 0, len(vocab))
	for _, v := range vocab {
		v = normalizeText(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		norm = append(norm, v)
	}
	return &KeywordExtractor{vocab: norm}
}

// Extract returns the sorted vocabulary entries present in text
func (k *KeywordExtractor) Extract(text string) []string {
	padded := " " + normalizeText(text) + " "
	if strings.TrimSpace(padded) == "" {
		return nil
	}
	var found []string
	for _, kw := range k.vocab {
		if strings.Contains(padded, " "+kw+" ") {
			found = append(found, kw)
		}
	}
	sort.Strings(found)
	return found
}

// commonInterests intersects the labels extracted from both texts
func commonInterests(ex InterestExtractor, a, b string) []string {
	left := ex.Extract(a)
	if len(left) == 0 {
		return []string{}
	}
	right := make(map[string]bool)
	for _, kw := range ex.Extract(b) {
		right[kw] = true
	}
	out := []string{}
	seen := make(map[string]bool)
	for _, kw := range left {
		if right[kw] && !seen[kw] {
			seen[kw] = true
			out = append(out, kw)
		}
	}
	sort.Strings(out)
	return out
}

// normalizeText lowercases and collapses every non-alphanumeric run to one space
func normalizeText(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
