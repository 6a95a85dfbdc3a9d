package pipeline

import "strings"

// Intents are behavior toggles extracted from the free-text user
// description. They steer prompt construction and the negative prompt.
type Intents struct {
	// ExcludePeople is set when the user asked for no people in the scene.
	ExcludePeople bool
	// IncludePeople is set when the user asked for people in the scene.
	IncludePeople bool
	// ExcludeText is set when the user asked for no text or captions.
	ExcludeText bool
	// IncludeText is set when the user asked for overlaid text or captions.
	IncludeText bool
}

// IntentExtractor derives Intents from a user description.
type IntentExtractor interface {
	Extract(text string) Intents
}

// RuleBasedExtractor matches known phrases against the lowercased
// description. Precedence rule: for each feature, negation phrases are
// checked before request phrases, so "without people" is never read as a
// request for people.
type RuleBasedExtractor struct{}

// Compile-time check that RuleBasedExtractor implements IntentExtractor.
var _ IntentExtractor = RuleBasedExtractor{}

var (
	peopleNegations = []string{
		"no people", "without people", "no person", "without person",
		"no humans", "without humans", "no human", "nobody", "no models",
	}
	peopleRequests = []string{
		"people", "person", "human", "crowd", "model holding", "someone",
	}
	textNegations = []string{
		"no text", "without text", "no words", "no caption", "no captions",
		"no writing", "without words",
	}
	textRequests = []string{
		"text", "caption", "headline", "slogan", "tagline", "writing",
	}
)

// Extract applies the phrase tables with negation-before-request precedence.
func (RuleBasedExtractor) Extract(text string) Intents {
	t := strings.ToLower(text)
	var in Intents

	if containsAny(t, peopleNegations) {
		in.ExcludePeople = true
	} else if containsAny(t, peopleRequests) {
		in.IncludePeople = true
	}

	if containsAny(t, textNegations) {
		in.ExcludeText = true
	} else if containsAny(t, textRequests) {
		in.IncludeText = true
	}

	return in
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// NegativePrompt builds the negative prompt for video generation from the
// extracted intents.
func NegativePrompt(in Intents) string {
	parts := []string{"blurry", "low quality", "distorted", "warped product", "extra objects"}
	if in.ExcludePeople {
		parts = append(parts, "people", "humans", "faces")
	}
	if in.ExcludeText {
		parts = append(parts, "text", "captions", "watermarks")
	}
	return strings.Join(parts, ", ")
}
