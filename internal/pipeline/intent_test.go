package pipeline

import (
	"strings"
	"testing"
)

func TestRuleBasedExtractor_Extract(t *testing.T) {
	e := RuleBasedExtractor{}

	tests := []struct {
		name string
		text string
		want Intents
	}{
		{
			"plain description",
			"product on a marble kitchen counter",
			Intents{},
		},
		{
			"requests people",
			"a person using the product in a park",
			Intents{IncludePeople: true},
		},
		{
			"excludes people",
			"clean studio shot, no people",
			Intents{ExcludePeople: true},
		},
		{
			// The phrase "without people" contains "people"; negation
			// must win over the request match.
			"negation wins over request",
			"a busy street scene but without people",
			Intents{ExcludePeople: true},
		},
		{
			"requests text",
			"add a bold headline above the product",
			Intents{IncludeText: true},
		},
		{
			"excludes text",
			"minimalist, no text or captions",
			Intents{ExcludeText: true},
		},
		{
			"text negation wins",
			"no text please, keep it clean",
			Intents{ExcludeText: true},
		},
		{
			"mixed intents",
			"someone holding the bottle, no text",
			Intents{IncludePeople: true, ExcludeText: true},
		},
		{
			"case insensitive",
			"NO PEOPLE and NO TEXT",
			Intents{ExcludePeople: true, ExcludeText: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Extract(tt.text); got != tt.want {
				t.Errorf("Extract(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestNegativePrompt(t *testing.T) {
	base := NegativePrompt(Intents{})
	if !strings.Contains(base, "blurry") {
		t.Error("expected baseline quality terms in negative prompt")
	}
	if strings.Contains(base, "people") {
		t.Error("did not expect people terms without exclusion intent")
	}

	np := NegativePrompt(Intents{ExcludePeople: true, ExcludeText: true})
	if !strings.Contains(np, "people") {
		t.Error("expected people terms when people are excluded")
	}
	if !strings.Contains(np, "watermarks") {
		t.Error("expected text terms when text is excluded")
	}
}
