package allergen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hasFlag(flags []Flag, a string, r Reason) bool {
	for _, f := range flags {
		if f.Allergen == a && f.Reason == r {
			return true
		}
	}
	return false
}

func TestDetect_AliasWithoutDirectMatch(t *testing.T) {
	flags := Detect([]string{"contains whey"}, []string{"lactose"}, Options{})

	assert.True(t, hasFlag(flags, "lactose", ReasonAlias))
	assert.False(t, hasFlag(flags, "lactose", ReasonDirect))
	assert.Contains(t, flags, Flag{Allergen: "lactose", Reason: ReasonAlias, MatchedToken: "whey"})
}

func TestDetect_EmptyIngredients(t *testing.T) {
	flags := Detect(nil, []string{"peanut", "milk"}, Options{})
	assert.Empty(t, flags)

	flags = Detect([]string{"", "   "}, []string{"peanut"}, Options{})
	assert.Empty(t, flags, "blank tokens must not match every allergen")
}

func TestDetect_Idempotent(t *testing.T) {
	ings := []string{"Skimmed Milk Powder", "sugar", "peanut oil"}
	allergens := []string{"milk", "peanut", "soy"}
	opts := Options{Tags: []string{"en:milk"}, Related: map[string][]string{"soy": {"lecithin"}}}

	first := Detect(ings, allergens, opts)
	second := Detect(ings, allergens, opts)
	assert.Equal(t, first, second)
	assert.ElementsMatch(t, first, second)
}

func TestDetect_TagPrefixAndPlural(t *testing.T) {
	tests := []struct {
		name string
		tag  string
	}{
		{"prefixed", "en:milk"},
		{"plural", "en:milks"},
		{"upper case", "EN:Milk"},
		{"no prefix", "milk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := Detect(nil, []string{"milk"}, Options{Tags: []string{tt.tag}})
			assert.True(t, hasFlag(flags, "milk", ReasonTag), "tag %q", tt.tag)
		})
	}
}

func TestDetect_TraceTags(t *testing.T) {
	flags := Detect(nil, []string{"peanut"}, Options{TraceTags: []string{"en:peanuts"}})
	require.Len(t, flags, 1)
	assert.Equal(t, Flag{Allergen: "peanut", Reason: ReasonTag, MatchedToken: "en:peanuts"}, flags[0])
}

func TestDetect_PenicillinRule(t *testing.T) {
	flags := Detect([]string{"amoxicillin trihydrate"}, []string{"penicillin"}, Options{
		CrossRules: []CrossRule{PenicillinRule},
	})

	assert.Contains(t, flags, Flag{Allergen: "penicillin", Reason: ReasonCrossReactive, MatchedToken: "amoxicillin"})
	assert.False(t, hasFlag(flags, "penicillin", ReasonDirect))
}

func TestDetect_PenicillinRuleRequiresExactAllergen(t *testing.T) {
	flags := Detect([]string{"amoxicillin"}, []string{"penicillins"}, Options{
		CrossRules: []CrossRule{PenicillinRule},
	})
	assert.False(t, hasFlag(flags, "penicillins", ReasonCrossReactive))
}

func TestDetect_RelatedTokens(t *testing.T) {
	engine := NewEngine(Dictionary{})
	flags := engine.Detect([]string{"contains groundnut oil"}, []string{"peanut"}, Options{
		Related: map[string][]string{"peanut": {"groundnut oil"}},
	})

	assert.Equal(t, []Flag{{Allergen: "peanut", Reason: ReasonRelated, MatchedToken: "groundnut oil"}}, flags)
}

func TestDetect_RelatedTokensIgnoreUndeclaredAllergens(t *testing.T) {
	engine := NewEngine(Dictionary{})
	flags := engine.Detect([]string{"sesame paste", "groundnut oil"}, []string{"Peanut"}, Options{
		Related: map[string][]string{
			"peanut": {"groundnut oil"},
			"sesame": {"sesame paste"},
		},
	})

	assert.Equal(t, []Flag{{Allergen: "peanut", Reason: ReasonRelated, MatchedToken: "groundnut oil"}}, flags)
}

func TestDetect_SymmetricDirectMatch(t *testing.T) {
	flags := Detect([]string{"skimmed milk powder", "nut"}, []string{"milk", "tree nut"}, Options{})

	assert.Contains(t, flags, Flag{Allergen: "milk", Reason: ReasonDirect, MatchedToken: "skimmed milk powder"})
	// the short token "nut" sits inside the allergen phrase
	assert.Contains(t, flags, Flag{Allergen: "tree nut", Reason: ReasonDirect, MatchedToken: "nut"})
}

func TestDetect_MultipleReasonsRecordedSeparately(t *testing.T) {
	flags := Detect([]string{"peanut butter"}, []string{"Peanut"}, Options{
		Tags:    []string{"en:peanuts"},
		Related: map[string][]string{"peanut": {"butter"}},
	})

	for _, r := range []Reason{ReasonTag, ReasonDirect, ReasonAlias, ReasonRelated} {
		assert.True(t, hasFlag(flags, "peanut", r), "missing reason %s", r)
	}
	assert.Equal(t, []string{"peanut"}, Allergens(flags))
	assert.False(t, IsSafe(flags))
}

func TestDetect_UnknownAllergenFallsBackToItself(t *testing.T) {
	flags := Detect([]string{"sesame seeds"}, []string{"sesame"}, Options{})
	assert.True(t, hasFlag(flags, "sesame", ReasonDirect))
	assert.True(t, hasFlag(flags, "sesame", ReasonAlias))
}

func TestDetect_NoMatchIsSafe(t *testing.T) {
	flags := Detect([]string{"rice", "water"}, []string{"peanut"}, Options{})
	assert.True(t, IsSafe(flags))
}
