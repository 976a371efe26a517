package match

import "testing"

func rentalRules() RuleSet {
	return RuleSet{
		Excluded:     []string{"no quiero"},
		ExactPhrases: []string{"quiero alquilar"},
		Keywords:     []string{"alquiler"},
		Synonyms: []SynonymGroup{
			{Canonical: "alquilar", Synonyms: []string{"rentar", "arrendar"}},
		},
	}
}

func TestExactPhraseWins(t *testing.T) {
	res, ok := Match("quiero alquilar", rentalRules())
	if !ok {
		t.Fatalf("expected a match")
	}
	if res.MatchType != TypeExact {
		t.Fatalf("expected EXACT, got %s", res.MatchType)
	}
	if res.MatchedText != "quiero alquilar" {
		t.Fatalf("expected matched text %q, got %q", "quiero alquilar", res.MatchedText)
	}
}

func TestExclusionVetoesEverything(t *testing.T) {
	// Text contains the exact phrase AND the excluded phrase; exclusion
	// must short-circuit first.
	if _, ok := Match("no quiero alquilar nada", rentalRules()); ok {
		t.Fatalf("expected no match when an excluded phrase is present")
	}
}

func TestExactBeatsKeyword(t *testing.T) {
	rules := RuleSet{
		ExactPhrases: []string{"quiero alquilar"},
		Keywords:     []string{"alquilar"},
	}
	res, ok := Match("hola quiero alquilar un depto", rules)
	if !ok || res.MatchType != TypeExact {
		t.Fatalf("expected EXACT to take precedence, got %+v ok=%v", res, ok)
	}
}

func TestKeywordTokenAndSubstring(t *testing.T) {
	rules := RuleSet{Keywords: []string{"alquiler"}}

	res, ok := Match("busco alquiler barato", rules)
	if !ok || res.MatchType != TypeKeyword || res.MatchedText != "alquiler" {
		t.Fatalf("token hit failed: %+v ok=%v", res, ok)
	}

	// Substring containment also counts.
	res, ok = Match("info alquileres", rules)
	if !ok || res.MatchType != TypeKeyword {
		t.Fatalf("substring hit failed: %+v ok=%v", res, ok)
	}
}

func TestSynonymReportsCanonicalWord(t *testing.T) {
	res, ok := Match("quisiera rentar algo", rentalRules())
	if !ok {
		t.Fatalf("expected a synonym match")
	}
	if res.MatchType != TypeSynonym {
		t.Fatalf("expected SYNONYM, got %s", res.MatchType)
	}
	if res.MatchedText != "alquilar" {
		t.Fatalf("expected canonical word %q, got %q", "alquilar", res.MatchedText)
	}
}

func TestCaseInsensitive(t *testing.T) {
	rules := RuleSet{Keywords: []string{"Alquiler"}}
	upper, okU := Match("ALQUILER ya", rules)
	lower, okL := Match("alquiler ya", rules)
	if !okU || !okL {
		t.Fatalf("expected both casings to match")
	}
	if upper.MatchType != lower.MatchType || upper.MatchedText != lower.MatchedText {
		t.Fatalf("case changed outcome: %+v vs %+v", upper, lower)
	}
}

func TestBlankTextAndEmptyRules(t *testing.T) {
	if _, ok := Match("   ", rentalRules()); ok {
		t.Fatalf("blank text must not match")
	}
	if _, ok := Match("quiero alquilar", RuleSet{}); ok {
		t.Fatalf("empty rule set must not match")
	}
}

func TestNoRuleSatisfied(t *testing.T) {
	if _, ok := Match("buenas tardes", rentalRules()); ok {
		t.Fatalf("expected no match")
	}
}

func TestListedOrderWithinTier(t *testing.T) {
	rules := RuleSet{Keywords: []string{"depto", "casa"}}
	res, ok := Match("busco casa o depto", rules)
	if !ok {
		t.Fatalf("expected a match")
	}
	if res.MatchedText != "depto" {
		t.Fatalf("expected first listed keyword to win, got %q", res.MatchedText)
	}
}
