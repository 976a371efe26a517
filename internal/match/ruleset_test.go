package match

import "testing"

func TestParseRuleSet(t *testing.T) {
	raw := []byte(`{
		"excluded": ["no quiero"],
		"exact_matches": ["quiero alquilar"],
		"keywords": ["alquiler"],
		"synonyms": {"alquilar": ["rentar", "arrendar"], "comprar": ["adquirir"]}
	}`)
	rs := ParseRuleSet(raw)

	if len(rs.Excluded) != 1 || rs.Excluded[0] != "no quiero" {
		t.Fatalf("excluded: %+v", rs.Excluded)
	}
	if len(rs.ExactPhrases) != 1 || rs.ExactPhrases[0] != "quiero alquilar" {
		t.Fatalf("exact: %+v", rs.ExactPhrases)
	}
	if len(rs.Keywords) != 1 || rs.Keywords[0] != "alquiler" {
		t.Fatalf("keywords: %+v", rs.Keywords)
	}
	if len(rs.Synonyms) != 2 {
		t.Fatalf("synonyms: %+v", rs.Synonyms)
	}
	// Groups keep document order, not map order.
	if rs.Synonyms[0].Canonical != "alquilar" || rs.Synonyms[1].Canonical != "comprar" {
		t.Fatalf("group order: %+v", rs.Synonyms)
	}
}

func TestParseRuleSetTolerant(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ``},
		{"not json", `nope`},
		{"not object", `[1,2,3]`},
		{"non-array tiers", `{"excluded": 5, "keywords": {"a": 1}}`},
		{"synonyms not object", `{"synonyms": ["a"]}`},
	}
	for _, tc := range cases {
		rs := ParseRuleSet([]byte(tc.raw))
		if !rs.Empty() {
			t.Fatalf("%s: expected empty rule set, got %+v", tc.name, rs)
		}
	}
}

func TestParseRuleSetSkipsMalformedEntries(t *testing.T) {
	raw := []byte(`{
		"keywords": ["alquiler", 42, {"x": 1}, "venta"],
		"synonyms": {"alquilar": ["rentar", 7], "": ["huérfano"], "vacío": []}
	}`)
	rs := ParseRuleSet(raw)

	if len(rs.Keywords) != 2 || rs.Keywords[0] != "alquiler" || rs.Keywords[1] != "venta" {
		t.Fatalf("keywords: %+v", rs.Keywords)
	}
	if len(rs.Synonyms) != 1 {
		t.Fatalf("synonyms: %+v", rs.Synonyms)
	}
	if g := rs.Synonyms[0]; g.Canonical != "alquilar" || len(g.Synonyms) != 1 || g.Synonyms[0] != "rentar" {
		t.Fatalf("group: %+v", rs.Synonyms[0])
	}
}
