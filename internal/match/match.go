// Package match implements campaign trigger matching over inbound text.
//
// Rules are evaluated strictly in priority order: exclusions first (any hit
// vetoes everything), then exact phrases, then standalone keywords, then
// synonym groups. The first satisfied rule wins and later tiers are not
// looked at.
package match

import "strings"

// SynonymGroup maps a canonical word to its accepted synonyms. A hit on any
// synonym is reported as the canonical word.
type SynonymGroup struct {
	Canonical string
	Synonyms  []string
}

type RuleSet struct {
	Excluded     []string
	ExactPhrases []string
	Keywords     []string
	Synonyms     []SynonymGroup
}

func (r RuleSet) Empty() bool {
	return len(r.Excluded) == 0 && len(r.ExactPhrases) == 0 &&
		len(r.Keywords) == 0 && len(r.Synonyms) == 0
}

// Result is an ephemeral match outcome, consumed immediately by the caller.
type Result struct {
	MatchedText string
	MatchType   string
}

const (
	TypeExact   = "EXACT"
	TypeKeyword = "KEYWORD"
	TypeSynonym = "SYNONYM"
)

// Match evaluates text against rules. Comparison is case-insensitive;
// keyword and synonym tiers accept either whole-token equality or substring
// containment, phrase tiers use substring containment only.
func Match(text string, rules RuleSet) (Result, bool) {
	norm := strings.ToLower(strings.TrimSpace(text))
	if norm == "" || rules.Empty() {
		return Result{}, false
	}
	tokens := strings.Fields(norm)

	for _, phrase := range rules.Excluded {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p != "" && strings.Contains(norm, p) {
			return Result{}, false
		}
	}

	for _, phrase := range rules.ExactPhrases {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p != "" && strings.Contains(norm, p) {
			return Result{MatchedText: phrase, MatchType: TypeExact}, true
		}
	}

	for _, kw := range rules.Keywords {
		if hitToken(norm, tokens, kw) {
			return Result{MatchedText: kw, MatchType: TypeKeyword}, true
		}
	}

	for _, group := range rules.Synonyms {
		for _, syn := range group.Synonyms {
			if hitToken(norm, tokens, syn) {
				return Result{MatchedText: group.Canonical, MatchType: TypeSynonym}, true
			}
		}
	}

	return Result{}, false
}

func hitToken(norm string, tokens []string, candidate string) bool {
	c := strings.ToLower(strings.TrimSpace(candidate))
	if c == "" {
		return false
	}
	for _, tok := range tokens {
		if tok == c {
			return true
		}
	}
	return strings.Contains(norm, c)
}
