package match

import (
	"bytes"
	"encoding/json"
)

// ParseRuleSet decodes a campaign's stored trigger rules. The stored shape
// is editor-facing JSON and may be sloppy: missing fields, non-array
// fields, or non-string entries inside a tier. Anything malformed is
// skipped rather than rejected, so one bad entry never disables a
// campaign's remaining rules.
//
// Expected shape:
//
//	{
//	  "excluded":      ["no quiero"],
//	  "exact_matches": ["quiero alquilar"],
//	  "keywords":      ["alquiler"],
//	  "synonyms":      {"alquilar": ["rentar", "arrendar"]}
//	}
func ParseRuleSet(raw []byte) RuleSet {
	if len(raw) == 0 {
		return RuleSet{}
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return RuleSet{}
	}

	rs := RuleSet{
		Excluded:     stringList(doc["excluded"]),
		ExactPhrases: stringList(doc["exact_matches"]),
		Keywords:     stringList(doc["keywords"]),
	}

	var syn map[string]json.RawMessage
	if err := json.Unmarshal(doc["synonyms"], &syn); err == nil {
		// Map iteration order is random; keep group order stable by
		// re-reading the object keys in document order.
		for _, canonical := range objectKeysInOrder(doc["synonyms"]) {
			words := stringList(syn[canonical])
			if canonical == "" || len(words) == 0 {
				continue
			}
			rs.Synonyms = append(rs.Synonyms, SynonymGroup{Canonical: canonical, Synonyms: words})
		}
	}
	return rs
}

func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []string
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// objectKeysInOrder returns an object's keys in the order they appear in
// the document, which encoding/json's map decoding discards.
func objectKeysInOrder(raw json.RawMessage) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil
		}
	}
	return keys
}
