package reconcile

import "strings"

// Resolver fuzzy-matches free-form candidate values against a
// property's allowed options. Matching runs through tiers in order of
// decreasing precision; the first tier that produces a match wins.
type Resolver struct {
	synonyms []Synonym
}

// NewResolver creates a Resolver with the default synonym table.
func NewResolver() *Resolver {
	return &Resolver{synonyms: defaultSynonyms}
}

// NewResolverWithSynonyms creates a Resolver with a custom table.
// Entries are matched in order.
func NewResolverWithSynonyms(table []Synonym) *Resolver {
	return &Resolver{synonyms: table}
}

// Resolve matches candidate against options. It returns the canonical
// option string and true, or ("", false) when nothing matches. Callers
// must not drop the change on a miss: the contract is to warn and fall
// back to the literal candidate.
func (r *Resolver) Resolve(candidate string, options []string) (string, bool) {
	cand := normalize(candidate)
	if cand == "" || len(options) == 0 {
		return "", false
	}

	// Tier 1: case-insensitive exact match.
	for _, opt := range options {
		if normalize(opt) == cand {
			return opt, true
		}
	}

	// Tier 2: substring containment in either direction.
	for _, opt := range options {
		norm := normalize(opt)
		if strings.Contains(norm, cand) || strings.Contains(cand, norm) {
			return opt, true
		}
	}

	// Tier 3: whitespace-tokenized overlap.
	candTokens := strings.Fields(cand)
	for _, opt := range options {
		if tokensOverlap(candTokens, strings.Fields(normalize(opt))) {
			return opt, true
		}
	}

	// Tier 4: synonym table. The phrase is matched by containment
	// inside the candidate; its canonicals are re-resolved against
	// the options through tiers 1-3.
	for _, syn := range r.synonyms {
		if !strings.Contains(cand, syn.Phrase) {
			continue
		}
		for _, canonical := range syn.Canonicals {
			if opt, ok := r.resolveDirect(canonical, options); ok {
				return opt, true
			}
		}
	}

	return "", false
}

// resolveDirect runs tiers 1-3 only, used when expanding synonyms.
func (r *Resolver) resolveDirect(candidate string, options []string) (string, bool) {
	cand := normalize(candidate)
	for _, opt := range options {
		if normalize(opt) == cand {
			return opt, true
		}
	}
	for _, opt := range options {
		norm := normalize(opt)
		if strings.Contains(norm, cand) || strings.Contains(cand, norm) {
			return opt, true
		}
	}
	candTokens := strings.Fields(cand)
	for _, opt := range options {
		if tokensOverlap(candTokens, strings.Fields(normalize(opt))) {
			return opt, true
		}
	}
	return "", false
}

// tokensOverlap reports whether any candidate token matches any option
// token exactly or by containment.
func tokensOverlap(candTokens, optTokens []string) bool {
	for _, ct := range candTokens {
		for _, ot := range optTokens {
			if ct == ot || strings.Contains(ot, ct) || strings.Contains(ct, ot) {
				return true
			}
		}
	}
	return false
}

// normalize lowercases and collapses runs of whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
