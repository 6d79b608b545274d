package reconcile

// Synonym maps a natural-language phrasing to canonical value
// candidates. Phrase is matched by containment inside the normalized
// candidate; Canonicals are tried in order against the option list.
// New phrasings are data changes here, not control-flow changes.
type Synonym struct {
	Phrase     string
	Canonicals []string
}

// defaultSynonyms covers the idiomatic phrasings the substring tiers
// cannot catch. Order matters: more specific phrases come first.
var defaultSynonyms = []Synonym{
	{Phrase: "on hold", Canonicals: []string{"paused", "on hold", "hold"}},
	{Phrase: "paused", Canonicals: []string{"paused", "on hold"}},
	{Phrase: "hold", Canonicals: []string{"paused", "on hold"}},
	{Phrase: "in progress", Canonicals: []string{"in progress", "working", "editing"}},
	{Phrase: "working", Canonicals: []string{"in progress", "editing"}},
	{Phrase: "ready", Canonicals: []string{"ready for production", "ready"}},
	{Phrase: "done", Canonicals: []string{"done", "complete", "completed", "finished"}},
	{Phrase: "finished", Canonicals: []string{"done", "complete", "completed"}},
	{Phrase: "review", Canonicals: []string{"in review", "review"}},
	{Phrase: "waiting", Canonicals: []string{"blocked", "waiting"}},
	{Phrase: "blocked", Canonicals: []string{"blocked", "on hold"}},
}
