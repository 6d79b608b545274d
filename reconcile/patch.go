// Package reconcile turns semantic property patches into native board
// mutations: fuzzy option resolution, per-field mapping, link extraction
// from note text, and entity upsert.
package reconcile

// FieldKind identifies the shape of a patch field value.
type FieldKind int

// Patch field shapes. Exactly one variant is populated per FieldValue.
const (
	FieldText FieldKind = iota
	FieldList
	FieldURL
	FieldDate
	FieldNote
)

// FieldValue is a tagged union over the shapes a patch field can take.
// Text holds the value for text, url, date, and note kinds; List holds
// list values in first-mention order, deduplicated.
type FieldValue struct {
	Kind FieldKind
	Text string
	List []string
}

// Text wraps a plain string value.
func Text(s string) FieldValue {
	return FieldValue{Kind: FieldText, Text: s}
}

// List wraps a list of strings, deduplicating while preserving
// first-mention order.
func List(values []string) FieldValue {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return FieldValue{Kind: FieldList, List: out}
}

// URL wraps a URL string.
func URL(s string) FieldValue {
	return FieldValue{Kind: FieldURL, Text: s}
}

// Date wraps an ISO calendar date string.
func Date(iso string) FieldValue {
	return FieldValue{Kind: FieldDate, Text: iso}
}

// Note wraps a free-text note block.
func Note(text string) FieldValue {
	return FieldValue{Kind: FieldNote, Text: text}
}

// Field is one named field of a patch.
type Field struct {
	Name  string
	Value FieldValue
}

// Patch is an ordered set of semantic fields to write. It is consumed
// once per reconciliation call and never persisted.
type Patch struct {
	fields []Field
}

// NewPatch creates an empty patch.
func NewPatch() *Patch {
	return &Patch{}
}

// Set appends or replaces a field, keeping insertion order.
func (p *Patch) Set(name string, value FieldValue) *Patch {
	for i, f := range p.fields {
		if f.Name == name {
			p.fields[i].Value = value
			return p
		}
	}
	p.fields = append(p.fields, Field{Name: name, Value: value})
	return p
}

// Get returns the value for a field name.
func (p *Patch) Get(name string) (FieldValue, bool) {
	for _, f := range p.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return FieldValue{}, false
}

// Has reports whether the patch carries a field.
func (p *Patch) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// Fields returns the fields in insertion order.
func (p *Patch) Fields() []Field {
	return p.fields
}

// Note returns the first note-kind field's text, if any.
func (p *Patch) Note() (string, bool) {
	for _, f := range p.fields {
		if f.Value.Kind == FieldNote {
			return f.Value.Text, true
		}
	}
	return "", false
}

// Len returns the number of fields.
func (p *Patch) Len() int {
	return len(p.fields)
}
