package board

import "strings"

// Option is a named option of a select, multi-select, or status property.
type Option struct {
	Name string `json:"name"`
}

// Date is a calendar date value in ISO 8601 form.
type Date struct {
	Start string `json:"start"`
}

// TextSpan is one run of text, optionally carrying a hyperlink.
type TextSpan struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// PropertyValue is the store's native value shape for one property.
// Exactly the field matching Type is populated.
type PropertyValue struct {
	Type        PropertyKind `json:"type"`
	Select      *Option      `json:"select,omitempty"`
	MultiSelect []Option     `json:"multi_select,omitempty"`
	Status      *Option      `json:"status,omitempty"`
	URL         *string      `json:"url,omitempty"`
	Date        *Date        `json:"date,omitempty"`
	RichText    []TextSpan   `json:"rich_text,omitempty"`
	Title       []TextSpan   `json:"title,omitempty"`
	Relation    []string     `json:"relation,omitempty"`
}

// SelectValue wraps name as a single-select write.
func SelectValue(name string) PropertyValue {
	return PropertyValue{Type: KindSelect, Select: &Option{Name: name}}
}

// MultiSelectValue wraps names as a multi-select write.
func MultiSelectValue(names []string) PropertyValue {
	opts := make([]Option, len(names))
	for i, n := range names {
		opts[i] = Option{Name: n}
	}
	return PropertyValue{Type: KindMultiSelect, MultiSelect: opts}
}

// StatusValue wraps name as a status write.
func StatusValue(name string) PropertyValue {
	return PropertyValue{Type: KindStatus, Status: &Option{Name: name}}
}

// URLValue wraps a URL string.
func URLValue(url string) PropertyValue {
	return PropertyValue{Type: KindURL, URL: &url}
}

// DateValue wraps an ISO date string.
func DateValue(iso string) PropertyValue {
	return PropertyValue{Type: KindDate, Date: &Date{Start: iso}}
}

// RichTextValue wraps plain text as a rich-text write.
func RichTextValue(text string) PropertyValue {
	return PropertyValue{Type: KindRichText, RichText: []TextSpan{{Text: text}}}
}

// TitleValue wraps plain text as a title write.
func TitleValue(text string) PropertyValue {
	return PropertyValue{Type: KindTitle, Title: []TextSpan{{Text: text}}}
}

// RelationValue wraps entity ids as a relation write.
func RelationValue(ids []string) PropertyValue {
	return PropertyValue{Type: KindRelation, Relation: ids}
}

// PlainText flattens title and rich-text values to a single string.
// Other kinds return "".
func (v PropertyValue) PlainText() string {
	var spans []TextSpan
	switch v.Type {
	case KindTitle:
		spans = v.Title
	case KindRichText:
		spans = v.RichText
	default:
		return ""
	}
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// OptionName returns the selected option for select and status values,
// or "" for anything else.
func (v PropertyValue) OptionName() string {
	switch v.Type {
	case KindSelect:
		if v.Select != nil {
			return v.Select.Name
		}
	case KindStatus:
		if v.Status != nil {
			return v.Status.Name
		}
	}
	return ""
}

// BlockType identifies a content block shape.
type BlockType string

// Block types produced by note formatting.
const (
	BlockParagraph BlockType = "paragraph"
	BlockBullet    BlockType = "bulleted_list_item"
	BlockTodo      BlockType = "to_do"
	BlockBookmark  BlockType = "bookmark"
)

// Block is one block-level element appended to an entity's content.
type Block struct {
	Type    BlockType `json:"type"`
	Text    string    `json:"text,omitempty"`
	Checked bool      `json:"checked,omitempty"`
	URL     string    `json:"url,omitempty"`
	Caption string    `json:"caption,omitempty"`
}
