// Package board provides a client for the external project-board store:
// schema discovery, entity queries, property mutation, and content blocks.
package board

import (
	"strings"
	"time"
)

// PropertyKind identifies the declared type of a board property.
type PropertyKind string

// Property kinds understood by the reconciliation engine.
const (
	KindSelect      PropertyKind = "select"
	KindMultiSelect PropertyKind = "multi_select"
	KindStatus      PropertyKind = "status"
	KindURL         PropertyKind = "url"
	KindDate        PropertyKind = "date"
	KindRelation    PropertyKind = "relation"
	KindRichText    PropertyKind = "rich_text"
	KindTitle       PropertyKind = "title"
)

// IsEnum reports whether values of this kind are constrained to a
// declared option list and should go through fuzzy resolution.
func (k PropertyKind) IsEnum() bool {
	switch k {
	case KindSelect, KindMultiSelect, KindStatus:
		return true
	}
	return false
}

// SchemaEntry describes one property of a collection: its name, kind,
// and (for enum kinds) the allowed option values in declared order.
type SchemaEntry struct {
	Name    string       `json:"name"`
	Kind    PropertyKind `json:"kind"`
	Options []string     `json:"options,omitempty"`
}

// Entity is one record in a board collection.
type Entity struct {
	ID           string                   `json:"id"`
	LastEditedAt time.Time                `json:"last_edited_at"`
	Properties   map[string]PropertyValue `json:"properties"`
}

// Title returns the entity's display title: the first populated
// title-kind property, or "" if none is set.
func (e *Entity) Title() string {
	for _, pv := range e.Properties {
		if pv.Type != KindTitle {
			continue
		}
		if text := strings.TrimSpace(pv.PlainText()); text != "" {
			return text
		}
	}
	return ""
}

// Filter is a single-property equality filter for Query.
type Filter struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}
