package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mediaops/prodsync/board"
)

// FieldError records a single field that failed to map. One field
// failing never aborts the rest of the patch.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, e.Err)
}

// defaultFieldMap translates semantic patch field names to board
// property names. Unknown fields map to themselves.
var defaultFieldMap = map[string]string{
	"title":            "Name",
	"status":           "Status",
	"caption_status":   "Caption Status",
	"thumbnail_status": "Thumbnail Status",
	"editor":           "Editor",
	"lead":             "Lead",
	"category":         "Category",
	"due_date":         "Due Date",
	"publish_date":     "Publish Date",
	"frameio_url":      "Frame.io Link",
	"script_url":       "Script",
}

// defaultSingleOwnerFields are semantically single-valued even when a
// list is supplied: the first element wins, never a list. Distinct
// from genuinely multi-valued fields such as editor.
var defaultSingleOwnerFields = map[string]struct{}{
	"lead": {},
}

// Mapper turns a semantic patch into native board property values,
// consulting the schema cache for property kinds and the resolver for
// enum option matching.
type Mapper struct {
	schemas     *board.SchemaCache
	resolver    *Resolver
	links       *LinkExtractor
	fieldMap    map[string]string
	singleOwner map[string]struct{}
	logger      *slog.Logger
}

// NewMapper creates a Mapper with the default field map, synonym table,
// and link rules.
func NewMapper(schemas *board.SchemaCache, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{
		schemas:     schemas,
		resolver:    NewResolver(),
		links:       NewLinkExtractor(),
		fieldMap:    defaultFieldMap,
		singleOwner: defaultSingleOwnerFields,
		logger:      logger,
	}
}

// Map resolves every field of the patch into board property values.
// Each field maps inside its own recoverable unit: failures land in the
// returned error list and the payload keeps every field that succeeded.
// A note field produces no property write itself; it feeds link
// extraction, with explicitly supplied link fields taking precedence
// over links found in the note text.
func (m *Mapper) Map(ctx context.Context, collectionID string, patch *Patch) (map[string]board.PropertyValue, []FieldError) {
	props := make(map[string]board.PropertyValue)
	var errs []FieldError

	for _, f := range patch.Fields() {
		if f.Value.Kind == FieldNote {
			continue
		}
		propName, pv, err := m.mapField(ctx, collectionID, f.Name, f.Value)
		if err != nil {
			m.logger.Warn("field mapping failed",
				"collection_id", collectionID,
				"field", f.Name,
				"error", err)
			errs = append(errs, FieldError{Field: f.Name, Err: err})
			continue
		}
		props[propName] = pv
	}

	if note, ok := patch.Note(); ok {
		for field, link := range m.links.Extract(note) {
			if patch.Has(field) {
				continue // explicit value wins
			}
			propName, pv, err := m.mapField(ctx, collectionID, field, URL(link))
			if err != nil {
				m.logger.Debug("skipping link extracted from note",
					"collection_id", collectionID,
					"field", field,
					"error", err)
				continue
			}
			if _, exists := props[propName]; exists {
				continue
			}
			m.logger.Info("link extracted from note text",
				"field", field,
				"url", link)
			props[propName] = pv
		}
	}

	return props, errs
}

// PropertyName returns the board property a semantic field writes to.
func (m *Mapper) PropertyName(field string) string {
	if mapped, ok := m.fieldMap[field]; ok {
		return mapped
	}
	return field
}

// mapField maps one field value onto the store's native shape for the
// target property's declared kind.
func (m *Mapper) mapField(ctx context.Context, collectionID, name string, fv FieldValue) (string, board.PropertyValue, error) {
	propName := m.PropertyName(name)

	entry, ok, err := m.schemas.Entry(ctx, collectionID, propName)
	if err != nil {
		return "", board.PropertyValue{}, err
	}
	if !ok {
		return "", board.PropertyValue{}, fmt.Errorf("collection has no property %q", propName)
	}

	if _, single := m.singleOwner[name]; single && fv.Kind == FieldList && len(fv.List) > 0 {
		fv = Text(fv.List[0])
	}

	switch entry.Kind {
	case board.KindSelect, board.KindStatus:
		value := fv.Text
		if fv.Kind == FieldList {
			if len(fv.List) == 0 {
				return "", board.PropertyValue{}, fmt.Errorf("empty list for single-value property %q", propName)
			}
			value = fv.List[0]
		}
		resolved := m.resolveOption(collectionID, propName, value, entry.Options)
		if entry.Kind == board.KindStatus {
			return propName, board.StatusValue(resolved), nil
		}
		return propName, board.SelectValue(resolved), nil

	case board.KindMultiSelect:
		values := fv.List
		if fv.Kind != FieldList {
			values = []string{fv.Text}
		}
		resolved := make([]string, len(values))
		for i, v := range values {
			resolved[i] = m.resolveOption(collectionID, propName, v, entry.Options)
		}
		return propName, board.MultiSelectValue(resolved), nil

	case board.KindURL:
		return propName, board.URLValue(fv.Text), nil

	case board.KindDate:
		return propName, board.DateValue(fv.Text), nil

	case board.KindRichText:
		text := fv.Text
		if fv.Kind == FieldList {
			text = strings.Join(fv.List, ", ")
		}
		return propName, board.RichTextValue(text), nil

	case board.KindTitle:
		return propName, board.TitleValue(fv.Text), nil

	case board.KindRelation:
		ids := fv.List
		if fv.Kind != FieldList {
			ids = []string{fv.Text}
		}
		return propName, board.RelationValue(ids), nil

	default:
		return "", board.PropertyValue{}, fmt.Errorf("unsupported property kind %q", entry.Kind)
	}
}

// resolveOption resolves candidate against the option list, falling
// back to the literal candidate with a warning when nothing matches.
// The requested change is never silently dropped.
func (m *Mapper) resolveOption(collectionID, propName, candidate string, options []string) string {
	if resolved, ok := m.resolver.Resolve(candidate, options); ok {
		return resolved
	}
	m.logger.Warn("value did not resolve against allowed options, storing literal",
		"collection_id", collectionID,
		"property", propName,
		"value", candidate)
	return candidate
}
