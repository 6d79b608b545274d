package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/mediaops/prodsync/board"
)

// labelURLPattern matches "Label: https://..." note lines.
var labelURLPattern = regexp.MustCompile(`^([^:]{1,80}):\s*(https?://\S+)$`)

// bulletMarkers start a bulleted note line.
var bulletMarkers = []string{"- ", "* ", "• "}

// actionWords mark a bullet as an actionable item rather than a plain
// observation.
var actionWords = []string{
	"todo", "to do", "need", "fix", "update", "review",
	"send", "schedule", "remind", "follow up", "check", "upload",
}

// defaultCategoryPrefixes derives a category from the letter prefix of
// a business key ("EP12" -> Episode).
var defaultCategoryPrefixes = map[string]string{
	"EP":  "Episode",
	"SH":  "Short",
	"TR":  "Trailer",
	"BTS": "Behind The Scenes",
}

// Mutator applies resolved property payloads to board entities,
// creating them on first sight of a business key, and appends free-text
// notes as structured content blocks.
type Mutator struct {
	client       board.Client
	schemas      *board.SchemaCache
	collectionID string
	keyProperty  string
	prefixes     map[string]string
	logger       *slog.Logger
}

// NewMutator creates a Mutator for one collection. keyProperty is the
// board property holding the business key.
func NewMutator(client board.Client, schemas *board.SchemaCache, collectionID, keyProperty string, logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{
		client:       client,
		schemas:      schemas,
		collectionID: collectionID,
		keyProperty:  keyProperty,
		prefixes:     defaultCategoryPrefixes,
		logger:       logger,
	}
}

// Upsert applies props to the entity identified by businessKey,
// creating it first when none exists. Creation seeds the title, the
// business key, and a category derived from the key's letter prefix;
// the supplied props are part of the same create call, so a create
// failure aborts the whole upsert. Returns the entity id.
func (m *Mutator) Upsert(ctx context.Context, businessKey, title string, props map[string]board.PropertyValue, coverURL string) (string, error) {
	if businessKey == "" {
		return "", fmt.Errorf("business key is required")
	}

	existing, err := m.client.Query(ctx, m.collectionID, board.Filter{Property: m.keyProperty, Value: businessKey}, 1)
	if err != nil {
		return "", fmt.Errorf("look up %q: %w", businessKey, err)
	}

	if len(existing) > 0 {
		entityID := existing[0].ID
		if len(props) > 0 {
			if err := m.client.UpdateEntity(ctx, entityID, props); err != nil {
				if board.IsSchemaMismatch(err) {
					m.schemas.Invalidate(m.collectionID)
				}
				return "", fmt.Errorf("update entity %s: %w", entityID, err)
			}
		}
		m.logger.Debug("entity updated",
			"business_key", businessKey,
			"entity_id", entityID,
			"properties", len(props))
		return entityID, nil
	}

	seed, err := m.seedProperties(ctx, businessKey, title)
	if err != nil {
		return "", err
	}
	for name, pv := range props {
		seed[name] = pv // explicit payload wins over seeds
	}

	entityID, err := m.client.CreateEntity(ctx, m.collectionID, seed, coverURL)
	if err != nil {
		if board.IsSchemaMismatch(err) {
			m.schemas.Invalidate(m.collectionID)
		}
		return "", fmt.Errorf("create entity for %q: %w", businessKey, err)
	}

	m.logger.Info("entity created",
		"business_key", businessKey,
		"entity_id", entityID)
	return entityID, nil
}

// seedProperties builds the initial property set for a new entity.
func (m *Mutator) seedProperties(ctx context.Context, businessKey, title string) (map[string]board.PropertyValue, error) {
	if title == "" {
		title = businessKey
	}

	seed := map[string]board.PropertyValue{
		m.keyProperty: board.RichTextValue(businessKey),
	}

	schema, err := m.schemas.Get(ctx, m.collectionID)
	if err != nil {
		return nil, fmt.Errorf("seed new entity: %w", err)
	}
	for _, entry := range schema {
		if entry.Kind == board.KindTitle {
			seed[entry.Name] = board.TitleValue(title)
			break
		}
	}

	if category, ok := m.prefixes[keyPrefix(businessKey)]; ok {
		for _, entry := range schema {
			if entry.Name == "Category" && entry.Kind.IsEnum() {
				seed["Category"] = board.SelectValue(category)
				break
			}
		}
	}

	return seed, nil
}

// keyPrefix returns the leading letters of a business key.
func keyPrefix(key string) string {
	for i, r := range key {
		if !unicode.IsLetter(r) {
			return strings.ToUpper(key[:i])
		}
	}
	return strings.ToUpper(key)
}

// AppendNote formats text into block-level content and appends it to
// the entity. "Label: URL" lines become bookmarks, bullet lines become
// action items when they carry task language (plain bullets otherwise),
// everything else becomes a paragraph. Note appends are independent of
// property-mutation success.
func (m *Mutator) AppendNote(ctx context.Context, entityID, text string) error {
	blocks := FormatNoteBlocks(text)
	if len(blocks) == 0 {
		return nil
	}
	if err := m.client.AppendBlocks(ctx, entityID, blocks); err != nil {
		return fmt.Errorf("append note to %s: %w", entityID, err)
	}
	m.logger.Debug("note appended",
		"entity_id", entityID,
		"blocks", len(blocks))
	return nil
}

// FormatNoteBlocks turns free note text into structured content blocks.
func FormatNoteBlocks(text string) []board.Block {
	var blocks []board.Block
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if match := labelURLPattern.FindStringSubmatch(line); match != nil {
			blocks = append(blocks, board.Block{
				Type:    board.BlockBookmark,
				URL:     match[2],
				Caption: strings.TrimSpace(match[1]),
			})
			continue
		}

		if content, ok := stripBullet(line); ok {
			blockType := board.BlockBullet
			if hasActionLanguage(content) {
				blockType = board.BlockTodo
			}
			blocks = append(blocks, board.Block{Type: blockType, Text: content})
			continue
		}

		blocks = append(blocks, board.Block{Type: board.BlockParagraph, Text: line})
	}
	return blocks
}

func stripBullet(line string) (string, bool) {
	for _, marker := range bulletMarkers {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker)), true
		}
	}
	return "", false
}

func hasActionLanguage(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range actionWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
