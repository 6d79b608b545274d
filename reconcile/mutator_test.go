package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaops/prodsync/board"
)

// fakeBoard is an in-memory board.Client recording mutations.
type fakeBoard struct {
	schema        []board.SchemaEntry
	entities      []board.Entity
	creates       int
	schemaFetches int
	updates       map[string]map[string]board.PropertyValue
	appended      map[string][]board.Block
	createErr     error
	updateErr     error
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{
		schema:   testSchema(),
		updates:  make(map[string]map[string]board.PropertyValue),
		appended: make(map[string][]board.Block),
	}
}

func (f *fakeBoard) GetSchema(_ context.Context, _ string) ([]board.SchemaEntry, error) {
	f.schemaFetches++
	return f.schema, nil
}

func (f *fakeBoard) Query(_ context.Context, _ string, filter board.Filter, pageSize int) ([]board.Entity, error) {
	var out []board.Entity
	for _, e := range f.entities {
		pv, ok := e.Properties[filter.Property]
		if !ok {
			continue
		}
		if pv.PlainText() == filter.Value || pv.OptionName() == filter.Value {
			out = append(out, e)
		}
		if len(out) == pageSize {
			break
		}
	}
	return out, nil
}

func (f *fakeBoard) UpdateEntity(_ context.Context, entityID string, props map[string]board.PropertyValue) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates[entityID] = props
	for i := range f.entities {
		if f.entities[i].ID == entityID {
			for name, pv := range props {
				f.entities[i].Properties[name] = pv
			}
		}
	}
	return nil
}

func (f *fakeBoard) CreateEntity(_ context.Context, _ string, props map[string]board.PropertyValue, _ string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.creates++
	id := "ent-" + time.Now().Format("150405.000000")
	copied := make(map[string]board.PropertyValue, len(props))
	for k, v := range props {
		copied[k] = v
	}
	f.entities = append(f.entities, board.Entity{ID: id, Properties: copied, LastEditedAt: time.Now()})
	return id, nil
}

func (f *fakeBoard) AppendBlocks(_ context.Context, entityID string, blocks []board.Block) error {
	f.appended[entityID] = append(f.appended[entityID], blocks...)
	return nil
}

func newTestMutator(f *fakeBoard) *Mutator {
	cache := board.NewSchemaCache(f, nil)
	return NewMutator(f, cache, "col-1", "Code", nil)
}

func TestUpsertCreatesOnceThenMutates(t *testing.T) {
	fake := newFakeBoard()
	m := newTestMutator(fake)

	first, err := m.Upsert(context.Background(), "EP12", "EP12 Season Finale", map[string]board.PropertyValue{
		"Status": board.SelectValue("Editing"),
	}, "")
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.Equal(t, 1, fake.creates)

	second, err := m.Upsert(context.Background(), "EP12", "", map[string]board.PropertyValue{
		"Status": board.SelectValue("Done"),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, first, second, "second upsert must mutate the same entity")
	assert.Equal(t, 1, fake.creates, "no duplicate creation")
	assert.Equal(t, "Done", fake.updates[first]["Status"].Select.Name)
}

func TestUpsertSeedsTitleAndCategory(t *testing.T) {
	fake := newFakeBoard()
	fake.schema = append(fake.schema, board.SchemaEntry{
		Name: "Category", Kind: board.KindSelect, Options: []string{"Episode", "Short", "Trailer"},
	})
	m := newTestMutator(fake)

	id, err := m.Upsert(context.Background(), "SH-104", "Studio Tour", nil, "")
	require.NoError(t, err)

	created := fake.entities[0]
	assert.Equal(t, id, created.ID)
	assert.Equal(t, "Studio Tour", created.Title())
	assert.Equal(t, "SH-104", created.Properties["Code"].PlainText())
	require.NotNil(t, created.Properties["Category"].Select)
	assert.Equal(t, "Short", created.Properties["Category"].Select.Name)
}

func TestUpsertCreateFailureAborts(t *testing.T) {
	fake := newFakeBoard()
	fake.createErr = board.ErrRateLimited
	m := newTestMutator(fake)

	_, err := m.Upsert(context.Background(), "TR-9", "Teaser", map[string]board.PropertyValue{
		"Status": board.SelectValue("Editing"),
	}, "")
	require.Error(t, err)
	assert.Empty(t, fake.updates, "no mutation may be applied when creation fails")
}

func TestUpsertUpdateSchemaMismatchInvalidatesCache(t *testing.T) {
	fake := newFakeBoard()
	cache := board.NewSchemaCache(fake, nil)
	m := NewMutator(fake, cache, "col-1", "Code", nil)

	_, err := m.Upsert(context.Background(), "EP12", "EP12", nil, "")
	require.NoError(t, err)
	warm := fake.schemaFetches
	require.Positive(t, warm)

	// Cache is warm: a plain lookup must not hit the store.
	_, err = cache.Get(context.Background(), "col-1")
	require.NoError(t, err)
	require.Equal(t, warm, fake.schemaFetches)

	fake.updateErr = &board.SchemaMismatchError{CollectionID: "col-1", Message: "unknown option"}
	_, err = m.Upsert(context.Background(), "EP12", "", map[string]board.PropertyValue{
		"Status": board.SelectValue("No Such Status"),
	}, "")
	require.Error(t, err)
	assert.True(t, board.IsSchemaMismatch(err))

	_, err = cache.Get(context.Background(), "col-1")
	require.NoError(t, err)
	assert.Equal(t, warm+1, fake.schemaFetches,
		"a rejected mutation must force a schema refetch before the next one")
}

func TestUpsertCreateSchemaMismatchInvalidatesCache(t *testing.T) {
	fake := newFakeBoard()
	cache := board.NewSchemaCache(fake, nil)
	m := NewMutator(fake, cache, "col-1", "Code", nil)

	fake.createErr = &board.SchemaMismatchError{CollectionID: "col-1", Message: "unknown property"}
	_, err := m.Upsert(context.Background(), "TR-9", "Teaser", nil, "")
	require.Error(t, err)

	seeded := fake.schemaFetches
	_, err = cache.Get(context.Background(), "col-1")
	require.NoError(t, err)
	assert.Equal(t, seeded+1, fake.schemaFetches,
		"a rejected creation must force a schema refetch")
}

func TestAppendNoteFormatsBlocks(t *testing.T) {
	fake := newFakeBoard()
	m := newTestMutator(fake)

	note := "Rough cut is up.\n" +
		"Frame.io: https://f.io/xyz789\n" +
		"- need captions review\n" +
		"- color looks great\n"

	require.NoError(t, m.AppendNote(context.Background(), "ent-1", note))

	blocks := fake.appended["ent-1"]
	require.Len(t, blocks, 4)
	assert.Equal(t, board.BlockParagraph, blocks[0].Type)
	assert.Equal(t, board.BlockBookmark, blocks[1].Type)
	assert.Equal(t, "https://f.io/xyz789", blocks[1].URL)
	assert.Equal(t, "Frame.io", blocks[1].Caption)
	assert.Equal(t, board.BlockTodo, blocks[2].Type, "task language makes an action item")
	assert.Equal(t, board.BlockBullet, blocks[3].Type)
}

func TestFormatNoteBlocksEmpty(t *testing.T) {
	assert.Empty(t, FormatNoteBlocks("  \n\n "))
}

func TestKeyPrefix(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"EP12", "EP"},
		{"SH-104", "SH"},
		{"bts7", "BTS"},
		{"42", ""},
	}
	for _, tc := range tests {
		if got := keyPrefix(tc.key); got != tc.want {
			t.Errorf("keyPrefix(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}
