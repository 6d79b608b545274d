package board

import (
	"context"
	"testing"
)

// fakeSchemaClient counts schema fetches and serves a fixed schema.
type fakeSchemaClient struct {
	Client
	fetches int
	entries []SchemaEntry
	err     error
}

func (f *fakeSchemaClient) GetSchema(_ context.Context, _ string) ([]SchemaEntry, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func TestSchemaCache(t *testing.T) {
	schema := []SchemaEntry{
		{Name: "Status", Kind: KindStatus, Options: []string{"Editing", "VA Render", "Done"}},
		{Name: "Editor", Kind: KindMultiSelect, Options: []string{"Ray", "Sam"}},
	}

	t.Run("fetches once and caches", func(t *testing.T) {
		fake := &fakeSchemaClient{entries: schema}
		cache := NewSchemaCache(fake, nil)

		for i := 0; i < 3; i++ {
			got, err := cache.Get(context.Background(), "col-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(got))
			}
		}
		if fake.fetches != 1 {
			t.Errorf("expected 1 fetch, got %d", fake.fetches)
		}
	})

	t.Run("invalidate forces full refetch", func(t *testing.T) {
		fake := &fakeSchemaClient{entries: schema}
		cache := NewSchemaCache(fake, nil)

		if _, err := cache.Get(context.Background(), "col-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cache.Invalidate("col-1")
		if _, err := cache.Get(context.Background(), "col-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fake.fetches != 2 {
			t.Errorf("expected 2 fetches after invalidation, got %d", fake.fetches)
		}
	})

	t.Run("collections cached independently", func(t *testing.T) {
		fake := &fakeSchemaClient{entries: schema}
		cache := NewSchemaCache(fake, nil)

		if _, err := cache.Get(context.Background(), "col-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := cache.Get(context.Background(), "col-2"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fake.fetches != 2 {
			t.Errorf("expected one fetch per collection, got %d", fake.fetches)
		}
	})

	t.Run("Entry finds property by name", func(t *testing.T) {
		cache := NewSchemaCache(&fakeSchemaClient{entries: schema}, nil)

		entry, ok, err := cache.Entry(context.Background(), "col-1", "Editor")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Fatal("expected Editor to be found")
		}
		if entry.Kind != KindMultiSelect {
			t.Errorf("expected multi_select, got %s", entry.Kind)
		}

		_, ok, err = cache.Entry(context.Background(), "col-1", "Nope")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected unknown property to be absent")
		}
	})
}

func TestEntityTitle(t *testing.T) {
	e := &Entity{
		Properties: map[string]PropertyValue{
			"Status": StatusValue("Editing"),
			"Name":   TitleValue("EP12 Season Finale"),
		},
	}
	if got := e.Title(); got != "EP12 Season Finale" {
		t.Errorf("expected title, got %q", got)
	}

	empty := &Entity{Properties: map[string]PropertyValue{
		"Name": {Type: KindTitle},
	}}
	if got := empty.Title(); got != "" {
		t.Errorf("expected empty title, got %q", got)
	}
}
