package watch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaops/prodsync/board"
)

// pollBoard serves canned query results and counts queries per property.
type pollBoard struct {
	board.Client
	entities map[string][]board.Entity // keyed by property=value
	queries  map[string]int
	failOn   string
}

func newPollBoard() *pollBoard {
	return &pollBoard{
		entities: make(map[string][]board.Entity),
		queries:  make(map[string]int),
	}
}

func filterKey(property, value string) string {
	return property + "=" + value
}

func (b *pollBoard) addEntity(property, value string, e board.Entity) {
	key := filterKey(property, value)
	b.entities[key] = append(b.entities[key], e)
}

func (b *pollBoard) Query(_ context.Context, _ string, filter board.Filter, _ int) ([]board.Entity, error) {
	key := filterKey(filter.Property, filter.Value)
	b.queries[key]++
	if key == b.failOn {
		return nil, &board.TransientError{Err: errors.New("store unavailable")}
	}
	return b.entities[key], nil
}

// recordingSink captures every dispatched notification.
type recordingSink struct {
	sent    []string
	targets []string
	err     error
}

func (s *recordingSink) Send(_ context.Context, n Notification) error {
	if s.err != nil {
		return s.err
	}
	s.targets = append(s.targets, n.Target)
	s.sent = append(s.sent, n.Text)
	return nil
}

func captionEntity(id, title string, edited time.Time) board.Entity {
	return board.Entity{
		ID:           id,
		LastEditedAt: edited,
		Properties: map[string]board.PropertyValue{
			"Name": board.TitleValue(title),
		},
	}
}

func newTestPoller(t *testing.T, b *pollBoard, sink Sink, base time.Time, extra ...Rule) *Poller {
	t.Helper()
	store := &memStore{rules: extra}
	reg, err := NewRegistry(context.Background(), store, defaultTestRule(), nil)
	require.NoError(t, err)
	return NewPoller(b, "col-1", reg, sink, withClock(func() time.Time { return base }))
}

func TestPollerNotifiesOncePerEntity(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	b := newPollBoard()
	b.addEntity("Caption Status", "Ready For Captions",
		captionEntity("ent-1", "EP12 Season Finale", base.Add(30*time.Second)))

	sink := &recordingSink{}
	p := newTestPoller(t, b, sink, base)

	p.RunCycle(context.Background())
	require.Len(t, sink.sent, 1, "first cycle fires exactly one notification")
	assert.Contains(t, sink.sent[0], "EP12 Season Finale")
	assert.Contains(t, sink.sent[0], "Ready For Captions")
	assert.Equal(t, []string{"captions-team"}, sink.targets)

	p.RunCycle(context.Background())
	assert.Len(t, sink.sent, 1, "second cycle fires nothing new")
}

func TestPollerWatermarkSuppressesHistory(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	b := newPollBoard()
	// Edited exactly at and before the watermark: both suppressed.
	b.addEntity("Caption Status", "Ready For Captions",
		captionEntity("ent-old", "Old Short", base.Add(-time.Hour)))
	b.addEntity("Caption Status", "Ready For Captions",
		captionEntity("ent-at", "At Watermark", base))

	sink := &recordingSink{}
	p := newTestPoller(t, b, sink, base)

	for i := 0; i < 3; i++ {
		p.RunCycle(context.Background())
	}
	assert.Empty(t, sink.sent, "pre-existing state never notifies")
	assert.Equal(t, 2, p.dedupSize(), "suppressed entities are marked processed")
}

func TestPollerCrossRuleDedupWithinCycle(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	entity := captionEntity("ent-1", "EP12", base.Add(time.Minute))

	b := newPollBoard()
	b.addEntity("Caption Status", "Ready For Captions", entity)
	b.addEntity("Status", "Done", entity)

	userRule := NewRule("all-done", "Status", "Done", "general")
	sink := &recordingSink{}
	p := newTestPoller(t, b, sink, base, userRule)

	p.RunCycle(context.Background())
	require.Len(t, sink.sent, 1, "one notification per entity per cycle")
	assert.Equal(t, "captions-team", sink.targets[0], "first-evaluated rule wins")

	// Both pairs are processed: later cycles stay quiet too.
	p.RunCycle(context.Background())
	assert.Len(t, sink.sent, 1)
}

func TestPollerRuleFailureIsolated(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	b := newPollBoard()
	b.failOn = filterKey("Caption Status", "Ready For Captions")
	b.addEntity("Status", "Done", captionEntity("ent-2", "SH-104", base.Add(time.Minute)))

	userRule := NewRule("all-done", "Status", "Done", "general")
	sink := &recordingSink{}
	p := newTestPoller(t, b, sink, base, userRule)

	p.RunCycle(context.Background())
	require.Len(t, sink.sent, 1, "a failing rule must not block the others")
	assert.Equal(t, "general", sink.targets[0])
}

func TestPollerDisabledRuleNotQueried(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	b := newPollBoard()

	userRule := NewRule("all-done", "Status", "Done", "general")
	store := &memStore{rules: []Rule{userRule}}
	reg, err := NewRegistry(context.Background(), store, defaultTestRule(), nil)
	require.NoError(t, err)
	require.NoError(t, reg.Disable(context.Background(), userRule.ID))

	sink := &recordingSink{}
	p := NewPoller(b, "col-1", reg, sink, withClock(func() time.Time { return base }))

	p.RunCycle(context.Background())
	assert.Zero(t, b.queries[filterKey("Status", "Done")], "disabled rules issue no queries")
	assert.Equal(t, 1, b.queries[filterKey("Caption Status", "Ready For Captions")])
}

func TestPollerFailedDispatchRetriesNextCycle(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	b := newPollBoard()
	b.addEntity("Caption Status", "Ready For Captions",
		captionEntity("ent-1", "EP12", base.Add(time.Minute)))

	sink := &recordingSink{err: errors.New("chat relay down")}
	p := newTestPoller(t, b, sink, base)

	p.RunCycle(context.Background())
	assert.Empty(t, sink.sent)
	assert.Zero(t, p.dedupSize(), "failed dispatch must not mark the pair processed")

	sink.err = nil
	p.RunCycle(context.Background())
	assert.Len(t, sink.sent, 1, "next cycle retries the transient condition")
}

func TestPollerDedupTTLEviction(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	now := base
	b := newPollBoard()
	b.addEntity("Caption Status", "Ready For Captions",
		captionEntity("ent-1", "EP12", base.Add(time.Minute)))

	store := &memStore{}
	reg, err := NewRegistry(context.Background(), store, defaultTestRule(), nil)
	require.NoError(t, err)

	sink := &recordingSink{}
	p := NewPoller(b, "col-1", reg, sink, withClock(func() time.Time { return now }))

	p.RunCycle(context.Background())
	require.Len(t, sink.sent, 1)

	// Within the TTL the pair stays deduplicated.
	now = base.Add(time.Hour)
	p.RunCycle(context.Background())
	assert.Len(t, sink.sent, 1)

	// Past the TTL the entry is evicted; the still-matching entity may
	// notify again. Bounded memory over strict once-ever.
	now = base.Add(3 * time.Hour)
	p.RunCycle(context.Background())
	assert.Len(t, sink.sent, 2)
}

func TestPollerSkipsOverlappingTick(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	b := newPollBoard()
	sink := &recordingSink{}
	p := newTestPoller(t, b, sink, base)

	p.inFlight.Store(true)
	p.RunCycle(context.Background())
	assert.Empty(t, b.queries, "an in-flight cycle means the tick is skipped")

	p.inFlight.Store(false)
	p.RunCycle(context.Background())
	assert.NotEmpty(t, b.queries)
}

func TestPollerMissingConfigShortCircuits(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	b := newPollBoard()
	store := &memStore{}
	reg, err := NewRegistry(context.Background(), store, defaultTestRule(), nil)
	require.NoError(t, err)

	p := NewPoller(b, "", reg, &recordingSink{}, withClock(func() time.Time { return base }))
	p.RunCycle(context.Background())
	assert.Empty(t, b.queries, "no store configured means no work attempted")
}

func TestPollerMissingTokenShortCircuits(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	b := newPollBoard()
	store := &memStore{}
	reg, err := NewRegistry(context.Background(), store, defaultTestRule(), nil)
	require.NoError(t, err)

	p := NewPoller(b, "col-1", reg, &recordingSink{},
		withClock(func() time.Time { return base }), WithBoardToken(""))
	p.RunCycle(context.Background())
	assert.Empty(t, b.queries, "an unauthenticated client issues no per-rule queries")

	p = NewPoller(b, "col-1", reg, &recordingSink{},
		withClock(func() time.Time { return base }), WithBoardToken("secret"))
	p.RunCycle(context.Background())
	assert.NotEmpty(t, b.queries)
}

func TestPollerUntitledFallback(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	b := newPollBoard()
	b.addEntity("Caption Status", "Ready For Captions", board.Entity{
		ID:           "ent-1",
		LastEditedAt: base.Add(time.Minute),
		Properties:   map[string]board.PropertyValue{},
	})

	sink := &recordingSink{}
	p := newTestPoller(t, b, sink, base)
	p.RunCycle(context.Background())

	require.Len(t, sink.sent, 1)
	assert.Equal(t, fmt.Sprintf("%s is now %q (%s)", untitledLabel, "Ready For Captions", "Caption Status"), sink.sent[0])
}
