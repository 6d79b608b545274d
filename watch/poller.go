package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mediaops/prodsync/board"
)

// Poller defaults.
const (
	DefaultInterval = time.Minute
	DefaultPageSize = 20
	DefaultDedupTTL = 2 * time.Hour

	// untitledLabel is used when an entity has no populated title.
	untitledLabel = "Untitled project"
)

// dedupKey identifies one notified (rule, entity) pair.
type dedupKey struct {
	ruleID   string
	entityID string
}

// Poller evaluates every enabled watch rule against the board on a
// fixed cadence and dispatches at most one notification per
// (rule, entity) pair while the pair stays in the dedup set.
//
// Dedup entries carry their own timestamp and expire after a fixed TTL,
// evicted at the start of each cycle. This bounds memory without the
// synchronized wholesale wipe that would open a replay window.
//
// Entities last edited at or before the watermark (captured at
// construction) are marked processed without dispatch: the watcher
// never replays history from before it started.
type Poller struct {
	client       board.Client
	collectionID string
	registry     *Registry
	sink         Sink
	logger       *slog.Logger
	metrics      *Metrics

	interval     time.Duration
	pageSize     int
	dedupTTL     time.Duration
	missingToken bool
	now          func() time.Time

	watermark time.Time
	inFlight  atomic.Bool

	mu        sync.Mutex
	processed map[dedupKey]time.Time
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the poll cadence.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

// WithPageSize bounds entities fetched per rule per cycle.
func WithPageSize(n int) PollerOption {
	return func(p *Poller) { p.pageSize = n }
}

// WithDedupTTL sets how long notified pairs are remembered.
func WithDedupTTL(d time.Duration) PollerOption {
	return func(p *Poller) { p.dedupTTL = d }
}

// WithPollerLogger sets the logger.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) { p.logger = logger }
}

// WithBoardToken records the credential the board client was built
// with. An empty token idles the poller the same way a missing
// collection id does: every per-rule query could only fail.
func WithBoardToken(token string) PollerOption {
	return func(p *Poller) { p.missingToken = token == "" }
}

// WithMetrics wires poller counters.
func WithMetrics(m *Metrics) PollerOption {
	return func(p *Poller) { p.metrics = m }
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) PollerOption {
	return func(p *Poller) { p.now = now }
}

// NewPoller creates a Poller. The watermark is captured here: anything
// already on the board counts as pre-existing state.
func NewPoller(client board.Client, collectionID string, registry *Registry, sink Sink, opts ...PollerOption) *Poller {
	p := &Poller{
		client:       client,
		collectionID: collectionID,
		registry:     registry,
		sink:         sink,
		logger:       slog.Default(),
		interval:     DefaultInterval,
		pageSize:     DefaultPageSize,
		dedupTTL:     DefaultDedupTTL,
		now:          time.Now,
		processed:    make(map[dedupKey]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.watermark = p.now()
	return p
}

// Run polls at the configured interval until ctx is done. The first
// cycle runs immediately. Ticks are never reentrant: if a cycle is
// still in flight when the next tick fires, that tick is skipped with
// a log line rather than overlapping.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("change watcher started",
		"collection_id", p.collectionID,
		"interval", p.interval,
		"watermark", p.watermark)

	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("change watcher stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick runs one cycle unless one is already in flight.
func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Warn("poll cycle still in flight, skipping tick")
		p.metrics.tickSkipped()
		return
	}
	defer p.inFlight.Store(false)
	p.runCycle(ctx)
}

// RunCycle evaluates all enabled rules once. Exported for callers that
// drive cycles themselves; reentrant calls are skipped like ticks.
func (p *Poller) RunCycle(ctx context.Context) {
	p.tick(ctx)
}

func (p *Poller) runCycle(ctx context.Context) {
	if p.collectionID == "" || p.missingToken {
		p.logger.Warn("board credentials not configured, skipping poll cycle")
		return
	}

	now := p.now()
	p.evictExpired(now)

	// Only one notification per entity per cycle, even when several
	// rules match it: the first-evaluated rule wins.
	notifiedThisCycle := make(map[string]struct{})
	notifications := 0

	for _, rule := range p.registry.EnabledRules() {
		entities, err := p.client.Query(ctx, p.collectionID, board.Filter{
			Property: rule.Property,
			Value:    rule.Value,
		}, p.pageSize)
		if err != nil {
			// One failing rule never blocks the rest of the cycle.
			p.logger.Error("watch rule query failed",
				"rule_id", rule.ID,
				"property", rule.Property,
				"value", rule.Value,
				"error", err)
			p.metrics.ruleError(rule.ID)
			continue
		}

		for _, entity := range entities {
			if p.processEntity(ctx, rule, entity, now, notifiedThisCycle) {
				notifications++
			}
		}
	}

	p.metrics.cycleCompleted()
	p.logger.Debug("poll cycle complete",
		"notifications", notifications,
		"dedup_entries", p.dedupSize())
}

// processEntity applies the per-entity decision ladder and reports
// whether a notification was dispatched.
func (p *Poller) processEntity(ctx context.Context, rule Rule, entity board.Entity, now time.Time, notifiedThisCycle map[string]struct{}) bool {
	key := dedupKey{ruleID: rule.ID, entityID: entity.ID}

	p.mu.Lock()
	_, seen := p.processed[key]
	p.mu.Unlock()
	if seen {
		p.metrics.dedupSkipped()
		return false
	}

	if !entity.LastEditedAt.After(p.watermark) {
		// Pre-existing state: remember it, never announce it.
		p.markProcessed(key, now)
		return false
	}

	if _, already := notifiedThisCycle[entity.ID]; already {
		p.markProcessed(key, now)
		return false
	}

	title := entity.Title()
	if title == "" {
		title = untitledLabel
	}
	n := Notification{
		RuleID:   rule.ID,
		EntityID: entity.ID,
		Title:    title,
		Property: rule.Property,
		Value:    rule.Value,
		Target:   rule.NotifyTarget,
		Text:     fmt.Sprintf("%s is now %q (%s)", title, rule.Value, rule.Property),
	}

	if err := p.sink.Send(ctx, n); err != nil {
		// Leave the pair unprocessed so the next cycle retries.
		p.logger.Error("notification dispatch failed",
			"rule_id", rule.ID,
			"entity_id", entity.ID,
			"target", rule.NotifyTarget,
			"error", err)
		return false
	}

	p.markProcessed(key, now)
	notifiedThisCycle[entity.ID] = struct{}{}
	p.metrics.notified()
	p.logger.Info("notification dispatched",
		"rule_id", rule.ID,
		"entity_id", entity.ID,
		"title", title,
		"target", rule.NotifyTarget)
	return true
}

func (p *Poller) markProcessed(key dedupKey, now time.Time) {
	p.mu.Lock()
	p.processed[key] = now
	p.mu.Unlock()
}

// evictExpired drops dedup entries older than the TTL.
func (p *Poller) evictExpired(now time.Time) {
	cutoff := now.Add(-p.dedupTTL)
	p.mu.Lock()
	for key, at := range p.processed {
		if at.Before(cutoff) {
			delete(p.processed, key)
		}
	}
	p.mu.Unlock()
}

func (p *Poller) dedupSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}
