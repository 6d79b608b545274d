package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Registry errors.
var (
	// ErrRuleNotFound is returned for an unknown rule id.
	ErrRuleNotFound = errors.New("watch rule not found")
	// ErrBuiltinRule is returned when a mutation targets the implicit
	// default rule, which is managed in config, not in the registry.
	ErrBuiltinRule = errors.New("builtin rule cannot be modified")
)

// Registry holds the implicit default rule plus the persisted,
// user-defined rule list. Every mutation persists the full user rule
// list synchronously before returning: when persistence fails the
// in-memory change is rolled back and the error surfaces to the
// caller, so memory and durable state never diverge.
//
// Two rules watching the same (property, value) pair are allowed; the
// poller's per-cycle entity dedup means the first-listed rule wins for
// any given entity in a cycle. That is deliberate.
type Registry struct {
	store       RuleStore
	defaultRule Rule
	hasDefault  bool
	logger      *slog.Logger

	mu    sync.Mutex
	rules []Rule
}

// NewRegistry creates a Registry and loads the persisted rules.
// defaultRule may be the zero Rule when no implicit rule is configured.
func NewRegistry(ctx context.Context, store RuleStore, defaultRule Rule, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		store:       store,
		defaultRule: defaultRule,
		hasDefault:  defaultRule.ID != "",
		logger:      logger,
	}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the in-memory rule list from durable storage. Used at
// startup and when the backing file changes on disk.
func (r *Registry) Reload(ctx context.Context) error {
	rules, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load watch rules: %w", err)
	}
	r.mu.Lock()
	r.rules = rules
	r.mu.Unlock()
	r.logger.Debug("watch rules loaded", "count", len(rules))
	return nil
}

// Add creates, persists, and returns a new enabled rule.
func (r *Registry) Add(ctx context.Context, name, property, value, target string) (Rule, error) {
	if name == "" || property == "" || value == "" || target == "" {
		return Rule{}, fmt.Errorf("name, property, value, and target are all required")
	}
	rule := NewRule(name, property, value, target)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule)
	if err := r.persistLocked(ctx); err != nil {
		r.rules = r.rules[:len(r.rules)-1]
		return Rule{}, err
	}

	r.logger.Info("watch rule added",
		"rule_id", rule.ID,
		"property", rule.Property,
		"value", rule.Value,
		"target", rule.NotifyTarget)
	return rule, nil
}

// Enable turns a rule on.
func (r *Registry) Enable(ctx context.Context, id string) error {
	return r.setEnabled(ctx, id, true)
}

// Disable turns a rule off without deleting it.
func (r *Registry) Disable(ctx context.Context, id string) error {
	return r.setEnabled(ctx, id, false)
}

func (r *Registry) setEnabled(ctx context.Context, id string, enabled bool) error {
	if r.hasDefault && id == r.defaultRule.ID {
		return ErrBuiltinRule
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.rules {
		if r.rules[i].ID != id {
			continue
		}
		previous := r.rules[i].Enabled
		r.rules[i].Enabled = enabled
		if err := r.persistLocked(ctx); err != nil {
			r.rules[i].Enabled = previous
			return err
		}
		r.logger.Info("watch rule toggled", "rule_id", id, "enabled", enabled)
		return nil
	}
	return ErrRuleNotFound
}

// Delete removes a rule permanently.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if r.hasDefault && id == r.defaultRule.ID {
		return ErrBuiltinRule
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.rules {
		if r.rules[i].ID != id {
			continue
		}
		removed := r.rules[i]
		r.rules = append(r.rules[:i], r.rules[i+1:]...)
		if err := r.persistLocked(ctx); err != nil {
			r.rules = append(r.rules[:i], append([]Rule{removed}, r.rules[i:]...)...)
			return err
		}
		r.logger.Info("watch rule deleted", "rule_id", id)
		return nil
	}
	return ErrRuleNotFound
}

// Rules returns all rules, the implicit default rule first.
func (r *Registry) Rules() []Rule {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Rule, 0, len(r.rules)+1)
	if r.hasDefault {
		out = append(out, r.defaultRule)
	}
	out = append(out, r.rules...)
	return out
}

// EnabledRules returns the rules the poller should evaluate, in
// evaluation order: the default rule first, then user rules.
func (r *Registry) EnabledRules() []Rule {
	all := r.Rules()
	out := all[:0:0]
	for _, rule := range all {
		if rule.Enabled {
			out = append(out, rule)
		}
	}
	return out
}

// persistLocked saves the user rule list. Callers hold r.mu.
func (r *Registry) persistLocked(ctx context.Context) error {
	rules := make([]Rule, len(r.rules))
	copy(rules, r.rules)
	if err := r.store.Save(ctx, rules); err != nil {
		return fmt.Errorf("persist watch rules: %w", err)
	}
	return nil
}
