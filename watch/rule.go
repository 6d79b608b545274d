// Package watch holds the change-watcher: user-defined watch rules with
// durable persistence, and a poller that scans the board on a fixed
// cadence and notifies exactly once per (rule, entity) transition.
package watch

import (
	"time"

	"github.com/google/uuid"
)

// Rule watches one (property, value) pair and names the notification
// target for matches.
type Rule struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Property     string    `json:"property"`
	Value        string    `json:"value"`
	NotifyTarget string    `json:"notify_target"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`

	builtin bool
}

// NewRule creates an enabled rule with a generated id.
func NewRule(name, property, value, target string) Rule {
	return Rule{
		ID:           uuid.New().String(),
		Name:         name,
		Property:     property,
		Value:        value,
		NotifyTarget: target,
		Enabled:      true,
		CreatedAt:    time.Now(),
	}
}

// BuiltinRule creates the implicit always-on rule. It is never
// persisted and cannot be disabled or deleted through the registry.
func BuiltinRule(name, property, value, target string) Rule {
	return Rule{
		ID:           "builtin:" + name,
		Name:         name,
		Property:     property,
		Value:        value,
		NotifyTarget: target,
		Enabled:      true,
		builtin:      true,
	}
}

// Builtin reports whether this is the implicit default rule.
func (r Rule) Builtin() bool {
	return r.builtin
}
