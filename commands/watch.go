package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360studio/semstreams/agentic"
	agenticdispatch "github.com/c360studio/semstreams/processor/agentic-dispatch"

	"github.com/mediaops/prodsync/watch"
)

// WatchCommand implements the /watch command for managing watch rules.
type WatchCommand struct{}

// Config returns the command configuration.
func (c *WatchCommand) Config() agenticdispatch.CommandConfig {
	return agenticdispatch.CommandConfig{
		Pattern:     `^/watch(?:\s+(.*))?$`,
		Permission:  "write",
		RequireLoop: false,
		Help:        "/watch [list|add <name> <property>=<value> <target>|enable <rule>|disable <rule>|delete <rule>] - Manage watch rules",
	}
}

// Execute runs the watch command.
func (c *WatchCommand) Execute(
	ctx context.Context,
	cmdCtx *agenticdispatch.CommandContext,
	msg agentic.UserMessage,
	args []string,
	loopID string,
) (agentic.UserResponse, error) {
	svc, ok := getServices()
	if !ok || svc.Rules == nil {
		return errorResponse(msg, "Watch rules are not available: service not configured."), nil
	}

	rest := ""
	if len(args) > 0 {
		rest = strings.TrimSpace(args[0])
	}

	sub := "list"
	if rest != "" {
		fields := strings.Fields(rest)
		sub = fields[0]
		rest = strings.TrimSpace(strings.TrimPrefix(rest, fields[0]))
	}

	switch sub {
	case "list":
		return c.list(svc.Rules, msg), nil
	case "add":
		return c.add(ctx, svc.Rules, rest, msg), nil
	case "enable":
		return c.setEnabled(ctx, svc.Rules, rest, true, msg), nil
	case "disable":
		return c.setEnabled(ctx, svc.Rules, rest, false, msg), nil
	case "delete":
		return c.delete(ctx, svc.Rules, rest, msg), nil
	default:
		return errorResponse(msg, fmt.Sprintf("Unknown subcommand: %s\n\n%s", sub, c.Config().Help)), nil
	}
}

// list renders all rules, the built-in default first.
func (c *WatchCommand) list(reg *watch.Registry, msg agentic.UserMessage) agentic.UserResponse {
	rules := reg.Rules()
	if len(rules) == 0 {
		return resultResponse(msg, "No watch rules configured.\n\nRun `/watch add <name> <property>=<value> <target>` to create one.")
	}

	var sb strings.Builder
	sb.WriteString("## Watch Rules\n\n")
	sb.WriteString("| Rule | Condition | Notifies | State |\n")
	sb.WriteString("|------|-----------|----------|-------|\n")
	for _, r := range rules {
		name := r.Name
		if r.Builtin() {
			name += " (built-in)"
		}
		state := "enabled"
		if !r.Enabled {
			state = "disabled"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s = %q | %s | %s |\n",
			name, r.Property, r.Value, r.NotifyTarget, state))
	}
	sb.WriteString(fmt.Sprintf("\n*%d rule(s)*\n", len(rules)))

	return resultResponse(msg, sb.String())
}

// add creates a rule from "<name> <property>=<value> <target>".
func (c *WatchCommand) add(ctx context.Context, reg *watch.Registry, rest string, msg agentic.UserMessage) agentic.UserResponse {
	name, property, value, target, err := parseAddRule(rest)
	if err != nil {
		return errorResponse(msg, fmt.Sprintf("%v\n\nUsage: `/watch add <name> <property>=<value> <target>`\nExample: `/watch add thumbs-done Thumbnail Status=Complete design-team`", err))
	}

	rule, err := reg.Add(ctx, name, property, value, target)
	if err != nil {
		return errorResponse(msg, fmt.Sprintf("Failed to add watch rule: %v", err))
	}

	return resultResponse(msg, fmt.Sprintf(
		"Watching for %s = %q. I'll notify **%s** when a project gets there.\n\nRule: `%s`",
		rule.Property, rule.Value, rule.NotifyTarget, rule.Name))
}

// parseAddRule splits "<name> <property>=<value> <target>". The property
// and value may contain spaces; the target is always the last token.
func parseAddRule(rest string) (name, property, value, target string, err error) {
	fields := strings.Fields(rest)
	if len(fields) < 3 {
		return "", "", "", "", fmt.Errorf("expected a rule name, a condition, and a target")
	}

	name = fields[0]
	target = fields[len(fields)-1]
	condition := strings.Join(fields[1:len(fields)-1], " ")

	property, value, found := strings.Cut(condition, "=")
	if !found {
		return "", "", "", "", fmt.Errorf("condition must be <property>=<value>, e.g. Status=Done")
	}
	property = strings.TrimSpace(property)
	value = strings.TrimSpace(value)
	if property == "" || value == "" {
		return "", "", "", "", fmt.Errorf("condition must name both a property and a value")
	}
	return name, property, value, target, nil
}

// setEnabled flips a rule on or off.
func (c *WatchCommand) setEnabled(ctx context.Context, reg *watch.Registry, token string, enabled bool, msg agentic.UserMessage) agentic.UserResponse {
	rule, ok := findRule(reg, token)
	if !ok {
		return errorResponse(msg, fmt.Sprintf("No watch rule named %q. Run `/watch list` to see them.", token))
	}

	var err error
	if enabled {
		err = reg.Enable(ctx, rule.ID)
	} else {
		err = reg.Disable(ctx, rule.ID)
	}
	if err != nil {
		return errorResponse(msg, fmt.Sprintf("Failed to update rule %q: %v", rule.Name, err))
	}

	verb := "enabled"
	if !enabled {
		verb = "disabled"
	}
	return resultResponse(msg, fmt.Sprintf("Rule `%s` %s.", rule.Name, verb))
}

// delete removes a rule.
func (c *WatchCommand) delete(ctx context.Context, reg *watch.Registry, token string, msg agentic.UserMessage) agentic.UserResponse {
	rule, ok := findRule(reg, token)
	if !ok {
		return errorResponse(msg, fmt.Sprintf("No watch rule named %q. Run `/watch list` to see them.", token))
	}

	if err := reg.Delete(ctx, rule.ID); err != nil {
		return errorResponse(msg, fmt.Sprintf("Failed to delete rule %q: %v", rule.Name, err))
	}
	return resultResponse(msg, fmt.Sprintf("Rule `%s` deleted.", rule.Name))
}

// findRule resolves a rule by name or ID.
func findRule(reg *watch.Registry, token string) (watch.Rule, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return watch.Rule{}, false
	}
	for _, r := range reg.Rules() {
		if r.Name == token || r.ID == token {
			return r, true
		}
	}
	return watch.Rule{}, false
}
