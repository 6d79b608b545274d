package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/semstreams/agentic"
	agenticdispatch "github.com/c360studio/semstreams/processor/agentic-dispatch"
)

// UpdateCommand implements the /update command: free-text project
// updates reconciled against the board and applied as one upsert.
type UpdateCommand struct{}

// Config returns the command configuration.
func (c *UpdateCommand) Config() agenticdispatch.CommandConfig {
	return agenticdispatch.CommandConfig{
		Pattern:     `^/update\s+(\S+)\s+(.+)$`,
		Permission:  "write",
		RequireLoop: false,
		Help:        "/update <code> <text> - Apply a project update, e.g. /update EP12 moved to VA Render, Ray editing",
	}
}

// Execute runs the update command.
func (c *UpdateCommand) Execute(
	ctx context.Context,
	cmdCtx *agenticdispatch.CommandContext,
	msg agentic.UserMessage,
	args []string,
	loopID string,
) (agentic.UserResponse, error) {
	svc, ok := getServices()
	if !ok || svc.Extractor == nil || svc.Mapper == nil || svc.Mutator == nil {
		return errorResponse(msg, "Project updates are not available: service not configured."), nil
	}
	if len(args) < 2 {
		return errorResponse(msg, "Usage: `/update <code> <text>`"), nil
	}

	key := strings.TrimSpace(args[0])
	text := strings.TrimSpace(args[1])

	patch, hasChange, err := svc.Extractor.Extract(ctx, text, time.Now())
	if err != nil {
		return errorResponse(msg, fmt.Sprintf("Could not read that update: %v", err)), nil
	}
	if !hasChange {
		return resultResponse(msg, fmt.Sprintf("No project changes detected for **%s**. Nothing applied.", key)), nil
	}

	props, fieldErrs := svc.Mapper.Map(ctx, svc.CollectionID, patch)

	title := key
	if fv, ok := patch.Get("title"); ok && fv.Text != "" {
		title = fv.Text
	}

	entityID, err := svc.Mutator.Upsert(ctx, key, title, props, "")
	if err != nil {
		return errorResponse(msg, fmt.Sprintf("Failed to apply update for **%s**: %v", key, err)), nil
	}

	noteWarning := ""
	if note, ok := patch.Note(); ok {
		if err := svc.Mutator.AppendNote(ctx, entityID, note); err != nil {
			noteWarning = fmt.Sprintf("\n\nNote could not be appended: %v", err)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Updated **%s**", key))
	if len(props) > 0 {
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString(": " + strings.Join(names, ", "))
	}
	sb.WriteString(".")

	if len(fieldErrs) > 0 {
		sb.WriteString("\n\nSome fields could not be applied:\n")
		for _, fe := range fieldErrs {
			sb.WriteString(fmt.Sprintf("- `%s`: %v\n", fe.Field, fe.Err))
		}
	}
	sb.WriteString(noteWarning)

	return resultResponse(msg, sb.String()), nil
}
