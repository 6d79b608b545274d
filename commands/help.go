package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/semstreams/agentic"
	agenticdispatch "github.com/c360studio/semstreams/processor/agentic-dispatch"
)

// HelpCommand implements the /help command for listing available commands.
type HelpCommand struct{}

// Config returns the command configuration.
func (c *HelpCommand) Config() agenticdispatch.CommandConfig {
	return agenticdispatch.CommandConfig{
		Pattern:     `^/help(?:\s+(.*))?$`,
		Permission:  "view",
		RequireLoop: false,
		Help:        "/help [command] - Show available commands or command details",
	}
}

// Execute runs the help command.
func (c *HelpCommand) Execute(
	ctx context.Context,
	cmdCtx *agenticdispatch.CommandContext,
	msg agentic.UserMessage,
	args []string,
	loopID string,
) (agentic.UserResponse, error) {
	specificCmd := ""
	if len(args) > 0 {
		specificCmd = strings.TrimSpace(args[0])
		specificCmd = strings.TrimPrefix(specificCmd, "/")
	}

	executors := agenticdispatch.ListRegisteredCommands()
	commands := make(map[string]agenticdispatch.CommandConfig, len(executors))
	for name, executor := range executors {
		commands[name] = executor.Config()
	}

	if specificCmd != "" {
		cfg, exists := commands[specificCmd]
		if !exists {
			return errorResponse(msg, fmt.Sprintf("Unknown command: /%s\n\nRun `/help` to see available commands.", specificCmd)), nil
		}
		return resultResponse(msg, fmt.Sprintf("## /%s\n\n%s\n", specificCmd, cfg.Help)), nil
	}

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("## Commands\n\n")
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("- %s\n", commands[name].Help))
	}
	sb.WriteString("\nRun `/help <command>` for details.")

	return resultResponse(msg, sb.String()), nil
}
