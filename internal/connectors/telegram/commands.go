package telegram

import (
	"context"
	"fmt"
	"strings"
)

// CommandHandler handles a bot command. args is the text after the command.
type CommandHandler func(ctx context.Context, userID, chatID, args string) (string, error)

// CommandRegistry manages bot command handlers
type CommandRegistry struct {
	handlers map[string]CommandHandler
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[string]CommandHandler),
	}
}

// Register adds a command handler to the registry
func (r *CommandRegistry) Register(command string, handler CommandHandler) {
	r.handlers[command] = handler
}

// Handle dispatches text to its command handler
func (r *CommandRegistry) Handle(ctx context.Context, userID, chatID, text string) (string, error) {
	if !r.IsCommand(text) {
		return "", nil
	}

	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	// group chats address commands as /new@botname
	command, _, _ := strings.Cut(parts[0], "@")
	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	handler, exists := r.handlers[command]
	if !exists {
		return "Unknown command: " + command, nil
	}

	return handler(ctx, userID, chatID, args)
}

// IsCommand checks if a message is a command
func (r *CommandRegistry) IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

const helpText = `I can help you find conference sessions.

Just describe what you're interested in, for example "talks about Kubernetes security".

Commands:
/new - start a new conversation
/sessions <query> - search the session catalog
/help - show this message`

func (c *Connector) setupCommands() {
	c.commands = NewCommandRegistry()
	c.commands.Register("/new", c.handleNewCommand)
	c.commands.Register("/sessions", c.handleSessionsCommand)
	c.commands.Register("/help", c.handleHelpCommand)
	c.commands.Register("/start", c.handleHelpCommand)
}

// handleNewCommand rotates the chat onto a fresh thread.
func (c *Connector) handleNewCommand(ctx context.Context, userID, chatID, _ string) (string, error) {
	threadID, err := c.threads.Rotate(ctx, ConnectorName, userID, chatID)
	if err != nil {
		return "", fmt.Errorf("failed to create new thread: %w", err)
	}
	if err := c.executor.StartThread(ctx, userID, threadID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Started new conversation! (Thread: %s)", threadID), nil
}

func (c *Connector) handleSessionsCommand(ctx context.Context, userID, chatID, args string) (string, error) {
	if args == "" {
		return "Usage: /sessions <what you're looking for>", nil
	}
	return c.answer(ctx, userID, chatID, args), nil
}

func (c *Connector) handleHelpCommand(context.Context, string, string, string) (string, error) {
	return helpText, nil
}
