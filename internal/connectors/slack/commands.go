package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/lewisedginton/session_concierge/pkg/logger"
)

const helpText = `*Available Commands:*

• */sessions <question>* - Find sessions, e.g. ` + "`/sessions talks about Go with a sea view`" + `
• */new* - Start a new conversation
• */help* - Show this help message

You can also DM me or mention me with a question.`

// CommandHandler handles a specific slash command
type CommandHandler func(ctx context.Context, cmd slack.SlashCommand) (interface{}, error)

// CommandRegistry manages slash command handlers
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

// Handle processes a slash command event
func (r *CommandRegistry) Handle(ctx context.Context, cmd slack.SlashCommand) (interface{}, error) {
	handler, exists := r.handlers[cmd.Command]
	if !exists {
		return textResponse(fmt.Sprintf("Unknown command: %s", cmd.Command)), nil
	}

	return handler(ctx, cmd)
}

func textResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"text": text,
	}
}

// handleNewCommand handles the /new command
func (c *Connector) handleNewCommand(ctx context.Context, cmd slack.SlashCommand) (interface{}, error) {
	threadID, err := c.threads.Rotate(ctx, ConnectorName, cmd.UserID, cmd.ChannelID)
	if err != nil {
		return textResponse("Failed to start a new conversation."), err
	}
	if err := c.executor.StartThread(ctx, cmd.UserID, threadID); err != nil {
		return textResponse("Failed to start a new conversation."), err
	}
	return textResponse(fmt.Sprintf("Started new conversation! (Thread: %s)", threadID)), nil
}

// handleSessionsCommand answers /sessions <question>
func (c *Connector) handleSessionsCommand(ctx context.Context, cmd slack.SlashCommand) (interface{}, error) {
	if cmd.Text == "" {
		return textResponse("Usage: /sessions <question>"), nil
	}
	return textResponse(c.answer(ctx, cmd.UserID, cmd.ChannelID, cmd.Text)), nil
}

// handleHelpCommand handles the /help command
func (c *Connector) handleHelpCommand(_ context.Context, _ slack.SlashCommand) (interface{}, error) {
	return textResponse(helpText), nil
}

// setupCommands initialises the command registry with all available commands
func (c *Connector) setupCommands() {
	c.commands = NewCommandRegistry()
	c.commands.Register("/new", c.handleNewCommand)
	c.commands.Register("/sessions", c.handleSessionsCommand)
	c.commands.Register("/help", c.handleHelpCommand)
}

// handleSlashCommand processes incoming slash command events
func (c *Connector) handleSlashCommand(ctx context.Context, envelope socketmode.Event) {
	cmd, ok := envelope.Data.(slack.SlashCommand)
	if !ok {
		c.logger.Warn("Failed to parse slash command data", logger.StringField("data", fmt.Sprintf("%+v", envelope.Data)))
		c.socketMode.Ack(*envelope.Request)
		return
	}

	c.logger.Info("Received slash command",
		logger.StringField("command", cmd.Command),
		logger.StringField("user_id", cmd.UserID),
		logger.StringField("channel_id", cmd.ChannelID))

	response, err := c.commands.Handle(ctx, cmd)
	if err != nil {
		c.logger.Error("Error handling command",
			logger.StringField("command", cmd.Command),
			logger.ErrorField(err))
		response = textResponse("An error occurred while processing your command.")
	}

	c.socketMode.Ack(*envelope.Request, response)
}
