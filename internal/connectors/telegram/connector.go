// Package telegram answers session questions sent to a Telegram bot by long
// polling for updates.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/lewisedginton/session_concierge/internal/connectors/executor"
	"github.com/lewisedginton/session_concierge/internal/thread_manager"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// ConnectorName identifies Telegram threads in the thread manager.
const ConnectorName = "telegram"

const errorReply = "Sorry, I encountered an error processing your message."

// Connector represents the Telegram connector
type Connector struct {
	bot      *bot.Bot
	executor *executor.Executor
	threads  thread_manager.Manager
	commands *CommandRegistry
	logger   logger.Logger
	polling  atomic.Bool
}

// Config holds configuration for the Telegram connector
type Config struct {
	BotToken string // Bot token from @BotFather
	Debug    bool
	Logger   logger.Logger
}

// NewConnector creates a new Telegram connector with in-process executor
func NewConnector(config Config, exec *executor.Executor, threads thread_manager.Manager) (*Connector, error) {
	if config.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	c, err := newConnector(config.Logger, exec, threads)
	if err != nil {
		return nil, err
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(c.handleUpdate),
	}
	if config.Debug {
		opts = append(opts, bot.WithDebug())
	}

	b, err := bot.New(config.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	c.bot = b
	c.logger.Info("Telegram bot initialized successfully")

	return c, nil
}

func newConnector(log logger.Logger, exec *executor.Executor, threads thread_manager.Manager) (*Connector, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if threads == nil {
		return nil, fmt.Errorf("thread manager is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	c := &Connector{
		executor: exec,
		threads:  threads,
		logger:   log.WithFields(logger.StringField("connector", ConnectorName)),
	}
	c.setupCommands()
	return c, nil
}

// Start begins polling for updates. It blocks until ctx is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	c.logger.Info("Starting Telegram bot polling")
	c.polling.Store(true)
	defer c.polling.Store(false)
	c.bot.Start(ctx)
	return nil
}

// Ready reports whether the connector is polling for updates.
func (c *Connector) Ready() error {
	if !c.polling.Load() {
		return errors.New("telegram connector is not polling")
	}
	return nil
}

// handleUpdate processes all incoming Telegram updates
func (c *Connector) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	reply := c.reply(ctx, update)
	if reply == "" {
		return
	}

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   reply,
	})
	if err != nil {
		c.logger.Error("Error sending message to Telegram", logger.ErrorField(err))
	}
}

// reply computes the text to send back for an update, or "" for none.
func (c *Connector) reply(ctx context.Context, update *models.Update) string {
	// Only text messages are answered
	if update == nil || update.Message == nil || strings.TrimSpace(update.Message.Text) == "" {
		return ""
	}
	msg := update.Message
	if msg.From == nil || msg.From.IsBot {
		return ""
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	if c.commands.IsCommand(msg.Text) {
		c.logger.Info("Processing command",
			logger.StringField("user_id", userID),
			logger.StringField("command", msg.Text))
		response, err := c.commands.Handle(ctx, userID, chatID, msg.Text)
		if err != nil {
			c.logger.Error("Error handling command", logger.StringField("command", msg.Text), logger.ErrorField(err))
			return "An error occurred while processing your command."
		}
		return response
	}

	return c.answer(ctx, userID, chatID, msg.Text)
}

func (c *Connector) answer(ctx context.Context, userID, chatID, text string) string {
	threadID, err := c.threads.Current(ctx, ConnectorName, userID, chatID)
	if err != nil {
		c.logger.Error("Failed to resolve thread", logger.ErrorField(err))
		return errorReply
	}

	log := c.logger.WithFields(logger.ThreadIDField(threadID), logger.StringField("user_id", userID))
	log.Info("Processing message", logger.QueryField(text))

	response, err := c.executor.Execute(ctx, executor.MessageRequest{
		UserID:   userID,
		ThreadID: threadID,
		Message:  text,
	}, executor.PlainFormatter{})
	if err != nil {
		log.Error("Error from executor", logger.ErrorField(err))
		return errorReply
	}

	if err := c.threads.Touch(ctx, threadID); err != nil {
		log.Warn("Failed to update thread activity", logger.ErrorField(err))
	}
	return response.Text
}

// Stop gracefully stops the connector
func (c *Connector) Stop() error {
	c.logger.Info("Stopping Telegram connector")
	// stopping is handled by context cancellation in Start
	return nil
}

// GetBotInfo returns information about the bot
func (c *Connector) GetBotInfo(ctx context.Context) (*models.User, error) {
	return c.bot.GetMe(ctx)
}
