// Package slack answers session questions asked in Slack DMs and mentions
// over Socket Mode.
package slack

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/lewisedginton/session_concierge/internal/connectors/executor"
	"github.com/lewisedginton/session_concierge/internal/thread_manager"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// ConnectorName identifies Slack threads in the thread manager.
const ConnectorName = "slack"

const errorReply = "Sorry, I couldn't search the sessions right now. Please try again."

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+>`)

// Connector represents the Slack Socket Mode connector
type Connector struct {
	client     *slack.Client
	socketMode *socketmode.Client
	executor   *executor.Executor
	threads    thread_manager.Manager
	commands   *CommandRegistry
	logger     logger.Logger
	connected  atomic.Bool
}

// Config holds configuration for the Slack connector
type Config struct {
	BotToken string // xoxb-*
	AppToken string // xapp-*
	Debug    bool
	Logger   logger.Logger
}

// NewConnector creates a new Slack connector with in-process executor
func NewConnector(config Config, exec *executor.Executor, threads thread_manager.Manager) (*Connector, error) {
	if !strings.HasPrefix(config.BotToken, "xoxb-") {
		return nil, fmt.Errorf("invalid bot token format, expected xoxb-*")
	}
	if !strings.HasPrefix(config.AppToken, "xapp-") {
		return nil, fmt.Errorf("invalid app token format, expected xapp-*")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if threads == nil {
		return nil, fmt.Errorf("thread manager is required")
	}
	if config.Logger == nil {
		config.Logger = logger.NewNop()
	}

	client := slack.New(
		config.BotToken,
		slack.OptionAppLevelToken(config.AppToken),
		slack.OptionDebug(config.Debug),
	)
	socketMode := socketmode.New(client, socketmode.OptionDebug(config.Debug))

	c := &Connector{
		client:     client,
		socketMode: socketMode,
		executor:   exec,
		threads:    threads,
		logger:     config.Logger.WithFields(logger.StringField("connector", ConnectorName)),
	}
	c.setupCommands()
	return c, nil
}

// Start begins the Socket Mode connection and event handling. It blocks
// until ctx is cancelled or the connection fails.
func (c *Connector) Start(ctx context.Context) error {
	c.logger.Info("Starting Slack Socket Mode connector")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case envelope, ok := <-c.socketMode.Events:
				if !ok {
					return
				}
				c.dispatch(ctx, envelope)
			}
		}
	}()

	return c.socketMode.RunContext(ctx)
}

func (c *Connector) dispatch(ctx context.Context, envelope socketmode.Event) {
	switch envelope.Type {
	case socketmode.EventTypeConnecting:
		c.logger.Info("Connecting to Slack with Socket Mode")

	case socketmode.EventTypeConnectionError:
		c.connected.Store(false)
		c.logger.Warn("Slack connection failed", logger.StringField("data", fmt.Sprintf("%v", envelope.Data)))

	case socketmode.EventTypeConnected:
		c.connected.Store(true)
		c.logger.Info("Connected to Slack with Socket Mode")

	case socketmode.EventTypeHello:

	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := envelope.Data.(slackevents.EventsAPIEvent)
		if !ok {
			c.logger.Debug("Ignored event", logger.StringField("type", string(envelope.Type)))
			return
		}
		c.socketMode.Ack(*envelope.Request)

		if err := c.handleEvent(ctx, eventsAPIEvent); err != nil {
			c.logger.Error("Failed to handle event", logger.ErrorField(err))
		}

	case socketmode.EventTypeSlashCommand:
		c.handleSlashCommand(ctx, envelope)

	case socketmode.EventTypeInteractive:
		c.socketMode.Ack(*envelope.Request)

	default:
		c.logger.Debug("Unsupported event type received", logger.StringField("type", string(envelope.Type)))
	}
}

// handleEvent routes Events API callbacks
func (c *Connector) handleEvent(ctx context.Context, event slackevents.EventsAPIEvent) error {
	if event.Type != slackevents.CallbackEvent {
		return nil
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		return c.handleMessageEvent(ctx, ev)
	case *slackevents.AppMentionEvent:
		if ev.BotID != "" {
			return nil
		}
		return c.respond(ctx, ev.User, ev.Channel, removeBotMention(ev.Text))
	}
	return nil
}

// handleMessageEvent processes direct messages to the bot
func (c *Connector) handleMessageEvent(ctx context.Context, event *slackevents.MessageEvent) error {
	// Skip messages from bots to avoid loops
	if event.BotID != "" || event.SubType == "bot_message" {
		return nil
	}

	// Only process direct messages; channel traffic arrives as app mentions
	if event.ChannelType != "im" && !strings.HasPrefix(event.Channel, "D") {
		return nil
	}

	text := event.Text
	if event.Message != nil {
		text = extractMessageText(*event.Message)
	}
	return c.respond(ctx, event.User, event.Channel, text)
}

func (c *Connector) respond(ctx context.Context, userID, channelID, text string) error {
	reply := c.answer(ctx, userID, channelID, text)
	if reply == "" {
		return nil
	}
	if _, _, err := c.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(reply, false)); err != nil {
		return fmt.Errorf("failed to post message to Slack: %w", err)
	}
	return nil
}

// answer returns the reply to post for a user message, or "" for none.
func (c *Connector) answer(ctx context.Context, userID, channelID, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	threadID, err := c.threads.Current(ctx, ConnectorName, userID, channelID)
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
	}, Formatter{})
	if err != nil {
		log.Error("Error from executor", logger.ErrorField(err))
		return errorReply
	}

	if err := c.threads.Touch(ctx, threadID); err != nil {
		log.Warn("Failed to update thread activity", logger.ErrorField(err))
	}
	return response.Text
}

// removeBotMention strips <@U123> mentions from message text
func removeBotMention(text string) string {
	return strings.Join(strings.Fields(mentionPattern.ReplaceAllString(text, "")), " ")
}

// Ready reports whether the Socket Mode connection is up.
func (c *Connector) Ready() error {
	if !c.connected.Load() {
		return errors.New("slack socket mode is not connected")
	}
	return nil
}

// Stop gracefully stops the connector
func (c *Connector) Stop() error {
	c.logger.Info("Stopping Slack connector")
	// stopping is handled by context cancellation in RunContext
	return nil
}

// GetBotInfo returns information about the bot
func (c *Connector) GetBotInfo(ctx context.Context) (*slack.Bot, error) {
	auth, err := c.client.AuthTestContext(ctx)
	if err != nil {
		return nil, err
	}

	return c.client.GetBotInfoContext(ctx, slack.GetBotInfoParameters{Bot: auth.BotID})
}
