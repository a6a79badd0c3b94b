package transport

import "context"

// Message is a single inbound text message from the messaging platform.
type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

// ChatTarget addresses an outbound message.
type ChatTarget struct {
	ChatID int64
}

// MessageRef identifies a message we sent (for logging/audit).
type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter is the platform boundary for the control bot.
//
// Start begins delivering inbound messages on out until the context is
// canceled or Stop is called. Implementations must never block on a full
// out channel; dropping is preferred over stalling the poll loop.
type Adapter interface {
	Start(ctx context.Context, out chan<- Message) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// BotCommand is one entry in the platform's command menu.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is optionally implemented by adapters that can publish
// a command menu (Telegram setMyCommands).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
