package control

import (
	"context"
	"time"

	"telebio/internal/transport"
	"telebio/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

// Command is one control-bot command ("/status", "/set_mode <key>", ...).
type Command struct {
	Name        string
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

// Request carries one inbound command through the middleware chain.
type Request struct {
	Msg     transport.Message
	Chat    transport.ChatTarget
	FromID  int64
	Command string
	Args    []string
	ReqID   string

	Adapter transport.Adapter
	Log     logx.Logger
}

// Reply sends a response to the requesting chat, HTML-formatted.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &transport.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	return err
}

type HandlerFunc func(ctx context.Context, req *Request) error
