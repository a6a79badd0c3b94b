package control

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"telebio/internal/bio"
	"telebio/internal/store"
	"telebio/pkg/logx"
)

const timeStamp = "2006-01-02 15:04:05"

// Handlers implements the control surface over the shared runtime mode.
// All commands are owner-only; the force-update command is the only one
// that talks to the sink directly, and it always builds its own provider
// instance so it can never race the loop's provider cursor.
type Handlers struct {
	Mode    *bio.Mode
	Sink    bio.Sink
	Factory bio.Factory
	Audit   store.Store // may be nil when storage is disabled
	Log     logx.Logger
}

func (h *Handlers) Commands() []Command {
	return []Command{
		{
			Name:        "status",
			Description: "current mode, pause state and last update",
			Usage:       "/status",
			Access:      AccessOwnerOnly,
			Handle:      h.audited(h.handleStatus),
		},
		{
			Name:        "history",
			Description: "recent bio updates, newest first",
			Usage:       "/history",
			Access:      AccessOwnerOnly,
			Handle:      h.audited(h.handleHistory),
		},
		{
			Name:        "set_mode",
			Description: "switch the bio provider (list / llm)",
			Usage:       "/set_mode <mode>",
			Access:      AccessOwnerOnly,
			Handle:      h.audited(h.handleSetMode),
		},
		{
			Name:        "new",
			Description: "generate and apply a new bio right now",
			Usage:       "/new",
			Access:      AccessOwnerOnly,
			Timeout:     90 * time.Second,
			Handle:      h.audited(h.handleNew),
		},
		{
			Name:        "pause",
			Description: "pause or resume automatic updates",
			Usage:       "/pause",
			Access:      AccessOwnerOnly,
			Handle:      h.audited(h.handlePause),
		},
	}
}

// audited appends every command to the audit log (when enabled) with its
// outcome and duration.
func (h *Handlers) audited(fn HandlerFunc) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		start := time.Now()
		err := fn(ctx, req)
		if h.Audit != nil {
			e := store.Entry{
				At:            start,
				ActorID:       req.FromID,
				ActorUsername: req.Msg.FromUsername,
				ChatID:        req.Chat.ChatID,
				Command:       req.Command,
				Args:          strings.Join(req.Args, " "),
				OK:            err == nil,
				TookMS:        time.Since(start).Milliseconds(),
			}
			if err != nil {
				e.Error = err.Error()
			}
			if aerr := h.Audit.AppendAudit(ctx, e); aerr != nil {
				h.Log.Warn("audit append failed", logx.Err(aerr))
			}
		}
		return err
	}
}

func (h *Handlers) handleStatus(ctx context.Context, req *Request) error {
	st := h.Mode.Snapshot()

	state := "▶️ active"
	if st.Paused {
		state = "⏸ paused"
	}
	current := "(none)"
	if st.LastText != "" {
		current = html.EscapeString(st.LastText)
	}

	lines := []string{
		"🤖 <b>TeleBio Status</b>",
		"",
		fmt.Sprintf("📊 <b>Mode:</b> <code>%s</code>", st.Kind),
		fmt.Sprintf("⏯ <b>State:</b> %s", state),
		fmt.Sprintf("📝 <b>Current bio:</b> %s", current),
	}
	if !st.LastAt.IsZero() {
		lines = append(lines, fmt.Sprintf("🕐 <b>Last update:</b> %s", st.LastAt.Format(timeStamp)))
	}
	return req.Reply(ctx, strings.Join(lines, "\n"))
}

func (h *Handlers) handleHistory(ctx context.Context, req *Request) error {
	entries := h.Mode.History()
	if len(entries) == 0 {
		return req.Reply(ctx, "📜 No history available yet.")
	}

	parts := []string{"📜 <b>Recent bio updates:</b>"}
	for i, e := range entries {
		parts = append(parts, fmt.Sprintf("%d. [%s] <code>%s</code>\n   %s",
			i+1, e.At.Format(timeStamp), e.Kind, html.EscapeString(e.Text)))
	}
	return req.Reply(ctx, strings.Join(parts, "\n\n"))
}

func (h *Handlers) handleSetMode(ctx context.Context, req *Request) error {
	if len(req.Args) != 1 {
		return req.Reply(ctx, "usage: /set_mode &lt;mode&gt; — one of <code>list</code>, <code>llm</code>")
	}

	kind, err := bio.ParseKind(strings.ToLower(req.Args[0]))
	if err != nil {
		// Unknown keys never touch state.
		_ = req.Reply(ctx, "❌ Invalid mode. Use <code>list</code> or <code>llm</code>.")
		return err
	}

	old, changed := h.Mode.SetKind(kind)
	if !changed {
		return req.Reply(ctx, fmt.Sprintf("ℹ️ Already in <code>%s</code> mode.", kind))
	}
	req.Log.Info("mode switched", logx.String("old", string(old)), logx.String("new", string(kind)))
	return req.Reply(ctx, fmt.Sprintf(
		"✅ Mode switched: <code>%s</code> → <code>%s</code>\nNext bio update will use the new provider.",
		old, kind))
}

func (h *Handlers) handleNew(ctx context.Context, req *Request) error {
	kind := h.Mode.Kind()

	provider, err := h.Factory(kind)
	if err != nil {
		_ = req.Reply(ctx, "❌ Failed to update bio: "+html.EscapeString(err.Error()))
		return err
	}
	text, err := provider.Next(ctx)
	if err != nil {
		_ = req.Reply(ctx, "❌ Failed to update bio: "+html.EscapeString(err.Error()))
		return err
	}
	if err := h.Sink.Apply(ctx, text); err != nil {
		_ = req.Reply(ctx, "❌ Failed to update bio: "+html.EscapeString(err.Error()))
		return err
	}

	h.Mode.Record(text, kind, time.Now())
	req.Log.Info("bio updated via command", logx.String("text", text))
	return req.Reply(ctx, fmt.Sprintf("✅ Bio updated:\n<code>%s</code>", html.EscapeString(text)))
}

func (h *Handlers) handlePause(ctx context.Context, req *Request) error {
	if h.Mode.TogglePause() {
		req.Log.Info("auto-update paused")
		return req.Reply(ctx, "⏸ Auto-update paused.\nThe current bio stays as-is. Send /pause again to resume.")
	}
	req.Log.Info("auto-update resumed")
	return req.Reply(ctx, "▶️ Auto-update resumed.")
}
