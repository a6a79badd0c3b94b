package control

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"telebio/internal/transport"
	"telebio/pkg/logx"
)

// Manager routes inbound messages to registered commands through a bounded
// worker pool. Commands are flat ("/status", "/set_mode"), owner checks run
// before a job is enqueued.
type Manager struct {
	mu     sync.RWMutex
	cmds   map[string]Command
	order  []string
	owners []int64

	log     logx.Logger
	adapter transport.Adapter
	jobs    chan func()
}

func NewManager(log logx.Logger, adapter transport.Adapter, owners []int64) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		cmds:    map[string]Command{},
		owners:  append([]int64(nil), owners...),
		log:     log,
		adapter: adapter,
		jobs:    make(chan func(), 64),
	}
}

// SetOwners updates the owner list used for AccessOwnerOnly checks.
// Safe to call during config hot-reload.
func (m *Manager) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

// Register installs commands; a /help command is always injected.
func (m *Manager) Register(cmds ...Command) {
	all := append([]Command(nil), cmds...)
	all = append(all, Command{
		Name:        "help",
		Description: "show available commands",
		Usage:       "/help",
		Access:      AccessEveryone,
		Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, m.helpText())
		},
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cmds = map[string]Command{}
	m.order = m.order[:0]
	for _, c := range all {
		name := strings.TrimSpace(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		if _, dup := m.cmds[name]; !dup {
			m.order = append(m.order, name)
		}
		m.cmds[name] = c
	}
}

// MenuCommands returns the registered commands for the platform menu.
func (m *Manager) MenuCommands() []transport.BotCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]transport.BotCommand, 0, len(m.order))
	for _, name := range m.order {
		c := m.cmds[name]
		out = append(out, transport.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

func (m *Manager) helpText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var b strings.Builder
	b.WriteString("🤖 <b>TeleBio commands</b>\n")
	for _, name := range m.order {
		c := m.cmds[name]
		b.WriteString("\n")
		b.WriteString(c.Usage)
		b.WriteString(" — ")
		b.WriteString(c.Description)
	}
	return b.String()
}

// DispatchLoop consumes updates until ctx is canceled.
func (m *Manager) DispatchLoop(ctx context.Context, updates <-chan transport.Message) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	m.log.Info("command dispatcher started", logx.Int("workers", workers))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-m.jobs:
					if !ok {
						return
					}
					job()
				}
			}
		}()
	}
	defer func() {
		wg.Wait()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			m.route(ctx, msg)
		}
	}
}

func (m *Manager) route(ctx context.Context, msg transport.Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	parts := strings.Fields(text)
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	args := parts[1:]

	m.mu.RLock()
	cmd, ok := m.cmds[word]
	owners := append([]int64(nil), m.owners...)
	m.mu.RUnlock()

	chat := transport.ChatTarget{ChatID: msg.ChatID}
	if !ok {
		_, _ = m.adapter.SendText(ctx, chat, "unknown command. try /help", nil)
		return
	}
	if cmd.Access == AccessOwnerOnly && !isOwner(msg.FromID, owners) {
		m.log.Warn("unauthorized command ignored",
			logx.Int64("from_id", msg.FromID), logx.String("cmd", word))
		_, _ = m.adapter.SendText(ctx, chat, "unauthorized", nil)
		return
	}

	rid := newReqID()
	req := &Request{
		Msg:     msg,
		Chat:    chat,
		FromID:  msg.FromID,
		Command: word,
		Args:    args,
		ReqID:   rid,
		Adapter: m.adapter,
		Log: m.log.With(
			logx.String("rid", rid),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", word)),
	}

	final := Chain(
		cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(cmd.Timeout),
	)

	select {
	case m.jobs <- func() { _ = final(ctx, req) }:
	default:
		_, _ = m.adapter.SendText(ctx, chat, "busy, try again", nil)
	}
}

func isOwner(id int64, owners []int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}

var ridSeq uint64

func newReqID() string {
	n := atomic.AddUint64(&ridSeq, 1)
	return base36(time.Now().UnixNano()) + "-" + base36(int64(n))
}

func base36(v int64) string {
	const chars = "0123456789abcdefghijklmnopqrstuvwxyz"
	if v < 0 {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var out [16]byte
	i := len(out)
	for v > 0 {
		i--
		out[i] = chars[v%36]
		v /= 36
	}
	return string(out[i:])
}
