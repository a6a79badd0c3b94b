package control

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"telebio/internal/bio"
	"telebio/internal/store"
	"telebio/internal/transport"
	"telebio/pkg/logx"
)

type stubProvider struct {
	text string
	err  error
}

func (s *stubProvider) Next(ctx context.Context) (string, error) { return s.text, s.err }

type stubSink struct {
	mu      sync.Mutex
	applied []string
	err     error
}

func (s *stubSink) Apply(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.applied = append(s.applied, text)
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []store.Entry
}

func (m *memAudit) AppendAudit(ctx context.Context, e store.Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *memAudit) RecentAudit(ctx context.Context, n int) ([]store.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Entry(nil), m.entries...), nil
}

func (m *memAudit) Close() error { return nil }

type handlerFixture struct {
	h       *Handlers
	mode    *bio.Mode
	sink    *stubSink
	adapter *fakeAdapter
	audit   *memAudit
}

func newFixture(provider bio.Provider) *handlerFixture {
	f := &handlerFixture{
		mode:    bio.NewMode(bio.KindList),
		sink:    &stubSink{},
		adapter: &fakeAdapter{},
		audit:   &memAudit{},
	}
	f.h = &Handlers{
		Mode: f.mode,
		Sink: f.sink,
		Factory: func(k bio.Kind) (bio.Provider, error) {
			if provider == nil {
				return nil, errors.New("no provider configured")
			}
			return provider, nil
		},
		Audit: f.audit,
		Log:   logx.Nop(),
	}
	return f
}

func (f *handlerFixture) run(t *testing.T, name string, args ...string) error {
	t.Helper()
	for _, c := range f.h.Commands() {
		if c.Name == name {
			req := &Request{
				Msg:     transport.Message{ID: 1, ChatID: 100, FromID: 42, FromUsername: "owner"},
				Chat:    transport.ChatTarget{ChatID: 100},
				FromID:  42,
				Command: name,
				Args:    args,
				ReqID:   "test",
				Adapter: f.adapter,
				Log:     logx.Nop(),
			}
			return c.Handle(context.Background(), req)
		}
	}
	t.Fatalf("command %q not registered", name)
	return nil
}

func (f *handlerFixture) lastReply(t *testing.T) string {
	t.Helper()
	sent := f.adapter.sentTexts()
	if len(sent) == 0 {
		t.Fatalf("expected a reply, got none")
	}
	return sent[len(sent)-1]
}

func TestStatusCommand(t *testing.T) {
	f := newFixture(&stubProvider{text: "bio"})
	f.mode.Record("текущее био", bio.KindList, time.Now())

	if err := f.run(t, "status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	reply := f.lastReply(t)
	for _, want := range []string{"<code>list</code>", "active", "текущее био", "Last update"} {
		if !strings.Contains(reply, want) {
			t.Fatalf("status reply missing %q: %q", want, reply)
		}
	}

	f.mode.TogglePause()
	if err := f.run(t, "status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(f.lastReply(t), "paused") {
		t.Fatalf("paused state not shown: %q", f.lastReply(t))
	}
}

func TestHistoryCommand(t *testing.T) {
	f := newFixture(nil)

	if err := f.run(t, "history"); err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(f.lastReply(t), "No history") {
		t.Fatalf("expected empty-history reply, got %q", f.lastReply(t))
	}

	now := time.Now()
	f.mode.Record("first", bio.KindList, now.Add(-time.Minute))
	f.mode.Record("second", bio.KindLLM, now)

	if err := f.run(t, "history"); err != nil {
		t.Fatalf("history: %v", err)
	}
	reply := f.lastReply(t)
	// Newest first.
	if !strings.Contains(reply, "1. ") || strings.Index(reply, "second") > strings.Index(reply, "first") {
		t.Fatalf("expected newest entry first, got %q", reply)
	}
	if !strings.Contains(reply, "<code>llm</code>") {
		t.Fatalf("expected provider kind shown, got %q", reply)
	}
}

func TestSetModeCommand(t *testing.T) {
	f := newFixture(nil)

	if err := f.run(t, "set_mode"); err != nil {
		t.Fatalf("usage reply must not be an error: %v", err)
	}
	if !strings.Contains(f.lastReply(t), "usage") {
		t.Fatalf("expected usage reply, got %q", f.lastReply(t))
	}

	if err := f.run(t, "set_mode", "banana"); err == nil {
		t.Fatalf("expected error for invalid mode key")
	}
	if !strings.Contains(f.lastReply(t), "Invalid mode") {
		t.Fatalf("expected invalid-mode reply, got %q", f.lastReply(t))
	}
	if f.mode.Kind() != bio.KindList {
		t.Fatalf("invalid key must not change the mode")
	}

	if err := f.run(t, "set_mode", "list"); err != nil {
		t.Fatalf("set_mode list: %v", err)
	}
	if !strings.Contains(f.lastReply(t), "Already in") {
		t.Fatalf("expected no-op reply, got %q", f.lastReply(t))
	}

	if err := f.run(t, "set_mode", "LLM"); err != nil {
		t.Fatalf("set_mode llm: %v", err)
	}
	if f.mode.Kind() != bio.KindLLM {
		t.Fatalf("expected mode switched to llm, got %q", f.mode.Kind())
	}
	if !strings.Contains(f.lastReply(t), "Mode switched") {
		t.Fatalf("expected switch confirmation, got %q", f.lastReply(t))
	}
}

func TestNewCommand(t *testing.T) {
	f := newFixture(&stubProvider{text: "fresh <bio>"})

	if err := f.run(t, "new"); err != nil {
		t.Fatalf("new: %v", err)
	}
	f.sink.mu.Lock()
	applied := append([]string(nil), f.sink.applied...)
	f.sink.mu.Unlock()
	if len(applied) != 1 || applied[0] != "fresh <bio>" {
		t.Fatalf("expected raw text applied to sink, got %v", applied)
	}
	// HTML special characters must be escaped in the reply, not the sink.
	if !strings.Contains(f.lastReply(t), "fresh &lt;bio&gt;") {
		t.Fatalf("expected escaped reply, got %q", f.lastReply(t))
	}
	if st := f.mode.Snapshot(); st.LastText != "fresh <bio>" {
		t.Fatalf("expected update recorded, got %+v", st)
	}
}

func TestNewCommandWorksWhilePaused(t *testing.T) {
	f := newFixture(&stubProvider{text: "manual"})
	f.mode.TogglePause()

	if err := f.run(t, "new"); err != nil {
		t.Fatalf("new while paused: %v", err)
	}
	if !f.mode.Paused() {
		t.Fatalf("force update must not resume auto-updates")
	}
	if st := f.mode.Snapshot(); st.LastText != "manual" {
		t.Fatalf("expected manual update recorded, got %+v", st)
	}
}

func TestNewCommandProviderFailure(t *testing.T) {
	f := newFixture(&stubProvider{err: errors.New("llm is down")})

	if err := f.run(t, "new"); err == nil {
		t.Fatalf("expected provider error surfaced")
	}
	if !strings.Contains(f.lastReply(t), "Failed to update bio") {
		t.Fatalf("expected failure reply, got %q", f.lastReply(t))
	}
	if st := f.mode.Snapshot(); !st.LastAt.IsZero() {
		t.Fatalf("failed update must not be recorded")
	}
}

func TestPauseCommand(t *testing.T) {
	f := newFixture(nil)

	if err := f.run(t, "pause"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !f.mode.Paused() || !strings.Contains(f.lastReply(t), "paused") {
		t.Fatalf("expected paused, reply %q", f.lastReply(t))
	}

	if err := f.run(t, "pause"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if f.mode.Paused() || !strings.Contains(f.lastReply(t), "resumed") {
		t.Fatalf("expected resumed, reply %q", f.lastReply(t))
	}
}

func TestAuditTrail(t *testing.T) {
	f := newFixture(&stubProvider{err: errors.New("boom")})

	_ = f.run(t, "pause")
	_ = f.run(t, "new")

	f.audit.mu.Lock()
	entries := append([]store.Entry(nil), f.audit.entries...)
	f.audit.mu.Unlock()

	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].Command != "pause" || !entries[0].OK {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Command != "new" || entries[1].OK || entries[1].Error == "" {
		t.Fatalf("expected failed entry with error, got %+v", entries[1])
	}
	if entries[0].ActorID != 42 || entries[0].ActorUsername != "owner" {
		t.Fatalf("actor not recorded: %+v", entries[0])
	}
}
