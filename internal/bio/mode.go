package bio

import (
	"sync"
	"time"
)

// historyCap bounds the in-memory update history. Older entries are evicted;
// nothing is persisted (a restart starts with an empty history).
const historyCap = 10

// Entry is one successfully applied bio update.
type Entry struct {
	Text string
	Kind Kind
	At   time.Time
}

// Status is a point-in-time snapshot of the runtime mode.
type Status struct {
	Kind     Kind
	Paused   bool
	LastText string
	LastAt   time.Time // zero until the first successful update
}

// Mode is the shared runtime state between the update loop and the control
// surface. The loop writes LastText/LastAt/history via Record; the control
// surface writes the active kind and the paused flag. Every mutation happens
// under one mutex so readers never observe a half-written record.
type Mode struct {
	mu       sync.Mutex
	kind     Kind
	paused   bool
	lastText string
	lastAt   time.Time
	history  []Entry
}

// NewMode creates runtime state with the given initial provider kind and
// auto-updates enabled.
func NewMode(initial Kind) *Mode {
	return &Mode{kind: initial}
}

func (m *Mode) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Kind:     m.kind,
		Paused:   m.paused,
		LastText: m.lastText,
		LastAt:   m.lastAt,
	}
}

func (m *Mode) Kind() Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind
}

func (m *Mode) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// SetKind switches the active provider kind. It returns the previous kind
// and whether anything changed; setting the current kind is a no-op so a
// repeated command never forces a needless provider rebuild.
func (m *Mode) SetKind(k Kind) (old Kind, changed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old = m.kind
	if k == old {
		return old, false
	}
	m.kind = k
	return old, true
}

// TogglePause flips the paused flag and returns the new value.
func (m *Mode) TogglePause() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = !m.paused
	return m.paused
}

// Record stores a successful update: last text/time plus a history entry,
// evicting the oldest entry once the buffer is full.
func (m *Mode) Record(text string, k Kind, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastText = text
	m.lastAt = at
	m.history = append(m.history, Entry{Text: text, Kind: k, At: at})
	if len(m.history) > historyCap {
		m.history = m.history[len(m.history)-historyCap:]
	}
}

// History returns recorded updates newest-first.
func (m *Mode) History() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.history))
	for i, e := range m.history {
		out[len(m.history)-1-i] = e
	}
	return out
}
