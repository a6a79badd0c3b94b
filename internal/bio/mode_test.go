package bio

import (
	"fmt"
	"testing"
	"time"
)

func TestModeHistoryBounds(t *testing.T) {
	m := NewMode(KindList)
	now := time.Now()
	for i := 0; i < historyCap+5; i++ {
		m.Record(fmt.Sprintf("bio %d", i), KindList, now.Add(time.Duration(i)*time.Minute))
	}

	h := m.History()
	if len(h) != historyCap {
		t.Fatalf("expected %d entries, got %d", historyCap, len(h))
	}
	// Newest first.
	if h[0].Text != fmt.Sprintf("bio %d", historyCap+4) {
		t.Fatalf("expected newest entry first, got %q", h[0].Text)
	}
	if h[len(h)-1].Text != "bio 5" {
		t.Fatalf("expected oldest surviving entry %q, got %q", "bio 5", h[len(h)-1].Text)
	}
	for i := 1; i < len(h); i++ {
		if h[i].At.After(h[i-1].At) {
			t.Fatalf("history not ordered newest-first at index %d", i)
		}
	}
}

func TestModeSetKind(t *testing.T) {
	m := NewMode(KindList)

	old, changed := m.SetKind(KindList)
	if changed {
		t.Fatalf("setting the current kind must be a no-op")
	}
	if old != KindList {
		t.Fatalf("expected old kind %q, got %q", KindList, old)
	}

	old, changed = m.SetKind(KindLLM)
	if !changed || old != KindList {
		t.Fatalf("expected switch from %q, got old=%q changed=%v", KindList, old, changed)
	}
	if m.Kind() != KindLLM {
		t.Fatalf("expected kind %q after switch, got %q", KindLLM, m.Kind())
	}
}

func TestModeTogglePause(t *testing.T) {
	m := NewMode(KindList)
	if m.Paused() {
		t.Fatalf("new mode must start unpaused")
	}
	if !m.TogglePause() {
		t.Fatalf("first toggle should pause")
	}
	if m.TogglePause() {
		t.Fatalf("second toggle should resume")
	}
	if m.Paused() {
		t.Fatalf("expected unpaused after two toggles")
	}
}

func TestModeSnapshot(t *testing.T) {
	m := NewMode(KindLLM)

	st := m.Snapshot()
	if st.LastText != "" || !st.LastAt.IsZero() {
		t.Fatalf("fresh mode must have no last update, got %+v", st)
	}

	at := time.Now()
	m.Record("космос в кармане", KindLLM, at)

	st = m.Snapshot()
	if st.Kind != KindLLM || st.Paused {
		t.Fatalf("unexpected snapshot: %+v", st)
	}
	if st.LastText != "космос в кармане" || !st.LastAt.Equal(at) {
		t.Fatalf("last update not recorded: %+v", st)
	}
}
