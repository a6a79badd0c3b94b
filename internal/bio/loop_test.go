package bio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeProvider struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeProvider) Next(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeProvider) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakeSink struct {
	mu      sync.Mutex
	applied []string
	err     error
}

func (f *fakeSink) Apply(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, text)
	return nil
}

func (f *fakeSink) appliedTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...)
}

func mustSchedule(t *testing.T, spec string) Schedule {
	t.Helper()
	s, err := ParseSchedule(spec)
	if err != nil {
		t.Fatalf("ParseSchedule(%q): %v", spec, err)
	}
	return s
}

func TestLoopIterateAppliesAndRecords(t *testing.T) {
	provider := &fakeProvider{text: "hello"}
	sink := &fakeSink{}
	mode := NewMode(KindList)
	l := NewLoop(sink, provider, KindList, mustSchedule(t, "60"),
		WithMode(mode, func(Kind) (Provider, error) { return provider, nil }))

	l.iterate(context.Background())

	if got := sink.appliedTexts(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("expected one applied text, got %v", got)
	}
	st := mode.Snapshot()
	if st.LastText != "hello" || st.LastAt.IsZero() {
		t.Fatalf("expected update recorded, got %+v", st)
	}
	if h := mode.History(); len(h) != 1 || h[0].Kind != KindList {
		t.Fatalf("expected one history entry for %q, got %v", KindList, h)
	}
}

func TestLoopIteratePausedSkips(t *testing.T) {
	provider := &fakeProvider{text: "hello"}
	sink := &fakeSink{}
	mode := NewMode(KindList)
	mode.TogglePause()
	l := NewLoop(sink, provider, KindList, mustSchedule(t, "60"),
		WithMode(mode, func(Kind) (Provider, error) { return provider, nil }))

	l.iterate(context.Background())

	if provider.calls != 0 {
		t.Fatalf("paused loop must not call the provider")
	}
	if len(sink.appliedTexts()) != 0 {
		t.Fatalf("paused loop must not touch the sink")
	}
	if st := mode.Snapshot(); st.LastText != "" {
		t.Fatalf("paused loop must keep the last bio unchanged, got %+v", st)
	}
}

func TestLoopIterateProviderFailureSkipsCycle(t *testing.T) {
	provider := &fakeProvider{text: "recovered"}
	provider.setErr(errors.New("boom"))
	sink := &fakeSink{}
	mode := NewMode(KindList)
	l := NewLoop(sink, provider, KindList, mustSchedule(t, "60"),
		WithMode(mode, func(Kind) (Provider, error) { return provider, nil }))

	l.iterate(context.Background())
	if len(sink.appliedTexts()) != 0 {
		t.Fatalf("failed provider must not reach the sink")
	}
	if st := mode.Snapshot(); !st.LastAt.IsZero() {
		t.Fatalf("failed cycle must not be recorded")
	}

	// Next cycle succeeds once the provider recovers.
	provider.setErr(nil)
	l.iterate(context.Background())
	if got := sink.appliedTexts(); len(got) != 1 || got[0] != "recovered" {
		t.Fatalf("expected recovery on next cycle, got %v", got)
	}
}

func TestLoopIterateSinkFailureSkipsRecord(t *testing.T) {
	provider := &fakeProvider{text: "hello"}
	sink := &fakeSink{err: errors.New("flood")}
	mode := NewMode(KindList)
	l := NewLoop(sink, provider, KindList, mustSchedule(t, "60"),
		WithMode(mode, func(Kind) (Provider, error) { return provider, nil }))

	l.iterate(context.Background())

	if st := mode.Snapshot(); st.LastText != "" || !st.LastAt.IsZero() {
		t.Fatalf("sink failure must not record an update, got %+v", st)
	}
}

func TestLoopModeSwitchRebuildsAtBoundary(t *testing.T) {
	listP := &fakeProvider{text: "from list"}
	llmP := &fakeProvider{text: "from llm"}
	sink := &fakeSink{}
	mode := NewMode(KindList)

	factoryCalls := 0
	factory := func(k Kind) (Provider, error) {
		factoryCalls++
		switch k {
		case KindList:
			return listP, nil
		case KindLLM:
			return llmP, nil
		}
		return nil, fmt.Errorf("unknown kind %q", k)
	}

	l := NewLoop(sink, listP, KindList, mustSchedule(t, "60"), WithMode(mode, factory))

	l.iterate(context.Background())
	mode.SetKind(KindLLM)
	l.iterate(context.Background())
	l.iterate(context.Background())

	got := sink.appliedTexts()
	want := []string{"from list", "from llm", "from llm"}
	if len(got) != len(want) {
		t.Fatalf("expected %d applied texts, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("applied[%d]: expected %q, got %q", i, want[i], got[i])
		}
	}
	if factoryCalls != 1 {
		t.Fatalf("expected one provider rebuild, got %d", factoryCalls)
	}
	if h := mode.History(); h[0].Kind != KindLLM {
		t.Fatalf("expected newest history entry from %q, got %q", KindLLM, h[0].Kind)
	}
}

func TestLoopFactoryFailureKeepsOldProvider(t *testing.T) {
	provider := &fakeProvider{text: "old"}
	sink := &fakeSink{}
	mode := NewMode(KindList)
	factory := func(k Kind) (Provider, error) {
		if k == KindLLM {
			return nil, errors.New("no credentials")
		}
		return provider, nil
	}
	l := NewLoop(sink, provider, KindList, mustSchedule(t, "60"), WithMode(mode, factory))

	mode.SetKind(KindLLM)
	l.iterate(context.Background())

	if len(sink.appliedTexts()) != 0 {
		t.Fatalf("failed rebuild must skip the cycle")
	}
	// The requested kind stays; the rebuild is retried next cycle.
	if mode.Kind() != KindLLM {
		t.Fatalf("requested kind must stay %q, got %q", KindLLM, mode.Kind())
	}
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	provider := &fakeProvider{text: "hello"}
	sink := &fakeSink{}
	l := NewLoop(sink, provider, KindList, mustSchedule(t, "60"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// Let the first immediate iteration happen, then cancel.
	deadline := time.After(2 * time.Second)
	for len(sink.appliedTexts()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("first iteration did not run")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}
