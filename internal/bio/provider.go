package bio

import (
	"context"
	"fmt"
)

// MaxLen is the Telegram bio length limit in characters. Providers must
// truncate, not fail, when a generated text runs past it.
const MaxLen = 70

// Kind identifies a bio text source. The set is closed: anything else is a
// configuration or command error, never a runtime state.
type Kind string

const (
	KindList Kind = "list"
	KindLLM  Kind = "llm"
)

// Kinds returns all known provider kinds, in display order.
func Kinds() []Kind { return []Kind{KindList, KindLLM} }

// ParseKind validates a user- or config-supplied provider key.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindList:
		return KindList, nil
	case KindLLM:
		return KindLLM, nil
	}
	return "", fmt.Errorf("unknown provider %q (use %q or %q)", s, KindList, KindLLM)
}

// Provider yields the next bio text. Implementations may be stateful (the
// list provider keeps a cursor) or stateless; callers must not assume either.
type Provider interface {
	Next(ctx context.Context) (string, error)
}

// Factory builds a fresh provider for a kind. The update loop uses it when
// the active kind changes; force-update builds its own short-lived instance
// so a manual trigger never shares cursor state with the loop.
type Factory func(Kind) (Provider, error)

// ProviderError marks a failed or empty content fetch. The loop demotes it
// to a skipped cycle; the force-update command reports it to the caller.
type ProviderError struct {
	Kind Kind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Truncate enforces MaxLen in runes. It reports whether truncation happened
// so callers can log it.
func Truncate(s string) (string, bool) {
	rs := []rune(s)
	if len(rs) <= MaxLen {
		return s, false
	}
	return string(rs[:MaxLen]), true
}
