package bio

import (
	"context"
	"sync"
	"time"

	"telebio/pkg/logx"
)

// Sink applies a bio text to the remote account profile. Implementations own
// their rate-limit policy; by the time Apply returns an error the loop treats
// it as a failed cycle, nothing more.
type Sink interface {
	Apply(ctx context.Context, text string) error
}

// Loop drives periodic bio updates until its context is canceled.
//
// Failure policy: a bad cycle (provider, sink, or factory failure) is logged
// and skipped; the loop never dies from a single failed iteration. Only
// cancellation ends Run.
type Loop struct {
	sink     Sink
	provider Provider
	kind     Kind // kind the current provider was built for
	log      logx.Logger

	mode    *Mode
	factory Factory

	schedMu  sync.Mutex
	schedule Schedule
}

type LoopOption func(*Loop)

// WithMode attaches shared runtime state and a provider factory, enabling
// pause and runtime mode switching. Without it the loop runs standalone
// against its fixed initial provider.
func WithMode(m *Mode, f Factory) LoopOption {
	return func(l *Loop) {
		l.mode = m
		l.factory = f
	}
}

func WithLoopLogger(log logx.Logger) LoopOption {
	return func(l *Loop) { l.log = log }
}

func NewLoop(sink Sink, provider Provider, kind Kind, schedule Schedule, opts ...LoopOption) *Loop {
	l := &Loop{
		sink:     sink,
		provider: provider,
		kind:     kind,
		schedule: schedule,
		log:      logx.Nop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// SetSchedule swaps the schedule; it takes effect from the next sleep.
func (l *Loop) SetSchedule(s Schedule) {
	l.schedMu.Lock()
	l.schedule = s
	l.schedMu.Unlock()
}

func (l *Loop) currentSchedule() Schedule {
	l.schedMu.Lock()
	defer l.schedMu.Unlock()
	return l.schedule
}

// Run executes iterations until ctx is canceled. The first iteration starts
// immediately, without an initial delay.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("update loop started", logx.String("schedule", l.currentSchedule().String()))
	for {
		l.iterate(ctx)
		if err := l.sleepUntilNext(ctx); err != nil {
			l.log.Info("update loop stopped")
			return err
		}
	}
}

func (l *Loop) iterate(ctx context.Context) {
	if l.mode != nil && l.mode.Paused() {
		l.log.Debug("updates paused, skipping cycle")
		return
	}

	// Mode switches take effect here, at the iteration boundary, never
	// mid-flight. Rebuilding discards provider-internal state (the list
	// cursor restarts from the beginning).
	if l.mode != nil && l.factory != nil {
		if k := l.mode.Kind(); k != l.kind {
			p, err := l.factory(k)
			if err != nil {
				l.log.Error("provider rebuild failed, skipping cycle",
					logx.String("kind", string(k)), logx.Err(err))
				return
			}
			l.provider = p
			l.kind = k
			l.log.Info("provider switched", logx.String("kind", string(k)))
		}
	}

	text, err := l.provider.Next(ctx)
	if err != nil {
		l.log.Warn("provider failed, will retry next cycle", logx.Err(err))
		return
	}
	if err := l.sink.Apply(ctx, text); err != nil {
		l.log.Warn("bio apply failed, will retry next cycle", logx.Err(err))
		return
	}
	if l.mode != nil {
		l.mode.Record(text, l.kind, time.Now())
	}
	l.log.Info("bio updated", logx.String("text", text))
}

func (l *Loop) sleepUntilNext(ctx context.Context) error {
	next := l.currentSchedule().Next(time.Now())
	d := time.Until(next)
	if d <= 0 {
		// Zero-interval schedule: no delay, but cancellation still wins.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
