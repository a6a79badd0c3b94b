package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"telebio/internal/bio"
	"telebio/internal/control"
	"telebio/internal/profile"
	"telebio/internal/runtime/lifecycle"
	"telebio/internal/store"
	kit "telebio/internal/transport"
	telegram "telebio/internal/transport/telegram"
	logx "telebio/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *ConfigManager
	sup  *Supervisor

	log   logx.Logger
	logs  *logx.Service
	store store.Store

	adapter kit.Adapter

	mode *bio.Mode
	loop *bio.Loop
	sink *profile.Telegram

	cmdm   *control.Manager
	notify *lifecycle.Notifier

	updates chan kit.Message
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(context.Background(), cfg); err != nil {
		return nil, err
	}

	// Adapter config mapping
	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))

	pollTimeout, err := parseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// Logging service mapping
	// Important: logx.New() calls Apply() immediately. If Telegram logging is enabled but the target
	// chat isn't configured yet, Apply() will emit a warning. To avoid a false-positive warning,
	// we bootstrap with Telegram logging disabled, set the target, then Apply() the final config.
	baseLogCfg := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    false, // set target first, then enable via Apply()
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	if cfg.Telegram.LogChatID != 0 {
		logSvc.SetTelegramTarget(cfg.Telegram.LogChatID)
	}

	// Apply final logging config (including Telegram enable flag).
	finalLogCfg := baseLogCfg
	finalLogCfg.Telegram.Enabled = cfg.Logging.Telegram.Enabled
	logSvc.Apply(finalLogCfg)

	// Storage (optional)
	var st store.Store
	if cfg.Storage != nil {
		busy, err := parseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		st, err = store.Open(store.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		if st != nil {
			log.Info("storage enabled", logx.String("driver", cfg.Storage.Driver))
		}
	}

	// Bio pipeline mapping
	kind, err := bio.ParseKind(strings.TrimSpace(cfg.Updater.Provider))
	if err != nil {
		return nil, fmt.Errorf("updater.provider: %w", err)
	}
	schedule, err := bio.ParseSchedule(cfg.Updater.Schedule)
	if err != nil {
		return nil, fmt.Errorf("updater.schedule: %w", err)
	}

	factory := providerFactory(cfgm, log)
	provider, err := factory(kind)
	if err != nil {
		return nil, err
	}

	mode := bio.NewMode(kind)
	sink, err := profile.NewTelegram(profile.Config{
		Token: cfg.Telegram.Token,
	}, log.With(logx.String("comp", "profile")))
	if err != nil {
		return nil, err
	}

	loop := bio.NewLoop(sink, provider, kind, schedule,
		bio.WithMode(mode, factory),
		bio.WithLoopLogger(log.With(logx.String("comp", "loop"))),
	)

	cmdm := control.NewManager(log.With(logx.String("comp", "commands")),
		ad, cfg.Telegram.OwnerUserIDs)
	handlers := &control.Handlers{
		Mode:    mode,
		Sink:    sink,
		Factory: factory,
		Audit:   st,
		Log:     log.With(logx.String("comp", "commands")),
	}
	cmdm.Register(handlers.Commands()...)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   st,
		adapter: ad,
		mode:    mode,
		loop:    loop,
		sink:    sink,
		cmdm:    cmdm,
		notify:  lifecycle.NewNotifier(log.With(logx.String("comp", "lifecycle"))),
		updates: make(chan kit.Message, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validateConfig)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	// Register the command menu so the bot UI shows available commands.
	// Best-effort: a failure here never blocks startup.
	if mu, ok := a.adapter.(kit.CommandMenuUpdater); ok {
		menuCtx, cancel := context.WithTimeout(a.sup.Context(), 5*time.Second)
		if err := mu.UpdateMenuCommands(menuCtx, a.cmdm.MenuCommands()); err != nil {
			a.log.Warn("command menu update failed", logx.Err(err))
		}
		cancel()
	}

	a.sup.Go("bio.loop", func(c context.Context) error {
		return a.loop.Run(c)
	})
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		// Track last applied config to generate a safe diff summary for logx.
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		a.notify.WatchdogLoop(c)
	})
	a.notify.Ready()

	a.log.Info("app started",
		logx.String("provider", string(a.mode.Kind())),
	)
	return nil
}

// applyReload applies the hot-reloadable subset of a validated config:
// logging, owner list and the update schedule. Token, storage and running
// provider state require a restart or an explicit /set_mode.
func (a *App) applyReload(oldCfg, newCfg *Config) {
	sections, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		switch s {
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		case "telegram":
			if oldCfg != nil && strings.TrimSpace(oldCfg.Telegram.Token) != strings.TrimSpace(newCfg.Telegram.Token) {
				a.log.Warn("telegram token changed; restart required for changes to take effect")
			}
		}
	}

	// update log target first (so Apply() doesn't warn when Telegram logging is enabled)
	a.logs.SetTelegramTarget(newCfg.Telegram.LogChatID)

	a.logs.Apply(logx.Config{
		Level:   newCfg.Logging.Level,
		Console: newCfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: newCfg.Logging.File.Enabled,
			Path:    newCfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    newCfg.Logging.Telegram.Enabled,
			MinLevel:   newCfg.Logging.Telegram.MinLevel,
			RatePerSec: newCfg.Logging.Telegram.RatePerSec,
		},
	})

	// Update owner list used for AccessOwnerOnly checks.
	a.cmdm.SetOwners(newCfg.Telegram.OwnerUserIDs)

	// Update the loop cadence. The validator already parsed this, so a
	// failure here means the config raced; keep the old schedule.
	if sched, err := bio.ParseSchedule(newCfg.Updater.Schedule); err == nil {
		a.loop.SetSchedule(sched)
	} else {
		a.log.Warn("invalid updater.schedule; keeping previous", logx.Err(err))
	}

	// updater.provider only seeds the initial mode. The running mode is
	// operator-owned (/set_mode), so a reload never flips it.

	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notify.Stopping()

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.String("err", err.Error()))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			// Contract: fn MUST honor stepCtx and return promptly. If it doesn't, log a leak signal.
			elapsed := time.Since(start)
			a.log.Warn(
				"stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.String("err", stepCtx.Err().Error()),
				logx.Duration("elapsed", elapsed),
			)
			// Leak logging: observe when/if the step eventually finishes.
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.String("err", err.Error()), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	// Finally, wait for supervised goroutines (loop, config watch/reload, command dispatcher).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
