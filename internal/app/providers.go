package app

import (
	"context"
	"fmt"
	"strings"

	"telebio/internal/bio"
	logx "telebio/pkg/logx"
)

// providerFactory builds bio providers on demand. It reads the live config
// on every call, so a hot-reloaded phrases file path or Yandex model takes
// effect the next time a provider is constructed.
func providerFactory(cfgm *ConfigManager, log logx.Logger) bio.Factory {
	return func(kind bio.Kind) (bio.Provider, error) {
		cfg := cfgm.Get()
		if cfg == nil {
			return nil, fmt.Errorf("config not loaded")
		}
		switch kind {
		case bio.KindList:
			return bio.NewListProvider(cfg.Updater.PhrasesFile,
				log.With(logx.String("comp", "provider.list")))
		case bio.KindLLM:
			return bio.NewLLMProvider(bio.LLMConfig{
				APIKey:       cfg.Yandex.APIKey,
				FolderID:     cfg.Yandex.FolderID,
				Model:        cfg.Yandex.Model,
				Temperature:  cfg.Yandex.Temperature,
				ExamplesFile: cfg.Updater.ExamplesFile,
			}, log.With(logx.String("comp", "provider.llm")))
		default:
			return nil, fmt.Errorf("unknown provider kind %q", kind)
		}
	}
}

// validateConfig rejects configs that would break the running service.
// Used both at startup and as the hot-reload validator (bad reloads keep
// the previous config).
func validateConfig(_ context.Context, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if len(cfg.Telegram.OwnerUserIDs) == 0 {
		return fmt.Errorf("telegram.owner_user_ids must list at least one user")
	}
	if _, err := parseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}

	kind, err := bio.ParseKind(strings.TrimSpace(cfg.Updater.Provider))
	if err != nil {
		return fmt.Errorf("updater.provider: %w", err)
	}
	if _, err := bio.ParseSchedule(cfg.Updater.Schedule); err != nil {
		return fmt.Errorf("updater.schedule: %w", err)
	}
	if kind == bio.KindList && strings.TrimSpace(cfg.Updater.PhrasesFile) == "" {
		return fmt.Errorf("updater.phrases_file is required for the list provider")
	}
	if kind == bio.KindLLM {
		if strings.TrimSpace(cfg.Yandex.APIKey) == "" {
			return fmt.Errorf("yandex.api_key is required for the llm provider")
		}
		if strings.TrimSpace(cfg.Yandex.FolderID) == "" {
			return fmt.Errorf("yandex.folder_id is required for the llm provider")
		}
	}
	if cfg.Yandex.Temperature < 0 || cfg.Yandex.Temperature > 1 {
		return fmt.Errorf("yandex.temperature must be within [0, 1]")
	}

	if cfg.Storage != nil {
		if _, err := parseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
