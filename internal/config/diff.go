package config

import (
	"reflect"
	"sort"
	"strings"

	logx "telebio/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus
// safe structured attrs for logging (never includes secrets like tokens
// or API keys).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	// Telegram (never log token)
	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) ||
		oldCfg.Telegram.LogChatID != newCfg.Telegram.LogChatID {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
			logx.Bool("telegram.log_chat_set", newCfg.Telegram.LogChatID != 0),
		)
	}

	// Updater
	if strings.TrimSpace(oldCfg.Updater.Schedule) != strings.TrimSpace(newCfg.Updater.Schedule) ||
		strings.TrimSpace(oldCfg.Updater.Provider) != strings.TrimSpace(newCfg.Updater.Provider) ||
		strings.TrimSpace(oldCfg.Updater.PhrasesFile) != strings.TrimSpace(newCfg.Updater.PhrasesFile) ||
		strings.TrimSpace(oldCfg.Updater.ExamplesFile) != strings.TrimSpace(newCfg.Updater.ExamplesFile) {
		changed = append(changed, "updater")
		attrs = append(attrs,
			logx.String("updater.schedule", strings.TrimSpace(newCfg.Updater.Schedule)),
			logx.String("updater.provider", strings.TrimSpace(newCfg.Updater.Provider)),
		)
	}

	// Yandex (never log api_key)
	if (strings.TrimSpace(oldCfg.Yandex.APIKey) != "") != (strings.TrimSpace(newCfg.Yandex.APIKey) != "") ||
		strings.TrimSpace(oldCfg.Yandex.FolderID) != strings.TrimSpace(newCfg.Yandex.FolderID) ||
		strings.TrimSpace(oldCfg.Yandex.Model) != strings.TrimSpace(newCfg.Yandex.Model) ||
		oldCfg.Yandex.Temperature != newCfg.Yandex.Temperature {
		changed = append(changed, "yandex")
		attrs = append(attrs,
			logx.Bool("yandex.api_key_set", strings.TrimSpace(newCfg.Yandex.APIKey) != ""),
			logx.String("yandex.model", strings.TrimSpace(newCfg.Yandex.Model)),
		)
	}

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	// Storage. Nil means disabled.
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if oldCfg.Storage != nil {
		oDriver = strings.TrimSpace(oldCfg.Storage.Driver)
		oBusy = strings.TrimSpace(oldCfg.Storage.BusyTimeout)
		oPathSet = strings.TrimSpace(oldCfg.Storage.Path) != ""
	}
	if newCfg.Storage != nil {
		nDriver = strings.TrimSpace(newCfg.Storage.Driver)
		nBusy = strings.TrimSpace(newCfg.Storage.BusyTimeout)
		nPathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
