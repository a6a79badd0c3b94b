package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Updater  UpdaterConfig  `json:"updater"`
	Yandex   YandexConfig   `json:"yandex,omitempty"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// LogChatID is the chat that receives forwarded log lines when
	// logging.telegram is enabled. Zero disables forwarding.
	LogChatID int64 `json:"log_chat_id,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// UpdaterConfig controls the bio update loop.
type UpdaterConfig struct {
	// Schedule accepts a bare number of minutes ("30"), a Go duration
	// ("45m"), a HH:MM interval ("01:30") or a cron expression.
	Schedule string `json:"schedule"`
	// Provider selects the initial bio source: "list" or "llm".
	Provider string `json:"provider"`
	// PhrasesFile is a JSON array of strings used by the list provider.
	PhrasesFile string `json:"phrases_file,omitempty"`
	// ExamplesFile is an optional JSON array of example bios fed to the
	// llm provider as few-shot context.
	ExamplesFile string `json:"examples_file,omitempty"`
}

// YandexConfig carries YandexGPT credentials for the llm provider.
// Required only when the llm provider can be selected.
type YandexConfig struct {
	APIKey      string  `json:"api_key,omitempty"`
	FolderID    string  `json:"folder_id,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the optional audit trail persistence.
// Nil means disabled.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./telebio.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
