package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const yamlConfig = `
telegram:
  token: "123:abc"
  owner_user_ids: [42, 77]
  log_chat_id: -100123
  poll_timeout: "10s"
updater:
  schedule: "60"
  provider: "list"
  phrases_file: "./phrases.json"
logging:
  level: "info"
  console: true
  file:
    enabled: false
    path: ""
  telegram:
    enabled: false
    min_level: "warn"
    rate_per_sec: 1
storage:
  driver: "sqlite"
  path: "./telebio.db"
`

func TestParseYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", yamlConfig)
	m := NewConfigManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token not parsed: %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.OwnerUserIDs) != 2 || cfg.Telegram.OwnerUserIDs[1] != 77 {
		t.Fatalf("owners not parsed: %v", cfg.Telegram.OwnerUserIDs)
	}
	if cfg.Telegram.LogChatID != -100123 {
		t.Fatalf("log chat not parsed: %d", cfg.Telegram.LogChatID)
	}
	if cfg.Updater.Schedule != "60" || cfg.Updater.Provider != "list" {
		t.Fatalf("updater not parsed: %+v", cfg.Updater)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage not parsed: %+v", cfg.Storage)
	}
	if m.Get() != cfg {
		t.Fatalf("Load must commit the parsed config")
	}
}

func TestParseJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "telegram": {"token": "123:abc", "owner_user_ids": [42]},
  "updater": {"schedule": "30m", "provider": "llm"},
  "yandex": {"api_key": "k", "folder_id": "f", "temperature": 0.8},
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}, "telegram": {"enabled": false, "min_level": "", "rate_per_sec": 0}}
}`)
	cfg, err := NewConfigManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Updater.Provider != "llm" || cfg.Yandex.Temperature != 0.8 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.yaml", yamlConfig+"\nleftover_key: true\n")
	if _, err := NewConfigManager(path).Parse(); err == nil {
		t.Fatalf("expected error for unknown top-level key")
	}
}

func TestParseRejectsTrailingJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"telegram":{"token":"t","owner_user_ids":[1]},"updater":{"schedule":"60","provider":"list"},"logging":{"level":"info","console":true,"file":{"enabled":false,"path":""},"telegram":{"enabled":false,"min_level":"","rate_per_sec":0}}}{}`)
	if _, err := NewConfigManager(path).Parse(); err == nil {
		t.Fatalf("expected error for trailing data")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	old := &Config{}
	old.Telegram.OwnerUserIDs = []int64{1}
	old.Updater.Schedule = "60"

	upd := &Config{}
	upd.Telegram.OwnerUserIDs = []int64{1, 2}
	upd.Updater.Schedule = "30m"
	upd.Storage = &StorageConfig{Driver: "sqlite", Path: "./db"}

	sections, _ := SummarizeConfigChange(old, upd)
	want := map[string]bool{"telegram": true, "updater": true, "storage": true}
	if len(sections) != len(want) {
		t.Fatalf("unexpected sections %v", sections)
	}
	for _, s := range sections {
		if !want[s] {
			t.Fatalf("unexpected section %q in %v", s, sections)
		}
	}

	sections, _ = SummarizeConfigChange(upd, upd)
	if len(sections) != 0 {
		t.Fatalf("identical configs must yield no sections, got %v", sections)
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	m := NewConfigManager("unused")
	ch := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatalf("wrong config delivered")
		}
	default:
		t.Fatalf("expected a delivered config")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("unsubscribed channel must be closed")
	}
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	m := NewConfigManager("unused")
	ch := m.Subscribe(1)

	first := &Config{}
	second := &Config{}
	m.publish(first)
	m.publish(second)

	got := <-ch
	if got != second {
		t.Fatalf("expected latest config to win")
	}
	m.Unsubscribe(ch)
}
