package app

import (
	"context"
	"strings"
	"testing"

	"telebio/internal/config"
)

func validBase() *Config {
	cfg := &Config{}
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.OwnerUserIDs = []int64{42}
	cfg.Updater.Schedule = "60"
	cfg.Updater.Provider = "list"
	cfg.Updater.PhrasesFile = "./phrases.json"
	return cfg
}

func TestValidateConfigOK(t *testing.T) {
	if err := validateConfig(context.Background(), validBase()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	llm := validBase()
	llm.Updater.Provider = "llm"
	llm.Updater.PhrasesFile = ""
	llm.Yandex.APIKey = "key"
	llm.Yandex.FolderID = "folder"
	llm.Yandex.Temperature = 0.7
	if err := validateConfig(context.Background(), llm); err != nil {
		t.Fatalf("expected valid llm config, got %v", err)
	}
}

func TestValidateConfigRejects(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		errPart string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = " " }, "token"},
		{"no owners", func(c *Config) { c.Telegram.OwnerUserIDs = nil }, "owner"},
		{"bad poll timeout", func(c *Config) { c.Telegram.PollTimeout = "soon" }, "poll_timeout"},
		{"bad provider", func(c *Config) { c.Updater.Provider = "chatgpt" }, "provider"},
		{"bad schedule", func(c *Config) { c.Updater.Schedule = "yearly" }, "schedule"},
		{"list without phrases", func(c *Config) { c.Updater.PhrasesFile = "" }, "phrases_file"},
		{"llm without key", func(c *Config) {
			c.Updater.Provider = "llm"
			c.Yandex.FolderID = "folder"
		}, "api_key"},
		{"llm without folder", func(c *Config) {
			c.Updater.Provider = "llm"
			c.Yandex.APIKey = "key"
		}, "folder_id"},
		{"temperature out of range", func(c *Config) { c.Yandex.Temperature = 1.2 }, "temperature"},
		{"bad storage timeout", func(c *Config) {
			c.Storage = &config.StorageConfig{Driver: "sqlite", Path: "./db", BusyTimeout: "later"}
		}, "busy_timeout"},
	}

	for _, tc := range cases {
		cfg := validBase()
		tc.mutate(cfg)
		err := validateConfig(context.Background(), cfg)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.errPart) {
			t.Fatalf("%s: expected error mentioning %q, got %v", tc.name, tc.errPart, err)
		}
	}
}
