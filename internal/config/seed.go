// Package config reads the optional YAML seed file named by RELAYFEED_CONFIG.
//
//	watch_titles:
//	  - Sousou no Frieren
//	telegram:
//	  admins: [123456789]
//	  notify_chats: ["-1001234567890"]
//	  post_chat: "@relayfeed"
//
// Watch titles are added to the watch list at startup (existing ones are kept).
// Telegram recipients are merged with the ones from the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedConfig is the content of the seed file.
type SeedConfig struct {
	WatchTitles []string `yaml:"watch_titles"`
	Telegram    struct {
		Admins      []int64  `yaml:"admins"`
		NotifyChats []string `yaml:"notify_chats"`
		PostChat    string   `yaml:"post_chat"`
	} `yaml:"telegram"`
}

// LoadSeedConfig reads and validates the seed file at path.
func LoadSeedConfig(path string) (*SeedConfig, error) {
	// #nosec G304 -- path comes from the operator's environment
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var cfg SeedConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	if err := validateSeedConfig(&cfg); err != nil {
		return nil, fmt.Errorf("seed file validation failed: %w", err)
	}
	return &cfg, nil
}

func validateSeedConfig(cfg *SeedConfig) error {
	for i, title := range cfg.WatchTitles {
		if strings.TrimSpace(title) == "" {
			return fmt.Errorf("watch_titles[%d] is blank", i)
		}
	}
	for _, id := range cfg.Telegram.Admins {
		if id <= 0 {
			return fmt.Errorf("telegram admin id must be positive, got %d", id)
		}
	}
	for i, chat := range cfg.Telegram.NotifyChats {
		if strings.TrimSpace(chat) == "" {
			return fmt.Errorf("telegram notify_chats[%d] is blank", i)
		}
	}
	return nil
}

// MergeAdmins returns admins followed by the seed admins not already present.
func (c *SeedConfig) MergeAdmins(admins []int64) []int64 {
	out := slices.Clone(admins)
	for _, id := range c.Telegram.Admins {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// MergeNotifyChats returns chats followed by the seed chats not already present.
func (c *SeedConfig) MergeNotifyChats(chats []string) []string {
	out := slices.Clone(chats)
	for _, chat := range c.Telegram.NotifyChats {
		chat = strings.TrimSpace(chat)
		if !slices.Contains(out, chat) {
			out = append(out, chat)
		}
	}
	return out
}

// PostChatOr returns the seed post chat when the environment did not set one.
func (c *SeedConfig) PostChatOr(envValue string) string {
	if envValue != "" {
		return envValue
	}
	return c.Telegram.PostChat
}
