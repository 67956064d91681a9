package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relayfeed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSeedConfig(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		errorMsg string
		validate func(*testing.T, *SeedConfig)
	}{
		{
			name: "valid seed",
			yaml: `watch_titles:
  - "Sousou no Frieren"
  - "Dandadan"
telegram:
  admins: [111, 222]
  notify_chats: ["-1001"]
  post_chat: "@relayfeed"
`,
			validate: func(t *testing.T, c *SeedConfig) {
				assert.Equal(t, []string{"Sousou no Frieren", "Dandadan"}, c.WatchTitles)
				assert.Equal(t, []int64{111, 222}, c.Telegram.Admins)
				assert.Equal(t, []string{"-1001"}, c.Telegram.NotifyChats)
				assert.Equal(t, "@relayfeed", c.Telegram.PostChat)
			},
		},
		{
			name: "titles only",
			yaml: "watch_titles: [\"Frieren\"]\n",
			validate: func(t *testing.T, c *SeedConfig) {
				assert.Len(t, c.WatchTitles, 1)
				assert.Empty(t, c.Telegram.Admins)
			},
		},
		{
			name:     "empty file",
			yaml:     "",
			validate: func(t *testing.T, c *SeedConfig) { assert.Empty(t, c.WatchTitles) },
		},
		{name: "blank title", yaml: "watch_titles: [\"  \"]\n", errorMsg: "watch_titles[0] is blank"},
		{name: "negative admin", yaml: "telegram:\n  admins: [-5]\n", errorMsg: "must be positive"},
		{name: "unknown key", yaml: "watchlist: [\"a\"]\n", errorMsg: "failed to parse"},
		{name: "malformed yaml", yaml: "watch_titles: [\n", errorMsg: "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadSeedConfig(writeSeed(t, tt.yaml))

			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadSeedConfig_MissingFile(t *testing.T) {
	_, err := LoadSeedConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSeedConfig_Merge(t *testing.T) {
	var c SeedConfig
	c.Telegram.Admins = []int64{2, 3}
	c.Telegram.NotifyChats = []string{"b", " c "}
	c.Telegram.PostChat = "@seed"

	assert.Equal(t, []int64{1, 2, 3}, c.MergeAdmins([]int64{1, 2}))
	assert.Equal(t, []string{"a", "b", "c"}, c.MergeNotifyChats([]string{"a", "b"}))
	assert.Equal(t, "@env", c.PostChatOr("@env"))
	assert.Equal(t, "@seed", c.PostChatOr(""))
}
