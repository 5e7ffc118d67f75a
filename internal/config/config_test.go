package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", cfg.Timezone)
	assert.Equal(t, 0.85, cfg.Dedupe.SimilarityThreshold)
	assert.Equal(t, 60, cfg.Dedupe.LookbackDays)
	assert.Equal(t, GroupPolicySkipGroup, cfg.Dedupe.GroupPolicy)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dedupe:
  similarity_threshold: 0.9
  group_policy: whatever
calendar:
  backend: google
store:
  backend: memory
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Dedupe.SimilarityThreshold)
	assert.Equal(t, GroupPolicySkipGroup, cfg.Dedupe.GroupPolicy)
	assert.Equal(t, "google", cfg.Calendar.Backend)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 30, cfg.Dedupe.LookaheadDays)

	assert.Error(t, cfg.Validate())
	cfg.Calendar.GoogleCalendarID = "cal@group.calendar.google.com"
	cfg.Calendar.ServiceAccountFile = "/etc/harvester/sa.json"
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dedupe: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SIMILARITY_THRESHOLD", "0.7")
	t.Setenv("LOOKBACK_DAYS", "14")
	t.Setenv("TELEGRAM_USER_ID", "42")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, 0.7, cfg.Dedupe.SimilarityThreshold)
	assert.Equal(t, 14, cfg.Dedupe.LookbackDays)
	assert.Equal(t, "42", cfg.Telegram.ChatID)
}

func TestSaveRoundTripKeepsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Dedupe.GroupPolicy = GroupPolicySkipPart
	cfg.Feed.URL = "https://example.com/rss"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, GroupPolicySkipPart, loaded.Dedupe.GroupPolicy)
	assert.Equal(t, "https://example.com/rss", loaded.Feed.URL)
}
