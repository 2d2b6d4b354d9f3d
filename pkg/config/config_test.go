package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1, cfg.Crawl.MaxDepth)
	assert.Equal(t, 100, cfg.Crawl.MaxProfiles)
	assert.Equal(t, 1, cfg.Crawl.Workers)
	assert.Equal(t, []string{FormatCSV}, cfg.Sink.Formats)
	assert.Equal(t, "Mexico", cfg.Regions["52"])
	assert.Equal(t, "Ecuador", cfg.Regions["593"])
	assert.Contains(t, cfg.Classifier.Keywords.RepairShop, "reparación")
	assert.Contains(t, cfg.Classifier.Keywords.Distributor, "mayorista")
	assert.InDelta(t, 0.75, cfg.Classifier.Semantic.Threshold, 1e-9)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IGLEADS_SESSION_ID", "test-session-id")
	t.Setenv("IGLEADS_CSRF_TOKEN", "test-csrf-token")
	t.Setenv("IGLEADS_SEEDS", "shopA, @userB ,")
	t.Setenv("IGLEADS_MAX_DEPTH", "2")
	t.Setenv("IGLEADS_MAX_PROFILES", "25")
	t.Setenv("IGLEADS_MIN_DELAY", "500ms")
	t.Setenv("IGLEADS_MAX_DELAY", "1s")
	t.Setenv("IGLEADS_FORMATS", "csv,sqlite")
	t.Setenv("IGLEADS_LOG_LEVEL", "debug")
	t.Setenv("IGLEADS_GEMINI_API_KEY", "key-123")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "test-session-id", cfg.Instagram.SessionID)
	assert.Equal(t, "test-csrf-token", cfg.Instagram.CSRFToken)
	assert.Equal(t, []string{"shopA", "@userB"}, cfg.Crawl.Seeds)
	assert.Equal(t, 2, cfg.Crawl.MaxDepth)
	assert.Equal(t, 25, cfg.Crawl.MaxProfiles)
	assert.Equal(t, 500*time.Millisecond, cfg.Crawl.MinDelay)
	assert.Equal(t, time.Second, cfg.Crawl.MaxDelay)
	assert.Equal(t, []string{"csv", "sqlite"}, cfg.Sink.Formats)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "key-123", cfg.Classifier.Semantic.APIKey)
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("IGLEADS_MAX_DEPTH", "two")
	t.Setenv("IGLEADS_MIN_DELAY", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IGLEADS_MAX_DEPTH")
	assert.Contains(t, err.Error(), "IGLEADS_MIN_DELAY")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "igleads.yaml")
	content := `
crawl:
  seeds: [shopA]
  max_depth: 2
  max_profiles: 10
  min_delay: 1s
  max_delay: 3s
classifier:
  keywords:
    relevance: [celulares]
regions:
  "34": Spain
sink:
  formats: [jsonl]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, []string{"shopA"}, cfg.Crawl.Seeds)
	assert.Equal(t, 2, cfg.Crawl.MaxDepth)
	assert.Equal(t, 3*time.Second, cfg.Crawl.MaxDelay)
	assert.Equal(t, []string{"celulares"}, cfg.Classifier.Keywords.Relevance)
	// lists not present in the file keep their defaults
	assert.Contains(t, cfg.Classifier.Keywords.Retailer, "tienda")
	assert.Equal(t, "Spain", cfg.Regions["34"])
	assert.Equal(t, "Mexico", cfg.Regions["52"])
	assert.Equal(t, []string{"jsonl"}, cfg.Sink.Formats)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("crawl: [unclosed"), 0644))
	assert.Error(t, cfg.LoadFromFile(bad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative depth", func(c *Config) { c.Crawl.MaxDepth = -1 }, "max_depth"},
		{"zero profiles", func(c *Config) { c.Crawl.MaxProfiles = 0 }, "max_profiles"},
		{"inverted delays", func(c *Config) { c.Crawl.MinDelay = 5 * time.Second; c.Crawl.MaxDelay = time.Second }, "max_delay"},
		{"no workers", func(c *Config) { c.Crawl.Workers = 0 }, "workers"},
		{"unknown format", func(c *Config) { c.Sink.Formats = []string{"xlsx"} }, "xlsx"},
		{"bad threshold", func(c *Config) { c.Classifier.Semantic.Enabled = true; c.Classifier.Semantic.Threshold = 1.5 }, "threshold"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
		{"no relevance keywords", func(c *Config) { c.Classifier.Keywords.Relevance = nil }, "relevance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Crawl.MaxDepth = -1
	cfg.Crawl.MaxProfiles = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_depth")
	assert.Contains(t, err.Error(), "max_profiles")
}

func TestResolveSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.txt")
	require.NoError(t, os.WriteFile(path, []byte("# seeds\nuserB\n\n  @userC  \n"), 0644))

	crawl := CrawlConfig{Seeds: []string{"shopA"}, SeedFile: path}
	seeds, err := crawl.ResolveSeeds()
	require.NoError(t, err)
	assert.Equal(t, []string{"shopA", "userB", "@userC"}, seeds)

	crawl.SeedFile = filepath.Join(t.TempDir(), "nope.txt")
	_, err = crawl.ResolveSeeds()
	assert.Error(t, err)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"seeds":        []string{"shopA"},
		"max-depth":    0,
		"max-profiles": 5,
		"workers":      4,
		"min-delay":    100 * time.Millisecond,
		"output":       "/tmp/out",
		"formats":      []string{"csv", "jsonl"},
		"semantic":     true,
		"log-level":    "warn",
	})

	assert.Equal(t, []string{"shopA"}, cfg.Crawl.Seeds)
	assert.Equal(t, 0, cfg.Crawl.MaxDepth)
	assert.Equal(t, 5, cfg.Crawl.MaxProfiles)
	assert.Equal(t, 4, cfg.Crawl.Workers)
	assert.Equal(t, 100*time.Millisecond, cfg.Crawl.MinDelay)
	assert.Equal(t, "/tmp/out", cfg.Sink.OutputDir)
	assert.Equal(t, []string{"csv", "jsonl"}, cfg.Sink.Formats)
	assert.True(t, cfg.Classifier.Semantic.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Crawl.Seeds = []string{"shopA"}
	cfg.Crawl.MaxProfiles = 7
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path, map[string]interface{}{"max-depth": 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"shopA"}, loaded.Crawl.Seeds)
	assert.Equal(t, 7, loaded.Crawl.MaxProfiles)
	assert.Equal(t, 3, loaded.Crawl.MaxDepth)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl:\n  max_profiles: 0\n"), 0644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}
