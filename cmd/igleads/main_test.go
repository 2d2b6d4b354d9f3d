package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igleads/pkg/classifier"
	"igleads/pkg/config"
	"igleads/pkg/contact"
	"igleads/pkg/models"
)

func TestExtractText(t *testing.T) {
	kc := classifier.NewKeywordClassifier(config.DefaultKeywords())
	ex := contact.New(config.DefaultRegions())

	res := extractText(context.Background(), "Reparación de celulares\nwa.me/5215512345678", kc, ex)
	assert.True(t, res.Relevant)
	assert.Equal(t, models.CategoryRepairShop, res.Category)
	assert.Equal(t, "5215512345678", res.WhatsAppNumber)
	assert.Equal(t, "Mexico", res.Region)

	res = extractText(context.Background(), "Fotografía de bodas", kc, ex)
	assert.False(t, res.Relevant)
	assert.Empty(t, res.WhatsAppNumber)
	assert.Equal(t, contact.UnknownRegion, res.Region)
}

func TestCrawlFlagsOnlyIncludesChangedValues(t *testing.T) {
	require.NoError(t, crawlCmd.ParseFlags([]string{"--max-depth", "0", "--min-delay", "3s", "--seed", "b,c"}))

	flags := crawlFlags(crawlCmd, []string{"a"})
	assert.Equal(t, 0, flags["max-depth"])
	assert.Equal(t, 3*time.Second, flags["min-delay"])
	assert.Equal(t, []string{"a", "b", "c"}, flags["seeds"])
	assert.NotContains(t, flags, "max-profiles")
	assert.NotContains(t, flags, "workers")
	assert.NotContains(t, flags, "checkpoint")

	cfg := config.DefaultConfig()
	cfg.Crawl.MaxDepth = 2
	cfg.MergeCommandLineFlags(flags)
	assert.Equal(t, 0, cfg.Crawl.MaxDepth)
	assert.Equal(t, config.DefaultConfig().Crawl.MaxProfiles, cfg.Crawl.MaxProfiles)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "***", maskSecret("short"))
	assert.Equal(t, "1234...cdef", maskSecret("1234567890abcdef"))
}
