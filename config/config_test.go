package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fern", cfg.App.Name)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "scraped-events", cfg.Kafka.InputTopic)
	assert.Equal(t, "canonical-events", cfg.Kafka.OutputTopic)

	defaults := matching.DefaultConfig()
	got := cfg.MatchingConfig()
	assert.Equal(t, defaults.TitleWeight, got.TitleWeight)
	assert.Equal(t, defaults.OverallThreshold, got.OverallThreshold)
	assert.Equal(t, defaults.NearWindow, got.NearWindow)
	assert.Equal(t, defaults.FarWindow, got.FarWindow)
	assert.Equal(t, defaults.WordLists, got.WordLists)

	assert.Equal(t, merging.DefaultConfig(), cfg.MergingConfig())
	assert.Equal(t, 5*time.Second, cfg.BatchConfig().FlushTimeout)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("MATCH_THRESHOLD", "0.8")
	t.Setenv("MATCH_FLUSH_TIMEOUT", "2s")
	t.Setenv("MATCH_DATE_NEAR_WINDOW", "336h")
	t.Setenv("MATCH_WORKER_COUNT", "3")
	t.Setenv("MATCH_EXTRA_MARKETING_TERMS", "Encore,Season")
	t.Setenv("SOURCE_PRIORITY", "ticketing_api,theatre_operator")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.ConsumerConfig().Brokers)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.ProducerConfig().Brokers)
	assert.Equal(t, 2*time.Second, cfg.BatchConfig().FlushTimeout)

	matchCfg := cfg.MatchingConfig()
	assert.Equal(t, 0.8, matchCfg.OverallThreshold)
	assert.Equal(t, 14*24*time.Hour, matchCfg.NearWindow)
	assert.Equal(t, 3, matchCfg.Workers)
	assert.Contains(t, matchCfg.WordLists.MarketingTerms, "encore")
	assert.Contains(t, matchCfg.WordLists.MarketingTerms, "season")

	assert.Equal(t, []models.Source{models.SourceTicketingAPI, models.SourceTheatreOperator}, cfg.MergingConfig().SourcePriority)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fern.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  name: fern-staging
kafka:
  input_topic: staging-scraped-events
matching:
  threshold: 0.9
`), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("MATCH_THRESHOLD", "0.85")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fern-staging", cfg.App.Name)
	assert.Equal(t, "staging-scraped-events", cfg.Kafka.InputTopic)
	assert.Equal(t, 0.85, cfg.Matching.Threshold, "environment wins over the file")
	assert.Equal(t, "fern-staging", cfg.TracingConfig().ServiceName)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"threshold above one", "MATCH_THRESHOLD", "1.5"},
		{"unknown source", "SOURCE_PRIORITY", "ticketing_api,newspaper"},
		{"near window beyond far window", "MATCH_DATE_NEAR_WINDOW", "800h"},
		{"unknown log level", "LOG_LEVEL", "chatty"},
		{"unknown compression", "KAFKA_COMPRESSION", "brotli"},
		{"no brokers", "KAFKA_BROKERS", " , "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
