// Package config loads fern's configuration: defaults, then an optional YAML file,
// then environment variables
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/processor"
	"github.com/Ramsey-B/fern/pkg/routes"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ConfigPathEnvVar names the environment variable pointing at a YAML config file
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched when CONFIG_PATH is unset
var DefaultConfigPaths = []string{"config.yaml", "/etc/fern/config.yaml"}

// Config is fern's complete configuration
type Config struct {
	App      AppConfig   `koanf:"app"`
	HTTP     HTTPConfig  `koanf:"http"`
	Kafka    KafkaConfig `koanf:"kafka"`
	Batch    BatchConfig `koanf:"batch"`
	Matching MatchConfig `koanf:"matching"`
	Merging  MergeConfig `koanf:"merging"`
	Tracing  TraceConfig `koanf:"tracing"`
}

type AppConfig struct {
	Name               string `koanf:"name" validate:"required"`
	Version            string `koanf:"version"`
	LogLevel           string `koanf:"log_level" validate:"oneof=debug info warn error"`
	PrettyLogs         bool   `koanf:"pretty_logs"`
	StartupMaxAttempts int    `koanf:"startup_max_attempts" validate:"min=1"`
}

type HTTPConfig struct {
	Port              int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	MaxHeaderBytes    int           `koanf:"max_header_bytes"`
}

type KafkaConfig struct {
	Brokers       []string      `koanf:"brokers" validate:"required,min=1,dive,required"`
	InputTopic    string        `koanf:"input_topic" validate:"required"`
	ConsumerGroup string        `koanf:"consumer_group" validate:"required"`
	OutputTopic   string        `koanf:"output_topic" validate:"required"`
	BatchSize     int           `koanf:"batch_size" validate:"min=1"`
	BatchTimeout  time.Duration `koanf:"batch_timeout"`
	RequiredAcks  int           `koanf:"required_acks" validate:"oneof=-1 0 1"`
	Compression   string        `koanf:"compression" validate:"oneof=snappy gzip lz4 zstd none"`
}

type BatchConfig struct {
	MaxBatchSize    int           `koanf:"max_batch_size" validate:"min=1"`
	FlushTimeout    time.Duration `koanf:"flush_timeout" validate:"gt=0"`
	QueueSize       int           `koanf:"queue_size" validate:"min=0"`
	TrackerCapacity int           `koanf:"tracker_capacity" validate:"min=1"`
}

type MatchConfig struct {
	TitleWeight         float64       `koanf:"title_weight" validate:"min=0"`
	DateWeight          float64       `koanf:"date_weight" validate:"min=0"`
	VenueWeight         float64       `koanf:"venue_weight" validate:"min=0"`
	Threshold           float64       `koanf:"threshold" validate:"min=0,max=1"`
	NearWindow          time.Duration `koanf:"near_window"`
	FarWindow           time.Duration `koanf:"far_window"`
	TokenFuzzThreshold  float64       `koanf:"token_fuzz_threshold" validate:"gt=0,max=1"`
	Workers             int           `koanf:"workers" validate:"min=0"` // 0 means GOMAXPROCS
	ExtraMarketingTerms []string      `koanf:"extra_marketing_terms"`
	ExtraGeoSuffixes    []string      `koanf:"extra_geo_suffixes"`
}

type MergeConfig struct {
	SourcePriority        []string `koanf:"source_priority"`
	NoDescriptionSentinel string   `koanf:"no_description_sentinel"`
	AddressPlaceholders   []string `koanf:"address_placeholders"`
	PriceDetailsSeparator string   `koanf:"price_details_separator" validate:"required"`
}

type TraceConfig struct {
	Exporter     string        `koanf:"exporter" validate:"oneof=none otlp"`
	OTLPEndpoint string        `koanf:"otlp_endpoint"`
	OTLPProtocol string        `koanf:"otlp_protocol" validate:"oneof=grpc http"`
	Insecure     bool          `koanf:"insecure"`
	Timeout      time.Duration `koanf:"timeout"`
	SampleRatio  float64       `koanf:"sample_ratio" validate:"min=0,max=1"`
}

func defaultConfig() *Config {
	matchDefaults := matching.DefaultConfig()
	mergeDefaults := merging.DefaultConfig()
	batchDefaults := processor.DefaultConfig()

	priority := make([]string, len(mergeDefaults.SourcePriority))
	for i, s := range mergeDefaults.SourcePriority {
		priority[i] = string(s)
	}

	return &Config{
		App: AppConfig{
			Name:               "fern",
			Version:            "dev",
			LogLevel:           "info",
			StartupMaxAttempts: 5,
		},
		HTTP: HTTPConfig{
			Port:              3004,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       10 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    64000, // 64KB
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			InputTopic:    "scraped-events",
			ConsumerGroup: "fern-consumer",
			OutputTopic:   "canonical-events",
			BatchSize:     100,
			BatchTimeout:  100 * time.Millisecond,
			RequiredAcks:  1,
			Compression:   "snappy",
		},
		Batch: BatchConfig{
			MaxBatchSize:    batchDefaults.MaxBatchSize,
			FlushTimeout:    batchDefaults.FlushTimeout,
			QueueSize:       batchDefaults.QueueSize,
			TrackerCapacity: batchDefaults.TrackerCapacity,
		},
		Matching: MatchConfig{
			TitleWeight:        matchDefaults.TitleWeight,
			DateWeight:         matchDefaults.DateWeight,
			VenueWeight:        matchDefaults.VenueWeight,
			Threshold:          matchDefaults.OverallThreshold,
			NearWindow:         matchDefaults.NearWindow,
			FarWindow:          matchDefaults.FarWindow,
			TokenFuzzThreshold: matchDefaults.TokenFuzzThreshold,
		},
		Merging: MergeConfig{
			SourcePriority:        priority,
			NoDescriptionSentinel: mergeDefaults.NoDescriptionSentinel,
			AddressPlaceholders:   mergeDefaults.AddressPlaceholders,
			PriceDetailsSeparator: mergeDefaults.PriceDetailsSeparator,
		},
		Tracing: TraceConfig{
			Exporter:     "none",
			OTLPEndpoint: "localhost:4317",
			OTLPProtocol: "grpc",
			Insecure:     true,
			Timeout:      10 * time.Second,
			SampleRatio:  1,
		},
	}
}

// envKeys maps environment variable names to config paths
var envKeys = map[string]string{
	"APP_NAME":             "app.name",
	"APP_VERSION":          "app.version",
	"LOG_LEVEL":            "app.log_level",
	"PRETTY_LOGS":          "app.pretty_logs",
	"STARTUP_MAX_ATTEMPTS": "app.startup_max_attempts",

	"PORT":                            "http.port",
	"HTTP_SERVER_READ_TIMEOUT":        "http.read_timeout",
	"HTTP_SERVER_WRITE_TIMEOUT":       "http.write_timeout",
	"HTTP_SERVER_IDLE_TIMEOUT":        "http.idle_timeout",
	"HTTP_SERVER_READ_HEADER_TIMEOUT": "http.read_header_timeout",
	"HTTP_SERVER_MAX_HEADER_BYTES":    "http.max_header_bytes",

	"KAFKA_BROKERS":        "kafka.brokers",
	"KAFKA_INPUT_TOPIC":    "kafka.input_topic",
	"KAFKA_CONSUMER_GROUP": "kafka.consumer_group",
	"KAFKA_OUTPUT_TOPIC":   "kafka.output_topic",
	"KAFKA_BATCH_SIZE":     "kafka.batch_size",
	"KAFKA_BATCH_TIMEOUT":  "kafka.batch_timeout",
	"KAFKA_REQUIRED_ACKS":  "kafka.required_acks",
	"KAFKA_COMPRESSION":    "kafka.compression",

	"MATCH_BATCH_SIZE":       "batch.max_batch_size",
	"MATCH_FLUSH_TIMEOUT":    "batch.flush_timeout",
	"MATCH_QUEUE_SIZE":       "batch.queue_size",
	"FINGERPRINT_CACHE_SIZE": "batch.tracker_capacity",

	"MATCH_TITLE_WEIGHT":          "matching.title_weight",
	"MATCH_DATE_WEIGHT":           "matching.date_weight",
	"MATCH_VENUE_WEIGHT":          "matching.venue_weight",
	"MATCH_THRESHOLD":             "matching.threshold",
	"MATCH_DATE_NEAR_WINDOW":      "matching.near_window",
	"MATCH_DATE_FAR_WINDOW":       "matching.far_window",
	"MATCH_TOKEN_FUZZ_THRESHOLD":  "matching.token_fuzz_threshold",
	"MATCH_WORKER_COUNT":          "matching.workers",
	"MATCH_EXTRA_MARKETING_TERMS": "matching.extra_marketing_terms",
	"MATCH_EXTRA_GEO_SUFFIXES":    "matching.extra_geo_suffixes",

	"SOURCE_PRIORITY":         "merging.source_priority",
	"NO_DESCRIPTION_SENTINEL": "merging.no_description_sentinel",
	"ADDRESS_PLACEHOLDERS":    "merging.address_placeholders",
	"PRICE_DETAILS_SEPARATOR": "merging.price_details_separator",

	"TRACING_EXPORTER":            "tracing.exporter",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "tracing.otlp_endpoint",
	"OTEL_EXPORTER_OTLP_PROTOCOL": "tracing.otlp_protocol",
	"OTEL_EXPORTER_OTLP_INSECURE": "tracing.insecure",
	"TRACING_SAMPLE_RATIO":        "tracing.sample_ratio",
}

// sliceKeys are parsed from comma-separated strings when set from the environment
var sliceKeys = []string{
	"kafka.brokers",
	"matching.extra_marketing_terms",
	"matching.extra_geo_suffixes",
	"merging.source_priority",
	"merging.address_placeholders",
}

// Load reads .env (if present), then layers defaults, the config file and environment
// variables, and validates the result
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", path)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment variables")
	}

	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return cfg, nil
}

// envKey maps a known environment variable to its config path; unknown variables are dropped
func envKey(key string) string {
	return envKeys[key]
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func splitSlices(k *koanf.Koanf) error {
	for _, path := range sliceKeys {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0)
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return errors.Wrapf(err, "failed to set %s", path)
		}
	}
	return nil
}

var configValidator = validator.New()

// Validate checks struct constraints and the cross-field rules of the core configs
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}
	if err := c.MatchingConfig().Validate(); err != nil {
		return errors.Wrap(err, "matching")
	}
	if err := c.MergingConfig().Validate(); err != nil {
		return errors.Wrap(err, "merging")
	}
	return nil
}

// MatchingConfig builds the duplicate finder configuration
func (c *Config) MatchingConfig() matching.Config {
	cfg := matching.DefaultConfig()
	cfg.TitleWeight = c.Matching.TitleWeight
	cfg.DateWeight = c.Matching.DateWeight
	cfg.VenueWeight = c.Matching.VenueWeight
	cfg.OverallThreshold = c.Matching.Threshold
	cfg.NearWindow = c.Matching.NearWindow
	cfg.FarWindow = c.Matching.FarWindow
	cfg.TokenFuzzThreshold = c.Matching.TokenFuzzThreshold
	if c.Matching.Workers > 0 {
		cfg.Workers = c.Matching.Workers
	}
	cfg.WordLists.MarketingTerms = append(cfg.WordLists.MarketingTerms, lower(c.Matching.ExtraMarketingTerms)...)
	cfg.WordLists.GeoSuffixes = append(cfg.WordLists.GeoSuffixes, lower(c.Matching.ExtraGeoSuffixes)...)
	return cfg
}

// MergingConfig builds the merge policy configuration
func (c *Config) MergingConfig() merging.Config {
	priority := make([]models.Source, len(c.Merging.SourcePriority))
	for i, s := range c.Merging.SourcePriority {
		priority[i] = models.Source(strings.TrimSpace(s))
	}
	return merging.Config{
		SourcePriority:        priority,
		NoDescriptionSentinel: c.Merging.NoDescriptionSentinel,
		AddressPlaceholders:   c.Merging.AddressPlaceholders,
		PriceDetailsSeparator: c.Merging.PriceDetailsSeparator,
	}
}

// BatchConfig builds the batch processor configuration
func (c *Config) BatchConfig() processor.Config {
	return processor.Config{
		MaxBatchSize:    c.Batch.MaxBatchSize,
		FlushTimeout:    c.Batch.FlushTimeout,
		QueueSize:       c.Batch.QueueSize,
		TrackerCapacity: c.Batch.TrackerCapacity,
	}
}

// ConsumerConfig builds the Kafka consumer configuration
func (c *Config) ConsumerConfig() kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		Brokers:       c.Kafka.Brokers,
		Topic:         c.Kafka.InputTopic,
		ConsumerGroup: c.Kafka.ConsumerGroup,
	}
}

// ProducerConfig builds the Kafka producer configuration
func (c *Config) ProducerConfig() kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:      c.Kafka.Brokers,
		Topic:        c.Kafka.OutputTopic,
		BatchSize:    c.Kafka.BatchSize,
		BatchTimeout: c.Kafka.BatchTimeout,
		RequiredAcks: c.Kafka.RequiredAcks,
		Compression:  c.Kafka.Compression,
	}
}

// ServerConfig builds the ops server configuration
func (c *Config) ServerConfig() routes.ServerConfig {
	return routes.ServerConfig{
		ServiceName:       c.App.Name,
		Port:              c.HTTP.Port,
		ReadTimeout:       c.HTTP.ReadTimeout,
		WriteTimeout:      c.HTTP.WriteTimeout,
		IdleTimeout:       c.HTTP.IdleTimeout,
		ReadHeaderTimeout: c.HTTP.ReadHeaderTimeout,
		MaxHeaderBytes:    c.HTTP.MaxHeaderBytes,
	}
}

// TracingConfig builds the tracer provider configuration
func (c *Config) TracingConfig() tracing.Config {
	return tracing.Config{
		ServiceName:  c.App.Name,
		Exporter:     c.Tracing.Exporter,
		OTLPEndpoint: c.Tracing.OTLPEndpoint,
		OTLPProtocol: c.Tracing.OTLPProtocol,
		Insecure:     c.Tracing.Insecure,
		Timeout:      c.Tracing.Timeout,
		SampleRatio:  c.Tracing.SampleRatio,
	}
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// String summarises the effective configuration for startup logs
func (c *Config) String() string {
	return fmt.Sprintf("app=%s version=%s brokers=%v in=%s out=%s threshold=%.2f batch=%d/%s",
		c.App.Name, c.App.Version, c.Kafka.Brokers, c.Kafka.InputTopic, c.Kafka.OutputTopic,
		c.Matching.Threshold, c.Batch.MaxBatchSize, c.Batch.FlushTimeout)
}
