package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingOption is wrapped by LoadConfig when a required option is absent.
var ErrMissingOption = errors.New("missing option")

// Config holds the complete relay configuration
type Config struct {
	Influx         InfluxConfig  `json:"influx" yaml:"influx"`
	Upload         UploadConfig  `json:"upload" yaml:"upload"`
	CircuitBreaker BreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	Source         SourceConfig  `json:"source" yaml:"source"`
	HTTP           HTTPConfig    `json:"http" yaml:"http"`
	Log            LogConfig     `json:"log" yaml:"log"`
}

// InfluxConfig holds the server, credential and encoding settings
type InfluxConfig struct {
	ServerURL string `json:"server_url" yaml:"server_url"`
	Host      string `json:"host" yaml:"host"`
	Port      int    `json:"port" yaml:"port"`

	// Database is the v1 database, or the bucket in token mode.
	Database string `json:"database" yaml:"database"`
	Org      string `json:"org" yaml:"org"`
	Token    string `json:"token" yaml:"token"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	// Administrative credentials used only to create the database or bucket.
	DBAdminUsername string `json:"dbadmin_username" yaml:"dbadmin_username"`
	DBAdminPassword string `json:"dbadmin_password" yaml:"dbadmin_password"`
	AdminToken      string `json:"admin_token" yaml:"admin_token"`
	CreateDatabase  bool   `json:"create_database" yaml:"create_database"`

	Tags        string `json:"tags" yaml:"tags"`
	TagBinding  bool   `json:"tag_binding" yaml:"tag_binding"`
	Measurement string `json:"measurement" yaml:"measurement"`
	LineFormat  string `json:"line_format" yaml:"line_format"`

	Inputs           map[string]InputConfig `json:"inputs" yaml:"inputs"`
	ObsToUpload      string                 `json:"obs_to_upload" yaml:"obs_to_upload"`
	AppendUnitsLabel bool                   `json:"append_units_label" yaml:"append_units_label"`
	UnitSystem       string                 `json:"unit_system" yaml:"unit_system"`
	AugmentRecord    bool                   `json:"augment_record" yaml:"augment_record"`
	Binding          string                 `json:"binding" yaml:"binding"`
	SkipUpload       bool                   `json:"skip_upload" yaml:"skip_upload"`

	TLS TLSConfig `json:"tls" yaml:"tls"`
}

// InputConfig overrides how one observation is uploaded
type InputConfig struct {
	Name   string `json:"name" yaml:"name"`
	Format string `json:"format" yaml:"format"`
	Units  string `json:"units" yaml:"units"`
}

// UploadConfig holds the delivery policy. Durations are in seconds.
type UploadConfig struct {
	PostInterval int `json:"post_interval" yaml:"post_interval"`
	// MaxBacklog bounds the records waiting for upload. 0 means unlimited,
	// not "newest record only"; use 1 to always post just the latest.
	MaxBacklog int  `json:"max_backlog" yaml:"max_backlog"`
	Stale      int  `json:"stale" yaml:"stale"`
	MaxTries   int  `json:"max_tries" yaml:"max_tries"`
	RetryWait  int  `json:"retry_wait" yaml:"retry_wait"`
	Timeout    int  `json:"timeout" yaml:"timeout"`
	LogSuccess bool `json:"log_success" yaml:"log_success"`
	LogFailure bool `json:"log_failure" yaml:"log_failure"`
}

// BreakerConfig holds circuit breaker settings
type BreakerConfig struct {
	Enabled         bool `json:"enabled" yaml:"enabled"`
	MaxFailures     int  `json:"max_failures" yaml:"max_failures"`
	TimeoutSeconds  int  `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRequests     int  `json:"max_requests" yaml:"max_requests"`
	IntervalSeconds int  `json:"interval_seconds" yaml:"interval_seconds"`
}

// SourceConfig holds the record sources
type SourceConfig struct {
	MQTT MQTTConfig `json:"mqtt" yaml:"mqtt"`
}

// MQTTConfig holds the MQTT subscription the station publishes records to
type MQTTConfig struct {
	Enabled      bool      `json:"enabled" yaml:"enabled"`
	Broker       string    `json:"broker" yaml:"broker"`
	ClientID     string    `json:"client_id" yaml:"client_id"`
	Username     string    `json:"username" yaml:"username"`
	Password     string    `json:"password" yaml:"password"`
	LoopTopic    string    `json:"loop_topic" yaml:"loop_topic"`
	ArchiveTopic string    `json:"archive_topic" yaml:"archive_topic"`
	QoS          int       `json:"qos" yaml:"qos"`
	TLS          TLSConfig `json:"tls" yaml:"tls"`
}

// HTTPConfig holds the ingest, status and metrics server configuration
type HTTPConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Address     string `json:"address" yaml:"address"`
	Ingest      bool   `json:"ingest" yaml:"ingest"`
	MetricsPath string `json:"metrics_path" yaml:"metrics_path"`
	BasicAuth   bool   `json:"basic_auth" yaml:"basic_auth"`
	Username    string `json:"username,omitempty" yaml:"username,omitempty"`
	Password    string `json:"password,omitempty" yaml:"password,omitempty"`
}

// TLSConfig holds TLS/SSL configuration
type TLSConfig struct {
	Enable             bool   `json:"enable" yaml:"enable"`
	CertFile           string `json:"cert_file" yaml:"cert_file"`
	KeyFile            string `json:"key_file" yaml:"key_file"`
	CAFile             string `json:"ca_file" yaml:"ca_file"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `json:"level" yaml:"level"`             // debug, info, warn, error
	Encoding   string `json:"encoding" yaml:"encoding"`       // json or console
	OutputPath string `json:"output_path" yaml:"output_path"` // file path or "stdout"
}

// Environment variables that override secrets from the file.
const (
	EnvToken        = "INFLUXRELAY_TOKEN"
	EnvPassword     = "INFLUXRELAY_PASSWORD"
	EnvMQTTPassword = "INFLUXRELAY_MQTT_PASSWORD"
)

// Default returns a configuration with every default applied. Files are
// decoded on top of it, so options absent from the file keep these values.
func Default() Config {
	return Config{
		Influx: InfluxConfig{
			Host:             "localhost",
			Port:             8086,
			CreateDatabase:   true,
			Measurement:      "record",
			LineFormat:       "single-line",
			ObsToUpload:      "all",
			AppendUnitsLabel: true,
			AugmentRecord:    true,
			Binding:          "archive",
		},
		Upload: UploadConfig{
			MaxTries:   3,
			RetryWait:  5,
			Timeout:    60,
			LogSuccess: true,
			LogFailure: true,
		},
		CircuitBreaker: BreakerConfig{
			MaxFailures:     5,
			TimeoutSeconds:  60,
			MaxRequests:     2,
			IntervalSeconds: 60,
		},
		Source: SourceConfig{
			MQTT: MQTTConfig{
				LoopTopic:    "weather/loop",
				ArchiveTopic: "weather/archive",
			},
		},
		HTTP: HTTPConfig{
			Address:     ":8095",
			Ingest:      true,
			MetricsPath: "/metrics",
		},
		Log: LogConfig{
			Level:      "info",
			Encoding:   "json",
			OutputPath: "stdout",
		},
	}
}

// LoadConfig loads and validates the configuration from a JSON or YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes, completes and validates configuration data. ext selects
// the decoder: ".yaml" and ".yml" use YAML, anything else JSON.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := Default()

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	setDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Influx.Token = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.Influx.Password = v
	}
	if v := os.Getenv(EnvMQTTPassword); v != "" {
		cfg.Source.MQTT.Password = v
	}
}

// setDefaults fills options derived from other options
func setDefaults(cfg *Config) {
	if cfg.Influx.ServerURL == "" {
		host := cfg.Influx.Host
		if host == "" {
			host = "localhost"
		}
		port := cfg.Influx.Port
		if port == 0 {
			port = 8086
		}
		cfg.Influx.ServerURL = fmt.Sprintf("http://%s:%d", host, port)
	}
	cfg.Influx.ServerURL = strings.TrimRight(cfg.Influx.ServerURL, "/")

	if cfg.Influx.Measurement == "" {
		cfg.Influx.Measurement = "record"
	}
	if cfg.Influx.LineFormat == "" {
		cfg.Influx.LineFormat = "single-line"
	}
	if cfg.Influx.ObsToUpload == "" {
		cfg.Influx.ObsToUpload = "all"
	}
	if cfg.Influx.Binding == "" {
		cfg.Influx.Binding = "archive"
	}
	cfg.Influx.ObsToUpload = strings.ToLower(cfg.Influx.ObsToUpload)
	cfg.Influx.Binding = strings.ToLower(cfg.Influx.Binding)

	if cfg.Upload.MaxTries == 0 {
		cfg.Upload.MaxTries = 3
	}

	if cfg.HTTP.Enabled && cfg.HTTP.MetricsPath == "" {
		cfg.HTTP.MetricsPath = "/metrics"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Encoding == "" {
		cfg.Log.Encoding = "json"
	}
	if cfg.Log.OutputPath == "" {
		cfg.Log.OutputPath = "stdout"
	}
}

// validateConfig performs configuration validation
func validateConfig(cfg *Config) error {
	in := cfg.Influx
	if in.Database == "" {
		return fmt.Errorf("%w: database", ErrMissingOption)
	}
	if in.TokenMode() && in.Org == "" {
		return fmt.Errorf("%w: org is required with token authentication", ErrMissingOption)
	}
	if !isValidLineFormat(in.LineFormat) {
		return fmt.Errorf("invalid line format: %s", in.LineFormat)
	}
	switch in.ObsToUpload {
	case "all", "most", "none":
	default:
		return fmt.Errorf("invalid obs_to_upload: %s", in.ObsToUpload)
	}
	if in.ObsToUpload == "none" && len(in.Inputs) == 0 {
		return fmt.Errorf("obs_to_upload none requires at least one input")
	}
	switch in.Binding {
	case "loop", "archive", "both":
	default:
		return fmt.Errorf("invalid binding: %s", in.Binding)
	}
	if in.UnitSystem != "" && !isValidUnitSystem(in.UnitSystem) {
		return fmt.Errorf("invalid unit system: %s", in.UnitSystem)
	}

	up := cfg.Upload
	if up.MaxTries < 1 {
		return fmt.Errorf("max tries must be at least 1")
	}
	if up.PostInterval < 0 || up.MaxBacklog < 0 || up.Stale < 0 || up.RetryWait < 0 || up.Timeout < 0 {
		return fmt.Errorf("upload durations and limits must not be negative")
	}

	if cfg.CircuitBreaker.Enabled && cfg.CircuitBreaker.MaxFailures < 1 {
		return fmt.Errorf("circuit breaker max failures must be at least 1")
	}

	mq := cfg.Source.MQTT
	if mq.Enabled {
		if mq.Broker == "" {
			return fmt.Errorf("%w: mqtt broker address is required when the mqtt source is enabled", ErrMissingOption)
		}
		if mq.LoopTopic == "" && mq.ArchiveTopic == "" {
			return fmt.Errorf("%w: at least one mqtt topic is required", ErrMissingOption)
		}
		if mq.QoS < 0 || mq.QoS > 2 {
			return fmt.Errorf("invalid mqtt qos: %d", mq.QoS)
		}
	}

	if cfg.HTTP.Enabled {
		if cfg.HTTP.Address == "" {
			return fmt.Errorf("http address is required when the http server is enabled")
		}
		if cfg.HTTP.BasicAuth && (cfg.HTTP.Username == "" || cfg.HTTP.Password == "") {
			return fmt.Errorf("username and password are required when basic auth is enabled")
		}
	}

	if cfg.Log.Level != "" && !isValidLogLevel(cfg.Log.Level) {
		return fmt.Errorf("invalid log level: %s", cfg.Log.Level)
	}
	if cfg.Log.Encoding != "" && !isValidLogEncoding(cfg.Log.Encoding) {
		return fmt.Errorf("invalid log encoding: %s", cfg.Log.Encoding)
	}

	return nil
}

func isValidLineFormat(format string) bool {
	switch strings.ToLower(format) {
	case "single-line", "multi-line", "multi-line-dotted":
		return true
	default:
		return false
	}
}

func isValidUnitSystem(system string) bool {
	switch strings.ToUpper(system) {
	case "US", "METRIC", "METRICWX":
		return true
	default:
		return false
	}
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// isValidLogEncoding checks if the log encoding is valid
func isValidLogEncoding(encoding string) bool {
	switch encoding {
	case "json", "console":
		return true
	default:
		return false
	}
}

// TokenMode reports whether token (v2) authentication is configured.
func (c *InfluxConfig) TokenMode() bool {
	return c.Token != ""
}

// ToDuration converts time-based configurations to time.Duration
func (c *BreakerConfig) ToDuration() (timeout, interval time.Duration) {
	return time.Duration(c.TimeoutSeconds) * time.Second,
		time.Duration(c.IntervalSeconds) * time.Second
}

// Durations converts the upload policy durations to time.Duration
func (c *UploadConfig) Durations() (postInterval, stale, retryWait, timeout time.Duration) {
	return time.Duration(c.PostInterval) * time.Second,
		time.Duration(c.Stale) * time.Second,
		time.Duration(c.RetryWait) * time.Second,
		time.Duration(c.Timeout) * time.Second
}
