// Package config loads loginetl settings from an optional config file, a
// .env file and LOGINETL_* environment variables, in increasing order of
// precedence.
//
// Keys are dotted paths (sink.password); the matching environment variable
// upper-cases the path, replaces dots with underscores and adds the prefix
// (LOGINETL_SINK_PASSWORD).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"loginetl/internal/etlerr"
	"loginetl/internal/queue/sqs"
	"loginetl/internal/transformer/builtin"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LOGINETL"

// Queue kinds.
const (
	QueueSQS  = "sqs"
	QueueFile = "file"
)

// Metrics backends.
const (
	MetricsNone        = "none"
	MetricsPushgateway = "pushgateway"
	MetricsDatadog     = "datadog"
)

// Config is the full run configuration.
type Config struct {
	Job       string   `mapstructure:"job"`
	Sentinels []string `mapstructure:"sentinels"`
	Queue     Queue    `mapstructure:"queue"`
	Sink      Sink     `mapstructure:"sink"`
	Log       Log      `mapstructure:"log"`
	Metrics   Metrics  `mapstructure:"metrics"`
}

// Queue selects and configures the message source.
type Queue struct {
	Kind              string        `mapstructure:"kind"`
	URL               string        `mapstructure:"url"`
	Region            string        `mapstructure:"region"`
	Endpoint          string        `mapstructure:"endpoint"`
	MaxMessages       int32         `mapstructure:"max_messages"`
	VisibilityTimeout int32         `mapstructure:"visibility_timeout"`
	WaitTime          int32         `mapstructure:"wait_time"`
	ReceiveTimeout    time.Duration `mapstructure:"receive_timeout"`
	// FilePath is read by the file source instead of polling SQS.
	FilePath string `mapstructure:"file_path"`
}

// Sink configures the Postgres connection and target relations. DSN, when
// set, wins over the individual connection fields.
type Sink struct {
	DSN          string        `mapstructure:"dsn"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	Database     string        `mapstructure:"database"`
	SSLMode      string        `mapstructure:"sslmode"`
	Table        string        `mapstructure:"table"`
	StagingTable string        `mapstructure:"staging_table"`
	InsertMode   string        `mapstructure:"insert_mode"`
	EnsureTable  bool          `mapstructure:"ensure_table"`
	PingTimeout  time.Duration `mapstructure:"ping_timeout"`
}

// Log configures the process logger.
type Log struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	Backend        string `mapstructure:"backend"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	DatadogAddr    string `mapstructure:"datadog_addr"`
}

// defaults derives the queue receive settings from sqs.DefaultConfig and the
// sentinel list from builtin.DefaultSentinels.
func defaults() map[string]any {
	q := sqs.DefaultConfig()
	return map[string]any{
		"job":       "loginetl",
		"sentinels": append([]string(nil), builtin.DefaultSentinels...),

		"queue.kind":               QueueSQS,
		"queue.url":                "http://localhost:4566/000000000000/login-queue",
		"queue.region":             q.Region,
		"queue.endpoint":           q.Endpoint,
		"queue.max_messages":       q.MaxMessages,
		"queue.visibility_timeout": q.VisibilityTimeout,
		"queue.wait_time":          q.WaitTime,
		"queue.receive_timeout":    q.ReceiveTimeout,
		"queue.file_path":          "",

		"sink.dsn":           "",
		"sink.host":          "localhost",
		"sink.port":          5432,
		"sink.user":          "postgres",
		"sink.password":      "postgres",
		"sink.database":      "postgres",
		"sink.sslmode":       "disable",
		"sink.table":         "user_logins",
		"sink.staging_table": "stg",
		"sink.insert_mode":   "copy",
		"sink.ensure_table":  false,
		"sink.ping_timeout":  "5s",

		"log.level":        "info",
		"log.format":       "console",
		"log.file":         "logs/loginetl.log",
		"log.max_size_mb":  50,
		"log.max_backups":  5,
		"log.max_age_days": 30,

		"metrics.backend":         MetricsNone,
		"metrics.pushgateway_url": "",
		"metrics.datadog_addr":    "",
	}
}

// loadDotenv is swapped in tests.
var loadDotenv = func() error { return godotenv.Load() }

// Load resolves the configuration. path may be empty; a missing .env file is
// not an error. Failures match etlerr.ConfigError.
func Load(path string) (Config, error) {
	const op = "config.Load"

	if err := loadDotenv(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, etlerr.Wrap(etlerr.KindConfig, op, fmt.Errorf("read .env: %w", err))
	}

	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, etlerr.Wrap(etlerr.KindConfig, op, fmt.Errorf("read %s: %w", path, err))
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, etlerr.Wrap(etlerr.KindConfig, op, fmt.Errorf("decode: %w", err))
	}
	return c, nil
}

// PostgresDSN returns Sink.DSN or a postgres:// URL built from the
// connection fields.
func (s Sink) PostgresDSN() string {
	if s.DSN != "" {
		return s.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(s.User, s.Password),
		Host:   net.JoinHostPort(s.Host, strconv.Itoa(s.Port)),
		Path:   "/" + s.Database,
	}
	if s.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {s.SSLMode}}.Encode()
	}
	return u.String()
}
