package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// IssueSeverity is the severity of a configuration finding.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is logged and the run continues.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one validation finding. Path is the dotted config key.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate performs static checks on c without touching the network.
func Validate(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, errorf("job", "job must not be empty; it labels metrics and log lines"))
	}
	if len(c.Sentinels) == 0 {
		issues = append(issues, warnf("sentinels", "no sentinel tokens configured; the built-in list is used"))
	}
	issues = append(issues, validateQueue(c.Queue)...)
	issues = append(issues, validateSink(c.Sink)...)
	issues = append(issues, validateLog(c.Log)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	return issues
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

func validateQueue(q Queue) []Issue {
	var issues []Issue

	switch q.Kind {
	case QueueSQS:
		if strings.TrimSpace(q.URL) == "" {
			issues = append(issues, errorf("queue.url", "sqs source requires a queue URL"))
		}
		if q.MaxMessages < 1 || q.MaxMessages > 10 {
			issues = append(issues, errorf("queue.max_messages", "must be between 1 and 10, got %d", q.MaxMessages))
		}
		if q.VisibilityTimeout < 0 || q.VisibilityTimeout > 43200 {
			issues = append(issues, errorf("queue.visibility_timeout", "must be between 0 and 43200 seconds, got %d", q.VisibilityTimeout))
		}
		if q.WaitTime < 0 || q.WaitTime > 20 {
			issues = append(issues, errorf("queue.wait_time", "must be between 0 and 20 seconds, got %d", q.WaitTime))
		}
		if q.ReceiveTimeout <= 0 {
			issues = append(issues, errorf("queue.receive_timeout", "must be positive"))
		} else if q.ReceiveTimeout.Seconds() <= float64(q.WaitTime) {
			issues = append(issues, warnf("queue.receive_timeout",
				"%s does not exceed wait_time %ds; long polls will be cut short", q.ReceiveTimeout, q.WaitTime))
		}
	case QueueFile:
		if strings.TrimSpace(q.FilePath) == "" {
			issues = append(issues, errorf("queue.file_path", "file source requires a path"))
		}
	case "":
		issues = append(issues, errorf("queue.kind", "queue.kind must not be empty"))
	default:
		issues = append(issues, errorf("queue.kind", "unknown queue kind %q; want %s or %s", q.Kind, QueueSQS, QueueFile))
	}
	return issues
}

func validateSink(s Sink) []Issue {
	var issues []Issue

	if s.DSN == "" {
		if strings.TrimSpace(s.Host) == "" {
			issues = append(issues, errorf("sink.host", "host is required when sink.dsn is empty"))
		}
		if s.Port < 1 || s.Port > 65535 {
			issues = append(issues, errorf("sink.port", "must be between 1 and 65535, got %d", s.Port))
		}
		if strings.TrimSpace(s.Database) == "" {
			issues = append(issues, errorf("sink.database", "database is required when sink.dsn is empty"))
		}
	}

	if !validName(s.Table) {
		issues = append(issues, errorf("sink.table", "invalid table name %q", s.Table))
	}
	if !validName(s.StagingTable) || strings.Contains(s.StagingTable, ".") {
		issues = append(issues, errorf("sink.staging_table", "invalid staging table name %q; temporary tables cannot be schema qualified", s.StagingTable))
	}
	if s.Table != "" && s.Table == s.StagingTable {
		issues = append(issues, errorf("sink.staging_table", "must differ from sink.table"))
	}

	switch s.InsertMode {
	case "copy", "batch":
	default:
		issues = append(issues, errorf("sink.insert_mode", "unknown insert mode %q; want copy or batch", s.InsertMode))
	}

	if s.EnsureTable {
		issues = append(issues, warnf("sink.ensure_table", "table bootstrap is meant for development databases"))
	}
	if s.PingTimeout < 0 {
		issues = append(issues, errorf("sink.ping_timeout", "must not be negative"))
	}
	return issues
}

func validateLog(l Log) []Issue {
	var issues []Issue

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		issues = append(issues, errorf("log.level", "unknown level %q", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "console", "json":
	default:
		issues = append(issues, errorf("log.format", "unknown format %q; want console or json", l.Format))
	}
	if l.File != "" && l.MaxSizeMB <= 0 {
		issues = append(issues, warnf("log.max_size_mb", "non-positive size; lumberjack falls back to 100MB"))
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue

	switch m.Backend {
	case MetricsNone, "":
	case MetricsPushgateway:
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, errorf("metrics.pushgateway_url", "pushgateway backend requires a URL"))
		}
	case MetricsDatadog:
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, errorf("metrics.datadog_addr", "datadog backend requires an agent address"))
		}
	default:
		issues = append(issues, errorf("metrics.backend", "unknown metrics backend %q", m.Backend))
	}
	return issues
}

// validName accepts optionally schema-qualified names with no empty part.
func validName(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	for _, p := range strings.Split(name, ".") {
		if strings.TrimSpace(p) == "" {
			return false
		}
	}
	return true
}

func errorf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

func warnf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)}
}
