// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers a YAML file and GLUCOFEED_* env on top.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":17580".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite file holding readings and activity samples.
	DBPath string `koanf:"db_path"`

	// Timezone is the IANA zone used for dateString/sysTime.
	Timezone string `koanf:"timezone"`

	// CollectorDevice is reported as "device" on every feed record.
	CollectorDevice string `koanf:"collector_device"`

	// TaskerQueueSize bounds the in-memory tasker command queue.
	TaskerQueueSize int `koanf:"tasker_queue_size"`

	// TaskerWorkerCount sets the number of tasker delivery workers.
	TaskerWorkerCount int `koanf:"tasker_worker_count"`

	// TaskerWebhookURL receives delivered tasker commands; empty logs them instead.
	TaskerWebhookURL string `koanf:"tasker_webhook_url"`

	// TaskerWebhookTimeoutMS bounds one webhook delivery.
	TaskerWebhookTimeoutMS int `koanf:"tasker_webhook_timeout_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":17580",
		DBPath:                 "glucofeed.db",
		Timezone:               "UTC",
		CollectorDevice:        "xDrip-G6",
		TaskerQueueSize:        64,
		TaskerWorkerCount:      max(1, runtime.NumCPU()/4),
		TaskerWebhookTimeoutMS: 2000,
	}
}
