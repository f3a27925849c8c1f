package config

import (
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Telegram     TelegramConfig     `yaml:"telegram" validate:"required"`
	Poller       PollerConfig       `yaml:"poller"`
	Availability AvailabilityConfig `yaml:"availability"`
	Notifier     NotifierConfig     `yaml:"notifier"`
	HTTP         HTTPConfig         `yaml:"http"`
	Logging      LoggingConfig      `yaml:"logging"`
	Journal      JournalConfig      `yaml:"journal"`
}

type TelegramConfig struct {
	Token string `yaml:"token" validate:"required"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `yaml:"poll_timeout"`
}

type PollerConfig struct {
	// Schedule is a 5-field cron expression. Empty means every 5 minutes.
	Schedule         string `yaml:"schedule"`
	Workers          int    `yaml:"workers" validate:"min=0"`
	LookupRatePerSec int    `yaml:"lookup_rate_per_sec" validate:"min=0"`
}

type AvailabilityConfig struct {
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	// Timeout is a Go duration string for a single lookup request.
	Timeout string `yaml:"timeout"`
}

// NotifierConfig controls the async delivery pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s").
type NotifierConfig struct {
	Workers       int    `yaml:"workers" validate:"min=0"`
	QueueSize     int    `yaml:"queue_size" validate:"min=0"`
	RatePerSec    int    `yaml:"rate_per_sec" validate:"min=0"`
	RetryMax      int    `yaml:"retry_max" validate:"min=0"`
	RetryBase     string `yaml:"retry_base"`
	RetryMaxDelay string `yaml:"retry_max_delay"`
}

// HTTPConfig controls the health/metrics listener. Empty addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level   string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Console bool   `yaml:"console"`
}

// JournalConfig controls the optional dispatch journal.
type JournalConfig struct {
	Driver string `yaml:"driver" validate:"omitempty,oneof=none sqlite"`
	Path   string `yaml:"path"`
}

var validate = validator.New()

// Validate checks field constraints plus duration syntax on every
// duration-typed string field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	durations := []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"availability.timeout", c.Availability.Timeout},
		{"notifier.retry_base", c.Notifier.RetryBase},
		{"notifier.retry_max_delay", c.Notifier.RetryMaxDelay},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}
	return nil
}
