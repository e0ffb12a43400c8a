// Package config loads sciwi settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"sciwi/internal/netaddr"
)

// environment is the raw variable set as read from the process.
type environment struct {
	IncomingURL        string `env:"SCIWI_SYNOLOGY_CHAT_INCOMING_URL"`
	Channels           string `env:"SCIWI_CHANNELS"`
	Port               int    `env:"SCIWI_FILE_SERVER_PORT,default=8033"`
	BaseURL            string `env:"SCIWI_FILE_SERVER_BASE_URL"`
	Verbose            string `env:"SCIWI_VERBOSE,default=true"`
	LogLevel           string `env:"SCIWI_LOG_LEVEL,default=info"`
	LogFormat          string `env:"SCIWI_LOG_FORMAT,default=text"`
	LogOutput          string `env:"SCIWI_LOG_OUTPUT,default=stderr"`
	ShutdownTimeoutSec int    `env:"SCIWI_SHUTDOWN_TIMEOUT_SEC,default=5"`
	WebhookTimeoutSec  int    `env:"SCIWI_WEBHOOK_TIMEOUT_SEC,default=30"`
	WebhookMaxFailures int    `env:"SCIWI_WEBHOOK_MAX_FAILURES,default=0"`
}

// ChannelConfig is one named webhook destination.
type ChannelConfig struct {
	Name        string
	IncomingURL string
}

// Config is the resolved, validated configuration.
type Config struct {
	IncomingURL string
	Channels    []ChannelConfig

	Port    int
	BaseURL string
	Verbose bool

	LogLevel  string
	LogFormat string
	LogOutput string

	ShutdownTimeout    time.Duration
	WebhookTimeout     time.Duration
	WebhookMaxFailures int
}

// localAddress is swapped in tests.
var localAddress = netaddr.Default

// Load reads envFile, if it exists, without overriding variables that are
// already set, then resolves the configuration from the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnviron()
}

// FromEnviron resolves the configuration from the process environment.
func FromEnviron() (*Config, error) {
	var raw environment
	if _, err := env.UnmarshalFromEnviron(&raw); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return resolve(raw)
}

func resolve(raw environment) (*Config, error) {
	v := NewValidator()

	cfg := &Config{
		IncomingURL:        strings.TrimSpace(raw.IncomingURL),
		Port:               raw.Port,
		BaseURL:            strings.TrimSuffix(strings.TrimSpace(raw.BaseURL), "/"),
		LogLevel:           strings.ToLower(raw.LogLevel),
		LogFormat:          strings.ToLower(raw.LogFormat),
		LogOutput:          raw.LogOutput,
		ShutdownTimeout:    time.Duration(raw.ShutdownTimeoutSec) * time.Second,
		WebhookTimeout:     time.Duration(raw.WebhookTimeoutSec) * time.Second,
		WebhookMaxFailures: raw.WebhookMaxFailures,
	}

	verbose, err := strconv.ParseBool(strings.TrimSpace(raw.Verbose))
	if err != nil {
		v.AddError("SCIWI_VERBOSE", fmt.Sprintf("must be a boolean (got: %s)", raw.Verbose))
	}
	cfg.Verbose = verbose

	cfg.Channels = parseChannels(v, raw.Channels)

	v.ValidatePort("SCIWI_FILE_SERVER_PORT", cfg.Port)
	v.ValidateURL("SCIWI_FILE_SERVER_BASE_URL", cfg.BaseURL)
	v.ValidateWebhookURL("SCIWI_SYNOLOGY_CHAT_INCOMING_URL", cfg.IncomingURL)
	v.ValidateEnum("SCIWI_LOG_LEVEL", cfg.LogLevel, []string{"debug", "info", "warn", "error"})
	v.ValidateEnum("SCIWI_LOG_FORMAT", cfg.LogFormat, []string{"json", "text"})
	v.ValidateNonNegative("SCIWI_SHUTDOWN_TIMEOUT_SEC", raw.ShutdownTimeoutSec)
	v.ValidateNonNegative("SCIWI_WEBHOOK_TIMEOUT_SEC", raw.WebhookTimeoutSec)
	v.ValidateNonNegative("SCIWI_WEBHOOK_MAX_FAILURES", raw.WebhookMaxFailures)

	if err := v.Err(); err != nil {
		return nil, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://%s:%d", localAddress(), cfg.Port)
	}
	return cfg, nil
}

// parseChannels reads "name=url,name2=url2". URLs may contain '=' so only
// the first one separates name from URL.
func parseChannels(v *Validator, raw string) []ChannelConfig {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var out []ChannelConfig
	seen := make(map[string]bool)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, u, ok := strings.Cut(entry, "=")
		name, u = strings.TrimSpace(name), strings.TrimSpace(u)
		if !ok || name == "" || u == "" {
			v.AddError("SCIWI_CHANNELS", fmt.Sprintf("entry %q must be name=url", entry))
			continue
		}
		if seen[name] {
			v.AddError("SCIWI_CHANNELS", fmt.Sprintf("duplicate channel %q", name))
			continue
		}
		seen[name] = true
		v.ValidateWebhookURL("SCIWI_CHANNELS["+name+"]", u)
		out = append(out, ChannelConfig{Name: name, IncomingURL: u})
	}
	return out
}
