// Package app wires configuration into a ready to use file service.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sciwi/internal/chat"
	"sciwi/internal/config"
	"sciwi/internal/hosting"
	"sciwi/internal/logging"
)

// breakerCooldown is how long an open webhook circuit waits before a probe.
const breakerCooldown = 30 * time.Second

// ErrNoIncomingURL is returned when sending to the default chat without
// SCIWI_SYNOLOGY_CHAT_INCOMING_URL.
var ErrNoIncomingURL = errors.New("no incoming webhook configured, set SCIWI_SYNOLOGY_CHAT_INCOMING_URL")

// App holds the services built from one Config.
type App struct {
	Config *config.Config
	Files  *hosting.Service
	// Chat is nil when no default incoming URL is configured.
	Chat *chat.FileService
	// Router is nil when no channels are configured.
	Router *chat.Router

	logger *logging.Logger
}

// Build creates the hosting service and the chat senders configured in cfg.
// Nothing is started until the first publish.
func Build(cfg *config.Config, logger *logging.Logger, opts ...hosting.Option) (*App, error) {
	opts = append([]hosting.Option{hosting.WithLogger(logger)}, opts...)
	files := hosting.New(hosting.HostConfig{
		Port:    cfg.Port,
		BaseURL: cfg.BaseURL,
		Verbose: cfg.Verbose,
	}, opts...)

	a := &App{Config: cfg, Files: files, logger: logger}

	if cfg.IncomingURL != "" {
		client, err := a.newClient(cfg.IncomingURL, "default")
		if err != nil {
			return nil, err
		}
		a.Chat = chat.NewFileService(files, client)
	}

	if len(cfg.Channels) > 0 {
		channels := make([]chat.Channel, 0, len(cfg.Channels))
		for _, ch := range cfg.Channels {
			client, err := a.newClient(ch.IncomingURL, ch.Name)
			if err != nil {
				return nil, fmt.Errorf("channel %s: %w", ch.Name, err)
			}
			channels = append(channels, chat.Channel{Name: ch.Name, Sender: client})
		}
		a.Router = chat.NewRouter(files, channels...)
	}

	return a, nil
}

func (a *App) newClient(incomingURL, name string) (*chat.Client, error) {
	logger := a.logger.With(map[string]any{"channel": name})
	opts := []chat.ClientOption{chat.WithClientLogger(logger)}
	if a.Config.WebhookTimeout > 0 {
		opts = append(opts, chat.WithTimeout(a.Config.WebhookTimeout))
	}
	if a.Config.WebhookMaxFailures > 0 {
		cb := chat.NewCircuitBreaker(uint32(a.Config.WebhookMaxFailures), breakerCooldown, logger)
		opts = append(opts, chat.WithCircuitBreaker(cb))
	}
	return chat.NewClient(incomingURL, opts...)
}

// Send delivers msg to the named channel, or to the default chat when
// channel is empty.
func (a *App) Send(ctx context.Context, channel string, msg chat.Message) error {
	if channel != "" {
		if a.Router == nil {
			return fmt.Errorf("%w: %q (no channels configured, set SCIWI_CHANNELS)", chat.ErrUnknownChannel, channel)
		}
		return a.Router.Send(ctx, channel, msg)
	}
	if a.Chat == nil {
		return ErrNoIncomingURL
	}
	return a.Chat.Send(ctx, msg)
}

// Close stops the hosting service and removes every published file.
func (a *App) Close(ctx context.Context) error {
	return a.Files.Stop(ctx)
}
