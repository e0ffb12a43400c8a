package chat

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownChannel is returned by Router.Send for unconfigured channel names.
var ErrUnknownChannel = errors.New("unknown channel")

// FileService sends messages with local files to a single chat.
type FileService struct {
	files  Publisher
	sender Sender
}

// NewFileService combines a publisher and a sender.
func NewFileService(files Publisher, sender Sender) *FileService {
	return &FileService{files: files, sender: sender}
}

// Send publishes the message's content, if any, and delivers it.
func (s *FileService) Send(ctx context.Context, msg Message) error {
	return Dispatch(ctx, msg, s.files, s.sender)
}

// SendText delivers a plain text message.
func (s *FileService) SendText(ctx context.Context, text string) error {
	return s.Send(ctx, TextMessage(text))
}

// Channel is a named chat destination. The name is only used for lookup.
type Channel struct {
	Name   string
	Sender Sender
}

// Router sends messages to one of several named channels sharing one
// publisher.
type Router struct {
	files    Publisher
	channels []Channel
}

// NewRouter creates a Router. Later channels with a duplicate name are
// never selected.
func NewRouter(files Publisher, channels ...Channel) *Router {
	return &Router{files: files, channels: channels}
}

// Channels returns the configured channel names in order.
func (r *Router) Channels() []string {
	names := make([]string, 0, len(r.channels))
	for _, ch := range r.channels {
		names = append(names, ch.Name)
	}
	return names
}

// Send delivers msg to the named channel. Unknown names fail before any
// content is published.
func (r *Router) Send(ctx context.Context, channel string, msg Message) error {
	for _, ch := range r.channels {
		if ch.Name == channel {
			return Dispatch(ctx, msg, r.files, ch.Sender)
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
}
