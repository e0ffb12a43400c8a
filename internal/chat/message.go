package chat

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyMessage is returned when a message has neither text nor a file.
var ErrEmptyMessage = errors.New("cannot send an empty message, specify text or file")

// Message is a chat message with optional attached content. At most one
// content source is used, in the order Buffer, FilePath, FileURL.
type Message struct {
	// Text is optional when a file is attached.
	Text string
	// Buffer is published as a file when non-nil, even if empty.
	Buffer []byte
	// BufferExtension is appended to the published buffer's name.
	BufferExtension string
	// FilePath is a local file to publish.
	FilePath string
	// FileURL must be reachable by the chat server. It is overwritten when
	// Buffer or FilePath is published.
	FileURL string
}

// TextMessage wraps a bare string.
func TextMessage(text string) Message {
	return Message{Text: text}
}

// Publisher turns local content into a fetchable URL.
type Publisher interface {
	PublishFile(path string) (string, error)
	PublishBuffer(data []byte, ext string) (string, error)
}

// Resolve publishes the message's content source, if any, and sets FileURL.
func Resolve(msg *Message, files Publisher) error {
	switch {
	case msg.Buffer != nil:
		u, err := files.PublishBuffer(msg.Buffer, msg.BufferExtension)
		if err != nil {
			return fmt.Errorf("publish buffer: %w", err)
		}
		msg.FileURL = u
	case msg.FilePath != "":
		u, err := files.PublishFile(msg.FilePath)
		if err != nil {
			return fmt.Errorf("publish file: %w", err)
		}
		msg.FileURL = u
	}
	return nil
}

// Dispatch resolves msg and hands it to sender. Empty messages fail before
// any network call.
func Dispatch(ctx context.Context, msg Message, files Publisher, sender Sender) error {
	if err := Resolve(&msg, files); err != nil {
		return err
	}

	switch {
	case msg.FileURL != "":
		if err := sender.Send(ctx, msg.Text, msg.FileURL); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	case msg.Text != "":
		if err := sender.Send(ctx, msg.Text, ""); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	default:
		return ErrEmptyMessage
	}
	return nil
}
