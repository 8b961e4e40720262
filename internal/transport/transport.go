// Package transport describes the chat platform as seen by the bot: the
// inbound update shapes and the outbound operations.
package transport

import (
	"context"
)

// ChatID addresses a private chat or a channel.
type ChatID int64

// Button is an inline button. Data is returned in the callback.
type Button struct {
	Text string
	Data string
}

// Message is an outbound message. At most one of Keyboard, Inline and
// RemoveKeyboard is honoured, in that order of precedence.
type Message struct {
	Text string
	// Markdown enables the platform's legacy Markdown parse mode.
	Markdown bool
	// Photo, when set, sends a PNG/JPEG with Text as the caption.
	Photo []byte

	Keyboard       [][]string
	Inline         [][]Button
	RemoveKeyboard bool
	// RequestContact turns the single reply button into a share-contact button.
	RequestContact bool
}

// Bot is the outbound side of the chat platform.
type Bot interface {
	Send(ctx context.Context, chat ChatID, msg Message) error
	Edit(ctx context.Context, chat ChatID, messageID int64, msg Message) error
	AnswerCallback(ctx context.Context, callbackID string) error
	DownloadPhoto(ctx context.Context, fileID string) ([]byte, error)
}

// Update is one inbound event.
type Update struct {
	UserID   int64
	ChatID   ChatID
	Username string

	// Exactly one of the following groups is set.
	Command     string // without the leading slash
	CommandArgs []string
	Text        string
	Contact     string // phone number from a shared contact
	Callback    *Callback
	PhotoFileID string
}

// Callback is an inline button press.
type Callback struct {
	ID        string
	Data      string
	MessageID int64
}
