package gateway

import (
	"context"
	"time"

	"github.com/vantari/taskweave/internal/task"
)

// Adapter defines the interface for platform adapters.
//
// Send returns a platform message reference; adapters that support
// in-place edits accept it in Update so progress messages can be
// rewritten instead of stacking up in the channel.
type Adapter interface {
	Platform() string
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg *OutboundMessage) (string, error)
	Update(ctx context.Context, channelID, ref, text string) error
	OnMessage(handler MessageHandler)
	Close() error
}

// MessageHandler processes inbound messages from any platform.
type MessageHandler func(msg *InboundMessage)

// InboundMessage is a normalized message from any platform. EventID is
// the platform's unique id for the event and keys deduplication.
type InboundMessage struct {
	Platform  string         `json:"platform"`
	EventID   string         `json:"event_id"`
	ChannelID string         `json:"channel_id"`
	ThreadID  string         `json:"thread_id,omitempty"`
	UserID    string         `json:"user_id"`
	UserName  string         `json:"user_name"`
	Text      string         `json:"text"`
	Image     *task.ImageRef `json:"image,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// OutboundMessage is a message sent to a specific platform channel.
type OutboundMessage struct {
	Platform   string      `json:"platform"`
	ChannelID  string      `json:"channel_id"`
	ThreadID   string      `json:"thread_id,omitempty"`
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Final      bool        `json:"final,omitempty"`
}

// Attachment is a binary payload delivered alongside a message,
// typically a generated image.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}
