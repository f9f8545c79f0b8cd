package router

import (
	"context"
	"sync"

	"github.com/vantari/taskweave/internal/gateway"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// threadSink delivers one orchestration's output back to the thread it
// came from. Progress reuses a single message and rewrites it in place
// on platforms that support edits; results and the closing note are
// posted as new messages.
type threadSink struct {
	gw     *gateway.Gateway
	origin *gateway.InboundMessage
	logger *zap.Logger

	mu          sync.Mutex
	progressRef string
	texts       []string
}

func newThreadSink(gw *gateway.Gateway, origin *gateway.InboundMessage, logger *zap.Logger) *threadSink {
	return &threadSink{gw: gw, origin: origin, logger: logger}
}

func (s *threadSink) outbound(text string) *gateway.OutboundMessage {
	return &gateway.OutboundMessage{
		Platform:  s.origin.Platform,
		ChannelID: s.origin.ChannelID,
		ThreadID:  s.origin.ThreadID,
		Text:      text,
	}
}

// SendProgress posts the status line once, then keeps rewriting it.
func (s *threadSink) SendProgress(ctx context.Context, text string) error {
	s.mu.Lock()
	ref := s.progressRef
	s.mu.Unlock()

	if ref != "" {
		return s.gw.Update(ctx, s.origin.Platform, s.origin.ChannelID, ref, text)
	}

	newRef, err := s.gw.Send(ctx, s.outbound(text))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.progressRef = newRef
	s.mu.Unlock()
	return nil
}

// DeliverResult posts a completed task's payload to the thread.
func (s *threadSink) DeliverResult(ctx context.Context, result *task.Result) error {
	msg := s.outbound(result.Content)

	if result.Kind == task.ResultImage {
		caption := result.RevisedPrompt
		if caption == "" {
			caption = result.Content
		}
		msg.Text = caption
		if len(result.ImageData) > 0 {
			msg.Attachment = &gateway.Attachment{
				Filename: "generated" + extForMime(result.MimeType),
				MimeType: result.MimeType,
				Data:     result.ImageData,
			}
		} else if result.ImageURL != "" {
			msg.Text = caption + "\n" + result.ImageURL
		}
	}

	s.mu.Lock()
	if msg.Text != "" {
		s.texts = append(s.texts, msg.Text)
	}
	s.mu.Unlock()

	_, err := s.gw.Send(ctx, msg)
	return err
}

// Finish posts the closing notification as a final message.
func (s *threadSink) Finish(ctx context.Context, text string) error {
	msg := s.outbound(text)
	msg.Final = true
	_, err := s.gw.Send(ctx, msg)
	return err
}

// deliveredText returns the text of every delivered result, in order.
func (s *threadSink) deliveredText() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}

func extForMime(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
