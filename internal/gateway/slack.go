package gateway

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// SlackAdapter implements Adapter for Slack using Socket Mode.
type SlackAdapter struct {
	botToken string
	appToken string
	client   *slack.Client
	socket   *socketmode.Client
	handler  MessageHandler
	logger   *zap.Logger
}

// NewSlackAdapter creates a Slack gateway adapter.
// botToken is the Bot User OAuth Token (xoxb-...).
// appToken is the App-Level Token (xapp-...) for Socket Mode.
func NewSlackAdapter(botToken, appToken string, logger *zap.Logger) *SlackAdapter {
	client := slack.New(botToken,
		slack.OptionAppLevelToken(appToken),
	)

	socket := socketmode.New(client,
		socketmode.OptionLog(zap.NewStdLog(logger)),
	)

	return &SlackAdapter{
		botToken: botToken,
		appToken: appToken,
		client:   client,
		socket:   socket,
		logger:   logger,
	}
}

func (a *SlackAdapter) Platform() string { return "slack" }

func (a *SlackAdapter) OnMessage(h MessageHandler) { a.handler = h }

// Connect starts the Socket Mode event loop in a background goroutine.
func (a *SlackAdapter) Connect(ctx context.Context) error {
	go a.handleEvents(ctx)
	go func() {
		if err := a.socket.RunContext(ctx); err != nil {
			a.logger.Error("slack socket mode error", zap.Error(err))
		}
	}()
	a.logger.Info("slack adapter connected via socket mode")
	return nil
}

// handleEvents processes incoming Socket Mode events.
func (a *SlackAdapter) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.socket.Events:
			if !ok {
				return
			}
			a.processEvent(evt)
		}
	}
}

func (a *SlackAdapter) processEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		a.socket.Ack(*evt.Request)

		if eventsAPI.Type == slackevents.CallbackEvent {
			switch inner := eventsAPI.InnerEvent.Data.(type) {
			case *slackevents.AppMentionEvent:
				a.handleMention(inner)
			case *slackevents.MessageEvent:
				// Ignore bot messages to avoid loops
				if inner.BotID != "" || inner.SubType == "bot_message" {
					return
				}
				a.handleSlackMessage(inner)
			}
		}
	}
}

func (a *SlackAdapter) handleMention(ev *slackevents.AppMentionEvent) {
	if a.handler == nil {
		return
	}

	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}
	a.handler(&InboundMessage{
		Platform:  "slack",
		EventID:   fmt.Sprintf("%s:%s", ev.Channel, ev.TimeStamp),
		ChannelID: ev.Channel,
		ThreadID:  threadTS,
		UserID:    ev.User,
		UserName:  ev.User,
		Text:      ev.Text,
		Timestamp: time.Now(),
	})
}

func (a *SlackAdapter) handleSlackMessage(ev *slackevents.MessageEvent) {
	if a.handler == nil {
		return
	}

	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}
	a.handler(&InboundMessage{
		Platform:  "slack",
		EventID:   fmt.Sprintf("%s:%s", ev.Channel, ev.TimeStamp),
		ChannelID: ev.Channel,
		ThreadID:  threadTS,
		UserID:    ev.User,
		UserName:  ev.User,
		Text:      ev.Text,
		Image:     a.firstImage(ev.Files),
		Timestamp: time.Now(),
	})
}

// firstImage downloads the first image file shared with the message.
// Slack file URLs require bot auth, so the bytes are fetched here and
// carried inline instead of passing the private URL downstream.
func (a *SlackAdapter) firstImage(files []slackevents.File) *task.ImageRef {
	for _, f := range files {
		if len(f.Mimetype) < 6 || f.Mimetype[:6] != "image/" {
			continue
		}
		var buf bytes.Buffer
		if err := a.client.GetFile(f.URLPrivate, &buf); err != nil {
			a.logger.Warn("slack file download failed",
				zap.String("file", f.ID), zap.Error(err))
			return nil
		}
		return task.NewImageRef(buf.Bytes(), f.Mimetype)
	}
	return nil
}

// Send posts a message to a Slack channel, threading the reply and
// uploading any attachment as a file. Returns the message timestamp.
func (a *SlackAdapter) Send(ctx context.Context, msg *OutboundMessage) (string, error) {
	if msg.Attachment != nil {
		params := slack.UploadFileV2Parameters{
			Reader:          bytes.NewReader(msg.Attachment.Data),
			FileSize:        len(msg.Attachment.Data),
			Filename:        msg.Attachment.Filename,
			Title:           msg.Attachment.Filename,
			InitialComment:  msg.Text,
			Channel:         msg.ChannelID,
			ThreadTimestamp: msg.ThreadID,
		}
		if _, err := a.client.UploadFileV2Context(ctx, params); err != nil {
			a.logger.Error("slack upload failed",
				zap.String("channel", msg.ChannelID), zap.Error(err))
			return "", fmt.Errorf("slack upload: %w", err)
		}
		return "", nil
	}

	opts := []slack.MsgOption{
		slack.MsgOptionText(msg.Text, false),
	}
	if msg.ThreadID != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ThreadID))
	}

	_, ts, err := a.client.PostMessageContext(ctx, msg.ChannelID, opts...)
	if err != nil {
		a.logger.Error("slack send failed",
			zap.String("channel", msg.ChannelID), zap.Error(err))
		return "", fmt.Errorf("slack send: %w", err)
	}
	return ts, nil
}

// Update rewrites a previously posted message via chat.update.
func (a *SlackAdapter) Update(ctx context.Context, channelID, ref, text string) error {
	_, _, _, err := a.client.UpdateMessageContext(ctx, channelID, ref,
		slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack update: %w", err)
	}
	return nil
}

// Close is a no-op; the socket context cancellation handles shutdown.
func (a *SlackAdapter) Close() error {
	return nil
}
