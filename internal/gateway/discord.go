package gateway

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// DiscordAdapter implements Adapter for Discord using the bot gateway.
type DiscordAdapter struct {
	token   string
	session *discordgo.Session
	handler MessageHandler
	logger  *zap.Logger
}

// NewDiscordAdapter creates a Discord gateway adapter.
func NewDiscordAdapter(token string, logger *zap.Logger) *DiscordAdapter {
	return &DiscordAdapter{
		token:  token,
		logger: logger,
	}
}

func (a *DiscordAdapter) Platform() string { return "discord" }

func (a *DiscordAdapter) OnMessage(h MessageHandler) { a.handler = h }

// Connect opens the Discord gateway websocket.
func (a *DiscordAdapter) Connect(_ context.Context) error {
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	a.session = session

	a.session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages
	a.session.AddHandler(a.onMessageCreate)

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}

	guildCount := len(a.session.State.Guilds)
	if guildCount == 0 {
		a.logger.Warn("discord bot not added to any server — invite it first")
	}

	a.logger.Info("discord adapter connected",
		zap.String("user", a.session.State.User.Username),
		zap.Int("guilds", guildCount))
	return nil
}

// onMessageCreate handles incoming Discord messages.
func (a *DiscordAdapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore messages from the bot itself
	if m.Author.ID == s.State.User.ID {
		return
	}
	if a.handler == nil {
		return
	}

	a.handler(&InboundMessage{
		Platform:  "discord",
		EventID:   m.ID,
		ChannelID: m.ChannelID,
		ThreadID:  m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  m.Author.Username,
		Text:      m.Content,
		Image:     firstDiscordImage(m.Attachments),
		Timestamp: time.Now(),
	})
}

// firstDiscordImage picks the first image attachment. Discord CDN URLs
// are public, so the URL is passed through as-is.
func firstDiscordImage(attachments []*discordgo.MessageAttachment) *task.ImageRef {
	for _, att := range attachments {
		if strings.HasPrefix(att.ContentType, "image/") {
			return &task.ImageRef{
				URL:      att.URL,
				MimeType: att.ContentType,
			}
		}
	}
	return nil
}

// Send posts a message to a Discord channel and returns its message ID.
func (a *DiscordAdapter) Send(_ context.Context, msg *OutboundMessage) (string, error) {
	if msg.Attachment != nil {
		sent, err := a.session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
			Content: msg.Text,
			Files: []*discordgo.File{{
				Name:        msg.Attachment.Filename,
				ContentType: msg.Attachment.MimeType,
				Reader:      bytes.NewReader(msg.Attachment.Data),
			}},
		})
		if err != nil {
			return "", fmt.Errorf("discord send file: %w", err)
		}
		return sent.ID, nil
	}

	sent, err := a.session.ChannelMessageSend(msg.ChannelID, msg.Text)
	if err != nil {
		return "", fmt.Errorf("discord send: %w", err)
	}
	return sent.ID, nil
}

// Update edits a previously sent message in place.
func (a *DiscordAdapter) Update(_ context.Context, channelID, ref, text string) error {
	if _, err := a.session.ChannelMessageEdit(channelID, ref, text); err != nil {
		return fmt.Errorf("discord edit: %w", err)
	}
	return nil
}

// Close shuts down the Discord session.
func (a *DiscordAdapter) Close() error {
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}
