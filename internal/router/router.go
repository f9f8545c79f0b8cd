package router

import (
	"context"

	"github.com/vantari/taskweave/internal/dedupe"
	"github.com/vantari/taskweave/internal/gateway"
	"github.com/vantari/taskweave/internal/history"
	"github.com/vantari/taskweave/internal/orchestrator"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// MessageRouter turns inbound platform messages into orchestrations.
// The history store and deduper are optional; without them the router
// still works, with no thread memory and no duplicate suppression.
type MessageRouter struct {
	orch         *orchestrator.Orchestrator
	gw           *gateway.Gateway
	store        *history.Store
	deduper      *dedupe.Deduper
	historyLimit int
	logger       *zap.Logger
}

// New creates a new MessageRouter.
func New(orch *orchestrator.Orchestrator, gw *gateway.Gateway,
	store *history.Store, deduper *dedupe.Deduper,
	historyLimit int, logger *zap.Logger) *MessageRouter {
	return &MessageRouter{
		orch:         orch,
		gw:           gw,
		store:        store,
		deduper:      deduper,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Handle accepts an inbound message and runs the orchestration in the
// background so the platform event loop is never blocked.
// Signature matches gateway.MessageHandler.
func (mr *MessageRouter) Handle(msg *gateway.InboundMessage) {
	go mr.process(msg)
}

func (mr *MessageRouter) process(msg *gateway.InboundMessage) {
	ctx := context.Background()

	if msg.Text == "" && msg.Image == nil {
		return
	}

	// A Slack mention arrives as both an app_mention and a message
	// event; claiming the event id keeps one of them.
	if mr.deduper != nil && msg.EventID != "" {
		ok, err := mr.deduper.Claim(ctx, msg.Platform+":"+msg.EventID)
		if err != nil {
			mr.logger.Warn("dedupe claim failed, continuing", zap.Error(err))
		} else if !ok {
			mr.logger.Debug("duplicate event dropped",
				zap.String("event", msg.EventID))
			return
		}
	}

	mr.logger.Info("routing request",
		zap.String("platform", msg.Platform),
		zap.String("channel", msg.ChannelID),
		zap.String("user", msg.UserName),
	)

	conv := &task.Conversation{
		ThreadID: msg.ThreadID,
		UserID:   msg.UserID,
		UserName: msg.UserName,
		Image:    msg.Image,
	}

	var threadID string
	if mr.store != nil {
		tid, err := mr.store.FindOrCreateThread(ctx, msg.Platform, msg.ChannelID, msg.ThreadID)
		if err != nil {
			mr.logger.Error("find/create thread failed", zap.Error(err))
		} else {
			threadID = tid
			msgs, err := mr.store.RecentMessages(ctx, threadID, mr.historyLimit)
			if err != nil {
				mr.logger.Error("load thread history failed", zap.Error(err))
			} else {
				conv.Messages = msgs
			}
			_ = mr.store.AppendMessage(ctx, threadID, task.ContextMessage{
				Role:   "user",
				Author: msg.UserName,
				Text:   msg.Text,
			})
		}
	}

	sink := newThreadSink(mr.gw, msg, mr.logger)
	summary := mr.orch.Process(ctx, msg.Text, conv, sink)

	if mr.store != nil && threadID != "" {
		for _, text := range sink.deliveredText() {
			_ = mr.store.AppendMessage(ctx, threadID, task.ContextMessage{
				Role:   "assistant",
				Author: "taskweave",
				Text:   text,
			})
		}
		_ = mr.store.AppendMessage(ctx, threadID, task.ContextMessage{
			Role:   "assistant",
			Author: "taskweave",
			Text:   summary.ClosingNote,
		})
	}
}
