package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vantari/taskweave/internal/task"
	"go.uber.org/zap"
)

// RESTAdapter implements Adapter for HTTP-based message ingestion. Each
// request opens a short-lived channel that collects every delivery for
// the orchestration until the final notification arrives.
type RESTAdapter struct {
	handler  MessageHandler
	channels map[string]chan *OutboundMessage // channelID -> pending deliveries
	timeout  time.Duration
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewRESTAdapter creates a REST gateway adapter.
func NewRESTAdapter(logger *zap.Logger) *RESTAdapter {
	return &RESTAdapter{
		channels: make(map[string]chan *OutboundMessage),
		timeout:  10 * time.Minute,
		logger:   logger,
	}
}

func (a *RESTAdapter) Platform() string { return "rest" }

func (a *RESTAdapter) Connect(_ context.Context) error { return nil }

func (a *RESTAdapter) OnMessage(h MessageHandler) { a.handler = h }

func (a *RESTAdapter) Close() error { return nil }

// Send delivers a message to a waiting REST channel.
func (a *RESTAdapter) Send(_ context.Context, msg *OutboundMessage) (string, error) {
	a.mu.RLock()
	ch, ok := a.channels[msg.ChannelID]
	a.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no active channel: %s", msg.ChannelID)
	}
	select {
	case ch <- msg:
		return "", nil
	default:
		return "", fmt.Errorf("channel %s buffer full", msg.ChannelID)
	}
}

// Update is a no-op: REST clients receive every message as a new entry.
func (a *RESTAdapter) Update(_ context.Context, _, _, _ string) error { return nil }

// Routes returns a chi router with REST gateway endpoints.
func (a *RESTAdapter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/request", a.handleRequest)
	return r
}

// handleRequest accepts an inbound request via HTTP and streams back
// every delivery as a JSON array once the orchestration finishes.
func (a *RESTAdapter) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		UserName string `json:"user_name"`
		Text     string `json:"text"`
		ImageURL string `json:"image_url,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, `{"error":"text is required"}`, http.StatusBadRequest)
		return
	}

	channelID := uuid.New().String()
	ch := make(chan *OutboundMessage, 64)

	a.mu.Lock()
	a.channels[channelID] = ch
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.channels, channelID)
		a.mu.Unlock()
	}()

	msg := &InboundMessage{
		Platform:  "rest",
		EventID:   channelID,
		ChannelID: channelID,
		ThreadID:  channelID,
		UserID:    req.UserID,
		UserName:  req.UserName,
		Text:      req.Text,
		Timestamp: time.Now(),
	}
	if req.ImageURL != "" {
		msg.Image = &task.ImageRef{URL: req.ImageURL}
	}
	if a.handler != nil {
		a.handler(msg)
	}

	// Collect deliveries until the closing notification or timeout
	var deliveries []*OutboundMessage
	deadline := time.NewTimer(a.timeout)
	defer deadline.Stop()
	for {
		select {
		case m := <-ch:
			deliveries = append(deliveries, m)
			if m.Final {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"channel_id": channelID,
					"messages":   deliveries,
				})
				return
			}
		case <-deadline.C:
			http.Error(w, `{"error":"response timeout"}`, http.StatusGatewayTimeout)
			return
		case <-r.Context().Done():
			return
		}
	}
}
