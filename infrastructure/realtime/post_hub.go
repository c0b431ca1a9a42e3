package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"autopost/domain/model"
)

// PostStatusEvent is the SSE payload for post lifecycle updates.
type PostStatusEvent struct {
	Type           string  `json:"type"`
	PostID         string  `json:"post_id"`
	Status         string  `json:"status"`
	ExternalPostID *string `json:"external_post_id,omitempty"`
	RetryCount     int     `json:"retry_count"`
	Reason         string  `json:"reason,omitempty"`
}

// Hub maintains per-user subscribers listening for post status events.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[chan PostStatusEvent]struct{}
}

func NewPostHub() *Hub {
	return &Hub{users: make(map[string]map[chan PostStatusEvent]struct{})}
}

// Serve registers an SSE stream for the authenticated user (user_id set by middleware).
func (h *Hub) Serve(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan PostStatusEvent, 8)
	h.addSubscriber(userID, ch)
	defer h.removeSubscriber(userID, ch)

	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case evt := <-ch:
			data, _ := json.Marshal(evt)
			_, _ = c.Writer.Write([]byte("event: post_status\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Hub) addSubscriber(userID string, ch chan PostStatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[chan PostStatusEvent]struct{})
	}
	h.users[userID][ch] = struct{}{}
}

func (h *Hub) removeSubscriber(userID string, ch chan PostStatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.users[userID]; subs != nil {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.users, userID)
		}
	}
}

// Subscribers reports how many streams the user has open.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// BroadcastPostEvent fans the event out to the owner's subscribers. Slow
// subscribers miss events instead of blocking the dispatcher.
func (h *Hub) BroadcastPostEvent(evt model.PostEvent) {
	out := PostStatusEvent{
		Type:           string(evt.Type),
		PostID:         evt.PostID,
		Status:         string(evt.Status),
		ExternalPostID: evt.ExternalPostID,
		RetryCount:     evt.RetryCount,
		Reason:         evt.Reason,
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.users[evt.UserID] {
		select {
		case ch <- out:
		default:
		}
	}
}
