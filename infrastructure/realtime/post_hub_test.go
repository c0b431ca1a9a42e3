package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"autopost/domain/model"
)

func TestHub_Serve_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/posts/stream", nil)

	NewPostHub().Serve(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHub_BroadcastToOwnerOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewPostHub()

	ctx, cancel := context.WithCancel(context.Background())
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/posts/stream", nil).WithContext(ctx)
	c.Set("user_id", "u1")

	done := make(chan struct{})
	go func() {
		hub.Serve(c)
		close(done)
	}()

	assert.Eventually(t, func() bool { return hub.Subscribers("u1") == 1 }, time.Second, 5*time.Millisecond)

	ref := "urn:li:share:123"
	hub.BroadcastPostEvent(model.PostEvent{Type: model.PostEventPosted, PostID: "other", UserID: "u2", Status: model.PostStatusPosted})
	hub.BroadcastPostEvent(model.PostEvent{Type: model.PostEventPosted, PostID: "p1", UserID: "u1", Status: model.PostStatusPosted, ExternalPostID: &ref})

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, ":ok\n\n"))
	assert.Contains(t, body, "event: post_status\n")
	assert.Contains(t, body, `"post_id":"p1"`)
	assert.Contains(t, body, `"external_post_id":"urn:li:share:123"`)
	assert.NotContains(t, body, `"post_id":"other"`)
	assert.Equal(t, 0, hub.Subscribers("u1"))
}
