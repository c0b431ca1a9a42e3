package linkedin

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"autopost/domain/dto"
	"autopost/domain/errs"
	"autopost/domain/model"
)

func testCreds() model.Credentials {
	return model.Credentials{
		AccountURN: "urn:li:person:abc",
		Token:      &oauth2.Token{AccessToken: "tok", TokenType: "Bearer"},
	}
}

func newTestClient(srv *httptest.Server, pageSize int) *Client {
	return NewClient(Config{
		BaseURL:         srv.URL,
		APIVersion:      "202405",
		RequestTimeout:  2 * time.Second,
		CommentPageSize: pageSize,
		HTTPClient:      srv.Client(),
	})
}

func TestPublish_TextOnly_IDFromHeader(t *testing.T) {
	var got dto.LinkedInPostRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/posts", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "202405", r.Header.Get("LinkedIn-Version"))
		assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("x-restli-id", "urn:li:share:123")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	id, err := newTestClient(srv, 50).Publish(t.Context(), "hello world", nil, testCreds())

	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:123", id)
	assert.Equal(t, "urn:li:person:abc", got.Author)
	assert.Equal(t, "hello world", got.Commentary)
	assert.Equal(t, "PUBLISHED", got.LifecycleState)
	assert.Equal(t, "MAIN_FEED", got.Distribution.FeedDistribution)
	assert.Nil(t, got.Content)
}

func TestPublish_Carousel(t *testing.T) {
	var (
		mu       sync.Mutex
		inits    int
		uploaded = map[string]string{}
		post     dto.LinkedInPostRequest
	)
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.URL.Path == "/rest/images" && r.URL.Query().Get("action") == "initializeUpload":
			inits++
			var in dto.LinkedInInitializeUploadRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "urn:li:person:abc", in.InitializeUploadRequest.Owner)
			fmt.Fprintf(w, `{"value":{"uploadUrl":"%s/upload/%d","image":"urn:li:image:%d"}}`, srv.URL, inits, inits)
		case strings.HasPrefix(r.URL.Path, "/img/"):
			assert.Empty(t, r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png:" + r.URL.Path))
		case strings.HasPrefix(r.URL.Path, "/upload/"):
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
			b, _ := io.ReadAll(r.Body)
			uploaded[r.URL.Path] = string(b)
			w.WriteHeader(http.StatusCreated)
		case r.URL.Path == "/rest/posts":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&post))
			w.Header().Set("x-restli-id", "urn:li:share:from-header")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"urn:li:share:from-body"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.String())
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	images := []string{srv.URL + "/img/a.png", srv.URL + "/img/b.png"}
	id, err := newTestClient(srv, 50).Publish(t.Context(), "carousel", images, testCreds())

	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:from-body", id, "body id takes precedence over headers")
	assert.Equal(t, 2, inits)
	assert.Equal(t, "png:/img/a.png", uploaded["/upload/1"])
	assert.Equal(t, "png:/img/b.png", uploaded["/upload/2"])
	require.NotNil(t, post.Content)
	require.NotNil(t, post.Content.MultiImage)
	assert.Nil(t, post.Content.Media)
	assert.Equal(t, []dto.LinkedInMedia{{ID: "urn:li:image:1"}, {ID: "urn:li:image:2"}}, post.Content.MultiImage.Images)
}

func TestPublish_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		status int
		kind   error
	}{
		{http.StatusUnauthorized, errs.ErrAuth},
		{http.StatusForbidden, errs.ErrAuth},
		{http.StatusTooManyRequests, errs.ErrRateLimited},
		{http.StatusUnprocessableEntity, errs.ErrValidation},
		{http.StatusBadRequest, errs.ErrValidation},
		{http.StatusBadGateway, errs.ErrTransientNetwork},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"status":` + strconv.Itoa(tt.status) + `,"message":"nope"}`))
			}))
			defer srv.Close()

			_, err := newTestClient(srv, 50).Publish(t.Context(), "x", nil, testCreds())

			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrPublishFailure)
			assert.ErrorIs(t, err, tt.kind)
			var pe *errs.PublishError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestPublish_TimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RequestTimeout: 20 * time.Millisecond, HTTPClient: srv.Client()})
	_, err := c.Publish(t.Context(), "x", nil, testCreds())

	assert.ErrorIs(t, err, errs.ErrTransientNetwork)
}

func TestPublish_MissingIDIsValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 50).Publish(t.Context(), "x", nil, testCreds())
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestPublish_MissingCredentials(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Publish(t.Context(), "x", nil, model.Credentials{AccountURN: "urn:li:person:abc"})
	assert.ErrorIs(t, err, errs.ErrAuth)
}

func TestExtractExternalID_Precedence(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, "", extractExternalID(dto.LinkedInPostResponse{}, h))

	h.Set("x-linkedin-id", "legacy")
	assert.Equal(t, "legacy", extractExternalID(dto.LinkedInPostResponse{}, h))

	h.Set("x-restli-id", "restli")
	assert.Equal(t, "restli", extractExternalID(dto.LinkedInPostResponse{}, h))

	assert.Equal(t, "body", extractExternalID(dto.LinkedInPostResponse{ID: "body"}, h))
}

// commentServer serves pages of the given sizes in order and counts requests.
func commentServer(t *testing.T, pageSize int, sizes []int, requests *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/comments"), r.URL.Path)
		n := int(atomic.AddInt32(requests, 1)) - 1
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		count, _ := strconv.Atoi(r.URL.Query().Get("count"))
		assert.Equal(t, n*pageSize, start)
		assert.Equal(t, pageSize, count)

		size := 0
		if n < len(sizes) {
			size = sizes[n]
		}
		page := dto.LinkedInCommentsPage{}
		for i := 0; i < size; i++ {
			el := dto.LinkedInComment{ID: fmt.Sprintf("c%d", start+i), Actor: "urn:li:person:x"}
			el.Message.Text = "nice"
			el.Created.Time = 1700000000000
			page.Elements = append(page.Elements, el)
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
}

func TestFetchAllComments_Pagination(t *testing.T) {
	tests := []struct {
		name         string
		sizes        []int
		wantComments int
		wantRequests int32
	}{
		{"three pages", []int{50, 50, 13}, 113, 3},
		{"empty first page", []int{0}, 0, 1},
		{"exact multiple needs a final empty page", []int{50, 0}, 50, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests int32
			srv := commentServer(t, 50, tt.sizes, &requests)
			defer srv.Close()

			comments, err := newTestClient(srv, 50).FetchAllComments(t.Context(), "urn:li:share:1", testCreds())

			require.NoError(t, err)
			assert.Len(t, comments, tt.wantComments)
			assert.Equal(t, tt.wantRequests, atomic.LoadInt32(&requests))
		})
	}
}

func TestFetchAllComments_MapsFields(t *testing.T) {
	var requests int32
	srv := commentServer(t, 50, []int{1}, &requests)
	defer srv.Close()

	comments, err := newTestClient(srv, 50).FetchAllComments(t.Context(), "urn:li:share:1", testCreds())

	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "c0", comments[0].CommentID)
	assert.Equal(t, "urn:li:person:x", comments[0].AuthorID)
	assert.Equal(t, "nice", comments[0].Text)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), comments[0].CreatedAt)
}

func TestFetchEngagement_MergesConcurrentReads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/comments") {
			_, _ = w.Write([]byte(`{"elements":[{"id":"c1","actor":"a","message":{"text":"hi"}},{"id":"c2","actor":"b","message":{"text":"yo"}}]}`))
			return
		}
		assert.Equal(t, "/rest/socialActions/urn:li:share:9", r.URL.Path)
		_, _ = w.Write([]byte(`{"likesSummary":{"totalLikes":10},"commentsSummary":{"aggregatedTotalComments":2}}`))
	}))
	defer srv.Close()

	got := newTestClient(srv, 50).FetchEngagement(t.Context(), "urn:li:share:9", testCreds())

	assert.Equal(t, 10, got.LikeCount)
	assert.Equal(t, 2, got.CommentCount)
	assert.Len(t, got.Comments, 2)
	assert.False(t, got.Partial)
}

func TestFetchEngagement_FailuresAreZeroed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/comments") {
			_, _ = w.Write([]byte(`{"elements":[{"id":"c1"}]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	got := newTestClient(srv, 50).FetchEngagement(t.Context(), "urn:li:share:9", testCreds())
	assert.Equal(t, 0, got.LikeCount)
	assert.Equal(t, 0, got.CommentCount)
	assert.Len(t, got.Comments, 1)
	assert.True(t, got.Partial)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer down.Close()

	got = newTestClient(down, 50).FetchEngagement(t.Context(), "urn:li:share:9", testCreds())
	assert.Equal(t, model.Engagement{Comments: []model.Comment{}, Partial: true}, got)
}
