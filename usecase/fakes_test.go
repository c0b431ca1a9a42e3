package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"autopost/domain/errs"
	"autopost/domain/model"
)

// memPosts is an in-memory post store with the same conditional-write
// semantics as the database stores.
type memPosts struct {
	mu       sync.Mutex
	posts    map[string]*model.Post
	findErr  error
	saveErrs map[string]error
}

func newMemPosts(posts ...*model.Post) *memPosts {
	m := &memPosts{posts: map[string]*model.Post{}, saveErrs: map[string]error{}}
	for _, p := range posts {
		m.posts[p.ID] = clonePost(p)
	}
	return m
}

func clonePost(p *model.Post) *model.Post {
	c := *p
	c.Images = append([]string(nil), p.Images...)
	if p.PostedAt != nil {
		t := *p.PostedAt
		c.PostedAt = &t
	}
	if p.ExternalPostID != nil {
		v := *p.ExternalPostID
		c.ExternalPostID = &v
	}
	if p.ClaimedAt != nil {
		t := *p.ClaimedAt
		c.ClaimedAt = &t
	}
	return &c
}

func (m *memPosts) get(id string) *model.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok {
		return clonePost(p)
	}
	return nil
}

func (m *memPosts) FindDuePosts(ctx context.Context, now, leaseCutoff time.Time, limit int) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []*model.Post
	for _, p := range m.posts {
		if p.IsDue(now) && !p.IsClaimed(leaseCutoff) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPosts) ClaimPost(ctx context.Context, id, token string, now, leaseCutoff time.Time) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || !p.IsDue(now) || p.IsClaimed(leaseCutoff) {
		return nil, nil
	}
	at := now
	p.Status = model.PostStatusPosting
	p.ClaimToken = token
	p.ClaimedAt = &at
	p.UpdatedAt = now
	return clonePost(p), nil
}

func (m *memPosts) Save(ctx context.Context, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveErrs[post.ID]; err != nil {
		return err
	}
	cur, ok := m.posts[post.ID]
	if !ok {
		return errs.ErrNotFound
	}
	if cur.Status == model.PostStatusPosted || cur.RetryCount > post.RetryCount ||
		(post.ClaimToken != "" && cur.ClaimToken != post.ClaimToken) {
		return errs.ErrClaimLost
	}
	next := clonePost(post)
	if next.Status == model.PostStatusPosted || next.Status == model.PostStatusFailed {
		next.ClaimToken = ""
		next.ClaimedAt = nil
	}
	m.posts[post.ID] = next
	return nil
}

func (m *memPosts) GetByID(ctx context.Context, id string) (*model.Post, error) {
	if p := m.get(id); p != nil {
		return p, nil
	}
	return nil, errs.ErrNotFound
}

func (m *memPosts) Create(ctx context.Context, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[post.ID]; ok {
		return errs.ErrDuplicate
	}
	m.posts[post.ID] = clonePost(post)
	return nil
}

func (m *memPosts) MarkPublishNow(ctx context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || (p.Status != model.PostStatusDraft && p.Status != model.PostStatusScheduled) {
		return false, nil
	}
	p.Status = model.PostStatusPosting
	p.UpdatedAt = now
	return true, nil
}

func (m *memPosts) Requeue(ctx context.Context, id string, at, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return false, nil
	}
	return p.Requeue(at, now) == nil, nil
}

func (m *memPosts) CountScheduledBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.posts {
		if p.UserID == userID && p.Status != model.PostStatusDraft && !p.ScheduledAt.Before(from) && p.ScheduledAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (m *memPosts) ListPostedForSync(ctx context.Context, since time.Time, limit int) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Post
	for _, p := range m.posts {
		if p.Status == model.PostStatusPosted && p.ExternalPostID != nil && p.PostedAt != nil && !p.PostedAt.Before(since) {
			out = append(out, clonePost(p))
		}
	}
	return out, nil
}

func (m *memPosts) UpdateEngagement(ctx context.Context, id string, summary model.EngagementSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.Status != model.PostStatusPosted {
		return errs.ErrNotFound
	}
	s := summary
	p.Engagement = &s
	return nil
}

type MockCredentialProvider struct {
	mock.Mock
}

func (m *MockCredentialProvider) Credentials(ctx context.Context, userID string) (model.Credentials, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.Credentials), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, text string, images []string, creds model.Credentials) (string, error) {
	args := m.Called(ctx, text, images, creds)
	return args.String(0), args.Error(1)
}

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) FetchEngagement(ctx context.Context, externalPostID string, creds model.Credentials) model.Engagement {
	args := m.Called(ctx, externalPostID, creds)
	return args.Get(0).(model.Engagement)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishPostEvent(ctx context.Context, evt model.PostEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

type MockEngagementCache struct {
	mock.Mock
}

func (m *MockEngagementCache) GetEngagement(ctx context.Context, postID string) (*model.Engagement, bool) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*model.Engagement), args.Bool(1)
}

func (m *MockEngagementCache) SetEngagement(ctx context.Context, postID string, eng model.Engagement) {
	m.Called(ctx, postID, eng)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) UpdateLinkedInToken(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	args := m.Called(ctx, id, accessToken, refreshToken, expiresAt)
	return args.Error(0)
}

type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) GetByID(ctx context.Context, id string) (*model.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Plan), args.Error(1)
}

type MockAdmission struct {
	mock.Mock
}

func (m *MockAdmission) Check(ctx context.Context, userID string, at time.Time, imageCount int) error {
	args := m.Called(ctx, userID, at, imageCount)
	return args.Error(0)
}
