package linkedin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"autopost/domain/dto"
	"autopost/domain/errs"
	"autopost/domain/model"
	"autopost/infrastructure/logger"

	"github.com/google/go-querystring/query"
	"golang.org/x/sync/errgroup"
)

// maxCommentPages bounds pagination when the platform keeps returning full pages.
const maxCommentPages = 1000

// FetchEngagement reads the counters and the comment thread concurrently.
// Failures are logged and yield zero counters or no comments, flagged with
// Partial; they are never returned.
func (c *Client) FetchEngagement(ctx context.Context, externalPostID string, creds model.Credentials) model.Engagement {
	var (
		counters               dto.LinkedInSocialActions
		comments               []model.Comment
		countersOK, commentsOK bool
	)
	lg := logger.GetLogger().WithField("external_post_id", externalPostID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := c.fetchCounters(gctx, externalPostID, creds)
		if err != nil {
			lg.WithField("kind", errs.KindOf(err)).WithField("error", err).Warn("engagement counters fetch failed")
			c.metrics.RecordEngagementFailure("counters")
			return nil
		}
		counters, countersOK = out, true
		return nil
	})
	g.Go(func() error {
		out, err := c.FetchAllComments(gctx, externalPostID, creds)
		if err != nil {
			lg.WithField("kind", errs.KindOf(err)).WithField("error", err).Warn("engagement comments fetch failed")
			c.metrics.RecordEngagementFailure("comments")
			return nil
		}
		comments, commentsOK = out, true
		return nil
	})
	_ = g.Wait()

	if comments == nil {
		comments = []model.Comment{}
	}
	return model.Engagement{
		LikeCount:    counters.LikesSummary.TotalLikes,
		CommentCount: counters.CommentsSummary.AggregatedTotalComments,
		Comments:     comments,
		Partial:      !countersOK || !commentsOK,
	}
}

func (c *Client) fetchCounters(ctx context.Context, externalPostID string, creds model.Credentials) (dto.LinkedInSocialActions, error) {
	var out dto.LinkedInSocialActions
	_, err := c.doJSON(ctx, request{
		op:       "fetch social actions",
		method:   http.MethodGet,
		url:      c.baseURL + "/rest/socialActions/" + url.QueryEscape(externalPostID),
		creds:    &creds,
		platform: true,
	}, nil, &out)
	if err != nil {
		return out, fmt.Errorf("%w: %w", errs.ErrMetricsFetchFailure, err)
	}
	return out, nil
}

// FetchAllComments pages through the comment thread from start=0 in fixed
// size pages and stops at the first short page.
func (c *Client) FetchAllComments(ctx context.Context, externalPostID string, creds model.Credentials) ([]model.Comment, error) {
	all := make([]model.Comment, 0)
	for page := 0; page < maxCommentPages; page++ {
		q, err := query.Values(dto.LinkedInPageQuery{Start: page * c.pageSize, Count: c.pageSize})
		if err != nil {
			return nil, err
		}
		var out dto.LinkedInCommentsPage
		_, err = c.doJSON(ctx, request{
			op:       "fetch comments",
			method:   http.MethodGet,
			url:      c.baseURL + "/rest/socialActions/" + url.QueryEscape(externalPostID) + "/comments?" + q.Encode(),
			creds:    &creds,
			platform: true,
		}, nil, &out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrMetricsFetchFailure, err)
		}
		for _, el := range out.Elements {
			all = append(all, toComment(el))
		}
		if len(out.Elements) < c.pageSize {
			break
		}
	}
	return all, nil
}

func toComment(el dto.LinkedInComment) model.Comment {
	id := el.ID
	if id == "" {
		id = el.URN
	}
	var created time.Time
	if el.Created.Time > 0 {
		created = time.UnixMilli(el.Created.Time).UTC()
	}
	return model.Comment{
		CommentID: id,
		AuthorID:  el.Actor,
		Text:      el.Message.Text,
		CreatedAt: created,
	}
}
