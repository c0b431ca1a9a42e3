package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"autopost/domain/errs"
	"autopost/domain/model"
	"autopost/domain/repository"

	"github.com/lib/pq"
)

const postColumns = `id, user_id, text, images, status, source, scheduled_at, posted_at, external_post_id, retry_count, claim_token, claimed_at, like_count, comment_count, engagement_synced_at, created_at, updated_at`

const (
	findDuePostsQuery = `SELECT ` + postColumns + ` FROM posts
	WHERE status IN ('SCHEDULED','POSTING')
	AND (status = 'POSTING' OR scheduled_at <= $1)
	AND (claim_token IS NULL OR claim_token = '' OR claimed_at < $2)
	ORDER BY scheduled_at ASC LIMIT $3`

	claimPostQuery = `UPDATE posts SET status='POSTING', claim_token=$1, claimed_at=$2, updated_at=$2
	WHERE id=$3 AND status IN ('SCHEDULED','POSTING')
	AND (status = 'POSTING' OR scheduled_at <= $2)
	AND (claim_token IS NULL OR claim_token = '' OR claimed_at < $4)
	RETURNING ` + postColumns + `

	savePostQuery = `UPDATE posts SET status=$1, external_post_id=$2, posted_at=$3, retry_count=$4, scheduled_at=$5, claim_token=$6, claimed_at=$7, updated_at=$8
	WHERE id=$9 AND status <> 'POSTED' AND retry_count <= $4 AND ($10::text = '' OR claim_token = $10)`

	getPostQuery = `SELECT ` + postColumns + ` FROM posts WHERE id=$1`

	createPostQuery = `INSERT INTO posts (id, user_id, text, images, status, source, scheduled_at, posted_at, external_post_id, retry_count, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	markPublishNowQuery = `UPDATE posts SET status='POSTING', updated_at=$1 WHERE id=$2 AND status IN ('DRAFT','SCHEDULED')`

	requeuePostQuery = `UPDATE posts SET status='SCHEDULED', scheduled_at=$1, claim_token=NULL, claimed_at=NULL, updated_at=$2 WHERE id=$3 AND status='FAILED'`

	countScheduledQuery = `SELECT COUNT(1) FROM posts WHERE user_id=$1 AND status <> 'DRAFT' AND scheduled_at >= $2 AND scheduled_at < $3`

	listPostedQuery = `SELECT ` + postColumns + ` FROM posts
	WHERE status='POSTED' AND external_post_id IS NOT NULL AND posted_at >= $1
	ORDER BY posted_at DESC LIMIT $2`

	updateEngagementQuery = `UPDATE posts SET like_count=$1, comment_count=$2, engagement_synced_at=$3 WHERE id=$4 AND status='POSTED'`
)

// PostRepository implements the post store on PostgreSQL.
type PostRepository struct {
	db *sql.DB
}

var _ repository.IPost = (*PostRepository)(nil)

func NewPostRepository(db *sql.DB) *PostRepository { return &PostRepository{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(s rowScanner) (*model.Post, error) {
	p := &model.Post{}
	var (
		images                  pq.StringArray
		postedAt, claimedAt     sql.NullTime
		syncedAt                sql.NullTime
		externalID, claimToken  sql.NullString
		likeCount, commentCount sql.NullInt64
		status, source          string
	)
	if err := s.Scan(&p.ID, &p.UserID, &p.Text, &images, &status, &source, &p.ScheduledAt, &postedAt, &externalID,
		&p.RetryCount, &claimToken, &claimedAt, &likeCount, &commentCount, &syncedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Images = []string(images)
	p.Status = model.PostStatus(status)
	p.Source = model.PostSource(source)
	if postedAt.Valid {
		t := postedAt.Time
		p.PostedAt = &t
	}
	if externalID.Valid {
		v := externalID.String
		p.ExternalPostID = &v
	}
	if claimToken.Valid {
		p.ClaimToken = claimToken.String
	}
	if claimedAt.Valid {
		t := claimedAt.Time
		p.ClaimedAt = &t
	}
	if syncedAt.Valid {
		p.Engagement = &model.EngagementSummary{
			LikeCount:    int(likeCount.Int64),
			CommentCount: int(commentCount.Int64),
			SyncedAt:     syncedAt.Time,
		}
	}
	return p, nil
}

func (r *PostRepository) queryPosts(ctx context.Context, op, q string, args ...any) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()
	var posts []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return posts, nil
}

func (r *PostRepository) exec(ctx context.Context, op, q string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, storeErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr(op, err)
	}
	return n, nil
}

func (r *PostRepository) FindDuePosts(ctx context.Context, now, leaseCutoff time.Time, limit int) ([]*model.Post, error) {
	return r.queryPosts(ctx, "find due posts", findDuePostsQuery, now, leaseCutoff, limit)
}

func (r *PostRepository) ClaimPost(ctx context.Context, id, token string, now, leaseCutoff time.Time) (*model.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, claimPostQuery, token, now, id, leaseCutoff))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("claim post", err)
	}
	return p, nil
}

func (r *PostRepository) Save(ctx context.Context, p *model.Post) error {
	var externalID, claimToken sql.NullString
	var postedAt, claimedAt sql.NullTime
	if p.ExternalPostID != nil {
		externalID = sql.NullString{String: *p.ExternalPostID, Valid: true}
	}
	if p.PostedAt != nil {
		postedAt = sql.NullTime{Time: *p.PostedAt, Valid: true}
	}
	if !isTerminal(p.Status) && p.ClaimToken != "" {
		claimToken = sql.NullString{String: p.ClaimToken, Valid: true}
		if p.ClaimedAt != nil {
			claimedAt = sql.NullTime{Time: *p.ClaimedAt, Valid: true}
		}
	}
	n, err := r.exec(ctx, "save post", savePostQuery,
		string(p.Status), externalID, postedAt, p.RetryCount, p.ScheduledAt, claimToken, claimedAt, p.UpdatedAt,
		p.ID, p.ClaimToken)
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, p.ID); err != nil {
		return err
	}
	return errs.ErrClaimLost
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, getPostQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get post", err)
	}
	return p, nil
}

func (r *PostRepository) Create(ctx context.Context, p *model.Post) error {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	_, err := r.db.ExecContext(ctx, createPostQuery,
		p.ID, p.UserID, p.Text, pq.Array(images), string(p.Status), string(p.Source), p.ScheduledAt,
		p.PostedAt, p.ExternalPostID, p.RetryCount, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return errs.ErrDuplicate
		}
		return storeErr("create post", err)
	}
	return nil
}

func (r *PostRepository) MarkPublishNow(ctx context.Context, id string, now time.Time) (bool, error) {
	n, err := r.exec(ctx, "mark publish now", markPublishNowQuery, now, id)
	return n == 1, err
}

func (r *PostRepository) Requeue(ctx context.Context, id string, at, now time.Time) (bool, error) {
	n, err := r.exec(ctx, "requeue post", requeuePostQuery, at, now, id)
	return n == 1, err
}

func (r *PostRepository) CountScheduledBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countScheduledQuery, userID, from, to).Scan(&n); err != nil {
		return 0, storeErr("count scheduled posts", err)
	}
	return n, nil
}

func (r *PostRepository) ListPostedForSync(ctx context.Context, since time.Time, limit int) ([]*model.Post, error) {
	return r.queryPosts(ctx, "list posted posts", listPostedQuery, since, limit)
}

func (r *PostRepository) UpdateEngagement(ctx context.Context, id string, summary model.EngagementSummary) error {
	n, err := r.exec(ctx, "update engagement", updateEngagementQuery, summary.LikeCount, summary.CommentCount, summary.SyncedAt, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}
