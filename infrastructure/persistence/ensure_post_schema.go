package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"autopost/infrastructure/logger"
)

const createPostsTable = `CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	images TEXT[] NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT 'manual',
	scheduled_at TIMESTAMPTZ NOT NULL,
	posted_at TIMESTAMPTZ,
	external_post_id TEXT,
	retry_count INT NOT NULL DEFAULT 0,
	claim_token TEXT,
	claimed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT posts_posted_fields CHECK ((status = 'POSTED') = (posted_at IS NOT NULL AND external_post_id IS NOT NULL))
)`

const createUsersTable = `CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	plan_id TEXT NOT NULL DEFAULT '',
	linkedin_connected BOOLEAN NOT NULL DEFAULT FALSE,
	linkedin_access_token TEXT NOT NULL DEFAULT '',
	linkedin_refresh_token TEXT NOT NULL DEFAULT '',
	linkedin_expires_at TIMESTAMPTZ,
	linkedin_account_urn TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

const createPlansTable = `CREATE TABLE IF NOT EXISTS plans (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	generation_quota INT NOT NULL DEFAULT 0,
	image_quota INT NOT NULL DEFAULT 0,
	daily_schedule_limit INT NOT NULL DEFAULT 0,
	feature_autopost BOOLEAN NOT NULL DEFAULT FALSE,
	feature_carousel BOOLEAN NOT NULL DEFAULT FALSE,
	feature_analytics BOOLEAN NOT NULL DEFAULT FALSE
)`

var postIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_posts_due ON posts (status, scheduled_at)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_user_schedule ON posts (user_id, scheduled_at)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_posted_at ON posts (status, posted_at DESC)`,
}

// EnsurePostSchema creates the post tables and adds newer columns if they are
// missing. Safe to call at startup.
func EnsurePostSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, ddl := range []string{createPostsTable, createUsersTable, createPlansTable} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table failed: %w", err)
		}
	}

	checks := []struct {
		table  string
		column string
		ddl    string
	}{
		{"posts", "like_count", "ALTER TABLE posts ADD COLUMN like_count INT"},
		{"posts", "comment_count", "ALTER TABLE posts ADD COLUMN comment_count INT"},
		{"posts", "engagement_synced_at", "ALTER TABLE posts ADD COLUMN engagement_synced_at TIMESTAMPTZ"},
	}
	for _, c := range checks {
		exists, err := columnExists(ctx, db, c.table, c.column)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := db.ExecContext(ctx, c.ddl); err != nil {
				return fmt.Errorf("adding column %s.%s failed: %w", c.table, c.column, err)
			}
		}
	}

	for _, idx := range postIndexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			logger.GetLogger().WithError(err).Warn("create index failed")
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM information_schema.columns WHERE table_name=$1 AND column_name=$2`, table, column)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
