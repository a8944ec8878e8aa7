package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/you/pulpit/internal/domain"
)

type Store struct{ db *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{db} }

// ClaimDue atomically moves up to limit due pending posts to 'processing',
// stamping them with this run's token, and returns them joined with their
// content record. A concurrent run cannot claim the same rows.
func (s *Store) ClaimDue(ctx context.Context, now time.Time, limit int, token string) ([]domain.Post, error) {
	rows, err := s.db.Query(ctx, `with claimed as (
  update scheduled_posts
     set status = 'processing', claim_token = $3, claimed_at = $1, updated_at = $1
   where id in (
         select id from scheduled_posts
          where status = 'pending' and scheduled_at <= $1
          order by scheduled_at
            for update skip locked
          limit $2)
   returning id, owner_id, content_id, target_platforms, scheduled_at, status, created_at, updated_at
)
select p.id, p.owner_id, p.content_id, c.body, c.image_url,
       p.target_platforms, p.scheduled_at, p.status, p.created_at, p.updated_at
  from claimed p
  join post_content c on c.id = p.content_id
 order by p.scheduled_at`, now, limit, token)
	if err != nil {
		return nil, errors.Wrap(err, "claim due posts")
	}
	defer rows.Close()

	var out []domain.Post
	for rows.Next() {
		var p domain.Post
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.ContentID, &p.Body, &p.ImageURL,
			&p.TargetPlatforms, &p.ScheduledAt, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan claimed post")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "claim due posts")
}

// Finalize writes the terminal status for a post claimed with token.
func (s *Store) Finalize(ctx context.Context, postID string, status domain.Status, token string) error {
	tag, err := s.db.Exec(ctx, `update scheduled_posts
   set status = $2, claim_token = null, claimed_at = null, updated_at = now()
 where id = $1 and claim_token = $3`, postID, status, token)
	if err != nil {
		return errors.Wrapf(err, "finalize post %s", postID)
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("post %s not held by this run", postID)
	}
	return nil
}

// ForceFailed is the fallback write when Finalize fails. It ignores the
// claim token so a half-updated row can still be parked as failed.
func (s *Store) ForceFailed(ctx context.Context, postID string) error {
	_, err := s.db.Exec(ctx, `update scheduled_posts
   set status = 'failed', claim_token = null, claimed_at = null, updated_at = now()
 where id = $1`, postID)
	return errors.Wrapf(err, "force-fail post %s", postID)
}

func (s *Store) RecordAttempt(ctx context.Context, a *domain.Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `insert into delivery_attempts(
id, post_id, platform, succeeded, detail, created_at
) values ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.PostID, a.Platform, a.Succeeded, a.Detail, a.CreatedAt)
	return errors.Wrap(err, "record delivery attempt")
}

// RequeueStale returns posts stuck in 'processing' (a crashed or killed run
// never finalized them) to 'pending' so the next tick picks them up again.
func (s *Store) RequeueStale(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `update scheduled_posts
   set status = 'pending', claim_token = null, claimed_at = null, updated_at = now()
 where status = 'processing' and claimed_at < $1`, olderThan)
	if err != nil {
		return 0, errors.Wrap(err, "requeue stale claims")
	}
	return tag.RowsAffected(), nil
}

var ErrNotFound = errors.New("post not found")

func (s *Store) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	var p domain.Post
	err := s.db.QueryRow(ctx, `select p.id, p.owner_id, p.content_id, c.body, c.image_url,
       p.target_platforms, p.scheduled_at, p.status, p.claim_token, p.claimed_at,
       p.created_at, p.updated_at
  from scheduled_posts p
  join post_content c on c.id = p.content_id
 where p.id = $1`, id).Scan(
		&p.ID, &p.OwnerID, &p.ContentID, &p.Body, &p.ImageURL,
		&p.TargetPlatforms, &p.ScheduledAt, &p.Status, &p.ClaimToken, &p.ClaimedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get post %s", id)
	}
	return &p, nil
}

func (s *Store) ListAttempts(ctx context.Context, postID string) ([]domain.Attempt, error) {
	rows, err := s.db.Query(ctx, `select id, post_id, platform, succeeded, detail, created_at
  from delivery_attempts
 where post_id = $1
 order by created_at`, postID)
	if err != nil {
		return nil, errors.Wrapf(err, "list attempts for post %s", postID)
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(&a.ID, &a.PostID, &a.Platform, &a.Succeeded, &a.Detail, &a.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan attempt")
		}
		out = append(out, a)
	}
	return out, errors.Wrap(rows.Err(), "list attempts")
}
