package publisher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/you/pulpit/internal/domain"
	"github.com/you/pulpit/internal/notify"
	"github.com/you/pulpit/internal/platform"
)

// Store is the slice of the storage layer the pipeline needs.
type Store interface {
	ClaimDue(ctx context.Context, now time.Time, limit int, token string) ([]domain.Post, error)
	Finalize(ctx context.Context, postID string, status domain.Status, token string) error
	ForceFailed(ctx context.Context, postID string) error
	RecordAttempt(ctx context.Context, a *domain.Attempt) error
	RequeueStale(ctx context.Context, olderThan time.Time) (int64, error)
}

type Notifier interface {
	PublishResult(ctx context.Context, ownerID string, ev notify.ResultEvent) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, platform string, post *domain.Post) error
}

// Publisher runs one publication pass: claim due posts, dispatch each to
// its target platforms in order, reconcile a terminal status, and notify
// the owner. Posts are processed sequentially, platforms within a post
// sequentially, matching the low per-interval volume this serves.
type Publisher struct {
	store      Store
	dispatcher Dispatcher
	notifier   Notifier
	log        *zap.Logger

	policy    platform.RetryPolicy
	batchSize int
	staleAge  time.Duration
}

type Option func(*Publisher)

func WithRetryPolicy(p platform.RetryPolicy) Option {
	return func(pub *Publisher) { pub.policy = p }
}

func WithBatchSize(n int) Option {
	return func(pub *Publisher) { pub.batchSize = n }
}

func WithStaleClaimAge(d time.Duration) Option {
	return func(pub *Publisher) { pub.staleAge = d }
}

func New(store Store, dispatcher Dispatcher, notifier Notifier, log *zap.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		store:      store,
		dispatcher: dispatcher,
		notifier:   notifier,
		log:        log,
		policy:     platform.DefaultRetryPolicy(),
		batchSize:  100,
		staleAge:   10 * time.Minute,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type Summary struct {
	Claimed int
	Sent    int
	Failed  int
}

// Run executes one publication pass. A claim failure aborts the pass with
// no posts mutated; everything past a successful claim is isolated per post
// so one bad post or platform cannot sink the rest of the batch.
func (p *Publisher) Run(ctx context.Context, now time.Time) (Summary, error) {
	var sum Summary

	if n, err := p.store.RequeueStale(ctx, now.Add(-p.staleAge)); err != nil {
		p.log.Warn("requeue stale claims failed", zap.Error(err))
	} else if n > 0 {
		p.log.Info("requeued stale claims", zap.Int64("count", n))
	}

	token := uuid.NewString()
	for {
		posts, err := p.store.ClaimDue(ctx, now, p.batchSize, token)
		if err != nil {
			p.log.Error("claim due posts failed", zap.Error(err))
			return sum, err
		}
		if len(posts) == 0 {
			return sum, nil
		}
		sum.Claimed += len(posts)

		for i := range posts {
			status := p.process(ctx, &posts[i], token)
			if status == domain.Sent {
				sum.Sent++
			} else {
				sum.Failed++
			}
		}

		if len(posts) < p.batchSize {
			return sum, nil
		}
	}
}

// process dispatches one post and reconciles its terminal status.
// Returns the status that was (or was attempted to be) persisted.
func (p *Publisher) process(ctx context.Context, post *domain.Post, token string) domain.Status {
	outcome := p.dispatch(ctx, post)
	status := outcome.FinalStatus()

	if err := p.store.Finalize(ctx, post.ID, status, token); err != nil {
		p.log.Error("finalize failed, forcing failed status",
			zap.String("post_id", post.ID), zap.Error(err))
		status = domain.Failed
		if err := p.store.ForceFailed(ctx, post.ID); err != nil {
			// Nothing left to try. The row may still read 'processing'
			// until the stale-claim requeue picks it up.
			p.log.Error("fallback status write failed, post left unreconciled",
				zap.String("post_id", post.ID), zap.Error(err))
		}
	}

	ev := notify.ResultEvent{
		PostID:  post.ID,
		Status:  string(status),
		Message: notify.ResultMessage(status, post.TargetPlatforms),
	}
	if err := p.notifier.PublishResult(ctx, post.OwnerID, ev); err != nil {
		p.log.Warn("result notification failed",
			zap.String("post_id", post.ID), zap.String("owner_id", post.OwnerID), zap.Error(err))
	}

	p.log.Info("post reconciled",
		zap.String("post_id", post.ID),
		zap.String("status", string(status)),
		zap.Strings("platforms", post.TargetPlatforms))
	return status
}

// dispatch attempts every target platform in order. A failure on one
// platform never short-circuits the rest; errors are aggregated into the
// outcome's AND-failure flag.
func (p *Publisher) dispatch(ctx context.Context, post *domain.Post) domain.Outcome {
	outcome := domain.Outcome{Results: make(map[string]bool, len(post.TargetPlatforms))}

	var errs error
	for _, target := range post.TargetPlatforms {
		err := platform.Do(ctx, p.policy, func(ctx context.Context) error {
			return p.dispatcher.Dispatch(ctx, target, post)
		})
		outcome.Results[target] = err == nil
		errs = multierr.Append(errs, err)

		attempt := domain.Attempt{
			PostID:    post.ID,
			Platform:  target,
			Succeeded: err == nil,
			CreatedAt: time.Now().UTC(),
		}
		if err != nil {
			attempt.Detail = err.Error()
			p.log.Warn("platform dispatch failed",
				zap.String("post_id", post.ID), zap.String("platform", target), zap.Error(err))
		}
		if recErr := p.store.RecordAttempt(ctx, &attempt); recErr != nil {
			p.log.Warn("record attempt failed",
				zap.String("post_id", post.ID), zap.String("platform", target), zap.Error(recErr))
		}
	}

	outcome.AnyFailed = errs != nil
	return outcome
}
