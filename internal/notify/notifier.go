package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"

	"github.com/you/pulpit/internal/domain"
)

// ResultEvent is the message published to the owner's channel once a
// post reaches a terminal status.
type ResultEvent struct {
	PostID  string `json:"post_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Notifier delivers best-effort result events over per-user redis
// pub/sub channels. Delivery failures never affect job state.
type Notifier struct{ rdb *r.Client }

func New(rdb *r.Client) *Notifier { return &Notifier{rdb} }

func channelFor(ownerID string) string { return "notify:" + ownerID }

func (n *Notifier) PublishResult(ctx context.Context, ownerID string, ev ResultEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal result event")
	}
	return errors.Wrap(n.rdb.Publish(ctx, channelFor(ownerID), payload).Err(), "publish result event")
}

// ResultMessage builds the human-readable notification text for a post.
func ResultMessage(status domain.Status, platforms []string) string {
	verb := "published to"
	if status == domain.Failed {
		verb = "failed to publish to"
	}
	return fmt.Sprintf("Your post %s %s", verb, strings.Join(platforms, ", "))
}
