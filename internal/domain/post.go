package domain

import "time"

type Status string

const (
	Pending    Status = "pending"
	Processing Status = "processing"
	Sent       Status = "sent"
	Failed     Status = "failed"
)

// Post is a scheduled request to publish one piece of content to one
// or more external platforms at or after ScheduledAt. Content fields
// are joined in read-only from the content record.
type Post struct {
	ID              string
	OwnerID         string
	ContentID       string
	Body            string
	ImageURL        *string
	TargetPlatforms []string
	ScheduledAt     time.Time
	Status          Status
	ClaimToken      *string
	ClaimedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Attempt records one delivery attempt for one platform within a run.
type Attempt struct {
	ID        string
	PostID    string
	Platform  string
	Succeeded bool
	Detail    string
	CreatedAt time.Time
}

// Outcome is the per-post result of a dispatch pass.
type Outcome struct {
	AnyFailed bool
	Results   map[string]bool
}

// FinalStatus applies the AND-failure rule: a post is sent only if
// every targeted platform succeeded.
func (o Outcome) FinalStatus() Status {
	if o.AnyFailed {
		return Failed
	}
	return Sent
}
