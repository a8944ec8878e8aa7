package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/pulpit/internal/domain"
	"github.com/you/pulpit/internal/publisher"
	"github.com/you/pulpit/internal/storage"
)

// PostReader is the read-only storage surface the admin API exposes.
type PostReader interface {
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	ListAttempts(ctx context.Context, postID string) ([]domain.Attempt, error)
}

// Runner triggers one publication pass, mirroring the cron tick.
type Runner interface {
	Run(ctx context.Context, now time.Time) (publisher.Summary, error)
}

type Server struct {
	posts  PostReader
	runner Runner
	log    *zap.Logger
}

func NewServer(posts PostReader, runner Runner, log *zap.Logger) *Server {
	return &Server{posts: posts, runner: runner, log: log}
}

func (s *Server) Routes() chi.Router {
	rtr := chi.NewRouter()
	rtr.Get("/healthz", s.handleHealth)
	rtr.Get("/v1/posts/{id}", s.handleGetPost)
	rtr.Post("/v1/run", s.handleRun)
	return rtr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type attemptView struct {
	Platform  string    `json:"platform"`
	Succeeded bool      `json:"succeeded"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type postView struct {
	ID              string        `json:"id"`
	OwnerID         string        `json:"owner_id"`
	Body            string        `json:"body"`
	ImageURL        *string       `json:"image_url,omitempty"`
	TargetPlatforms []string      `json:"target_platforms"`
	ScheduledAt     time.Time     `json:"scheduled_at"`
	Status          domain.Status `json:"status"`
	Attempts        []attemptView `json:"attempts"`
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	post, err := s.posts.GetPost(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "post not found"})
		return
	}
	if err != nil {
		s.log.Error("get post failed", zap.String("post_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	attempts, err := s.posts.ListAttempts(r.Context(), id)
	if err != nil {
		s.log.Error("list attempts failed", zap.String("post_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	view := postView{
		ID:              post.ID,
		OwnerID:         post.OwnerID,
		Body:            post.Body,
		ImageURL:        post.ImageURL,
		TargetPlatforms: post.TargetPlatforms,
		ScheduledAt:     post.ScheduledAt,
		Status:          post.Status,
		Attempts:        make([]attemptView, 0, len(attempts)),
	}
	for _, a := range attempts {
		view.Attempts = append(view.Attempts, attemptView{
			Platform:  a.Platform,
			Succeeded: a.Succeeded,
			Detail:    a.Detail,
			CreatedAt: a.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, view)
}

// handleRun triggers a publication pass outside the normal tick.
// Used for operational pokes and smoke tests.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	sum, err := s.runner.Run(r.Context(), time.Now().UTC())
	if err != nil {
		s.log.Error("manual run failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "run failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"claimed": sum.Claimed,
		"sent":    sum.Sent,
		"failed":  sum.Failed,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
