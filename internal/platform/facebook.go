package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/you/pulpit/internal/domain"
)

const graphBaseURL = "https://graph.facebook.com/v19.0"

// Facebook publishes a post's image and caption to a page's photo feed
// via the Graph API.
type Facebook struct {
	pageID      string
	accessToken string
	baseURL     string
	client      *http.Client
}

func NewFacebook(pageID, accessToken string, client *http.Client) *Facebook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Facebook{
		pageID:      pageID,
		accessToken: accessToken,
		baseURL:     graphBaseURL,
		client:      client,
	}
}

func (f *Facebook) Platform() string { return "facebook" }

func (f *Facebook) Dispatch(ctx context.Context, post *domain.Post) error {
	if post.ImageURL == nil || *post.ImageURL == "" {
		return errors.New("facebook: post has no image URL")
	}

	form := url.Values{}
	form.Set("url", *post.ImageURL)
	form.Set("caption", post.Body)

	endpoint := fmt.Sprintf("%s/%s/photos", f.baseURL, f.pageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "facebook: build request")
	}
	req.Header.Set("Authorization", "Bearer "+f.accessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "facebook: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return errors.Errorf("facebook: status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return errors.Wrap(err, "facebook: decode response")
	}
	if out.ID == "" {
		return errors.New("facebook: response missing photo id")
	}
	return nil
}
