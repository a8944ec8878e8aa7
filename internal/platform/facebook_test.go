package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/you/pulpit/internal/domain"
)

func testPost(imageURL string) *domain.Post {
	p := &domain.Post{
		ID:      "post-1",
		OwnerID: "user-1",
		Body:    "Join us this Sunday",
	}
	if imageURL != "" {
		p.ImageURL = &imageURL
	}
	return p
}

func TestFacebookDispatchSuccess(t *testing.T) {
	var gotForm map[string]string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = map[string]string{
			"url":     r.PostFormValue("url"),
			"caption": r.PostFormValue("caption"),
		}
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id":"123"}`))
	}))
	defer srv.Close()

	fb := NewFacebook("page-1", "tok", srv.Client())
	fb.baseURL = srv.URL

	if err := fb.Dispatch(context.Background(), testPost("https://img.example/1.png")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if gotForm["url"] != "https://img.example/1.png" {
		t.Errorf("url form field = %q", gotForm["url"])
	}
	if gotForm["caption"] != "Join us this Sunday" {
		t.Errorf("caption form field = %q", gotForm["caption"])
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestFacebookDispatchMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	fb := NewFacebook("page-1", "tok", srv.Client())
	fb.baseURL = srv.URL

	if err := fb.Dispatch(context.Background(), testPost("https://img.example/1.png")); err == nil {
		t.Fatal("want error for response without photo id")
	}
}

func TestFacebookDispatchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad token"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	fb := NewFacebook("page-1", "tok", srv.Client())
	fb.baseURL = srv.URL

	if err := fb.Dispatch(context.Background(), testPost("https://img.example/1.png")); err == nil {
		t.Fatal("want error for non-2xx response")
	}
}

func TestFacebookDispatchNoImage(t *testing.T) {
	fb := NewFacebook("page-1", "tok", nil)
	if err := fb.Dispatch(context.Background(), testPost("")); err == nil {
		t.Fatal("want error for post without image URL")
	}
}
