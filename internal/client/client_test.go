package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dawgsconnect/jobboard/internal/handlers"
	"github.com/dawgsconnect/jobboard/internal/search"
	"github.com/dawgsconnect/jobboard/internal/session"
	"github.com/dawgsconnect/jobboard/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req handlers.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "Passw0rdOK" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password. Please try again."})
			return
		}
		writeJSON(w, http.StatusOK, handlers.LoginResponse{
			Token:     "tok-1",
			ExpiresAt: time.Now().Add(time.Hour).UTC(),
			User:      types.User{ID: "u1", Email: req.Email, Role: types.RoleStudent},
		})
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, types.User{ID: "u1", Email: "ada@example.com"})
	})
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.Method == http.MethodPost {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"errors": map[string]string{"title": "Job title is required"},
			})
			return
		}
		writeJSON(w, http.StatusOK, handlers.JobListResponse{
			Items: []types.JobPosting{{ID: "j1", Title: q.Get("q") + "|" + q.Get("type") + "|" + q.Get("industry")}},
			Total: 1,
			Seq:   7,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, url string) (*Client, *session.Session) {
	t.Helper()
	sess := session.New(session.NewFileStore(t.TempDir()))
	return New(url, 5*time.Second, sess), sess
}

func TestLoginBeginsSessionAndLogoutEndsIt(t *testing.T) {
	srv := newFakeAPI(t)
	c, sess := newTestClient(t, srv.URL)
	ctx := context.Background()

	if _, err := c.Me(ctx); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected ErrNoSession before login, got %v", err)
	}

	state, err := c.Login(ctx, "ada@example.com", "Passw0rdOK")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if state.AccessToken != "tok-1" || state.User.ID != "u1" {
		t.Fatalf("unexpected state %+v", state)
	}
	if current, ok := sess.Current(); !ok || current.AccessToken != "tok-1" {
		t.Fatalf("session not begun: %+v", current)
	}

	me, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.Email != "ada@example.com" {
		t.Fatalf("Me = %+v", me)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, ok := sess.Current(); ok {
		t.Fatalf("session still active after logout")
	}
}

func TestLoginFailureReturnsAPIError(t *testing.T) {
	srv := newFakeAPI(t)
	c, sess := newTestClient(t, srv.URL)

	_, err := c.Login(context.Background(), "ada@example.com", "nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Error() != "Invalid email or password. Please try again." {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if _, ok := sess.Current(); ok {
		t.Fatalf("failed login must not begin a session")
	}
}

func TestJobsSendsCriteria(t *testing.T) {
	srv := newFakeAPI(t)
	c, _ := newTestClient(t, srv.URL)

	list, err := c.Jobs(context.Background(), search.Criteria{Term: "go", JobType: "internship", Industry: "Technology"}, 0, 0)
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Title != "go|internship|Technology" || list.Seq != 7 {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestCreateJobReturnsFieldErrors(t *testing.T) {
	srv := newFakeAPI(t)
	c, sess := newTestClient(t, srv.URL)
	if err := sess.Begin(session.State{AccessToken: "tok-1"}); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	_, err := c.CreateJob(context.Background(), map[string]string{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Fields["title"] != "Job title is required" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}
