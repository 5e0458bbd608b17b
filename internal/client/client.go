// Package client is the HTTP client for the job board API used by the
// command line tool.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dawgsconnect/jobboard/internal/handlers"
	"github.com/dawgsconnect/jobboard/internal/search"
	"github.com/dawgsconnect/jobboard/internal/services"
	"github.com/dawgsconnect/jobboard/internal/session"
	"github.com/dawgsconnect/jobboard/types"
)

// APIError is a non-2xx response. Fields is set for form validation
// failures.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) > 0 {
		return "please correct the highlighted fields"
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

type errorBody struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors"`
}

// Client calls the API on behalf of the session's user.
type Client struct {
	http    *resty.Client
	session *session.Session
}

func New(baseURL string, timeout time.Duration, sess *session.Session) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: httpClient, session: sess}
}

func (c *Client) request(ctx context.Context, authenticated bool) (*resty.Request, error) {
	req := c.http.R().SetContext(ctx).SetError(&errorBody{})
	if authenticated {
		token, err := c.session.Token()
		if err != nil {
			return nil, err
		}
		req.SetAuthToken(token)
	}
	return req, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		apiErr.Message = body.Error
		apiErr.Fields = body.Errors
	}
	return apiErr
}

func jobPath(id string, suffix string) string {
	return "/jobs/" + url.PathEscape(id) + suffix
}

// Register submits the sign-up form values.
func (c *Client) Register(ctx context.Context, values map[string]string) (handlers.RegisterResponse, error) {
	var out handlers.RegisterResponse
	req, _ := c.request(ctx, false)
	err := check(req.SetBody(values).SetResult(&out).Post("/auth/register"))
	return out, err
}

func (c *Client) Confirm(ctx context.Context, email, code string) error {
	req, _ := c.request(ctx, false)
	return check(req.SetBody(handlers.ConfirmRequest{Email: email, Code: code}).Post("/auth/confirm"))
}

// Login signs in and begins the session.
func (c *Client) Login(ctx context.Context, email, password string) (session.State, error) {
	var out handlers.LoginResponse
	req, _ := c.request(ctx, false)
	err := check(req.SetBody(handlers.LoginRequest{Email: email, Password: password}).SetResult(&out).Post("/auth/login"))
	if err != nil {
		return session.State{}, err
	}

	state := session.State{AccessToken: out.Token, ExpiresAt: out.ExpiresAt, User: out.User}
	if err := c.session.Begin(state); err != nil {
		return session.State{}, fmt.Errorf("save session: %w", err)
	}
	return state, nil
}

// Logout revokes the token and ends the session. The local session is
// cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.request(ctx, true)
	if err != nil {
		return err
	}
	callErr := check(req.Post("/auth/logout"))
	if err := c.session.End(); err != nil {
		return err
	}
	if apiErr, ok := callErr.(*APIError); ok && apiErr.Status == http.StatusUnauthorized {
		return nil
	}
	return callErr
}

func (c *Client) Me(ctx context.Context) (types.User, error) {
	var out types.User
	req, err := c.request(ctx, true)
	if err != nil {
		return out, err
	}
	err = check(req.SetResult(&out).Get("/auth/me"))
	return out, err
}

// Jobs lists approved postings matching criteria. page and limit of zero
// use the server defaults.
func (c *Client) Jobs(ctx context.Context, criteria search.Criteria, page, limit int) (handlers.JobListResponse, error) {
	var out handlers.JobListResponse
	params := map[string]string{}
	if criteria.Term != "" {
		params["q"] = criteria.Term
	}
	if criteria.JobType != "" {
		params["type"] = criteria.JobType
	}
	if criteria.Industry != "" {
		params["industry"] = criteria.Industry
	}
	if page > 0 {
		params["page"] = strconv.Itoa(page)
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	req, _ := c.request(ctx, false)
	err := check(req.SetQueryParams(params).SetResult(&out).Get("/jobs"))
	return out, err
}

func (c *Client) Job(ctx context.Context, id string) (types.JobPosting, error) {
	var out types.JobPosting
	req, _ := c.request(ctx, false)
	err := check(req.SetResult(&out).Get(jobPath(id, "")))
	return out, err
}

func (c *Client) MyJobs(ctx context.Context) ([]types.JobPosting, error) {
	var out []types.JobPosting
	req, err := c.request(ctx, true)
	if err != nil {
		return nil, err
	}
	err = check(req.SetResult(&out).Get("/users/me/jobs"))
	return out, err
}

// CreateJob submits the job form values.
func (c *Client) CreateJob(ctx context.Context, values map[string]string) (types.JobPosting, error) {
	var out types.JobPosting
	req, err := c.request(ctx, true)
	if err != nil {
		return out, err
	}
	err = check(req.SetBody(values).SetResult(&out).Post("/jobs"))
	return out, err
}

func (c *Client) SetStatus(ctx context.Context, id string, status types.JobStatus) (types.JobPosting, error) {
	var out types.JobPosting
	req, err := c.request(ctx, true)
	if err != nil {
		return out, err
	}
	err = check(req.SetBody(handlers.StatusRequest{Status: string(status)}).SetResult(&out).Patch(jobPath(id, "/status")))
	return out, err
}

func (c *Client) Apply(ctx context.Context, id string) (services.ApplyAction, error) {
	var out services.ApplyAction
	req, err := c.request(ctx, true)
	if err != nil {
		return out, err
	}
	err = check(req.SetResult(&out).Post(jobPath(id, "/apply")))
	return out, err
}

// ValidateAccount checks one field, or the whole form when field is empty.
func (c *Client) ValidateAccount(ctx context.Context, field string, values map[string]string) (handlers.ValidateResponse, error) {
	return c.validate(ctx, "/validate/account", field, values)
}

func (c *Client) ValidateJob(ctx context.Context, field string, values map[string]string) (handlers.ValidateResponse, error) {
	return c.validate(ctx, "/validate/job", field, values)
}

func (c *Client) validate(ctx context.Context, path, field string, values map[string]string) (handlers.ValidateResponse, error) {
	var out handlers.ValidateResponse
	req, _ := c.request(ctx, false)
	err := check(req.SetBody(handlers.ValidateRequest{Field: field, Values: values}).SetResult(&out).Post(path))
	return out, err
}
