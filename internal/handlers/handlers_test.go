package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/dawgsconnect/jobboard/config"
	"github.com/dawgsconnect/jobboard/internal/auth"
	"github.com/dawgsconnect/jobboard/internal/services"
	"github.com/dawgsconnect/jobboard/internal/store"
	"github.com/dawgsconnect/jobboard/types"
)

const testPassword = "Passw0rdOK"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger, _ := test.NewNullLogger()
	backend := store.NewMemoryBackend()

	provider, err := auth.NewLocalProvider(backend, nil, config.AuthConfig{JWTSecret: "handler-secret"}, logger)
	if err != nil {
		t.Fatalf("NewLocalProvider: %v", err)
	}
	userService := services.NewUserService(backend, logger)
	jobService := services.NewJobService(backend, nil, nil, logger)
	requireAuth := RequireAuth(provider)

	r := chi.NewRouter()
	r.Get("/healthz", Healthz)
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, provider, userService, logger)
	})
	r.Route("/users", func(r chi.Router) {
		UserRouter(r, userService, jobService, requireAuth)
	})
	r.Route("/jobs", func(r chi.Router) {
		JobRouter(r, jobService, userService, requireAuth)
	})
	r.Route("/validate", func(r chi.Router) {
		ValidateRouter(r, nil)
	})
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func accountValues(email, role string) map[string]string {
	values := map[string]string{
		"firstName":       "Ada",
		"lastName":        "Lovelace",
		"email":           email,
		"phoneNumber":     "(555) 123-4567",
		"password":        testPassword,
		"confirmPassword": testPassword,
		"role":            role,
	}
	switch role {
	case "student":
		values["major"] = "Computer Science"
		values["graduationYear"] = "2027"
	case "company_rep":
		values["companyName"] = "Acme"
		values["jobTitle"] = "Recruiter"
		values["industry"] = "Technology"
	}
	return values
}

func jobValues() map[string]string {
	return map[string]string{
		"title":            "Software Engineering Intern",
		"company":          "Acme",
		"industry":         "Technology",
		"jobType":          "internship",
		"description":      "Join the platform team and help build services used by every student.",
		"responsibilities": "Write Go services and review pull requests.",
		"requiredSkills":   "Go, SQL, HTTP",
		"deadline":         time.Now().AddDate(0, 1, 0).Format("2006-01-02"),
		"contactMethod":    "email",
		"contactValue":     "jobs@acme.example.com",
	}
}

// signUp registers an account and returns a bearer token for it.
func signUp(t *testing.T, h http.Handler, email, role string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/auth/register", "", accountValues(email, role))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodPost, "/auth/login", "", LoginRequest{Email: email, Password: testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	return decode[LoginResponse](t, rec).Token
}

func TestHealthz(t *testing.T) {
	rec := doJSON(t, newTestRouter(t), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestRegisterReportsFieldErrors(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{"role": "student"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	resp := decode[ValidationErrorResponse](t, rec)
	want := map[string]string{
		"firstName":      "First name is required",
		"email":          "Email is required",
		"graduationYear": "Graduation year is required for students",
	}
	for field, msg := range want {
		if resp.Errors[field] != msg {
			t.Fatalf("errors[%s] = %q, want %q", field, resp.Errors[field], msg)
		}
	}
	if _, ok := resp.Errors["companyName"]; ok {
		t.Fatalf("company fields should not be checked for students")
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/auth/register", "", accountValues("Ada@Example.com", "student"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status %d body %s", rec.Code, rec.Body.String())
	}
	registered := decode[RegisterResponse](t, rec)
	if registered.ConfirmationRequired {
		t.Fatalf("local accounts without events should not need confirmation")
	}
	if registered.User.Email != "ada@example.com" || registered.User.Role != types.RoleStudent || registered.User.GraduationYear != 2027 {
		t.Fatalf("unexpected profile %+v", registered.User)
	}

	rec = doJSON(t, h, http.MethodPost, "/auth/register", "", accountValues("ada@example.com", "student"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/auth/login", "", LoginRequest{Email: "ada@example.com", Password: "Wrong1234"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status %d", rec.Code)
	}
	if msg := decode[ErrorResponse](t, rec).Error; msg != "Invalid email or password. Please try again." {
		t.Fatalf("bad password message %q", msg)
	}

	rec = doJSON(t, h, http.MethodPost, "/auth/login", "", LoginRequest{Email: "nobody@example.com", Password: testPassword})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{"email": "not-an-email"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed login status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/auth/login", "", LoginRequest{Email: "ada@example.com", Password: testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d body %s", rec.Code, rec.Body.String())
	}
	token := decode[LoginResponse](t, rec).Token

	rec = doJSON(t, h, http.MethodGet, "/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status %d", rec.Code)
	}
	if me := decode[types.User](t, rec); me.ID != registered.User.ID {
		t.Fatalf("me = %+v", me)
	}

	if rec = doJSON(t, h, http.MethodPost, "/auth/logout", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout status %d", rec.Code)
	}
	if rec = doJSON(t, h, http.MethodGet, "/auth/me", token, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout status %d", rec.Code)
	}
	if rec = doJSON(t, h, http.MethodGet, "/auth/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me without token status %d", rec.Code)
	}
}

func TestJobLifecycle(t *testing.T) {
	h := newTestRouter(t)
	rep := signUp(t, h, "rep@acme.example.com", "company_rep")
	admin := signUp(t, h, "admin@example.com", "admin")
	student := signUp(t, h, "student@example.com", "student")

	rec := doJSON(t, h, http.MethodPost, "/jobs", student, jobValues())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("student create status %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/jobs", rep, jobValues())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status %d body %s", rec.Code, rec.Body.String())
	}
	job := decode[types.JobPosting](t, rec)
	if job.Status != types.JobStatusPending || job.JobType != types.JobTypeInternship {
		t.Fatalf("unexpected job %+v", job)
	}
	if !strings.Contains(job.Description, "\n\nWrite Go services") {
		t.Fatalf("responsibilities not appended: %q", job.Description)
	}
	if len(job.Skills) != 3 {
		t.Fatalf("skills = %v", job.Skills)
	}

	if list := decode[JobListResponse](t, doJSON(t, h, http.MethodGet, "/jobs", "", nil)); list.Total != 0 {
		t.Fatalf("pending job listed: %+v", list)
	}
	if rec = doJSON(t, h, http.MethodGet, "/jobs/"+job.ID, "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("pending job visible, status %d", rec.Code)
	}

	status := StatusRequest{Status: "approved"}
	if rec = doJSON(t, h, http.MethodPatch, "/jobs/"+job.ID+"/status", rep, status); rec.Code != http.StatusForbidden {
		t.Fatalf("rep approve status %d", rec.Code)
	}
	if rec = doJSON(t, h, http.MethodPatch, "/jobs/"+job.ID+"/status", admin, status); rec.Code != http.StatusOK {
		t.Fatalf("admin approve status %d body %s", rec.Code, rec.Body.String())
	}
	if rec = doJSON(t, h, http.MethodPatch, "/jobs/"+job.ID+"/status", admin, StatusRequest{Status: "pending"}); rec.Code != http.StatusConflict {
		t.Fatalf("backwards transition status %d", rec.Code)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 1},
		{"?type=internship", 1},
		{"?type=FULL_TIME", 0},
		{"?industry=Technology&q=intern", 1},
		{"?q=kubernetes", 0},
		{"?type=all&industry=all", 1},
	}
	for _, tt := range tests {
		rec := doJSON(t, h, http.MethodGet, "/jobs"+tt.query, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET /jobs%s status %d", tt.query, rec.Code)
		}
		if list := decode[JobListResponse](t, rec); list.Total != tt.want {
			t.Fatalf("GET /jobs%s total %d, want %d", tt.query, list.Total, tt.want)
		}
	}

	rec = doJSON(t, h, http.MethodPost, "/jobs/"+job.ID+"/apply", student, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("apply status %d body %s", rec.Code, rec.Body.String())
	}
	action := decode[services.ApplyAction](t, rec)
	if action.Kind != services.ApplyMailto || !strings.HasPrefix(action.URL, "mailto:jobs@acme.example.com?subject=") {
		t.Fatalf("unexpected apply action %+v", action)
	}

	rec = doJSON(t, h, http.MethodGet, "/jobs/"+job.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status %d", rec.Code)
	}
	if got := decode[types.JobPosting](t, rec); got.ViewCount != 1 || got.ApplicationCount != 1 {
		t.Fatalf("counters = %d/%d, want 1/1", got.ViewCount, got.ApplicationCount)
	}

	mine := decode[[]types.JobPosting](t, doJSON(t, h, http.MethodGet, "/users/me/jobs", rep, nil))
	if len(mine) != 1 || mine[0].ID != job.ID {
		t.Fatalf("my jobs = %+v", mine)
	}

	if rec = doJSON(t, h, http.MethodDelete, "/jobs/"+job.ID, student, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("student delete status %d", rec.Code)
	}
	if rec = doJSON(t, h, http.MethodDelete, "/jobs/"+job.ID, rep, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("owner delete status %d", rec.Code)
	}
	if rec = doJSON(t, h, http.MethodPost, "/jobs/"+job.ID+"/apply", student, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("apply to deleted job status %d", rec.Code)
	}
}

func TestCreateJobValidation(t *testing.T) {
	h := newTestRouter(t)
	rep := signUp(t, h, "rep@acme.example.com", "company_rep")

	values := jobValues()
	values["title"] = "QA"
	values["deadline"] = "2001-01-01"
	rec := doJSON(t, h, http.MethodPost, "/jobs", rep, values)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	errs := decode[ValidationErrorResponse](t, rec).Errors
	if errs["title"] != "Job title must be at least 3 characters" {
		t.Fatalf("title error %q", errs["title"])
	}
	if errs["deadline"] != "Deadline must be in the future" {
		t.Fatalf("deadline error %q", errs["deadline"])
	}

	values = jobValues()
	values["contactMethod"] = "phone"
	values["contactValue"] = "(555) 123-4567"
	rec = doJSON(t, h, http.MethodPost, "/jobs", rep, values)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("phone contact status %d", rec.Code)
	}
	if _, ok := decode[ValidationErrorResponse](t, rec).Errors["contactMethod"]; !ok {
		t.Fatalf("expected contactMethod error")
	}
}

func TestUpdateMe(t *testing.T) {
	h := newTestRouter(t)
	token := signUp(t, h, "student@example.com", "student")

	rec := doJSON(t, h, http.MethodPut, "/users/me", token, map[string]string{"firstName": "A"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", rec.Code)
	}
	if msg := decode[ValidationErrorResponse](t, rec).Errors["firstName"]; msg != "First name must be at least 2 characters" {
		t.Fatalf("firstName error %q", msg)
	}

	rec = doJSON(t, h, http.MethodPut, "/users/me", token, map[string]string{"firstName": "Alan", "major": "Mathematics"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	user := decode[types.User](t, rec)
	if user.FirstName != "Alan" || user.LastName != "Lovelace" || user.Major != "Mathematics" || user.Role != types.RoleStudent {
		t.Fatalf("unexpected profile %+v", user)
	}
}

func TestValidateEndpoints(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/validate/account", "", ValidateRequest{
		Field:  "password",
		Values: map[string]string{"password": "Newpassw0rd", "confirmPassword": "Oldpassw0rd"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	resp := decode[ValidateResponse](t, rec)
	if resp.Valid {
		t.Fatalf("partial form reported valid")
	}
	if _, ok := resp.Errors["password"]; ok {
		t.Fatalf("password should be valid: %v", resp.Errors)
	}
	if resp.Errors["confirmPassword"] != "Passwords do not match" {
		t.Fatalf("confirmPassword error %q", resp.Errors["confirmPassword"])
	}

	rec = doJSON(t, h, http.MethodPost, "/validate/job", "", ValidateRequest{Values: jobValues()})
	if resp := decode[ValidateResponse](t, rec); !resp.Valid || len(resp.Errors) != 0 {
		t.Fatalf("full job form = %+v", resp)
	}

	rec = doJSON(t, h, http.MethodPost, "/validate/job", "", ValidateRequest{
		Field:  "contactValue",
		Values: map[string]string{"contactMethod": "careers_page", "contactValue": "acme.example.com"},
	})
	if msg := decode[ValidateResponse](t, rec).Errors["contactValue"]; msg != "Please enter a valid URL (starting with http:// or https://)" {
		t.Fatalf("contactValue error %q", msg)
	}

	if rec = doJSON(t, h, http.MethodPost, "/validate/job", "", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing values status %d", rec.Code)
	}
}

func TestListJobsPagination(t *testing.T) {
	h := newTestRouter(t)
	cases := []struct {
		query string
		code  int
	}{
		{"", http.StatusOK},
		{"?page=2&limit=5", http.StatusOK},
		{"?page=0", http.StatusBadRequest},
		{"?limit=-1", http.StatusBadRequest},
		{"?page=9223372036854775807", http.StatusBadRequest},
		{"?page=9223372036854775807&limit=1", http.StatusOK},
		{"?page=99999999999999999999", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := doJSON(t, h, http.MethodGet, "/jobs"+tc.query, "", nil)
		if rec.Code != tc.code {
			t.Fatalf("GET /jobs%s: status %d, want %d: %s", tc.query, rec.Code, tc.code, rec.Body.String())
		}
	}
}

func TestWindowClampsBounds(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	cases := []struct {
		offset, limit int
		want          int
	}{
		{0, 2, 2},
		{4, 10, 1},
		{5, 2, 0},
		{-40, 20, 5},
		{2, int(^uint(0) >> 1), 3},
	}
	for _, tc := range cases {
		if got := window(items, tc.offset, tc.limit); len(got) != tc.want {
			t.Fatalf("window(%d, %d): got %v, want %d items", tc.offset, tc.limit, got, tc.want)
		}
	}
}
