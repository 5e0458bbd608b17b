//go:build e2e

package e2e

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/dawgsconnect/jobboard/config"
	"github.com/dawgsconnect/jobboard/internal/client"
	"github.com/dawgsconnect/jobboard/internal/db"
	"github.com/dawgsconnect/jobboard/internal/search"
	"github.com/dawgsconnect/jobboard/internal/server"
	"github.com/dawgsconnect/jobboard/internal/services"
	"github.com/dawgsconnect/jobboard/internal/session"
	"github.com/dawgsconnect/jobboard/types"
)

const (
	serverPort = 18080
	password   = "Passw0rdOK"
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	setTestEnv()
	cfg := config.LoadConfig()

	if err := waitForPostgres(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	logger, _ := test.NewNullLogger()
	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}
	go func() {
		_ = srv.Start()
	}()

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	suffix := time.Now().UnixNano()

	rep := signedIn(t, fmt.Sprintf("rep_%d@example.com", suffix), map[string]string{
		"role":        "company_rep",
		"companyName": "Acme",
		"jobTitle":    "Recruiter",
		"industry":    "Technology",
	})
	admin := signedIn(t, fmt.Sprintf("admin_%d@example.com", suffix), map[string]string{"role": "admin"})
	student := signedIn(t, fmt.Sprintf("student_%d@example.com", suffix), map[string]string{
		"role":           "student",
		"major":          "Computer Science",
		"graduationYear": "2027",
	})

	title := fmt.Sprintf("Platform Intern %d", suffix)
	job, err := rep.CreateJob(ctx, map[string]string{
		"title":            title,
		"company":          "Acme",
		"industry":         "Technology",
		"jobType":          "internship",
		"description":      "Join the platform team and help build services used by every student.",
		"responsibilities": "Write Go services and review pull requests.",
		"requiredSkills":   "Go, SQL, HTTP",
		"deadline":         time.Now().AddDate(0, 1, 0).Format("2006-01-02"),
		"contactMethod":    "email",
		"contactValue":     "jobs@acme.example.com",
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if job.Status != types.JobStatusPending {
		t.Fatalf("new job status = %s", job.Status)
	}

	if found := searchTitle(t, student, title); found {
		t.Fatalf("pending job must not be listed")
	}

	if _, err := student.SetStatus(ctx, job.ID, types.JobStatusApproved); !hasStatus(err, http.StatusForbidden) {
		t.Fatalf("student approve: %v", err)
	}
	if _, err := admin.SetStatus(ctx, job.ID, types.JobStatusApproved); err != nil {
		t.Fatalf("admin approve: %v", err)
	}
	if found := searchTitle(t, student, title); !found {
		t.Fatalf("approved job missing from search")
	}

	action, err := student.Apply(ctx, job.ID)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if action.Kind != services.ApplyMailto {
		t.Fatalf("unexpected apply action %+v", action)
	}

	fetched, err := student.Job(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if fetched.ApplicationCount != 1 {
		t.Fatalf("application count = %d", fetched.ApplicationCount)
	}

	if _, err := rep.SetStatus(ctx, job.ID, types.JobStatusArchived); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := student.Job(ctx, job.ID); !hasStatus(err, http.StatusNotFound) {
		t.Fatalf("archived job should be hidden, got %v", err)
	}

	mine, err := rep.MyJobs(ctx)
	if err != nil {
		t.Fatalf("my jobs: %v", err)
	}
	if len(mine) != 1 || mine[0].Status != types.JobStatusArchived {
		t.Fatalf("unexpected owner listing %+v", mine)
	}
}

// signedIn registers an account with the shared fields plus extra and
// returns a client holding its session.
func signedIn(t *testing.T, email string, extra map[string]string) *client.Client {
	t.Helper()
	values := map[string]string{
		"firstName":       "Ada",
		"lastName":        "Lovelace",
		"email":           email,
		"phoneNumber":     "(555) 123-4567",
		"password":        password,
		"confirmPassword": password,
	}
	for k, v := range extra {
		values[k] = v
	}

	c := client.New(baseURL, 10*time.Second, session.New(session.NewFileStore(t.TempDir())))
	if _, err := c.Register(context.Background(), values); err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	if _, err := c.Login(context.Background(), email, password); err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return c
}

func searchTitle(t *testing.T, c *client.Client, title string) bool {
	t.Helper()
	list, err := c.Jobs(context.Background(), search.Criteria{Term: title, JobType: "internship"}, 1, 100)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, job := range list.Items {
		if job.Title == title {
			return true
		}
	}
	return false
}

func hasStatus(err error, status int) bool {
	var apiErr *client.APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func setTestEnv() {
	env := map[string]string{
		"JWT_SECRET":       "test-secret",
		"SERVER_PORT":      fmt.Sprintf("%d", serverPort),
		"DATA_BACKEND":     config.BackendPostgres,
		"DB_HOST":          "localhost",
		"DB_PORT":          "5432",
		"DB_USER":          "jobboard",
		"DB_PASSWORD":      "password",
		"DB_NAME":          "jobboard_db",
		"DB_USE_SSL":       "false",
		"STORAGE_BACKEND":  "minio",
		"MINIO_ACCESS_KEY": "minioadmin",
		"MINIO_SECRET_KEY": "minioadmin",
		"MINIO_BUCKET":     "jobboard",
	}
	for k, v := range env {
		_ = os.Setenv(k, v)
	}
}

func waitForPostgres(ctx context.Context, cfg config.Config) error {
	conn, err := sql.Open("postgres", db.URL(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	httpClient := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := httpClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string, cfg config.Config) error {
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")
	migrator, err := migrate.New(migrationsURL, db.URL(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
