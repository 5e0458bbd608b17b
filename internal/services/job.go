package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dawgsconnect/jobboard/internal/mq"
	"github.com/dawgsconnect/jobboard/internal/normalize"
	"github.com/dawgsconnect/jobboard/internal/search"
	"github.com/dawgsconnect/jobboard/internal/store"
	"github.com/dawgsconnect/jobboard/types"
)

// EventPublisher publishes JSON events. *mq.MQ satisfies it, including a nil one.
type EventPublisher interface {
	PublishEvent(ctx context.Context, channel string, event any) error
}

// SnapshotStore keeps a copy of the approved job collection.
type SnapshotStore interface {
	Save(ctx context.Context, jobs []types.JobPosting) error
	Load(ctx context.Context) ([]types.JobPosting, time.Time, error)
}

// Apply action kinds.
const (
	ApplyMailto = "mailto"
	ApplyURL    = "url"
)

// ApplyAction tells the client how to hand the application off: open a
// pre-filled mail draft or open the careers page in a new tab.
type ApplyAction struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// JobService encapsulates job posting use-cases.
type JobService struct {
	backend   store.Backend
	events    EventPublisher
	snapshots SnapshotStore
	engine    *search.Engine
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewJobService wires the facade. events and snapshots may be nil
// interfaces; a nil events publisher makes Apply count applications inline.
func NewJobService(backend store.Backend, events EventPublisher, snapshots SnapshotStore, logger logrus.FieldLogger) *JobService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &JobService{
		backend:   backend,
		events:    events,
		snapshots: snapshots,
		logger:    logger,
		now:       time.Now,
	}
	s.engine = search.NewEngine(s, logger)
	return s
}

func (s *JobService) fail(op string, err error, fields logrus.Fields) error {
	s.logger.WithFields(fields).WithField("op", op).WithError(err).Error("data service call failed")
	return &OperationError{Op: op, Err: err}
}

// ListApproved returns every approved posting and remembers it as the known
// collection for search fallbacks.
func (s *JobService) ListApproved(ctx context.Context) ([]types.JobPosting, error) {
	records, err := s.backend.List(ctx, store.CollectionJobs, store.Filter{"status": string(types.JobStatusApproved)})
	if err != nil {
		return nil, s.fail("fetch jobs", err, nil)
	}
	jobs := normalize.Jobs(records)
	s.engine.SetKnown(jobs)
	if s.snapshots != nil {
		if err := s.snapshots.Save(ctx, jobs); err != nil {
			s.logger.WithError(err).Warn("failed to save job snapshot")
		}
	}
	return jobs, nil
}

// Query runs an equality-filtered listing. It backs the search engine.
func (s *JobService) Query(ctx context.Context, filter map[string]string) ([]types.JobPosting, error) {
	records, err := s.backend.List(ctx, store.CollectionJobs, store.Filter(filter))
	if err != nil {
		return nil, s.fail("fetch jobs", err, logrus.Fields{"filter": filter})
	}
	return normalize.Jobs(records), nil
}

// Search lists approved jobs matching c. Without criteria it refreshes the
// known collection; with criteria a data service failure falls back to it.
func (s *JobService) Search(ctx context.Context, c search.Criteria) (search.Result, error) {
	if !c.Active() {
		jobs, err := s.ListApproved(ctx)
		if err != nil {
			return search.Result{}, err
		}
		return search.Result{Jobs: jobs}, nil
	}
	return s.engine.Search(ctx, c), nil
}

// Warm seeds the known collection from the last snapshot, if any.
func (s *JobService) Warm(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	jobs, savedAt, err := s.snapshots.Load(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("failed to load job snapshot")
		return
	}
	if jobs == nil {
		return
	}
	s.engine.SetKnown(jobs)
	s.logger.WithFields(logrus.Fields{"jobs": len(jobs), "saved_at": savedAt}).Info("loaded job snapshot")
}

func (s *JobService) Get(ctx context.Context, id string) (types.JobPosting, error) {
	record, err := s.backend.Get(ctx, store.CollectionJobs, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.JobPosting{}, store.ErrNotFound
		}
		return types.JobPosting{}, s.fail("fetch job", err, logrus.Fields{"job_id": id})
	}
	return normalize.Job(record), nil
}

// GetOwned loads a posting for editing. Only its owner or an admin may edit it.
func (s *JobService) GetOwned(ctx context.Context, id string, user types.User) (types.JobPosting, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return types.JobPosting{}, err
	}
	if job.PostedBy != user.ID && user.Role != types.RoleAdmin {
		return types.JobPosting{}, ErrForbidden
	}
	return job, nil
}

func (s *JobService) ListByOwner(ctx context.Context, owner string) ([]types.JobPosting, error) {
	records, err := s.backend.List(ctx, store.CollectionJobs, store.Filter{"posted_by": owner})
	if err != nil {
		return nil, s.fail("fetch jobs", err, logrus.Fields{"user_id": owner})
	}
	return normalize.Jobs(records), nil
}

// Create stores a new posting. The data service assigns the identifier;
// counters always start at zero and status defaults to PENDING.
func (s *JobService) Create(ctx context.Context, job types.JobPosting) (types.JobPosting, error) {
	job.ID = ""
	job.ViewCount = 0
	job.ApplicationCount = 0
	if job.Status == "" {
		job.Status = types.JobStatusPending
	}
	if job.Skills == nil {
		job.Skills = []string{}
	}

	record, err := s.backend.Create(ctx, store.CollectionJobs, normalize.JobRecord(job))
	if err != nil {
		return types.JobPosting{}, s.fail("create job", err, logrus.Fields{"user_id": job.PostedBy})
	}
	created := normalize.Job(record)

	event := mq.JobCreatedEvent{
		JobID:    created.ID,
		Title:    created.Title,
		Company:  created.Company,
		PostedBy: created.PostedBy,
		At:       s.now().UTC(),
	}
	if err := s.publish(ctx, mq.ChannelJobCreated, event); err != nil {
		s.logger.WithField("job_id", created.ID).WithError(err).Warn("failed to publish job created event")
	}
	return created, nil
}

// Update replaces the editable content of a posting. Ownership, status and
// counters are left untouched.
func (s *JobService) Update(ctx context.Context, id string, job types.JobPosting) (types.JobPosting, error) {
	fields := normalize.JobRecord(job)
	for _, key := range []string{"posted_by", "status", "view_count", "application_count"} {
		delete(fields, key)
	}

	record, err := s.backend.Update(ctx, store.CollectionJobs, id, fields)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.JobPosting{}, store.ErrNotFound
		}
		return types.JobPosting{}, s.fail("update job", err, logrus.Fields{"job_id": id})
	}
	return normalize.Job(record), nil
}

// SetStatus moves a posting forward in DRAFT -> PENDING -> APPROVED -> ARCHIVED.
func (s *JobService) SetStatus(ctx context.Context, id string, status types.JobStatus) (types.JobPosting, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return types.JobPosting{}, err
	}
	if !current.Status.CanTransitionTo(status) {
		return types.JobPosting{}, ErrInvalidTransition
	}

	record, err := s.backend.Update(ctx, store.CollectionJobs, id, store.Record{"status": string(status)})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.JobPosting{}, store.ErrNotFound
		}
		return types.JobPosting{}, s.fail("update job status", err, logrus.Fields{"job_id": id, "status": status})
	}
	return normalize.Job(record), nil
}

func (s *JobService) Delete(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, store.CollectionJobs, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrNotFound
		}
		return s.fail("delete job", err, logrus.Fields{"job_id": id})
	}
	return nil
}

// IncrementViewCount is best-effort: failures are logged and never returned.
func (s *JobService) IncrementViewCount(ctx context.Context, id string) {
	s.increment(ctx, id, "view_count")
}

// IncrementApplicationCount is best-effort like IncrementViewCount.
func (s *JobService) IncrementApplicationCount(ctx context.Context, id string) {
	s.increment(ctx, id, "application_count")
}

func (s *JobService) increment(ctx context.Context, id, field string) {
	if _, err := s.backend.Increment(ctx, store.CollectionJobs, id, field); err != nil {
		s.logger.WithFields(logrus.Fields{"job_id": id, "field": field}).WithError(err).Warn("failed to increment counter")
	}
}

// Apply records interest in an approved posting and returns the hand-off
// action. The application count is bumped by the job.applied consumer when
// events are enabled, and directly otherwise.
func (s *JobService) Apply(ctx context.Context, id, userID string) (ApplyAction, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return ApplyAction{}, err
	}
	if job.Status != types.JobStatusApproved {
		return ApplyAction{}, store.ErrNotFound
	}

	action, err := applyAction(job)
	if err != nil {
		return ApplyAction{}, err
	}

	s.IncrementViewCount(ctx, id)

	if s.events == nil {
		s.IncrementApplicationCount(ctx, id)
		return action, nil
	}
	event := mq.JobAppliedEvent{JobID: id, UserID: userID, At: s.now().UTC()}
	if err := s.publish(ctx, mq.ChannelJobApplied, event); err != nil {
		s.logger.WithField("job_id", id).WithError(err).Warn("failed to publish job applied event")
	}
	return action, nil
}

// Subscriber consumes events from a channel until its context is done.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// CountApplications consumes job.applied events and bumps the posting's
// application count. Events for deleted postings are dropped.
func (s *JobService) CountApplications(ctx context.Context, sub Subscriber) error {
	return sub.Subscribe(ctx, mq.ChannelJobApplied, s.handleApplied)
}

func (s *JobService) handleApplied(ctx context.Context, msg mq.Message) error {
	var event mq.JobAppliedEvent
	if err := mq.Decode(msg, &event); err != nil {
		s.logger.WithField("message_id", msg.ID).WithError(err).Warn("dropping malformed job applied event")
		return err
	}
	if event.JobID == "" {
		return mq.Permanent(errors.New("job applied event without job id"))
	}

	if _, err := s.backend.Increment(ctx, store.CollectionJobs, event.JobID, "application_count"); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mq.Permanent(err)
		}
		s.logger.WithField("job_id", event.JobID).WithError(err).Warn("failed to count application, will retry")
		return err
	}
	return nil
}

func (s *JobService) publish(ctx context.Context, channel string, event any) error {
	if s.events == nil {
		return nil
	}
	return s.events.PublishEvent(ctx, channel, event)
}

// ErrNoContact is returned when a posting has nowhere to send applicants.
var ErrNoContact = errors.New("job posting has no contact information")

func applyAction(job types.JobPosting) (ApplyAction, error) {
	value := strings.TrimSpace(job.ContactMethod.Value)
	if value == "" {
		return ApplyAction{}, ErrNoContact
	}

	switch job.ContactMethod.Type {
	case types.ContactCareersPage:
		return ApplyAction{Kind: ApplyURL, URL: value}, nil
	default:
		subject := "Application for " + job.Title
		body := "Dear Hiring Manager,\n\nI am interested in applying for the " + job.Title +
			" position at " + job.Company + ".\n\nBest regards"
		return ApplyAction{
			Kind: ApplyMailto,
			URL:  "mailto:" + value + "?subject=" + mailEscape(subject) + "&body=" + mailEscape(body),
		}, nil
	}
}

// mailEscape percent-encodes for mailto headers, where "+" is not a space.
func mailEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
