package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dawgsconnect/jobboard/internal/search"
	"github.com/dawgsconnect/jobboard/internal/services"
	"github.com/dawgsconnect/jobboard/internal/store"
	"github.com/dawgsconnect/jobboard/internal/validation"
	"github.com/dawgsconnect/jobboard/types"
)

// JobHandler provides HTTP handlers for job postings.
type JobHandler struct {
	jobService  *services.JobService
	userService *services.UserService
	now         func() time.Time
}

// NewJobHandler constructs a handler with the provided services.
func NewJobHandler(jobService *services.JobService, userService *services.UserService) *JobHandler {
	return &JobHandler{
		jobService:  jobService,
		userService: userService,
		now:         time.Now,
	}
}

// JobRouter registers job routes on the given router.
func JobRouter(
	r chi.Router,
	jobService *services.JobService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewJobHandler(jobService, userService)

	r.Get("/", handler.ListJobs)
	r.With(authMiddleware).Post("/", handler.CreateJob)
	r.Route("/{jobID}", func(r chi.Router) {
		r.Get("/", handler.GetJob)
		r.With(authMiddleware).Put("/", handler.UpdateJob)
		r.With(authMiddleware).Delete("/", handler.DeleteJob)
		r.With(authMiddleware).Patch("/status", handler.SetStatus)
		r.With(authMiddleware).Post("/apply", handler.Apply)
	})
}

// ListJobs returns approved postings filtered by q, type and industry.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	criteria := search.Criteria{
		Term:     query.Get("q"),
		JobType:  query.Get("type"),
		Industry: query.Get("industry"),
	}

	result, err := h.jobService.Search(r.Context(), criteria)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch jobs")
		return
	}

	writeJSON(w, http.StatusOK, JobListResponse{
		Items:    window(result.Jobs, offset, limit),
		Page:     page,
		Limit:    limit,
		Total:    len(result.Jobs),
		Seq:      result.Seq,
		Fallback: result.Fallback,
	})
}

// GetJob returns an approved posting.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobService.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeJobError(w, err, "failed to fetch job")
		return
	}
	if job.Status != types.JobStatusApproved {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CreateJob validates the job form and stores a pending posting owned by
// the caller.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if !user.Role.CanPostJobs() {
		writeError(w, http.StatusForbidden, "only company representatives can post jobs")
		return
	}

	posting, ok := h.parsePosting(w, r, user.ID)
	if !ok {
		return
	}

	created, err := h.jobService.Create(r.Context(), posting)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *JobHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	user, job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}

	posting, ok := h.parsePosting(w, r, user.ID)
	if !ok {
		return
	}

	updated, err := h.jobService.Update(r.Context(), job.ID, posting)
	if err != nil {
		writeJobError(w, err, "failed to update job")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	_, job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}

	if err := h.jobService.Delete(r.Context(), job.ID); err != nil {
		writeJobError(w, err, "failed to delete job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetStatus moves a posting forward in its lifecycle. Admins review
// postings; owners may only archive their own.
func (h *JobHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, ok := types.ParseJobStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	user, job, ok := h.ownedJob(w, r)
	if !ok {
		return
	}
	if user.Role != types.RoleAdmin && status != types.JobStatusArchived {
		writeError(w, http.StatusForbidden, "only admins can review jobs")
		return
	}

	updated, err := h.jobService.SetStatus(r.Context(), job.ID, status)
	if err != nil {
		if errors.Is(err, services.ErrInvalidTransition) {
			writeError(w, http.StatusConflict, "invalid status transition")
			return
		}
		writeJobError(w, err, "failed to update job status")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Apply returns how the caller should hand off the application.
func (h *JobHandler) Apply(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	action, err := h.jobService.Apply(r.Context(), chi.URLParam(r, "jobID"), identity.Subject)
	if err != nil {
		if errors.Is(err, services.ErrNoContact) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJobError(w, err, "failed to apply")
		return
	}
	writeJSON(w, http.StatusOK, action)
}

func (h *JobHandler) currentUser(w http.ResponseWriter, r *http.Request) (types.User, bool) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.User{}, false
	}

	user, err := h.userService.Get(r.Context(), identity.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return types.User{}, false
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return types.User{}, false
	}
	return user, true
}

// ownedJob loads the URL's posting and checks that the caller owns it or
// is an admin.
func (h *JobHandler) ownedJob(w http.ResponseWriter, r *http.Request) (types.User, types.JobPosting, bool) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return types.User{}, types.JobPosting{}, false
	}

	job, err := h.jobService.GetOwned(r.Context(), chi.URLParam(r, "jobID"), user)
	if err != nil {
		writeJobError(w, err, "failed to fetch job")
		return types.User{}, types.JobPosting{}, false
	}
	return user, job, true
}

func (h *JobHandler) parsePosting(w http.ResponseWriter, r *http.Request, owner string) (types.JobPosting, bool) {
	var values map[string]string
	if err := decodeJSON(w, r, &values); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return types.JobPosting{}, false
	}

	now := h.now()
	form := validation.JobFormFromValues(values)
	if !form.IsValid(now) {
		writeValidationErrors(w, form.Validate(now))
		return types.JobPosting{}, false
	}

	posting, err := form.Posting(owner, now)
	if err != nil {
		if errors.Is(err, validation.ErrUnsupportedContact) {
			writeValidationErrors(w, validation.Errors{
				validation.FieldContactMethod: "Phone applications are not supported for job postings",
			})
			return types.JobPosting{}, false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return types.JobPosting{}, false
	}
	return posting, true
}

func writeJobError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if errors.Is(err, services.ErrForbidden) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeError(w, http.StatusInternalServerError, message)
}

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// JobListResponse is the paginated job list payload. Seq numbers the search
// so clients can drop stale responses; Fallback marks results filtered from
// the last known collection.
type JobListResponse struct {
	Items    []types.JobPosting `json:"items"`
	Page     int                `json:"page"`
	Limit    int                `json:"limit"`
	Total    int                `json:"total"`
	Seq      uint64             `json:"seq"`
	Fallback bool               `json:"fallback"`
}
