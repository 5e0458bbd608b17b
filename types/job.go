package types

import (
	"encoding/json"
	"strings"
	"time"
)

// JobPosting represents a job listing published on the board.
// Postings are owned by the user that created them and move through
// a fixed review lifecycle before students can see them.
type JobPosting struct {
	// ID is the opaque, server-assigned identifier of the posting.
	ID string `json:"id"`

	// Title is the human-readable name of the position.
	Title string `json:"title"`

	// Company is the name of the hiring company.
	Company string `json:"company"`

	// Industry is the industry the position belongs to (e.g., "Technology").
	Industry string `json:"industry"`

	// JobType is the kind of engagement offered.
	JobType JobType `json:"job_type"`

	// Description contains the full posting text.
	Description string `json:"description"`

	// Skills lists the skills requested by the employer, in display order.
	Skills []string `json:"skills"`

	// Deadline is the last moment applications are accepted.
	Deadline time.Time `json:"deadline"`

	// ContactMethod tells applicants how to apply.
	ContactMethod ContactMethod `json:"contact_method"`

	// PostedBy is the identifier of the user that owns the posting.
	PostedBy string `json:"posted_by"`

	// Status is the current review status of the posting.
	Status JobStatus `json:"status"`

	// ViewCount counts how many times students showed interest.
	ViewCount int `json:"view_count"`

	// ApplicationCount counts recorded applications.
	ApplicationCount int `json:"application_count"`

	// CreatedAt is the timestamp at which the posting was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the posting.
	UpdatedAt time.Time `json:"updated_at"`
}

// JobType represents the kind of engagement a posting offers.
type JobType string

// Supported job types.
const (
	JobTypeInternship JobType = "INTERNSHIP"
	JobTypeFullTime   JobType = "FULL_TIME"
	JobTypeContract   JobType = "CONTRACT"
)

// ParseJobType accepts the wire form ("FULL_TIME") as well as the form
// values used by clients ("full-time", "Full time").
func ParseJobType(raw string) (JobType, bool) {
	canonical := strings.ToUpper(strings.TrimSpace(raw))
	canonical = strings.NewReplacer("-", "_", " ", "_").Replace(canonical)
	switch JobType(canonical) {
	case JobTypeInternship, JobTypeFullTime, JobTypeContract:
		return JobType(canonical), true
	default:
		return "", false
	}
}

// JobStatus represents the review status of a posting.
type JobStatus string

// Lifecycle stages, in order.
const (
	JobStatusDraft    JobStatus = "DRAFT"
	JobStatusPending  JobStatus = "PENDING"
	JobStatusApproved JobStatus = "APPROVED"
	JobStatusArchived JobStatus = "ARCHIVED"
)

// ParseJobStatus parses a status name case-insensitively.
func ParseJobStatus(raw string) (JobStatus, bool) {
	status := JobStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if status.stage() < 0 {
		return "", false
	}
	return status, true
}

func (s JobStatus) stage() int {
	switch s {
	case JobStatusDraft:
		return 0
	case JobStatusPending:
		return 1
	case JobStatusApproved:
		return 2
	case JobStatusArchived:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next goes strictly
// forward in the DRAFT -> PENDING -> APPROVED -> ARCHIVED lifecycle.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	from, to := s.stage(), next.stage()
	return from >= 0 && to > from
}

// ContactMethodType discriminates the ContactMethod variant.
type ContactMethodType string

// Supported contact methods.
const (
	ContactEmail       ContactMethodType = "EMAIL"
	ContactCareersPage ContactMethodType = "CAREERS_PAGE"
)

// ContactMethod is a tagged value: an email address for EMAIL or a URL
// for CAREERS_PAGE.
type ContactMethod struct {
	Type  ContactMethodType `json:"type"`
	Value string            `json:"value"`
}

// ParseContactMethodType parses a contact method name case-insensitively.
func ParseContactMethodType(raw string) (ContactMethodType, bool) {
	canonical := strings.ToUpper(strings.TrimSpace(raw))
	canonical = strings.NewReplacer("-", "_", " ", "_").Replace(canonical)
	switch ContactMethodType(canonical) {
	case ContactEmail, ContactCareersPage:
		return ContactMethodType(canonical), true
	default:
		return "", false
	}
}

// MarshalJSON keeps the skills list an array even when empty.
func (j JobPosting) MarshalJSON() ([]byte, error) {
	type plain JobPosting
	if j.Skills == nil {
		j.Skills = []string{}
	}
	return json.Marshal(plain(j))
}
