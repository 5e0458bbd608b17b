// Package search filters job postings by free text, job type and industry.
package search

import (
	"strings"

	"github.com/dawgsconnect/jobboard/types"
)

// All disables a selector criterion.
const All = "all"

// Criteria selects job postings. Empty or "all" selectors match everything.
type Criteria struct {
	Term     string `json:"term"`
	JobType  string `json:"job_type"`
	Industry string `json:"industry"`
}

func selectorActive(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && !strings.EqualFold(value, All)
}

// Active reports whether any criterion narrows the result.
func (c Criteria) Active() bool {
	return c.Term != "" || selectorActive(c.JobType) || selectorActive(c.Industry)
}

// RemoteFilter returns the equality conditions the data service can apply.
// The free-text term is never included.
func (c Criteria) RemoteFilter() map[string]string {
	filter := map[string]string{"status": string(types.JobStatusApproved)}
	if selectorActive(c.JobType) {
		jobType, ok := types.ParseJobType(c.JobType)
		if !ok {
			jobType = types.JobType(strings.TrimSpace(c.JobType))
		}
		filter["job_type"] = string(jobType)
	}
	if selectorActive(c.Industry) {
		filter["industry"] = strings.TrimSpace(c.Industry)
	}
	return filter
}

// Filter returns the postings matching c, keeping their input order.
// With no active criteria the input is returned unchanged.
func Filter(jobs []types.JobPosting, c Criteria) []types.JobPosting {
	if !c.Active() {
		return jobs
	}

	matched := make([]types.JobPosting, 0, len(jobs))
	for _, job := range jobs {
		if c.Matches(job) {
			matched = append(matched, job)
		}
	}
	return matched
}

// Matches reports whether a single posting satisfies every active criterion.
func (c Criteria) Matches(job types.JobPosting) bool {
	if selectorActive(c.JobType) {
		jobType, ok := types.ParseJobType(c.JobType)
		if !ok || job.JobType != jobType {
			return false
		}
	}
	if selectorActive(c.Industry) && job.Industry != strings.TrimSpace(c.Industry) {
		return false
	}
	return matchesTerm(job, c.Term)
}

// matchesTerm is a case-insensitive substring test over title, company,
// description and skills.
func matchesTerm(job types.JobPosting, term string) bool {
	term = strings.ToLower(term)
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(job.Title), term) ||
		strings.Contains(strings.ToLower(job.Company), term) ||
		strings.Contains(strings.ToLower(job.Description), term) {
		return true
	}
	for _, skill := range job.Skills {
		if strings.Contains(strings.ToLower(skill), term) {
			return true
		}
	}
	return false
}
