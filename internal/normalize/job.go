package normalize

import (
	"github.com/dawgsconnect/jobboard/internal/store"
	"github.com/dawgsconnect/jobboard/types"
)

// Job converts a data-service record into a JobPosting. It never fails:
// absent strings become "", counters default to 0, an unknown job type
// becomes INTERNSHIP, an unknown status becomes PENDING and an unknown
// contact method becomes EMAIL with an empty value.
func Job(record store.Record) types.JobPosting {
	if record == nil {
		record = store.Record{}
	}

	jobType, ok := types.ParseJobType(text(record, "job_type", "jobType", "type"))
	if !ok {
		jobType = types.JobTypeInternship
	}
	status, ok := types.ParseJobStatus(text(record, "status"))
	if !ok {
		status = types.JobStatusPending
	}

	return types.JobPosting{
		ID:               text(record, store.KeyID),
		Title:            text(record, "title"),
		Company:          text(record, "company"),
		Industry:         text(record, "industry"),
		JobType:          jobType,
		Description:      text(record, "description"),
		Skills:           stringList(record, "skills"),
		Deadline:         timestamp(record, "deadline"),
		ContactMethod:    contactMethod(object(record, "contact_method", "contactMethod")),
		PostedBy:         text(record, "posted_by", "postedBy"),
		Status:           status,
		ViewCount:        count(record, "view_count", "viewCount"),
		ApplicationCount: count(record, "application_count", "applicationCount"),
		CreatedAt:        timestamp(record, store.KeyCreatedAt, "createdAt"),
		UpdatedAt:        timestamp(record, store.KeyUpdatedAt, "updatedAt"),
	}
}

func contactMethod(record store.Record) types.ContactMethod {
	kind, ok := types.ParseContactMethodType(text(record, "type"))
	if !ok {
		return types.ContactMethod{Type: types.ContactEmail}
	}
	return types.ContactMethod{Type: kind, Value: text(record, "value")}
}

// JobRecord is the inverse of Job for well-formed postings.
func JobRecord(job types.JobPosting) store.Record {
	record, err := store.RecordOf(job)
	if err != nil {
		// JobPosting only holds JSON-safe values.
		return store.Record{}
	}
	return record
}

// Jobs normalizes every record, preserving order.
func Jobs(records []store.Record) []types.JobPosting {
	jobs := make([]types.JobPosting, 0, len(records))
	for _, record := range records {
		jobs = append(jobs, Job(record))
	}
	return jobs
}
