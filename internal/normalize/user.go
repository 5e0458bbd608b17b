package normalize

import (
	"strconv"
	"strings"

	"github.com/dawgsconnect/jobboard/internal/store"
	"github.com/dawgsconnect/jobboard/types"
)

// User converts a data-service record into a User profile. A missing or
// unknown role defaults to STUDENT.
func User(record store.Record) types.User {
	if record == nil {
		record = store.Record{}
	}

	role, ok := types.ParseRole(text(record, "role"))
	if !ok {
		role = types.RoleStudent
	}

	return types.User{
		ID:             text(record, store.KeyID),
		Email:          text(record, "email"),
		FirstName:      text(record, "first_name", "firstName"),
		LastName:       text(record, "last_name", "lastName"),
		Role:           role,
		PhoneNumber:    text(record, "phone_number", "phoneNumber"),
		Major:          text(record, "major"),
		GraduationYear: year(record),
		CompanyName:    text(record, "company_name", "companyName"),
		JobTitle:       text(record, "job_title", "jobTitle"),
		Industry:       text(record, "industry"),
		CreatedAt:      timestamp(record, store.KeyCreatedAt, "createdAt"),
		UpdatedAt:      timestamp(record, store.KeyUpdatedAt, "updatedAt"),
	}
}

func year(record store.Record) int {
	raw := strings.TrimSpace(text(record, "graduation_year", "graduationYear"))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// UserRecord is the inverse of User for well-formed profiles.
func UserRecord(user types.User) store.Record {
	record, err := store.RecordOf(user)
	if err != nil {
		return store.Record{}
	}
	return record
}
