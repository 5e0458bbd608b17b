package types

import (
	"strings"
	"time"
)

// User represents an account profile in the system.
// The identifier is the subject issued by the authentication provider,
// so a profile is always linked to exactly one set of credentials.
type User struct {
	// ID is the authentication subject that owns this profile.
	ID string `json:"id"`

	// Email is the user's email address.
	Email string `json:"email"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"last_name"`

	// Role indicates what the user can do on the board.
	Role Role `json:"role"`

	// PhoneNumber is the user's contact phone number.
	PhoneNumber string `json:"phone_number"`

	// Major is set for students only.
	Major string `json:"major,omitempty"`

	// GraduationYear is set for students only.
	GraduationYear int `json:"graduation_year,omitempty"`

	// CompanyName is set for company representatives only.
	CompanyName string `json:"company_name,omitempty"`

	// JobTitle is set for company representatives only.
	JobTitle string `json:"job_title,omitempty"`

	// Industry is set for company representatives only.
	Industry string `json:"industry,omitempty"`

	// CreatedAt is the timestamp when the profile was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the profile.
	UpdatedAt time.Time `json:"updated_at"`
}

// Role represents a user's role on the board.
type Role string

// Supported roles.
const (
	RoleStudent    Role = "STUDENT"
	RoleCompanyRep Role = "COMPANY_REP"
	RoleAdmin      Role = "ADMIN"
)

// ParseRole accepts "STUDENT", "student", "company-rep" and similar spellings.
func ParseRole(raw string) (Role, bool) {
	canonical := strings.ToUpper(strings.TrimSpace(raw))
	canonical = strings.NewReplacer("-", "_", " ", "_").Replace(canonical)
	switch Role(canonical) {
	case RoleStudent, RoleCompanyRep, RoleAdmin:
		return Role(canonical), true
	default:
		return "", false
	}
}

// CanPostJobs reports whether the role may create job postings.
func (r Role) CanPostJobs() bool {
	return r == RoleCompanyRep || r == RoleAdmin
}
