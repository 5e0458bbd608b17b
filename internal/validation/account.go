package validation

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dawgsconnect/jobboard/types"
)

// Account form fields.
const (
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldEmail           = "email"
	FieldPhoneNumber     = "phoneNumber"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldRole            = "role"
	FieldMajor           = "major"
	FieldGraduationYear  = "graduationYear"
	FieldCompanyName     = "companyName"
	FieldJobTitle        = "jobTitle"
	FieldIndustry        = "industry"
	FieldWebsite         = "website"
)

var accountBaseFields = []string{
	FieldFirstName,
	FieldLastName,
	FieldEmail,
	FieldPhoneNumber,
	FieldPassword,
	FieldConfirmPassword,
	FieldRole,
}

// AccountForm is the sign-up form. Profile carries the role-specific
// fields; a nil Profile means no role has been selected yet.
type AccountForm struct {
	FirstName       string
	LastName        string
	Email           string
	PhoneNumber     string
	Password        string
	ConfirmPassword string
	Profile         RoleProfile
}

// RoleProfile is one of StudentProfile, CompanyRepProfile or AdminProfile.
type RoleProfile interface {
	Role() types.Role
	values() map[string]string
	required() []string
	// validate reports ok=false when field does not belong to the variant.
	validate(field, value string) (msg string, ok bool)
}

type StudentProfile struct {
	Major          string
	GraduationYear string
}

func (StudentProfile) Role() types.Role { return types.RoleStudent }

func (p StudentProfile) values() map[string]string {
	return map[string]string{FieldMajor: p.Major, FieldGraduationYear: p.GraduationYear}
}

func (StudentProfile) required() []string {
	return []string{FieldMajor, FieldGraduationYear}
}

func (StudentProfile) validate(field, value string) (string, bool) {
	switch field {
	case FieldMajor:
		if strings.TrimSpace(value) == "" {
			return "Major is required for students", true
		}
		return "", true
	case FieldGraduationYear:
		value = strings.TrimSpace(value)
		if value == "" {
			return "Graduation year is required for students", true
		}
		if !yearPattern.MatchString(value) {
			return "Please enter a valid graduation year", true
		}
		return "", true
	default:
		return "", false
	}
}

type CompanyRepProfile struct {
	CompanyName string
	JobTitle    string
	Industry    string
	Website     string
}

func (CompanyRepProfile) Role() types.Role { return types.RoleCompanyRep }

func (p CompanyRepProfile) values() map[string]string {
	return map[string]string{
		FieldCompanyName: p.CompanyName,
		FieldJobTitle:    p.JobTitle,
		FieldIndustry:    p.Industry,
		FieldWebsite:     p.Website,
	}
}

func (CompanyRepProfile) required() []string {
	return []string{FieldCompanyName, FieldJobTitle, FieldIndustry}
}

func (CompanyRepProfile) validate(field, value string) (string, bool) {
	switch field {
	case FieldCompanyName:
		return textRule(value, "Company name is required", "", 0), true
	case FieldJobTitle:
		return textRule(value, "Job title is required", "", 0), true
	case FieldIndustry:
		return textRule(value, "Industry is required", "", 0), true
	case FieldWebsite:
		if strings.TrimSpace(value) != "" && !validURL(value) {
			return "Please enter a valid URL (starting with http:// or https://)", true
		}
		return "", true
	default:
		return "", false
	}
}

type AdminProfile struct{}

func (AdminProfile) Role() types.Role { return types.RoleAdmin }

func (AdminProfile) values() map[string]string { return map[string]string{} }

func (AdminProfile) required() []string { return nil }

func (AdminProfile) validate(string, string) (string, bool) { return "", false }

// ProfileFor returns the empty profile variant for a role selection.
func ProfileFor(role string) RoleProfile {
	parsed, ok := types.ParseRole(role)
	if !ok {
		return nil
	}
	switch parsed {
	case types.RoleStudent:
		return StudentProfile{}
	case types.RoleCompanyRep:
		return CompanyRepProfile{}
	default:
		return AdminProfile{}
	}
}

// AccountFormFromValues builds a form from flat field values, choosing the
// profile variant from the role field.
func AccountFormFromValues(values map[string]string) AccountForm {
	form := AccountForm{
		FirstName:       values[FieldFirstName],
		LastName:        values[FieldLastName],
		Email:           values[FieldEmail],
		PhoneNumber:     values[FieldPhoneNumber],
		Password:        values[FieldPassword],
		ConfirmPassword: values[FieldConfirmPassword],
	}
	switch ProfileFor(values[FieldRole]).(type) {
	case StudentProfile:
		form.Profile = StudentProfile{
			Major:          values[FieldMajor],
			GraduationYear: values[FieldGraduationYear],
		}
	case CompanyRepProfile:
		form.Profile = CompanyRepProfile{
			CompanyName: values[FieldCompanyName],
			JobTitle:    values[FieldJobTitle],
			Industry:    values[FieldIndustry],
			Website:     values[FieldWebsite],
		}
	case AdminProfile:
		form.Profile = AdminProfile{}
	}
	return form
}

// ValidateAccountField checks one account field against the rest of the form.
// Role-specific fields only produce errors when the selected role uses them.
func ValidateAccountField(field, value string, form AccountForm) string {
	switch field {
	case FieldFirstName:
		return textRule(value, "First name is required", minLength("First name", 2), 2)
	case FieldLastName:
		return textRule(value, "Last name is required", minLength("Last name", 2), 2)
	case FieldEmail:
		if strings.TrimSpace(value) == "" {
			return "Email is required"
		}
		if !validEmail(value) {
			return "Please enter a valid email address"
		}
		return ""
	case FieldPhoneNumber:
		if strings.TrimSpace(value) == "" {
			return "Phone number is required"
		}
		if phoneDigits(value) < minPhoneDigits {
			return "Please enter a valid phone number"
		}
		return ""
	case FieldPassword:
		return passwordRule(value)
	case FieldConfirmPassword:
		if value == "" {
			return "Please confirm your password"
		}
		if value != form.Password {
			return "Passwords do not match"
		}
		return ""
	case FieldRole:
		if strings.TrimSpace(value) == "" {
			return "Please select a role"
		}
		if _, ok := types.ParseRole(value); !ok {
			return "Please select a valid role"
		}
		return ""
	}

	if form.Profile != nil {
		if msg, ok := form.Profile.validate(field, value); ok {
			return msg
		}
	}
	return ""
}

func passwordRule(value string) string {
	if value == "" {
		return "Password is required"
	}
	if utf8.RuneCountInString(value) < 8 {
		return "Password must be at least 8 characters"
	}
	var lower, upper, digit bool
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return "Password must contain at least one uppercase letter, one lowercase letter, and one number"
	}
	return ""
}

// Values returns the current value of every field the form carries.
func (f AccountForm) Values() map[string]string {
	values := map[string]string{
		FieldFirstName:       f.FirstName,
		FieldLastName:        f.LastName,
		FieldEmail:           f.Email,
		FieldPhoneNumber:     f.PhoneNumber,
		FieldPassword:        f.Password,
		FieldConfirmPassword: f.ConfirmPassword,
		FieldRole:            "",
	}
	if f.Profile != nil {
		values[FieldRole] = string(f.Profile.Role())
		for field, value := range f.Profile.values() {
			values[field] = value
		}
	}
	return values
}

// RequiredFields lists the fields that must be non-blank for the selected role.
func (f AccountForm) RequiredFields() []string {
	fields := append([]string(nil), accountBaseFields...)
	if f.Profile != nil {
		fields = append(fields, f.Profile.required()...)
	}
	return fields
}

// Validate runs every field rule and returns the failing fields.
func (f AccountForm) Validate() Errors {
	errs := Errors{}
	for field, value := range f.Values() {
		errs.Set(field, ValidateAccountField(field, value, f))
	}
	return errs
}

// ValidateChange updates errs after field changed. A password change also
// re-checks a confirmation that was already typed.
func (f AccountForm) ValidateChange(errs Errors, field string) Errors {
	if errs == nil {
		errs = Errors{}
	}
	values := f.Values()
	errs.Set(field, ValidateAccountField(field, values[field], f))
	if field == FieldPassword && f.ConfirmPassword != "" {
		errs.Set(FieldConfirmPassword, ValidateAccountField(FieldConfirmPassword, f.ConfirmPassword, f))
	}
	return errs
}

// IsValid reports whether the form can be submitted.
func (f AccountForm) IsValid() bool {
	return FormValid(f.Values(), f.RequiredFields(), f.Validate())
}

// User builds the profile stored for a newly registered account.
func (f AccountForm) User(id string) types.User {
	user := types.User{
		ID:          id,
		Email:       strings.ToLower(strings.TrimSpace(f.Email)),
		FirstName:   strings.TrimSpace(f.FirstName),
		LastName:    strings.TrimSpace(f.LastName),
		Role:        types.RoleStudent,
		PhoneNumber: strings.TrimSpace(f.PhoneNumber),
	}
	switch p := f.Profile.(type) {
	case StudentProfile:
		user.Major = strings.TrimSpace(p.Major)
		user.GraduationYear, _ = strconv.Atoi(strings.TrimSpace(p.GraduationYear))
	case CompanyRepProfile:
		user.Role = types.RoleCompanyRep
		user.CompanyName = strings.TrimSpace(p.CompanyName)
		user.JobTitle = strings.TrimSpace(p.JobTitle)
		user.Industry = strings.TrimSpace(p.Industry)
	case AdminProfile:
		user.Role = types.RoleAdmin
	}
	return user
}
