package validation

import (
	"errors"
	"strings"
	"time"

	"github.com/dawgsconnect/jobboard/types"
)

// Job form fields. FieldIndustry is shared with the account form.
const (
	FieldTitle            = "title"
	FieldCompany          = "company"
	FieldJobType          = "jobType"
	FieldDescription      = "description"
	FieldResponsibilities = "responsibilities"
	FieldRequiredSkills   = "requiredSkills"
	FieldDeadline         = "deadline"
	FieldContactMethod    = "contactMethod"
	FieldContactValue     = "contactValue"
)

// Contact method selections offered by the job form.
const (
	ContactMethodEmail       = "email"
	ContactMethodCareersPage = "careers_page"
	ContactMethodPhone       = "phone"
)

var jobRequiredFields = []string{
	FieldTitle,
	FieldCompany,
	FieldIndustry,
	FieldJobType,
	FieldDescription,
	FieldResponsibilities,
	FieldRequiredSkills,
	FieldDeadline,
	FieldContactMethod,
	FieldContactValue,
}

// ErrUnsupportedContact is returned when a form selects a contact method
// that job postings cannot store.
var ErrUnsupportedContact = errors.New("contact method is not supported for job postings")

// ErrInvalidJobForm is returned when converting a form that still has errors.
var ErrInvalidJobForm = errors.New("job form is not valid")

// JobForm is the create/edit job form. Contact is nil until a contact
// method is selected.
type JobForm struct {
	Title            string
	Company          string
	Industry         string
	JobType          string
	Description      string
	Responsibilities string
	RequiredSkills   string
	Deadline         string
	Contact          ContactForm
}

// ContactForm is one of EmailContact, CareersPageContact or PhoneContact.
type ContactForm interface {
	Method() string
	Value() string
	validateValue(value string) string
}

type EmailContact struct{ Address string }

func (EmailContact) Method() string  { return ContactMethodEmail }
func (c EmailContact) Value() string { return c.Address }

func (EmailContact) validateValue(value string) string {
	if !validEmail(value) {
		return "Please enter a valid email address"
	}
	return ""
}

type CareersPageContact struct{ URL string }

func (CareersPageContact) Method() string  { return ContactMethodCareersPage }
func (c CareersPageContact) Value() string { return c.URL }

func (CareersPageContact) validateValue(value string) string {
	if !validURL(value) {
		return "Please enter a valid URL (starting with http:// or https://)"
	}
	return ""
}

type PhoneContact struct{ Number string }

func (PhoneContact) Method() string  { return ContactMethodPhone }
func (c PhoneContact) Value() string { return c.Number }

func (PhoneContact) validateValue(value string) string {
	if !contactPhonePattern.MatchString(value) {
		return "Please enter a valid phone number"
	}
	return ""
}

// ContactFor builds the contact variant for a method selection, or nil
// when the selection is unknown.
func ContactFor(method, value string) ContactForm {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case ContactMethodEmail:
		return EmailContact{Address: value}
	case ContactMethodCareersPage, "careers-page":
		return CareersPageContact{URL: value}
	case ContactMethodPhone:
		return PhoneContact{Number: value}
	default:
		return nil
	}
}

// JobFormFromValues builds a form from flat field values.
func JobFormFromValues(values map[string]string) JobForm {
	return JobForm{
		Title:            values[FieldTitle],
		Company:          values[FieldCompany],
		Industry:         values[FieldIndustry],
		JobType:          values[FieldJobType],
		Description:      values[FieldDescription],
		Responsibilities: values[FieldResponsibilities],
		RequiredSkills:   values[FieldRequiredSkills],
		Deadline:         values[FieldDeadline],
		Contact:          ContactFor(values[FieldContactMethod], values[FieldContactValue]),
	}
}

// ValidateJobField checks one job field against the rest of the form.
// now supplies the clock for the deadline rule.
func ValidateJobField(field, value string, form JobForm, now time.Time) string {
	switch field {
	case FieldTitle:
		return textRule(value, "Job title is required", minLength("Job title", 3), 3)
	case FieldCompany:
		return textRule(value, "Company name is required", minLength("Company name", 2), 2)
	case FieldIndustry:
		return textRule(value, "Industry selection is required", "", 0)
	case FieldJobType:
		if strings.TrimSpace(value) == "" {
			return "Job type selection is required"
		}
		if _, ok := types.ParseJobType(value); !ok {
			return "Please select a valid job type"
		}
		return ""
	case FieldDescription:
		return textRule(value, "Job description is required", minLength("Job description", 50), 50)
	case FieldResponsibilities:
		return textRule(value, "Key responsibilities are required", minLength("Key responsibilities", 30), 30)
	case FieldRequiredSkills:
		return textRule(value, "Required skills are required", minLength("Required skills", 10), 10)
	case FieldDeadline:
		return deadlineRule(value, now)
	case FieldContactMethod:
		if strings.TrimSpace(value) == "" {
			return "Contact method is required"
		}
		if ContactFor(value, "") == nil {
			return "Please select a valid contact method"
		}
		return ""
	case FieldContactValue:
		if strings.TrimSpace(value) == "" {
			return "Contact information is required"
		}
		if form.Contact == nil {
			return ""
		}
		return form.Contact.validateValue(value)
	default:
		return ""
	}
}

// deadlineRule rejects any date that is not strictly after today's midnight.
func deadlineRule(value string, now time.Time) string {
	if strings.TrimSpace(value) == "" {
		return "Application deadline is required"
	}
	deadline, ok := parseDate(value, now.Location())
	if !ok {
		return "Please enter a valid date"
	}
	if !deadline.After(midnight(now)) {
		return "Deadline must be in the future"
	}
	return ""
}

// Values returns the current value of every field the form carries.
func (f JobForm) Values() map[string]string {
	values := map[string]string{
		FieldTitle:            f.Title,
		FieldCompany:          f.Company,
		FieldIndustry:         f.Industry,
		FieldJobType:          f.JobType,
		FieldDescription:      f.Description,
		FieldResponsibilities: f.Responsibilities,
		FieldRequiredSkills:   f.RequiredSkills,
		FieldDeadline:         f.Deadline,
		FieldContactMethod:    "",
		FieldContactValue:     "",
	}
	if f.Contact != nil {
		values[FieldContactMethod] = f.Contact.Method()
		values[FieldContactValue] = f.Contact.Value()
	}
	return values
}

// Validate runs every field rule and returns the failing fields.
func (f JobForm) Validate(now time.Time) Errors {
	errs := Errors{}
	for field, value := range f.Values() {
		errs.Set(field, ValidateJobField(field, value, f, now))
	}
	return errs
}

// IsValid reports whether the form can be submitted.
func (f JobForm) IsValid(now time.Time) bool {
	return FormValid(f.Values(), jobRequiredFields, f.Validate(now))
}

// Posting converts a valid form into a pending job posting owned by owner.
// The description is followed by the responsibilities; skills are split on
// commas and newlines.
func (f JobForm) Posting(owner string, now time.Time) (types.JobPosting, error) {
	if !f.IsValid(now) {
		return types.JobPosting{}, ErrInvalidJobForm
	}

	var contact types.ContactMethod
	switch c := f.Contact.(type) {
	case EmailContact:
		contact = types.ContactMethod{Type: types.ContactEmail, Value: strings.TrimSpace(c.Address)}
	case CareersPageContact:
		contact = types.ContactMethod{Type: types.ContactCareersPage, Value: strings.TrimSpace(c.URL)}
	default:
		return types.JobPosting{}, ErrUnsupportedContact
	}

	jobType, _ := types.ParseJobType(f.JobType)
	deadline, _ := parseDate(f.Deadline, now.Location())

	return types.JobPosting{
		Title:         strings.TrimSpace(f.Title),
		Company:       strings.TrimSpace(f.Company),
		Industry:      strings.TrimSpace(f.Industry),
		JobType:       jobType,
		Description:   strings.TrimSpace(f.Description) + "\n\n" + strings.TrimSpace(f.Responsibilities),
		Skills:        SplitSkills(f.RequiredSkills),
		Deadline:      deadline.UTC(),
		ContactMethod: contact,
		PostedBy:      owner,
		Status:        types.JobStatusPending,
	}, nil
}

// SplitSkills splits free-form skills text on commas and newlines.
func SplitSkills(raw string) []string {
	skills := []string{}
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' }) {
		if part = strings.TrimSpace(part); part != "" {
			skills = append(skills, part)
		}
	}
	return skills
}
