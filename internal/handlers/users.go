package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dawgsconnect/jobboard/internal/services"
	"github.com/dawgsconnect/jobboard/internal/store"
	"github.com/dawgsconnect/jobboard/internal/validation"
	"github.com/dawgsconnect/jobboard/types"
)

// Profile fields a user may change after sign-up, by role.
var editableFields = map[types.Role][]string{
	types.RoleStudent:    {validation.FieldMajor, validation.FieldGraduationYear},
	types.RoleCompanyRep: {validation.FieldCompanyName, validation.FieldJobTitle, validation.FieldIndustry},
	types.RoleAdmin:      {},
}

var commonEditableFields = []string{
	validation.FieldFirstName,
	validation.FieldLastName,
	validation.FieldPhoneNumber,
}

// UserHandler provides profile endpoints for the signed-in user.
type UserHandler struct {
	userService *services.UserService
	jobService  *services.JobService
}

func NewUserHandler(userService *services.UserService, jobService *services.JobService) *UserHandler {
	return &UserHandler{userService: userService, jobService: jobService}
}

// UserRouter registers profile routes. Every route requires authentication.
func UserRouter(
	r chi.Router,
	userService *services.UserService,
	jobService *services.JobService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewUserHandler(userService, jobService)

	r.Use(authMiddleware)
	r.Put("/me", handler.UpdateMe)
	r.Get("/me/jobs", handler.MyJobs)
}

// UpdateMe applies the account form rules to the submitted profile fields.
// Fields that are absent from the body keep their stored value.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var values map[string]string
	if err := decodeJSON(w, r, &values); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.Get(r.Context(), identity.Subject)
	if err != nil {
		writeUserError(w, err, "failed to load user")
		return
	}

	merged := profileValues(user)
	fields := append(append([]string(nil), commonEditableFields...), editableFields[user.Role]...)
	for _, field := range fields {
		if value, ok := values[field]; ok {
			merged[field] = value
		}
	}

	form := validation.AccountFormFromValues(merged)
	errs := validation.Errors{}
	for _, field := range fields {
		errs.Set(field, validation.ValidateAccountField(field, merged[field], form))
	}
	if !errs.Valid() {
		writeValidationErrors(w, errs)
		return
	}

	updated, err := h.userService.Update(r.Context(), form.User(user.ID))
	if err != nil {
		writeUserError(w, err, "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// MyJobs lists every posting the caller owns, whatever its status.
func (h *UserHandler) MyJobs(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	jobs, err := h.jobService.ListByOwner(r.Context(), identity.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch jobs")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// profileValues renders a stored profile as account form values.
func profileValues(user types.User) map[string]string {
	values := map[string]string{
		validation.FieldFirstName:   user.FirstName,
		validation.FieldLastName:    user.LastName,
		validation.FieldEmail:       user.Email,
		validation.FieldPhoneNumber: user.PhoneNumber,
		validation.FieldRole:        string(user.Role),
		validation.FieldMajor:       user.Major,
		validation.FieldCompanyName: user.CompanyName,
		validation.FieldJobTitle:    user.JobTitle,
		validation.FieldIndustry:    user.Industry,
	}
	if user.GraduationYear != 0 {
		values[validation.FieldGraduationYear] = strconv.Itoa(user.GraduationYear)
	}
	return values
}

func writeUserError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeError(w, http.StatusInternalServerError, message)
}
