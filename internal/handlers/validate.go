package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dawgsconnect/jobboard/internal/validation"
)

// ValidateRouter exposes the form rules so clients can check fields as
// they are typed. The responses always describe the whole form's validity.
func ValidateRouter(r chi.Router, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	r.Post("/account", validateAccount)
	r.Post("/job", func(w http.ResponseWriter, r *http.Request) {
		validateJob(w, r, now())
	})
}

// ValidateRequest carries the current form values. When Field is set only
// that field's rule runs; otherwise every field is checked.
type ValidateRequest struct {
	Field  string            `json:"field"`
	Values map[string]string `json:"values" validate:"required"`
}

type ValidateResponse struct {
	Valid  bool              `json:"valid"`
	Errors validation.Errors `json:"errors"`
}

func validateAccount(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	form := validation.AccountFormFromValues(req.Values)
	errs := validation.Errors{}
	if req.Field != "" {
		errs = form.ValidateChange(errs, req.Field)
	} else {
		errs = form.Validate()
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: form.IsValid(), Errors: errs})
}

func validateJob(w http.ResponseWriter, r *http.Request, now time.Time) {
	var req ValidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	form := validation.JobFormFromValues(req.Values)
	errs := validation.Errors{}
	if req.Field != "" {
		errs.Set(req.Field, validation.ValidateJobField(req.Field, req.Values[req.Field], form, now))
	} else {
		errs = form.Validate(now)
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: form.IsValid(now), Errors: errs})
}
