package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/dawgsconnect/jobboard/internal/normalize"
	"github.com/dawgsconnect/jobboard/internal/store"
	"github.com/dawgsconnect/jobboard/types"
)

// UserService encapsulates user profile use-cases.
type UserService struct {
	backend store.Backend
	logger  logrus.FieldLogger
}

func NewUserService(backend store.Backend, logger logrus.FieldLogger) *UserService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &UserService{backend: backend, logger: logger}
}

func (s *UserService) fail(op, id string, err error) error {
	s.logger.WithFields(logrus.Fields{"op": op, "user_id": id}).WithError(err).Error("data service call failed")
	return &OperationError{Op: op, Err: err}
}

func (s *UserService) Get(ctx context.Context, id string) (types.User, error) {
	record, err := s.backend.Get(ctx, store.CollectionUsers, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, store.ErrNotFound
		}
		return types.User{}, s.fail("fetch user", id, err)
	}
	return normalize.User(record), nil
}

// Create stores the profile under the authentication subject in user.ID.
func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.Role == "" {
		user.Role = types.RoleStudent
	}
	record, err := s.backend.Create(ctx, store.CollectionUsers, normalize.UserRecord(user))
	if err != nil {
		return types.User{}, s.fail("create user", user.ID, err)
	}
	return normalize.User(record), nil
}

// Update changes the editable profile fields. Email and role stay as they are.
func (s *UserService) Update(ctx context.Context, user types.User) (types.User, error) {
	fields := store.Record{
		"first_name":   user.FirstName,
		"last_name":    user.LastName,
		"phone_number": user.PhoneNumber,
	}
	if user.Major != "" {
		fields["major"] = user.Major
	}
	if user.GraduationYear != 0 {
		fields["graduation_year"] = user.GraduationYear
	}
	if user.CompanyName != "" {
		fields["company_name"] = user.CompanyName
	}
	if user.JobTitle != "" {
		fields["job_title"] = user.JobTitle
	}
	if user.Industry != "" {
		fields["industry"] = user.Industry
	}

	record, err := s.backend.Update(ctx, store.CollectionUsers, user.ID, fields)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, store.ErrNotFound
		}
		return types.User{}, s.fail("update user", user.ID, err)
	}
	return normalize.User(record), nil
}
