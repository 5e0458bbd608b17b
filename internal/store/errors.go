package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnknownCollection is returned for collections the data service does not hold.
var ErrUnknownCollection = errors.New("unknown collection")

// ErrConflict is returned when a conditional write keeps losing to concurrent writers.
var ErrConflict = errors.New("write conflict")
