package service

import "errors"

var (
	ErrInvalidDatabase = errors.New("database failed validation")
	ErrNoKey           = errors.New("no composite key given")
	ErrNilDatabase     = errors.New("no database given")
)
