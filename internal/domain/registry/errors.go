package registry

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrMissingID         = errors.New("id is required")
	ErrInvalidPatient    = errors.New("invalid patient")
	ErrInvalidAssessment = errors.New("surgery recommendation requires pain severity, affordability, conversion readiness and procedure")
	ErrInvalidStaff      = errors.New("invalid staff user")
)
