package registry

import (
	"context"
)

// Repository is the registry's view of the remote store. Insert and update
// methods return the stored record when the backend sent it back, or nil when
// the caller must re-fetch to learn the authoritative state.
type Repository interface {
	ListPatients(ctx context.Context) ([]Patient, error)
	ListStaff(ctx context.Context) ([]StaffUser, error)
	InsertPatient(ctx context.Context, p *Patient) (*Patient, error)
	UpdatePatient(ctx context.Context, p *Patient) (*Patient, error)
	UpdateAssessment(ctx context.Context, patientID string, a *DoctorAssessment) (*Patient, error)
	DeletePatient(ctx context.Context, id string) error
	InsertStaff(ctx context.Context, s *StaffUser) (*StaffUser, error)
}
