package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinicdesk/clinicdesk/internal/platform/store"
)

type storeRepo struct{ st store.Store }

func NewStoreRepo(st store.Store) Repository { return &storeRepo{st: st} }

func (r *storeRepo) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := r.st.Select(ctx, tablePatients, store.Query{Order: "created_at", Desc: true})
	if err != nil {
		return nil, err
	}
	items := make([]Patient, 0, len(rows))
	for _, row := range rows {
		items = append(items, PatientFromRow(row))
	}
	return items, nil
}

func (r *storeRepo) ListStaff(ctx context.Context) ([]StaffUser, error) {
	rows, err := r.st.Select(ctx, tableStaff, store.Query{Order: "created_at", Desc: true})
	if err != nil {
		return nil, err
	}
	items := make([]StaffUser, 0, len(rows))
	for _, row := range rows {
		items = append(items, StaffFromRow(row))
	}
	return items, nil
}

func (r *storeRepo) InsertPatient(ctx context.Context, p *Patient) (*Patient, error) {
	row, err := r.st.Insert(ctx, tablePatients, PatientToRow(p))
	return patientOrNil(row, err)
}

func (r *storeRepo) UpdatePatient(ctx context.Context, p *Patient) (*Patient, error) {
	row := PatientToRow(p)
	delete(row, "id")
	out, err := r.st.Update(ctx, tablePatients, p.ID, row)
	return patientOrNil(out, err)
}

func (r *storeRepo) UpdateAssessment(ctx context.Context, patientID string, a *DoctorAssessment) (*Patient, error) {
	out, err := r.st.Update(ctx, tablePatients, patientID, store.Row{
		"doctor_assessment": assessmentToValue(a),
	})
	return patientOrNil(out, err)
}

func (r *storeRepo) DeletePatient(ctx context.Context, id string) error {
	return translate(r.st.Delete(ctx, tablePatients, id))
}

func (r *storeRepo) InsertStaff(ctx context.Context, s *StaffUser) (*StaffUser, error) {
	row, err := r.st.Insert(ctx, tableStaff, StaffToRow(s))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	out := StaffFromRow(row)
	return &out, nil
}

func patientOrNil(row store.Row, err error) (*Patient, error) {
	if err != nil {
		return nil, translate(err)
	}
	if row == nil {
		return nil, nil
	}
	p := PatientFromRow(row)
	return &p, nil
}

func translate(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
