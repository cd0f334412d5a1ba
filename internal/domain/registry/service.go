package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/lock"
)

type SyncState string

const (
	SyncSaved  SyncState = "saved"
	SyncSaving SyncState = "saving"
	SyncError  SyncState = "error"
)

// SyncStatus is the passive last-sync signal. Callers that need the reason
// for a particular failure use the error returned by the operation instead.
type SyncStatus struct {
	State     SyncState `json:"state"`
	LastError string    `json:"lastError,omitempty"`
	InFlight  int       `json:"inFlight"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is an immutable view of the registry. The slices are never
// modified after publication, so holders may keep them across writes.
type Snapshot struct {
	Patients     []Patient     `json:"patients"`
	Appointments []Appointment `json:"appointments"`
	Staff        []StaffUser   `json:"staff"`
	RefreshedAt  time.Time     `json:"refreshedAt"`
}

// ConvertResult reports a conversion whose patient row was created. When
// AppointmentRemoved is false the booking is still in the store next to the
// new patient and needs operator attention.
type ConvertResult struct {
	Patient            Patient `json:"patient"`
	AppointmentRemoved bool    `json:"appointmentRemoved"`
}

// AssessmentPatch carries the fields a doctor is changing. Nil fields keep
// their current value.
type AssessmentPatch struct {
	QuickCode            *QuickCode `json:"quickCode"`
	PainSeverity         *string    `json:"painSeverity"`
	Affordability        *string    `json:"affordability"`
	ConversionReadiness  *string    `json:"conversionReadiness"`
	SurgeryProcedure     *string    `json:"surgeryProcedure"`
	TentativeSurgeryDate *string    `json:"tentativeSurgeryDate"`
	DoctorSignature      *string    `json:"doctorSignature"`
	Notes                *string    `json:"notes"`
}

// Service owns the in-memory registry for the life of the process. Every
// mutation is written to the repository first and only then reflected
// locally, either from the representation the backend returned or from a
// full refresh.
type Service struct {
	repo   Repository
	locks  lock.Locker
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string

	mu       sync.RWMutex
	snap     Snapshot
	status   SyncStatus
	failed   bool
	inFlight int

	// gen counts local publications. touched holds the gen at which each
	// record key was last published; loadedGen is the gen the current
	// snapshot's fetch started at.
	gen       uint64
	loadedGen uint64
	touched   map[string]uint64
}

func NewService(repo Repository, locks lock.Locker, logger zerolog.Logger) *Service {
	if locks == nil {
		locks = lock.NewLocalLocker()
	}
	return &Service{
		repo:    repo,
		locks:   locks,
		logger:  logger.With().Str("component", "registry").Logger(),
		now:     time.Now,
		newID:   uuid.NewString,
		status:  SyncStatus{State: SyncSaved},
		touched: make(map[string]uint64),
	}
}

// -- Reads --

func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Service) Status() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Service) Patients() []Patient {
	return s.Snapshot().Patients
}

func (s *Service) Appointments() []Appointment {
	return s.Snapshot().Appointments
}

func (s *Service) Staff() []StaffUser {
	return s.Snapshot().Staff
}

func (s *Service) Patient(id string) (Patient, bool) {
	for _, p := range s.Patients() {
		if p.ID == id {
			return p, true
		}
	}
	return Patient{}, false
}

// -- Patients --

// Create registers an arrived patient. The id comes from intake staff; entry
// date and time default to the moment of the call.
func (s *Service) Create(ctx context.Context, p Patient) (*Patient, error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return nil, ErrMissingID
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidPatient)
	}
	s.stampArrival(&p)

	s.begin()
	unlock, err := s.locks.Lock(ctx, patientKey(p.ID))
	if err != nil {
		return nil, s.finish(ctx, "create", p.ID, err, false)
	}
	defer unlock()

	stored, err := s.repo.InsertPatient(ctx, &p)
	if err != nil {
		return nil, s.finish(ctx, "create", p.ID, fmt.Errorf("insert patient %s: %w", p.ID, err), true)
	}
	return s.settlePatient(ctx, "create", p.ID, stored)
}

// Update replaces the stored patient's mutable fields. The assessment and
// proposal are written as given: callers merge before calling.
func (s *Service) Update(ctx context.Context, id string, p Patient) (*Patient, error) {
	if id == "" {
		return nil, ErrMissingID
	}

	s.begin()
	unlock, err := s.locks.Lock(ctx, patientKey(id))
	if err != nil {
		return nil, s.finish(ctx, "update", id, err, false)
	}
	defer unlock()
	return s.update(ctx, "update", id, p)
}

// update writes p as the full record. The caller holds the record lock and
// has called begin.
func (s *Service) update(ctx context.Context, op, id string, p Patient) (*Patient, error) {
	p.ID = id
	stored, err := s.repo.UpdatePatient(ctx, &p)
	if err != nil {
		return nil, s.finish(ctx, op, id, fmt.Errorf("update patient %s: %w", id, err), true)
	}
	return s.settlePatient(ctx, op, id, stored)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}

	s.begin()
	unlock, err := s.locks.Lock(ctx, patientKey(id))
	if err != nil {
		return s.finish(ctx, "delete", id, err, false)
	}
	defer unlock()

	if err := s.repo.DeletePatient(ctx, id); err != nil {
		return s.finish(ctx, "delete", id, fmt.Errorf("delete patient %s: %w", id, err), true)
	}
	s.publish(func(snap *Snapshot) { snap.Patients = withoutPatient(snap.Patients, id) }, patientKey(id))
	return s.finish(ctx, "delete", id, nil, false)
}

// UpdateDoctorAssessment merges the patch over the current assessment, stamps
// it, and writes the nested record alone. The merge base is read after the
// record lock is held.
func (s *Service) UpdateDoctorAssessment(ctx context.Context, patientID string, patch AssessmentPatch) (*Patient, error) {
	current, ok := s.Patient(patientID)
	if !ok {
		return nil, fmt.Errorf("%w: patient %s", ErrNotFound, patientID)
	}
	if !mergeAssessment(current.Assessment, patch).Complete() {
		return nil, ErrInvalidAssessment
	}

	s.begin()
	unlock, err := s.locks.Lock(ctx, patientKey(patientID))
	if err != nil {
		return nil, s.finish(ctx, "assessment", patientID, err, false)
	}
	defer unlock()

	current, ok = s.Patient(patientID)
	if !ok {
		return nil, s.finish(ctx, "assessment", patientID, fmt.Errorf("%w: patient %s", ErrNotFound, patientID), false)
	}
	merged := mergeAssessment(current.Assessment, patch)
	merged.AssessedAt = s.now().UTC().Format(time.RFC3339)
	if !merged.Complete() {
		return nil, s.finish(ctx, "assessment", patientID, ErrInvalidAssessment, false)
	}

	stored, err := s.repo.UpdateAssessment(ctx, patientID, merged)
	if err != nil {
		return nil, s.finish(ctx, "assessment", patientID, fmt.Errorf("update assessment %s: %w", patientID, err), true)
	}
	return s.settlePatient(ctx, "assessment", patientID, stored)
}

// UpdatePackageProposal attaches the proposal to the current patient and
// writes the whole record. The rest of the record is read under the lock.
func (s *Service) UpdatePackageProposal(ctx context.Context, patientID string, pp PackageProposal) (*Patient, error) {
	if _, ok := s.Patient(patientID); !ok {
		return nil, fmt.Errorf("%w: patient %s", ErrNotFound, patientID)
	}

	s.begin()
	unlock, err := s.locks.Lock(ctx, patientKey(patientID))
	if err != nil {
		return nil, s.finish(ctx, "proposal", patientID, err, false)
	}
	defer unlock()

	current, ok := s.Patient(patientID)
	if !ok {
		return nil, s.finish(ctx, "proposal", patientID, fmt.Errorf("%w: patient %s", ErrNotFound, patientID), false)
	}
	pp.Outcome = NormalizeOutcome(string(pp.Outcome))
	now := s.now()
	if current.Proposal != nil && pp.CreatedAt == "" {
		pp.CreatedAt = current.Proposal.CreatedAt
	}
	if pp.CreatedAt == "" {
		pp.CreatedAt = now.UTC().Format(time.RFC3339)
	}
	pp.UpdatedAt = now.UTC().Format(time.RFC3339)
	if pp.Outcome != OutcomePending && pp.OutcomeDate == "" {
		pp.OutcomeDate = today(now)
	}
	if pp.Outcome != OutcomeLost {
		pp.LostReason = ""
	}
	current.Proposal = &pp
	return s.update(ctx, "proposal", patientID, current)
}

// -- Appointments --

// Book records a pre-visit booking as a Scheduled row in the patients table.
func (s *Service) Book(ctx context.Context, a Appointment) (*Appointment, error) {
	if strings.TrimSpace(a.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidPatient)
	}
	if a.Date == "" {
		return nil, fmt.Errorf("%w: appointment date is required", ErrInvalidPatient)
	}
	if a.ID == "" {
		a.ID = s.newID()
	}
	p := patientFromAppointment(a)

	s.begin()
	unlock, err := s.locks.Lock(ctx, patientKey(a.ID))
	if err != nil {
		return nil, s.finish(ctx, "book", a.ID, err, false)
	}
	defer unlock()

	stored, err := s.repo.InsertPatient(ctx, &p)
	if err != nil {
		return nil, s.finish(ctx, "book", a.ID, fmt.Errorf("insert appointment %s: %w", a.ID, err), true)
	}
	out, err := s.settlePatient(ctx, "book", a.ID, stored)
	if err != nil || out == nil {
		return nil, err
	}
	appt := out.AsAppointment()
	return &appt, nil
}

// Convert turns an arrived booking into a patient. The patient row is
// inserted before the booking is deleted; if the delete fails the patient is
// kept, the failure is logged as critical, and the result says so.
func (s *Service) Convert(ctx context.Context, appointmentID string, p Patient) (*ConvertResult, error) {
	if appointmentID == "" {
		return nil, ErrMissingID
	}
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return nil, ErrMissingID
	}
	if p.ID == appointmentID {
		return nil, fmt.Errorf("%w: patient id must differ from the appointment id", ErrInvalidPatient)
	}
	appt, ok := s.appointment(appointmentID)
	if !ok {
		return nil, fmt.Errorf("%w: appointment %s", ErrNotFound, appointmentID)
	}
	fillFromAppointment(&p, appt)
	s.stampArrival(&p)

	s.begin()
	// Keys are taken in a fixed order so two conversions cannot deadlock.
	first, second := patientKey(appointmentID), patientKey(p.ID)
	if second < first {
		first, second = second, first
	}
	for _, key := range []string{first, second} {
		unlock, err := s.locks.Lock(ctx, key)
		if err != nil {
			return nil, s.finish(ctx, "convert", appointmentID, err, false)
		}
		defer unlock()
	}

	stored, err := s.repo.InsertPatient(ctx, &p)
	if err != nil {
		return nil, s.finish(ctx, "convert", appointmentID, fmt.Errorf("insert converted patient %s: %w", p.ID, err), true)
	}
	if stored != nil {
		p = *stored
	}

	res := &ConvertResult{Patient: p}
	if err := s.repo.DeletePatient(ctx, appointmentID); err != nil {
		s.logger.Error().Err(err).
			Str("severity", "critical").
			Str("op", "convert").
			Str("appointment_id", appointmentID).
			Str("patient_id", p.ID).
			Msg("patient created but appointment was not removed; both rows are visible")
		_ = s.finish(ctx, "convert", appointmentID, fmt.Errorf("delete converted appointment %s: %w", appointmentID, err), true)
		if fresh, ok := s.Patient(p.ID); ok {
			res.Patient = fresh
		}
		return res, nil
	}
	res.AppointmentRemoved = true

	if stored == nil {
		if err := s.finish(ctx, "convert", appointmentID, nil, true); err != nil {
			return nil, err
		}
		if fresh, ok := s.Patient(p.ID); ok {
			res.Patient = fresh
		}
		return res, nil
	}
	s.publish(func(snap *Snapshot) {
		snap.Patients = withPatient(withoutPatient(snap.Patients, appointmentID), p)
	}, patientKey(appointmentID), patientKey(p.ID))
	return res, s.finish(ctx, "convert", appointmentID, nil, false)
}

// -- Staff --

// RegisterStaff stores directory metadata under a random id.
func (s *Service) RegisterStaff(ctx context.Context, u StaffUser) (*StaffUser, error) {
	if strings.TrimSpace(u.Name) == "" || strings.TrimSpace(u.Role) == "" {
		return nil, fmt.Errorf("%w: name and role are required", ErrInvalidStaff)
	}
	u.ID = s.newID()
	u.Active = true

	s.begin()
	unlock, err := s.locks.Lock(ctx, staffKey(u.ID))
	if err != nil {
		return nil, s.finish(ctx, "register_staff", u.ID, err, false)
	}
	defer unlock()

	stored, err := s.repo.InsertStaff(ctx, &u)
	if err != nil {
		return nil, s.finish(ctx, "register_staff", u.ID, fmt.Errorf("insert staff %s: %w", u.ID, err), true)
	}
	if stored == nil {
		if err := s.finish(ctx, "register_staff", u.ID, nil, true); err != nil {
			return nil, err
		}
		for _, st := range s.Staff() {
			if st.ID == u.ID {
				return &st, nil
			}
		}
		return &u, nil
	}
	s.publish(func(snap *Snapshot) {
		snap.Staff = append([]StaffUser{*stored}, withoutStaff(snap.Staff, stored.ID)...)
	}, staffKey(stored.ID))
	return stored, s.finish(ctx, "register_staff", u.ID, nil, false)
}

// -- Refresh --

// Refresh reloads patients and staff concurrently. A failed patient fetch
// fails the whole refresh and leaves the previous snapshot in place; a failed
// staff fetch keeps the previous staff list.
func (s *Service) Refresh(ctx context.Context) error {
	s.begin()
	return s.finish(ctx, "refresh", "", s.reload(ctx), false)
}

// reload fetches both collections and swaps them in. Records published
// locally after the fetch started keep their local version, and a fetch that
// started before the one already applied is discarded.
func (s *Service) reload(ctx context.Context) error {
	s.mu.RLock()
	start := s.gen
	s.mu.RUnlock()

	var (
		wg       sync.WaitGroup
		patients []Patient
		staff    []StaffUser
	)
	var patientErr, staffErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		patients, patientErr = s.repo.ListPatients(ctx)
	}()
	go func() {
		defer wg.Done()
		staff, staffErr = s.repo.ListStaff(ctx)
	}()
	wg.Wait()

	if patientErr != nil {
		return fmt.Errorf("list patients: %w", patientErr)
	}
	if staffErr != nil {
		s.logger.Debug().Err(staffErr).Msg("staff fetch failed, keeping previous list")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if start < s.loadedGen {
		return nil
	}
	patients = overlay(patients, s.snap.Patients, s.touched, start,
		func(p Patient) string { return patientKey(p.ID) })
	next := Snapshot{
		Patients:     patients,
		Appointments: appointmentsOf(patients),
		Staff:        s.snap.Staff,
		RefreshedAt:  s.now(),
	}
	if staffErr == nil {
		next.Staff = overlay(staff, s.snap.Staff, s.touched, start,
			func(u StaffUser) string { return staffKey(u.ID) })
	}
	s.snap = next
	s.loadedGen = start
	for k, g := range s.touched {
		if g <= start {
			delete(s.touched, k)
		}
	}
	return nil
}

// overlay returns fetched with every record published after since replaced
// by its local version. A touched record missing locally was deleted and is
// dropped; one missing from fetched is prepended.
func overlay[T any](fetched, local []T, touched map[string]uint64, since uint64, key func(T) string) []T {
	newer := make(map[string]bool)
	for k, g := range touched {
		if g > since {
			newer[k] = true
		}
	}
	if len(newer) == 0 {
		return fetched
	}
	kept := make(map[string]T)
	for _, x := range local {
		if k := key(x); newer[k] {
			kept[k] = x
		}
	}

	out := make([]T, 0, len(fetched)+len(kept))
	placed := make(map[string]bool)
	for _, x := range fetched {
		k := key(x)
		if !newer[k] {
			out = append(out, x)
			continue
		}
		if lx, ok := kept[k]; ok && !placed[k] {
			out = append(out, lx)
			placed[k] = true
		}
	}
	var added []T
	for _, x := range local {
		k := key(x)
		if _, ok := kept[k]; ok && !placed[k] {
			added = append(added, x)
			placed[k] = true
		}
	}
	return append(added, out...)
}

// -- internals --

func (s *Service) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight == 0 {
		s.failed = false
	}
	s.inFlight++
	s.status = SyncStatus{State: SyncSaving, LastError: s.status.LastError, InFlight: s.inFlight, UpdatedAt: s.now()}
}

// finish closes an operation opened by begin. When resync is set the
// snapshot is reloaded first, whether or not the write succeeded; a reload
// failure becomes the operation's error if it had none.
func (s *Service) finish(ctx context.Context, op, id string, err error, resync bool) error {
	if resync {
		if rerr := s.reload(ctx); rerr != nil {
			if err == nil {
				err = rerr
			} else {
				s.logger.Error().Err(rerr).Str("op", op).Msg("refresh after failed write also failed")
			}
		}
	}
	if err != nil {
		ev := s.logger.Error().Err(err).Str("op", op)
		if id != "" {
			ev = ev.Str("id", id)
		}
		ev.Msg("registry operation failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	if err != nil {
		s.failed = true
		s.status.LastError = err.Error()
	}
	s.status.InFlight = s.inFlight
	s.status.UpdatedAt = s.now()
	switch {
	case s.inFlight > 0:
		s.status.State = SyncSaving
	case s.failed:
		s.status.State = SyncError
	default:
		s.status.State = SyncSaved
		s.status.LastError = ""
	}
	return err
}

// settlePatient applies the backend's representation when there is one and
// falls back to a full reload when there is not.
func (s *Service) settlePatient(ctx context.Context, op, id string, stored *Patient) (*Patient, error) {
	if stored == nil {
		if err := s.finish(ctx, op, id, nil, true); err != nil {
			return nil, err
		}
		if p, ok := s.Patient(id); ok {
			return &p, nil
		}
		return nil, fmt.Errorf("%w: patient %s missing after write", ErrNotFound, id)
	}
	if stored.RegisteredAt == "" {
		if prev, ok := s.Patient(stored.ID); ok {
			stored.RegisteredAt = prev.RegisteredAt
		}
	}
	p := *stored
	s.publish(func(snap *Snapshot) { snap.Patients = withPatient(snap.Patients, p) }, patientKey(p.ID))
	return stored, s.finish(ctx, op, id, nil, false)
}

// publish swaps in a modified copy of the snapshot and marks the changed
// record keys as newer than any fetch already in flight.
func (s *Service) publish(fn func(*Snapshot), keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snap
	fn(&next)
	next.Appointments = appointmentsOf(next.Patients)
	s.snap = next
	s.gen++
	for _, k := range keys {
		s.touched[k] = s.gen
	}
}

func (s *Service) stampArrival(p *Patient) {
	now := s.now()
	p.Status = StatusArrived
	if p.EntryDate == "" {
		p.EntryDate = today(now)
	}
	if p.EntryTime == "" {
		p.EntryTime = now.Format("15:04")
	}
}

func (s *Service) appointment(id string) (Appointment, bool) {
	for _, a := range s.Appointments() {
		if a.ID == id {
			return a, true
		}
	}
	return Appointment{}, false
}

func fillFromAppointment(p *Patient, a Appointment) {
	if p.Name == "" {
		p.Name = a.Name
	}
	if p.Mobile == "" {
		p.Mobile = a.Mobile
	}
	if p.Condition == "" {
		p.Condition = a.Condition
	}
	if p.Source == "" {
		p.Source = a.Source
	}
	if p.BookingType == "" {
		p.BookingType = a.BookingType
	}
	if p.AppointmentDate == "" {
		p.AppointmentDate = a.Date
		p.AppointmentTime = a.Time
	}
}

func mergeAssessment(cur *DoctorAssessment, patch AssessmentPatch) *DoctorAssessment {
	out := DoctorAssessment{}
	if cur != nil {
		out = *cur
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	if patch.QuickCode != nil {
		out.QuickCode = *patch.QuickCode
	}
	set(&out.PainSeverity, patch.PainSeverity)
	set(&out.Affordability, patch.Affordability)
	set(&out.ConversionReadiness, patch.ConversionReadiness)
	set(&out.SurgeryProcedure, patch.SurgeryProcedure)
	set(&out.TentativeSurgeryDate, patch.TentativeSurgeryDate)
	set(&out.DoctorSignature, patch.DoctorSignature)
	set(&out.Notes, patch.Notes)
	return &out
}

func appointmentsOf(patients []Patient) []Appointment {
	var out []Appointment
	for i := range patients {
		if patients[i].Status == StatusScheduled {
			out = append(out, patients[i].AsAppointment())
		}
	}
	return out
}

// withPatient returns a new slice with p replacing the row of the same id,
// or prepended when it is new.
func withPatient(list []Patient, p Patient) []Patient {
	out := make([]Patient, 0, len(list)+1)
	replaced := false
	for _, x := range list {
		if x.ID == p.ID {
			out = append(out, p)
			replaced = true
			continue
		}
		out = append(out, x)
	}
	if !replaced {
		out = append([]Patient{p}, out...)
	}
	return out
}

func withoutPatient(list []Patient, id string) []Patient {
	out := make([]Patient, 0, len(list))
	for _, x := range list {
		if x.ID != id {
			out = append(out, x)
		}
	}
	return out
}

func withoutStaff(list []StaffUser, id string) []StaffUser {
	out := make([]StaffUser, 0, len(list))
	for _, x := range list {
		if x.ID != id {
			out = append(out, x)
		}
	}
	return out
}

func patientKey(id string) string { return "patient:" + id }
func staffKey(id string) string   { return "staff:" + id }

// IsNotFound reports whether err came from a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
