package registry

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/platform/store"
)

const (
	tablePatients = "patients"
	tableStaff    = "staff_users"
)

// legacyScheduledLabel is what older rows (and older clients) expect to read
// for a scheduled surgery, so writes keep producing it.
const legacyScheduledLabel = "Surgery Fixed"

var outcomeSynonyms = map[string]Outcome{
	"scheduled":        OutcomeScheduled,
	"surgery fixed":    OutcomeScheduled,
	"schedule surgery": OutcomeScheduled,
	"lost":             OutcomeLost,
	"surgery lost":     OutcomeLost,
	"follow-up":        OutcomeFollowUp,
	"follow up":        OutcomeFollowUp,
	"followup":         OutcomeFollowUp,
	"completed":        OutcomeCompleted,
}

// NormalizeOutcome collapses stored outcome labels to the canonical set.
// Unknown labels read as pending.
func NormalizeOutcome(s string) Outcome {
	return outcomeSynonyms[strings.ToLower(strings.TrimSpace(s))]
}

func legacyOutcome(o Outcome) string {
	if o == OutcomeScheduled {
		return legacyScheduledLabel
	}
	return string(o)
}

// PatientFromRow never fails: missing or oddly typed columns fall back to
// zero values so a bad row cannot take a dashboard down.
func PatientFromRow(r store.Row) Patient {
	return Patient{
		ID:              str(r["id"]),
		Name:            str(r["name"]),
		DOB:             str(r["dob"]),
		Gender:          normalizeGender(str(r["gender"])),
		Age:             intOf(r["age"]),
		Mobile:          str(r["mobile"]),
		Occupation:      str(r["occupation"]),
		HasInsurance:    boolOf(r["has_insurance"]),
		InsuranceName:   str(r["insurance_name"]),
		Source:          str(r["source"]),
		DoctorReferral:  str(r["doctor_name"]),
		Condition:       normalizeCondition(str(r["condition"])),
		VisitType:       normalizeVisitType(str(r["visit_type"])),
		Status:          str(r["status"]),
		RegisteredAt:    str(r["created_at"]),
		EntryDate:       str(r["entry_date"]),
		EntryTime:       str(r["entry_time"]),
		AppointmentDate: str(r["appointment_date"]),
		AppointmentTime: str(r["appointment_time"]),
		BookingType:     str(r["booking_type"]),
		Assessment:      assessmentFromValue(r["doctor_assessment"]),
		Proposal:        proposalFromValue(r["package_proposal"]),
	}
}

// PatientToRow builds the write payload. created_at is left to the backend.
func PatientToRow(p *Patient) store.Row {
	return store.Row{
		"id":                p.ID,
		"name":              p.Name,
		"dob":               p.DOB,
		"gender":            string(p.Gender),
		"age":               p.Age,
		"mobile":            p.Mobile,
		"occupation":        p.Occupation,
		"has_insurance":     p.HasInsurance,
		"insurance_name":    p.InsuranceName,
		"source":            p.Source,
		"doctor_name":       p.DoctorReferral,
		"condition":         string(p.Condition),
		"visit_type":        string(p.VisitType),
		"status":            p.Status,
		"entry_date":        p.EntryDate,
		"entry_time":        p.EntryTime,
		"appointment_date":  p.AppointmentDate,
		"appointment_time":  p.AppointmentTime,
		"booking_type":      p.BookingType,
		"doctor_assessment": assessmentToValue(p.Assessment),
		"package_proposal":  proposalToValue(p.Proposal),
	}
}

func assessmentFromValue(v any) *DoctorAssessment {
	m := asMap(v)
	if m == nil {
		return nil
	}
	a := &DoctorAssessment{
		QuickCode:            normalizeQuickCode(str(field(m, "quick_code", "quickCode"))),
		PainSeverity:         str(field(m, "pain_severity", "painSeverity")),
		Affordability:        str(field(m, "affordability")),
		ConversionReadiness:  str(field(m, "conversion_readiness", "conversionReadiness")),
		SurgeryProcedure:     str(field(m, "surgery_procedure", "surgeryProcedure")),
		TentativeSurgeryDate: str(field(m, "tentative_surgery_date", "tentativeSurgeryDate")),
		DoctorSignature:      str(field(m, "doctor_signature", "doctorSignature")),
		Notes:                str(field(m, "notes")),
		AssessedAt:           str(field(m, "assessed_at", "assessedAt")),
	}
	if *a == (DoctorAssessment{}) {
		return nil
	}
	return a
}

func assessmentToValue(a *DoctorAssessment) any {
	if a == nil {
		return nil
	}
	return map[string]any{
		"quick_code":             string(a.QuickCode),
		"pain_severity":          a.PainSeverity,
		"affordability":          a.Affordability,
		"conversion_readiness":   a.ConversionReadiness,
		"surgery_procedure":      a.SurgeryProcedure,
		"tentative_surgery_date": a.TentativeSurgeryDate,
		"doctor_signature":       a.DoctorSignature,
		"notes":                  a.Notes,
		"assessed_at":            a.AssessedAt,
	}
}

func proposalFromValue(v any) *PackageProposal {
	m := asMap(v)
	if m == nil {
		return nil
	}
	pp := &PackageProposal{
		PaymentMode:        str(field(m, "payment_mode", "paymentMode")),
		RoomType:           str(field(m, "room_type", "roomType")),
		PackageAmount:      str(field(m, "package_amount", "packageAmount")),
		PreOpInvestigation: str(field(m, "pre_op_investigation", "preOpInvestigation")),
		SurgeryMedicines:   str(field(m, "surgery_medicines", "surgeryMedicines")),
		Equipment:          decodeEquipment(field(m, "equipment")),
		ICUCharges:         str(field(m, "icu_charges", "icuCharges")),
		DecisionPattern:    str(field(m, "decision_pattern", "decisionPattern")),
		ObjectionType:      str(field(m, "objection_type", "objectionType", "objection")),
		CounselingStrategy: str(field(m, "counseling_strategy", "counselingStrategy")),
		Remarks:            str(field(m, "remarks")),
		ProposalStage:      str(field(m, "proposal_stage", "proposalStage")),
		Outcome:            NormalizeOutcome(str(field(m, "outcome", "surgery_status", "status"))),
		OutcomeDate:        str(field(m, "outcome_date", "outcomeDate")),
		LostReason:         str(field(m, "lost_reason", "lostReason")),
		FollowUpDate:       str(field(m, "follow_up_date", "followUpDate")),
		CreatedAt:          str(field(m, "created_at", "createdAt")),
		UpdatedAt:          str(field(m, "updated_at", "updatedAt")),
	}
	if *pp == (PackageProposal{}) {
		return nil
	}
	return pp
}

func proposalToValue(pp *PackageProposal) any {
	if pp == nil {
		return nil
	}
	return map[string]any{
		"payment_mode":         pp.PaymentMode,
		"room_type":            pp.RoomType,
		"package_amount":       AmountForWrite(pp.PackageAmount),
		"pre_op_investigation": pp.PreOpInvestigation,
		"surgery_medicines":    pp.SurgeryMedicines,
		"equipment":            pp.Equipment,
		"icu_charges":          pp.ICUCharges,
		"decision_pattern":     pp.DecisionPattern,
		"objection_type":       pp.ObjectionType,
		"counseling_strategy":  pp.CounselingStrategy,
		"remarks":              pp.Remarks,
		"proposal_stage":       pp.ProposalStage,
		"outcome":              legacyOutcome(pp.Outcome),
		"outcome_date":         pp.OutcomeDate,
		"lost_reason":          pp.LostReason,
		"follow_up_date":       pp.FollowUpDate,
		"created_at":           pp.CreatedAt,
		"updated_at":           pp.UpdatedAt,
	}
}

// decodeEquipment accepts the old list encoding (any entry means the
// equipment is included) as well as the scalar Included/Excluded label.
func decodeEquipment(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []any:
		if len(t) > 0 {
			return "Included"
		}
		return "Excluded"
	case []string:
		if len(t) > 0 {
			return "Included"
		}
		return "Excluded"
	case bool:
		if t {
			return "Included"
		}
		return "Excluded"
	}
	s := strings.TrimSpace(str(v))
	switch strings.ToLower(s) {
	case "included", "yes", "true":
		return "Included"
	case "excluded", "no", "false":
		return "Excluded"
	}
	return s
}

// MaxAmount is the largest package amount taken at face value. Larger
// digit strings are treated as garbage.
const MaxAmount = 1_000_000_000_000

// ParseAmount reads a human-entered amount for aggregation: every non-digit is
// dropped, so "₹50,000" and "50000" agree. Anything unreadable counts as 0.
func ParseAmount(s string) int64 {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil || n > MaxAmount {
		return 0
	}
	return n
}

// AmountForWrite coerces a comma-grouped amount to an integer for storage.
// A currency prefix and a trailing suffix such as "/-" are ignored. It returns
// nil (SQL NULL) unless the input is a positive number.
func AmountForWrite(s string) any {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₹")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "Rs."), "Rs")
	s = strings.NewReplacer(",", "", " ", "").Replace(s)
	s = strings.TrimRightFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f > MaxAmount {
		return nil
	}
	return int64(f)
}

func StaffFromRow(r store.Row) StaffUser {
	active := true
	if v, ok := r["active"]; ok && v != nil {
		active = boolOf(v)
	}
	return StaffUser{
		ID:         str(r["id"]),
		Name:       str(r["name"]),
		Email:      str(r["email"]),
		Role:       str(r["role"]),
		Department: str(r["department"]),
		Active:     active,
		CreatedAt:  str(r["created_at"]),
	}
}

func StaffToRow(s *StaffUser) store.Row {
	return store.Row{
		"id":         s.ID,
		"name":       s.Name,
		"email":      s.Email,
		"role":       s.Role,
		"department": s.Department,
		"active":     s.Active,
	}
}

func normalizeGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m":
		return GenderMale
	case "female", "f":
		return GenderFemale
	}
	return GenderOther
}

func normalizeCondition(s string) Condition {
	s = strings.TrimSpace(s)
	for _, c := range knownConditions {
		if strings.EqualFold(s, string(c)) {
			return c
		}
	}
	return ConditionOther
}

func normalizeVisitType(s string) VisitType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "opd", "new":
		return VisitOPD
	case "follow-up", "follow up", "followup", "revisit":
		return VisitFollowUp
	}
	return ""
}

func normalizeQuickCode(s string) QuickCode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sr", "surgery", "surgery recommended":
		return QuickCodeSurgery
	case "md", "medication", "medication only":
		return QuickCodeMedication
	}
	return QuickCode(strings.TrimSpace(s))
}

// field returns the first non-nil value among the given keys.
func field(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case store.Row:
		return t
	case string:
		return unmarshalMap([]byte(t))
	case []byte:
		return unmarshalMap(t)
	}
	return nil
}

func unmarshalMap(b []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func intOf(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case float64:
		return int(t)
	case json.Number:
		n, _ := t.Int64()
		return int(n)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func boolOf(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "y", "true", "1":
			return true
		}
	case float64:
		return t != 0
	case int64:
		return t != 0
	case int:
		return t != 0
	}
	return false
}
