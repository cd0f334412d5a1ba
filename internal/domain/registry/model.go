package registry

import (
	"sort"
	"strings"
	"time"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

type Condition string

const (
	ConditionPiles          Condition = "Piles"
	ConditionFistula        Condition = "Fistula"
	ConditionFissure        Condition = "Fissure"
	ConditionPilonidalSinus Condition = "Pilonidal Sinus"
	ConditionHernia         Condition = "Hernia"
	ConditionGallstones     Condition = "Gallstones"
	ConditionVaricoseVeins  Condition = "Varicose Veins"
	ConditionOther          Condition = "Other"
)

var knownConditions = []Condition{
	ConditionPiles, ConditionFistula, ConditionFissure, ConditionPilonidalSinus,
	ConditionHernia, ConditionGallstones, ConditionVaricoseVeins, ConditionOther,
}

// VisitType is the explicit new-vs-revisit tag. Empty means untagged.
type VisitType string

const (
	VisitOPD      VisitType = "OPD"
	VisitFollowUp VisitType = "Follow-Up"
)

// Booking status values stored in the status column. A row whose status is
// exactly StatusScheduled is a pre-visit appointment, anything else has arrived.
const (
	StatusScheduled = "Scheduled"
	StatusArrived   = "Arrived"
)

type QuickCode string

const (
	QuickCodeMedication QuickCode = "MD"
	QuickCodeSurgery    QuickCode = "SR"
)

type Outcome string

const (
	OutcomePending   Outcome = ""
	OutcomeScheduled Outcome = "Scheduled"
	OutcomeFollowUp  Outcome = "Follow-Up"
	OutcomeLost      Outcome = "Lost"
	OutcomeCompleted Outcome = "Completed"
)

// Proposal stages and the conversion probability each one stands for.
const (
	StageInitialDiscussion = "Initial Discussion"
	StagePackageShared     = "Package Shared"
	StageNegotiation       = "Negotiation"
	StageTentativeDate     = "Tentative Date Given"
	StageConfirmed         = "Confirmed"
)

var stageProbability = map[string]int{
	StageInitialDiscussion: 10,
	StagePackageShared:     30,
	StageNegotiation:       50,
	StageTentativeDate:     70,
	StageConfirmed:         90,
}

// StageProbability returns the percentage for a proposal stage, 0 if unknown.
func StageProbability(stage string) int {
	return stageProbability[stage]
}

// Patient is the in-memory shape of a patients row. Every textual field is
// populated (possibly empty); the nested records are nil when nothing
// clinically relevant was recorded.
type Patient struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	DOB             string            `json:"dob"`
	Gender          Gender            `json:"gender"`
	Age             int               `json:"age"`
	Mobile          string            `json:"mobile"`
	Occupation      string            `json:"occupation"`
	HasInsurance    bool              `json:"hasInsurance"`
	InsuranceName   string            `json:"insuranceName"`
	Source          string            `json:"source"`
	DoctorReferral  string            `json:"doctorReferral"`
	Condition       Condition         `json:"condition"`
	VisitType       VisitType         `json:"visitType"`
	Status          string            `json:"status"`
	RegisteredAt    string            `json:"registeredAt"`
	EntryDate       string            `json:"entryDate"`
	EntryTime       string            `json:"entryTime"`
	AppointmentDate string            `json:"appointmentDate"`
	AppointmentTime string            `json:"appointmentTime"`
	BookingType     string            `json:"bookingType"`
	Assessment      *DoctorAssessment `json:"doctorAssessment,omitempty"`
	Proposal        *PackageProposal  `json:"packageProposal,omitempty"`
}

// DoctorAssessment is written wholesale by the doctor role. The four
// surgery fields are required whenever QuickCode is QuickCodeSurgery.
type DoctorAssessment struct {
	QuickCode            QuickCode `json:"quickCode"`
	PainSeverity         string    `json:"painSeverity"`
	Affordability        string    `json:"affordability"`
	ConversionReadiness  string    `json:"conversionReadiness"`
	SurgeryProcedure     string    `json:"surgeryProcedure"`
	TentativeSurgeryDate string    `json:"tentativeSurgeryDate"`
	DoctorSignature      string    `json:"doctorSignature"`
	Notes                string    `json:"notes"`
	AssessedAt           string    `json:"assessedAt"`
}

// SurgeryRecommended reports whether the doctor flagged the patient for surgery.
func (a *DoctorAssessment) SurgeryRecommended() bool {
	return a != nil && a.QuickCode == QuickCodeSurgery
}

// Complete checks the surgery-field invariant.
func (a *DoctorAssessment) Complete() bool {
	if a == nil || a.QuickCode != QuickCodeSurgery {
		return true
	}
	return a.PainSeverity != "" && a.Affordability != "" &&
		a.ConversionReadiness != "" && a.SurgeryProcedure != ""
}

// PackageProposal is the counseling team's record for a surgery lead.
type PackageProposal struct {
	PaymentMode        string  `json:"paymentMode"`
	RoomType           string  `json:"roomType"`
	PackageAmount      string  `json:"packageAmount"`
	PreOpInvestigation string  `json:"preOpInvestigation"`
	SurgeryMedicines   string  `json:"surgeryMedicines"`
	Equipment          string  `json:"equipment"`
	ICUCharges         string  `json:"icuCharges"`
	DecisionPattern    string  `json:"decisionPattern"`
	ObjectionType      string  `json:"objectionType"`
	CounselingStrategy string  `json:"counselingStrategy"`
	Remarks            string  `json:"remarks"`
	ProposalStage      string  `json:"proposalStage"`
	Outcome            Outcome `json:"outcome"`
	OutcomeDate        string  `json:"outcomeDate"`
	LostReason         string  `json:"lostReason"`
	FollowUpDate       string  `json:"followUpDate"`
	CreatedAt          string  `json:"createdAt"`
	UpdatedAt          string  `json:"updatedAt"`
}

// Appointment is a pre-visit booking. It lives in the patients table with
// status Scheduled until the patient arrives and it is converted.
type Appointment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Mobile      string    `json:"mobile"`
	Condition   Condition `json:"condition"`
	Source      string    `json:"source"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	BookingType string    `json:"bookingType"`
	Status      string    `json:"status"`
	CreatedAt   string    `json:"createdAt"`
}

// StaffUser is directory metadata only; authentication lives with the
// identity provider.
type StaffUser struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Active     bool   `json:"active"`
	CreatedAt  string `json:"createdAt"`
}

// Outcome returns the counseling outcome, pending when there is no proposal.
func (p *Patient) Outcome() Outcome {
	if p.Proposal == nil {
		return OutcomePending
	}
	return p.Proposal.Outcome
}

// ArrivalDate is the calendar day the patient was seen: the entry date, or
// the registration timestamp's day for legacy rows without one.
func (p *Patient) ArrivalDate() string {
	if p.EntryDate != "" {
		return dayOf(p.EntryDate)
	}
	return dayOf(p.RegisteredAt)
}

// IsLead reports a surgery recommendation still waiting on a counseling outcome.
func (p *Patient) IsLead() bool {
	return p.Assessment.SurgeryRecommended() && p.Outcome() == OutcomePending
}

// AsAppointment projects a Scheduled row into its booking view.
func (p *Patient) AsAppointment() Appointment {
	return Appointment{
		ID:          p.ID,
		Name:        p.Name,
		Mobile:      p.Mobile,
		Condition:   p.Condition,
		Source:      p.Source,
		Date:        p.AppointmentDate,
		Time:        p.AppointmentTime,
		BookingType: p.BookingType,
		Status:      p.Status,
		CreatedAt:   p.RegisteredAt,
	}
}

// patientFromAppointment is the row written when a booking is made.
func patientFromAppointment(a Appointment) Patient {
	return Patient{
		ID:              a.ID,
		Name:            a.Name,
		Mobile:          a.Mobile,
		Condition:       a.Condition,
		Source:          a.Source,
		AppointmentDate: a.Date,
		AppointmentTime: a.Time,
		BookingType:     a.BookingType,
		Status:          StatusScheduled,
	}
}

// IsRevisit classifies a visit for exports and legacy displays. The explicit
// tag wins; only untagged rows fall back to looking for an earlier
// registration with the same mobile number.
func IsRevisit(p Patient, all []Patient) bool {
	switch p.VisitType {
	case VisitFollowUp:
		return true
	case VisitOPD:
		return false
	}
	mobile := normalizeMobile(p.Mobile)
	if mobile == "" {
		return false
	}
	for _, o := range all {
		if o.ID == p.ID || o.Status == StatusScheduled {
			continue
		}
		if normalizeMobile(o.Mobile) == mobile && o.RegisteredAt != "" && o.RegisteredAt < p.RegisteredAt {
			return true
		}
	}
	return false
}

// Leads returns surgery-recommended patients with no outcome yet, the most
// advanced proposal stage first.
func Leads(patients []Patient) []Patient {
	var out []Patient
	for _, p := range patients {
		if p.IsLead() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return stageOf(out[i]) > stageOf(out[j])
	})
	return out
}

func stageOf(p Patient) int {
	if p.Proposal == nil {
		return 0
	}
	return StageProbability(p.Proposal.ProposalStage)
}

func normalizeMobile(m string) string {
	var b strings.Builder
	for _, r := range m {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 10 {
		s = s[len(s)-10:]
	}
	return s
}

// dayOf truncates an ISO date or timestamp to YYYY-MM-DD.
func dayOf(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

func today(now time.Time) string { return now.Format("2006-01-02") }
