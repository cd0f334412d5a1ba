// Package export renders role-specific registry reports as CSV or XLSX.
package export

import (
	"fmt"
	"strconv"

	"github.com/clinicdesk/clinicdesk/internal/domain/analytics"
	"github.com/clinicdesk/clinicdesk/internal/domain/registry"
)

type Role string

const (
	RoleFrontOffice Role = "front-office"
	RoleDoctor      Role = "doctor"
	RoleCounseling  Role = "counseling"
	RoleAnalytics   Role = "analytics"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Report is a rectangular table ready to be written out.
type Report struct {
	Role   Role
	Range  analytics.Range
	Header []string
	Rows   [][]string
}

// layout is one role's column set; include picks the rows for a range.
type layout struct {
	header  []string
	include func(p registry.Patient, r analytics.Range) bool
	row     func(p registry.Patient, all []registry.Patient) []string
}

var layouts = map[Role]layout{
	RoleFrontOffice: {
		header:  []string{"Patient ID", "Name", "Age", "Gender", "Mobile", "Occupation", "Insurance", "Source", "Referred By", "Condition", "Visit", "Entry Date", "Entry Time"},
		include: analytics.Arrived,
		row: func(p registry.Patient, all []registry.Patient) []string {
			return []string{
				p.ID, p.Name, strconv.Itoa(p.Age), string(p.Gender), p.Mobile, p.Occupation,
				insurance(p), p.Source, p.DoctorReferral, string(p.Condition), visitLabel(p, all),
				p.EntryDate, p.EntryTime,
			}
		},
	},
	RoleDoctor: {
		header: []string{"Patient ID", "Name", "Age", "Condition", "Quick Code", "Pain Severity", "Affordability", "Conversion Readiness", "Procedure", "Tentative Date", "Notes", "Signed By", "Assessed At"},
		include: func(p registry.Patient, r analytics.Range) bool {
			return p.Assessment != nil && analytics.Arrived(p, r)
		},
		row: func(p registry.Patient, _ []registry.Patient) []string {
			a := p.Assessment
			return []string{
				p.ID, p.Name, strconv.Itoa(p.Age), string(p.Condition), string(a.QuickCode), a.PainSeverity,
				a.Affordability, a.ConversionReadiness, a.SurgeryProcedure, a.TentativeSurgeryDate,
				a.Notes, a.DoctorSignature, a.AssessedAt,
			}
		},
	},
	RoleCounseling: {
		header: []string{"Patient ID", "Name", "Mobile", "Condition", "Procedure", "Package Amount", "Payment Mode", "Room Type", "Stage", "Probability", "Decision Pattern", "Objection", "Outcome", "Outcome Date", "Lost Reason", "Follow-Up Date"},
		include: func(p registry.Patient, r analytics.Range) bool {
			return (p.Assessment.SurgeryRecommended() && analytics.Arrived(p, r)) ||
				(p.Proposal != nil && r.Contains(p.Proposal.OutcomeDate))
		},
		row: func(p registry.Patient, _ []registry.Patient) []string {
			pp := p.Proposal
			if pp == nil {
				pp = &registry.PackageProposal{}
			}
			procedure := ""
			if p.Assessment != nil {
				procedure = p.Assessment.SurgeryProcedure
			}
			return []string{
				p.ID, p.Name, p.Mobile, string(p.Condition), procedure, pp.PackageAmount, pp.PaymentMode,
				pp.RoomType, pp.ProposalStage, probability(pp.ProposalStage), pp.DecisionPattern,
				pp.ObjectionType, outcomeLabel(p.Outcome()), pp.OutcomeDate, pp.LostReason, pp.FollowUpDate,
			}
		},
	},
	RoleAnalytics: {
		header: []string{"Patient ID", "Name", "Source", "Channel", "Condition", "Visit", "Entry Date", "Outcome", "Outcome Date", "Revenue"},
		include: func(p registry.Patient, r analytics.Range) bool {
			return analytics.Arrived(p, r) || analytics.Completed(p, r)
		},
		row: func(p registry.Patient, all []registry.Patient) []string {
			channel := "Offline"
			if analytics.IsOnline(p.Source) {
				channel = "Online"
			}
			outcomeDate, revenue := "", ""
			if p.Proposal != nil {
				outcomeDate = p.Proposal.OutcomeDate
				if p.Outcome() == registry.OutcomeCompleted {
					revenue = strconv.FormatInt(registry.ParseAmount(p.Proposal.PackageAmount), 10)
				}
			}
			return []string{
				p.ID, p.Name, analytics.CanonicalSource(p.Source), channel, string(p.Condition),
				visitLabel(p, all), p.ArrivalDate(), outcomeLabel(p.Outcome()), outcomeDate, revenue,
			}
		},
	},
}

// ParseRole accepts the export role names used in URLs and flags.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := layouts[r]; !ok {
		return "", fmt.Errorf("unknown export role %q", s)
	}
	return r, nil
}

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Build selects and lays out the rows a role sees for a range, in snapshot order.
func Build(role Role, patients []registry.Patient, r analytics.Range) (*Report, error) {
	l, ok := layouts[role]
	if !ok {
		return nil, fmt.Errorf("unknown export role %q", role)
	}
	rep := &Report{Role: role, Range: r, Header: l.header}
	for _, p := range patients {
		if l.include(p, r) {
			rep.Rows = append(rep.Rows, l.row(p, patients))
		}
	}
	return rep, nil
}

// Filename embeds the role and the applied date range.
func Filename(role Role, r analytics.Range, f Format) string {
	from, to := r.From, r.To
	if from == "" {
		from = "start"
	}
	if to == "" {
		to = "latest"
	}
	return fmt.Sprintf("%s_report_%s_to_%s.%s", role, from, to, f)
}

// visitLabel uses the explicit tag and falls back to mobile history for
// untagged legacy rows.
func visitLabel(p registry.Patient, all []registry.Patient) string {
	if registry.IsRevisit(p, all) {
		return "Revisit"
	}
	return "New"
}

func insurance(p registry.Patient) string {
	if !p.HasInsurance {
		return "No"
	}
	if p.InsuranceName == "" {
		return "Yes"
	}
	return "Yes (" + p.InsuranceName + ")"
}

func probability(stage string) string {
	if stage == "" {
		return ""
	}
	return strconv.Itoa(registry.StageProbability(stage)) + "%"
}

func outcomeLabel(o registry.Outcome) string {
	if o == registry.OutcomePending {
		return "Pending"
	}
	return string(o)
}
