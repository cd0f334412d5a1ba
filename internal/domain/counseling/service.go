// Package counseling drafts counseling-strategy suggestions for surgery leads
// with an external text-generation model. Suggestions are returned to the
// caller and never stored.
package counseling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/registry"
)

// Fallback is returned whenever generation fails for any reason.
const Fallback = "Unable to generate a counseling strategy right now. Address the patient's main concern, explain the package inclusions, and agree on a follow-up date."

const systemPrompt = "You are an experienced hospital patient counselor. Reply with a short, practical counseling strategy in at most five bullet points."

var ErrPatientNotFound = errors.New("patient not found")

// Generator produces free text for a prompt.
type Generator interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// PatientLookup reads a patient from the current snapshot.
type PatientLookup interface {
	Patient(id string) (registry.Patient, bool)
}

type Suggestion struct {
	PatientID string `json:"patientId"`
	Text      string `json:"text"`
	Fallback  bool   `json:"fallback"`
}

type Service struct {
	gen      Generator
	patients PatientLookup
	logger   zerolog.Logger
}

func NewService(gen Generator, patients PatientLookup, logger zerolog.Logger) *Service {
	return &Service{gen: gen, patients: patients, logger: logger}
}

// Suggest only fails when the patient is unknown; generation failures yield
// the fallback text.
func (s *Service) Suggest(ctx context.Context, patientID string) (*Suggestion, error) {
	p, ok := s.patients.Patient(patientID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, patientID)
	}
	out := &Suggestion{PatientID: p.ID}
	text, err := s.gen.Complete(ctx, systemPrompt, BuildPrompt(p))
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", p.ID).Msg("counseling suggestion fell back")
		out.Text, out.Fallback = Fallback, true
		return out, nil
	}
	out.Text = text
	return out, nil
}

// BuildPrompt describes the patient, assessment and proposal in plain lines,
// skipping anything unknown.
func BuildPrompt(p registry.Patient) string {
	var b strings.Builder
	b.WriteString("Suggest a counseling strategy for this patient.\n")
	line := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	if p.Age > 0 {
		line("Age", fmt.Sprint(p.Age))
	}
	line("Gender", string(p.Gender))
	line("Occupation", p.Occupation)
	line("Condition", string(p.Condition))
	if p.HasInsurance {
		line("Insurance", strings.TrimSpace("Yes "+p.InsuranceName))
	} else {
		line("Insurance", "No")
	}
	if a := p.Assessment; a != nil {
		line("Recommended procedure", a.SurgeryProcedure)
		line("Pain severity", a.PainSeverity)
		line("Affordability", a.Affordability)
		line("Conversion readiness", a.ConversionReadiness)
		line("Doctor notes", a.Notes)
	}
	if pp := p.Proposal; pp != nil {
		line("Package amount", pp.PackageAmount)
		line("Payment mode", pp.PaymentMode)
		line("Room type", pp.RoomType)
		line("Decision pattern", pp.DecisionPattern)
		line("Objection", pp.ObjectionType)
		line("Proposal stage", pp.ProposalStage)
	}
	return b.String()
}
