package counseling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/registry"
)

type fakeGenerator struct {
	text   string
	err    error
	prompt string
}

func (f *fakeGenerator) Complete(_ context.Context, _, prompt string) (string, error) {
	f.prompt = prompt
	return f.text, f.err
}

type patientMap map[string]registry.Patient

func (m patientMap) Patient(id string) (registry.Patient, bool) {
	p, ok := m[id]
	return p, ok
}

func lead() registry.Patient {
	return registry.Patient{
		ID:         "P1",
		Name:       "Asha",
		Age:        52,
		Occupation: "Teacher",
		Condition:  "Knee",
		Assessment: &registry.DoctorAssessment{
			QuickCode:        registry.QuickCodeSurgery,
			SurgeryProcedure: "TKR",
			Affordability:    "A2",
		},
		Proposal: &registry.PackageProposal{PackageAmount: "1,50,000", ObjectionType: "Cost"},
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(lead())
	for _, want := range []string{"Age: 52", "Recommended procedure: TKR", "Objection: Cost", "Insurance: No"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "Asha") {
		t.Error("prompt must not carry the patient's name")
	}
	if strings.Contains(prompt, "Pain severity") {
		t.Error("empty fields should be skipped")
	}
}

func TestSuggest(t *testing.T) {
	gen := &fakeGenerator{text: "Lead with outcomes."}
	svc := NewService(gen, patientMap{"P1": lead()}, zerolog.Nop())

	s, err := svc.Suggest(context.Background(), "P1")
	if err != nil {
		t.Fatal(err)
	}
	if s.Text != "Lead with outcomes." || s.Fallback {
		t.Errorf("unexpected suggestion %+v", s)
	}
	if gen.prompt == "" {
		t.Error("generator was not called")
	}
}

func TestSuggest_FallbackOnFailure(t *testing.T) {
	svc := NewService(&fakeGenerator{err: errors.New("timeout")}, patientMap{"P1": lead()}, zerolog.Nop())

	s, err := svc.Suggest(context.Background(), "P1")
	if err != nil {
		t.Fatal(err)
	}
	if s.Text != Fallback || !s.Fallback {
		t.Errorf("expected fallback, got %+v", s)
	}
}

func TestSuggest_UnknownPatient(t *testing.T) {
	svc := NewService(&fakeGenerator{}, patientMap{}, zerolog.Nop())
	if _, err := svc.Suggest(context.Background(), "nope"); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestHandler_Suggest(t *testing.T) {
	e := echo.New()
	h := NewHandler(NewService(&fakeGenerator{text: "ok"}, patientMap{"P1": lead()}, zerolog.Nop()))

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("P1")
	if err := h.Suggest(c); err != nil {
		t.Fatal(err)
	}
	var s Suggestion
	json.Unmarshal(rec.Body.Bytes(), &s)
	if s.PatientID != "P1" || s.Text != "ok" {
		t.Errorf("unexpected body %+v", s)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("missing")
	var he *echo.HTTPError
	if err := h.Suggest(c); !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
