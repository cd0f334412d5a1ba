package registry

import "testing"

func TestDoctorAssessment_Complete(t *testing.T) {
	tests := []struct {
		name string
		a    *DoctorAssessment
		want bool
	}{
		{"nil", nil, true},
		{"medication only", &DoctorAssessment{QuickCode: QuickCodeMedication}, true},
		{"surgery missing fields", &DoctorAssessment{QuickCode: QuickCodeSurgery, PainSeverity: "High"}, false},
		{"surgery complete", &DoctorAssessment{
			QuickCode: QuickCodeSurgery, PainSeverity: "High", Affordability: "A1",
			ConversionReadiness: "CR2", SurgeryProcedure: "Laser",
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Complete(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestIsRevisit_ExplicitTagWins(t *testing.T) {
	all := []Patient{
		{ID: "P0", Mobile: "9876543210", RegisteredAt: "2024-01-01T10:00:00Z"},
		{ID: "P1", Mobile: "+91 98765 43210", RegisteredAt: "2024-05-01T10:00:00Z", VisitType: VisitOPD},
		{ID: "P2", Mobile: "1111111111", RegisteredAt: "2024-05-01T10:00:00Z", VisitType: VisitFollowUp},
	}
	if IsRevisit(all[1], all) {
		t.Error("explicit OPD tag must not be overridden by mobile history")
	}
	if !IsRevisit(all[2], all) {
		t.Error("explicit Follow-Up tag must count as revisit")
	}
}

func TestIsRevisit_MobileFallback(t *testing.T) {
	all := []Patient{
		{ID: "P0", Mobile: "9876543210", RegisteredAt: "2024-01-01T10:00:00Z"},
		{ID: "P1", Mobile: "+91 98765-43210", RegisteredAt: "2024-05-01T10:00:00Z"},
		{ID: "P2", Mobile: "5555555555", RegisteredAt: "2024-05-01T10:00:00Z"},
		{ID: "A1", Mobile: "5555555555", RegisteredAt: "2024-04-01T10:00:00Z", Status: StatusScheduled},
	}
	if !IsRevisit(all[1], all) {
		t.Error("expected earlier registration with same mobile to mark a revisit")
	}
	if IsRevisit(all[0], all) {
		t.Error("first registration is not a revisit")
	}
	if IsRevisit(all[2], all) {
		t.Error("a pending booking is not a prior visit")
	}
}

func TestLeads(t *testing.T) {
	sr := &DoctorAssessment{QuickCode: QuickCodeSurgery}
	patients := []Patient{
		{ID: "md", Assessment: &DoctorAssessment{QuickCode: QuickCodeMedication}},
		{ID: "early", Assessment: sr, Proposal: &PackageProposal{ProposalStage: StageInitialDiscussion}},
		{ID: "none", Assessment: sr},
		{ID: "late", Assessment: sr, Proposal: &PackageProposal{ProposalStage: StageTentativeDate}},
		{ID: "done", Assessment: sr, Proposal: &PackageProposal{Outcome: OutcomeCompleted}},
	}

	leads := Leads(patients)
	if len(leads) != 3 {
		t.Fatalf("expected 3 leads, got %d", len(leads))
	}
	got := []string{leads[0].ID, leads[1].ID, leads[2].ID}
	want := []string{"late", "early", "none"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestStageProbability(t *testing.T) {
	if StageProbability(StageConfirmed) != 90 {
		t.Errorf("expected 90 for %s", StageConfirmed)
	}
	if StageProbability("unknown") != 0 {
		t.Error("expected 0 for unknown stage")
	}
}

func TestPatient_ArrivalDate(t *testing.T) {
	p := Patient{RegisteredAt: "2024-05-03T08:00:00Z"}
	if p.ArrivalDate() != "2024-05-03" {
		t.Errorf("expected fallback to registration day, got %q", p.ArrivalDate())
	}
	p.EntryDate = "2024-05-01"
	if p.ArrivalDate() != "2024-05-01" {
		t.Errorf("expected entry date, got %q", p.ArrivalDate())
	}
}
