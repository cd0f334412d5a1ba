package analytics

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/registry"
	"github.com/clinicdesk/clinicdesk/internal/platform/store"
)

func completed(id, date, amount string) registry.Patient {
	return registry.Patient{
		ID:         id,
		Status:     registry.StatusArrived,
		EntryDate:  "2024-01-15",
		Assessment: &registry.DoctorAssessment{QuickCode: registry.QuickCodeSurgery},
		Proposal: &registry.PackageProposal{
			PackageAmount: amount,
			Outcome:       registry.OutcomeCompleted,
			OutcomeDate:   date,
		},
	}
}

func TestRange_Contains(t *testing.T) {
	r := Range{From: "2024-05-01", To: "2024-05-31"}
	tests := []struct {
		day  string
		want bool
	}{
		{"2024-05-01", true},
		{"2024-05-31", true},
		{"2024-05-31T23:59:59Z", true},
		{"2024-04-30", false},
		{"2024-06-01", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.day); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.day, got, tt.want)
		}
	}
	if !(Range{}).Contains("1999-01-01") {
		t.Error("open range should contain any day")
	}
}

func TestPopulation_CountsArrivedAndCompletedOnce(t *testing.T) {
	r := Range{From: "2024-05-01", To: "2024-05-31"}
	both := completed("both", "2024-05-20", "10000")
	both.EntryDate = "2024-05-02"
	patients := []registry.Patient{
		both,
		completed("done", "2024-05-10", "20000"),
		{ID: "seen", Status: registry.StatusArrived, EntryDate: "2024-05-05"},
		{ID: "booked", Status: registry.StatusScheduled, EntryDate: "2024-05-05"},
		{ID: "old", Status: registry.StatusArrived, EntryDate: "2024-04-05"},
	}

	s := Summarize(patients, r)
	if s.Total != 3 {
		t.Errorf("expected population 3, got %d", s.Total)
	}
	if s.Arrived != 2 {
		t.Errorf("expected 2 arrivals, got %d", s.Arrived)
	}
	if s.Completed != 2 {
		t.Errorf("expected 2 completions, got %d", s.Completed)
	}
	if s.Revenue != 30000 {
		t.Errorf("expected revenue 30000, got %d", s.Revenue)
	}
}

func TestRevenue_FormatInvariant(t *testing.T) {
	r := Range{From: "2024-05-01", To: "2024-05-31"}
	formats := []string{"50000", "50,000", "₹50,000", "Rs. 50,000/-"}
	for _, f := range formats {
		got := Revenue([]registry.Patient{completed("p", "2024-05-10", f)}, r)
		if got != 50000 {
			t.Errorf("amount %q: expected 50000, got %d", f, got)
		}
	}
	garbage := Revenue([]registry.Patient{completed("p", "2024-05-10", "TBD")}, r)
	if garbage != 0 {
		t.Errorf("expected unparseable amount to count as 0, got %d", garbage)
	}
}

func TestRevenue_OnlyCompletedInPeriod(t *testing.T) {
	r := Range{From: "2024-05-01", To: "2024-05-31"}
	scheduled := completed("s", "2024-05-10", "40000")
	scheduled.Proposal.Outcome = registry.OutcomeScheduled
	patients := []registry.Patient{
		completed("in", "2024-05-10", "10000"),
		completed("out", "2024-06-01", "20000"),
		scheduled,
	}
	if got := Revenue(patients, r); got != 10000 {
		t.Errorf("expected 10000, got %d", got)
	}
}

func TestWeightedValue(t *testing.T) {
	lead := func(amount string) registry.Patient {
		return registry.Patient{Proposal: &registry.PackageProposal{
			PackageAmount: amount,
			ProposalStage: registry.StageConfirmed,
		}}
	}
	tests := []struct {
		amount string
		want   int64
	}{
		{"1,00,000", 90000},
		{"1,000,000,000,000", 900_000_000_000},
		{"9223372036854775807", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := weightedValue(lead(tt.amount)); got != tt.want {
			t.Errorf("weightedValue(%q) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestSummarize_OnlineOfflinePartition(t *testing.T) {
	r := Range{From: "2024-05-01", To: "2024-05-31"}
	sources := []string{"Google", "Instagram", "WhatsApp", "Doctor Referral", "Other: hoarding near bus stand", "", "Hoarding", "Practo", "Mystery"}
	var patients []registry.Patient
	for i, src := range sources {
		patients = append(patients, registry.Patient{
			ID: string(rune('a' + i)), Status: registry.StatusArrived, EntryDate: "2024-05-03", Source: src,
		})
	}
	patients = append(patients, completed("done", "2024-05-09", "1000"))

	s := Summarize(patients, r)
	if s.Online+s.Offline != s.Total {
		t.Fatalf("online %d + offline %d != total %d", s.Online, s.Offline, s.Total)
	}
	if s.Online != 4 {
		t.Errorf("expected 4 online, got %d", s.Online)
	}
	var social, others int
	for _, b := range s.Sources {
		switch b.Name {
		case SourceSocial:
			social = b.Count
		case SourceOthers:
			others = b.Count
		}
	}
	if social != 2 {
		t.Errorf("expected 2 in %s, got %d", SourceSocial, social)
	}
	if others != 4 {
		t.Errorf("expected 4 in Others, got %d", others)
	}
}

func TestSummarize_VisitTypeIsAuthoritative(t *testing.T) {
	r := Range{From: "2024-05-01", To: "2024-05-31"}
	patients := []registry.Patient{
		{ID: "old", Mobile: "9876543210", Status: registry.StatusArrived, EntryDate: "2024-01-01", VisitType: registry.VisitOPD},
		{ID: "again", Mobile: "9876543210", Status: registry.StatusArrived, EntryDate: "2024-05-02", VisitType: registry.VisitOPD},
		{ID: "fu", Mobile: "111", Status: registry.StatusArrived, EntryDate: "2024-05-02", VisitType: registry.VisitFollowUp},
		{ID: "untagged", Mobile: "9876543210", Status: registry.StatusArrived, EntryDate: "2024-05-03"},
	}
	s := Summarize(patients, r)
	if s.New != 2 || s.Revisit != 1 {
		t.Errorf("expected 2 new / 1 revisit, got %d / %d", s.New, s.Revisit)
	}
}

func TestSummarize_CounselingMixDeduplicates(t *testing.T) {
	r := Range{From: "2024-05-01", To: "2024-05-31"}
	both := completed("both", "2024-05-20", "10000")
	both.EntryDate = "2024-05-02"
	both.Proposal.ProposalStage = registry.StageConfirmed
	both.Proposal.DecisionPattern = "Family decides"

	lead := registry.Patient{
		ID: "lead", Status: registry.StatusArrived, EntryDate: "2024-05-04",
		Assessment: &registry.DoctorAssessment{QuickCode: registry.QuickCodeSurgery},
		Proposal:   &registry.PackageProposal{ProposalStage: registry.StageNegotiation, PackageAmount: "80,000"},
	}
	md := registry.Patient{
		ID: "md", Status: registry.StatusArrived, EntryDate: "2024-05-04",
		Assessment: &registry.DoctorAssessment{QuickCode: registry.QuickCodeMedication},
	}

	s := Summarize([]registry.Patient{both, lead, md}, r)
	total := 0
	for _, b := range s.ProposalStages {
		total += b.Count
	}
	if total != 2 {
		t.Errorf("expected 2 patients in the counseling mix, got %d (%+v)", total, s.ProposalStages)
	}
	if s.SurgeryRecommended != 2 {
		t.Errorf("expected 2 surgery recommendations, got %d", s.SurgeryRecommended)
	}
	if s.ConversionRate != 50 {
		t.Errorf("expected 50%% conversion, got %v", s.ConversionRate)
	}
	if s.PipelineValue != 40000 {
		t.Errorf("expected weighted pipeline 40000, got %d", s.PipelineValue)
	}
}

func TestSummarize_EmptyInput(t *testing.T) {
	s := Summarize(nil, Range{From: "2024-05-01", To: "2024-05-31"})
	if s.Total != 0 || s.Revenue != 0 || s.ConversionRate != 0 {
		t.Errorf("expected zero summary, got %+v", s)
	}
	if s.Sources == nil {
		t.Error("expected empty, non-nil buckets")
	}
}

func TestGrowth(t *testing.T) {
	tests := []struct {
		cur, prev, want float64
	}{
		{150, 100, 50},
		{50, 100, -50},
		{5, 0, 100},
		{0, 0, 0},
		{0, 10, -100},
	}
	for _, tt := range tests {
		if got := Growth(tt.cur, tt.prev); got != tt.want {
			t.Errorf("Growth(%v, %v) = %v, want %v", tt.cur, tt.prev, got, tt.want)
		}
	}
}

func TestCompare(t *testing.T) {
	patients := []registry.Patient{
		{ID: "a", Status: registry.StatusArrived, EntryDate: "2024-05-02"},
		{ID: "b", Status: registry.StatusArrived, EntryDate: "2024-05-03"},
		{ID: "c", Status: registry.StatusArrived, EntryDate: "2024-04-03"},
	}
	cmp := Compare(patients, Range{From: "2024-05-01", To: "2024-05-31"}, Range{From: "2024-04-01", To: "2024-04-30"})
	if cmp.Current.Total != 2 || cmp.Previous.Total != 1 {
		t.Fatalf("unexpected totals %d / %d", cmp.Current.Total, cmp.Previous.Total)
	}
	if cmp.Growth["total"] != 100 {
		t.Errorf("expected 100%% growth, got %v", cmp.Growth["total"])
	}
}

// Registering a patient and reading the same day back through the engine.
func TestEndToEnd_RegisterThenSummarize(t *testing.T) {
	ctx := context.Background()
	svc := registry.NewService(registry.NewStoreRepo(store.NewMemoryStore()), nil, zerolog.Nop())

	if _, err := svc.Create(ctx, registry.Patient{
		ID: "P1", Name: "Asha", Mobile: "9876543210", Source: "Google", EntryDate: "2024-05-01",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	s := Summarize(svc.Patients(), Range{From: "2024-05-01", To: "2024-05-01"})
	if s.Total != 1 || s.New != 1 || s.Revisit != 0 {
		t.Errorf("expected exactly one new flow record, got total=%d new=%d revisit=%d", s.Total, s.New, s.Revisit)
	}
	if s.Revenue != 0 {
		t.Errorf("expected zero revenue, got %d", s.Revenue)
	}
}
