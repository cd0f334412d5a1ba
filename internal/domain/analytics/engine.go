// Package analytics derives reporting views from a registry snapshot. Every
// function here is pure and total: malformed fields count as zero or empty.
package analytics

import (
	"sort"
	"strings"

	"github.com/clinicdesk/clinicdesk/internal/domain/registry"
)

// Range is an inclusive calendar-day window compared as ISO date strings.
// An empty bound is open.
type Range struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Contains reports whether day (YYYY-MM-DD or a timestamp) falls in r. A
// missing day never qualifies.
func (r Range) Contains(day string) bool {
	day = strings.TrimSpace(day)
	if len(day) > 10 {
		day = day[:10]
	}
	if day == "" {
		return false
	}
	if r.From != "" && day < r.From {
		return false
	}
	if r.To != "" && day > r.To {
		return false
	}
	return true
}

// Bucket is one slice of a categorical distribution.
type Bucket struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary is the full aggregate bundle for one period.
type Summary struct {
	Range              Range    `json:"range"`
	Total              int      `json:"total"`
	Arrived            int      `json:"arrived"`
	Completed          int      `json:"completed"`
	New                int      `json:"new"`
	Revisit            int      `json:"revisit"`
	Online             int      `json:"online"`
	Offline            int      `json:"offline"`
	Revenue            int64    `json:"revenue"`
	SurgeryRecommended int      `json:"surgeryRecommended"`
	ConversionRate     float64  `json:"conversionRate"`
	PipelineValue      int64    `json:"pipelineValue"`
	Sources            []Bucket `json:"sources"`
	Conditions         []Bucket `json:"conditions"`
	Outcomes           []Bucket `json:"outcomes"`
	ProposalStages     []Bucket `json:"proposalStages"`
	DecisionPatterns   []Bucket `json:"decisionPatterns"`
}

// Arrived reports a patient who was seen (not a pending booking) in r.
func Arrived(p registry.Patient, r Range) bool {
	return p.Status != registry.StatusScheduled && r.Contains(p.ArrivalDate())
}

// Completed reports a surgery completed in r, dated by its outcome date.
func Completed(p registry.Patient, r Range) bool {
	return p.Outcome() == registry.OutcomeCompleted && r.Contains(p.Proposal.OutcomeDate)
}

// Population is the period's flow: arrivals and completions, each patient once.
func Population(patients []registry.Patient, r Range) []registry.Patient {
	var out []registry.Patient
	for _, p := range patients {
		if Arrived(p, r) || Completed(p, r) {
			out = append(out, p)
		}
	}
	return out
}

// Revenue sums package amounts over surgeries completed in r.
func Revenue(patients []registry.Patient, r Range) int64 {
	var total int64
	for _, p := range patients {
		if Completed(p, r) {
			total += registry.ParseAmount(p.Proposal.PackageAmount)
		}
	}
	return total
}

// IsRevisit classifies from the explicit visit tag only. Untagged rows count
// as new visits.
func IsRevisit(p registry.Patient) bool {
	return p.VisitType == registry.VisitFollowUp
}

// Summarize computes the bundle for one period.
func Summarize(patients []registry.Patient, r Range) Summary {
	s := Summary{Range: r}
	pop := Population(patients, r)
	s.Total = len(pop)

	sources := map[string]int{}
	conditions := map[string]int{}
	outcomes := map[string]int{}
	for _, p := range pop {
		if Arrived(p, r) {
			s.Arrived++
			if p.Assessment.SurgeryRecommended() {
				s.SurgeryRecommended++
			}
		}
		if Completed(p, r) {
			s.Completed++
			s.Revenue += registry.ParseAmount(p.Proposal.PackageAmount)
		}
		if IsRevisit(p) {
			s.Revisit++
		} else {
			s.New++
		}
		if IsOnline(p.Source) {
			s.Online++
		} else {
			s.Offline++
		}
		if p.IsLead() {
			s.PipelineValue += weightedValue(p)
		}
		sources[CanonicalSource(p.Source)]++
		conditions[string(p.Condition)]++
		outcomes[outcomeLabel(p.Outcome())]++
	}

	s.ConversionRate = rate(s.Completed, s.SurgeryRecommended)
	s.Sources = buckets(sources)
	s.Conditions = buckets(conditions)
	s.Outcomes = buckets(outcomes)
	s.ProposalStages, s.DecisionPatterns = counselingMix(patients, r)
	return s
}

// counselingMix distributes proposal stage and decision pattern over surgery
// recommendations that arrived in r together with completions in r, each
// patient counted once.
func counselingMix(patients []registry.Patient, r Range) (stages, patterns []Bucket) {
	stageCounts := map[string]int{}
	patternCounts := map[string]int{}
	seen := map[string]bool{}
	for _, p := range patients {
		srArrival := Arrived(p, r) && p.Assessment.SurgeryRecommended()
		if !srArrival && !Completed(p, r) {
			continue
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		stage, pattern := "Not Started", "Unknown"
		if p.Proposal != nil {
			if p.Proposal.ProposalStage != "" {
				stage = p.Proposal.ProposalStage
			}
			if p.Proposal.DecisionPattern != "" {
				pattern = p.Proposal.DecisionPattern
			}
		}
		stageCounts[stage]++
		patternCounts[pattern]++
	}
	return buckets(stageCounts), buckets(patternCounts)
}

// weightedValue is a lead's package amount scaled by its stage probability.
func weightedValue(p registry.Patient) int64 {
	if p.Proposal == nil {
		return 0
	}
	amount := registry.ParseAmount(p.Proposal.PackageAmount)
	return amount * int64(registry.StageProbability(p.Proposal.ProposalStage)) / 100
}

func outcomeLabel(o registry.Outcome) string {
	if o == registry.OutcomePending {
		return "Pending"
	}
	return string(o)
}

// buckets orders by count descending, then name, for stable output.
func buckets(m map[string]int) []Bucket {
	out := make([]Bucket, 0, len(m))
	for k, v := range m {
		out = append(out, Bucket{Name: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func rate(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}
