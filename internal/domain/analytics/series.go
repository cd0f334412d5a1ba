package analytics

import (
	"sort"

	"github.com/clinicdesk/clinicdesk/internal/domain/registry"
)

type Granularity string

const (
	Daily   Granularity = "daily"
	Monthly Granularity = "monthly"
)

// Display windows: the most recent buckets kept per granularity.
const (
	dailyBuckets   = 15
	monthlyBuckets = 12
)

// Comparison holds the same bundle for two independent periods.
type Comparison struct {
	Current  Summary            `json:"current"`
	Previous Summary            `json:"previous"`
	Growth   map[string]float64 `json:"growth"`
}

// Growth is the percentage change from previous to current: 100 when
// previous is zero and current positive, 0 when both are zero.
func Growth(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / previous * 100
}

// Compare summarizes both periods and the growth of the headline figures.
func Compare(patients []registry.Patient, current, previous Range) Comparison {
	cur := Summarize(patients, current)
	prev := Summarize(patients, previous)
	return Comparison{
		Current:  cur,
		Previous: prev,
		Growth: map[string]float64{
			"total":              Growth(float64(cur.Total), float64(prev.Total)),
			"arrived":            Growth(float64(cur.Arrived), float64(prev.Arrived)),
			"completed":          Growth(float64(cur.Completed), float64(prev.Completed)),
			"new":                Growth(float64(cur.New), float64(prev.New)),
			"revisit":            Growth(float64(cur.Revisit), float64(prev.Revisit)),
			"online":             Growth(float64(cur.Online), float64(prev.Online)),
			"offline":            Growth(float64(cur.Offline), float64(prev.Offline)),
			"revenue":            Growth(float64(cur.Revenue), float64(prev.Revenue)),
			"surgeryRecommended": Growth(float64(cur.SurgeryRecommended), float64(prev.SurgeryRecommended)),
		},
	}
}

// Point is one time bucket of arrivals.
type Point struct {
	Key     string `json:"key"`
	Total   int    `json:"total"`
	Online  int    `json:"online"`
	Offline int    `json:"offline"`
}

// Series buckets arrivals by day (YYYY-MM-DD) or month (YYYY-MM) and keeps
// the most recent window, oldest first. Rows without a usable arrival date
// are skipped.
func Series(patients []registry.Patient, g Granularity) []Point {
	keyLen, keep := 10, dailyBuckets
	if g == Monthly {
		keyLen, keep = 7, monthlyBuckets
	}

	byKey := map[string]*Point{}
	for _, p := range patients {
		if p.Status == registry.StatusScheduled {
			continue
		}
		day := p.ArrivalDate()
		if len(day) < keyLen {
			continue
		}
		key := day[:keyLen]
		pt, ok := byKey[key]
		if !ok {
			pt = &Point{Key: key}
			byKey[key] = pt
		}
		pt.Total++
		if IsOnline(p.Source) {
			pt.Online++
		} else {
			pt.Offline++
		}
	}

	out := make([]Point, 0, len(byKey))
	for _, pt := range byKey {
		out = append(out, *pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if len(out) > keep {
		out = out[len(out)-keep:]
	}
	return out
}
