package analytics

import (
	"fmt"
	"testing"

	"github.com/clinicdesk/clinicdesk/internal/domain/registry"
)

func TestSeries_DailyWindowAndSplit(t *testing.T) {
	var patients []registry.Patient
	for d := 1; d <= 20; d++ {
		patients = append(patients, registry.Patient{
			ID:        fmt.Sprintf("p%d", d),
			Status:    registry.StatusArrived,
			EntryDate: fmt.Sprintf("2024-05-%02d", d),
			Source:    "Google",
		})
	}
	patients = append(patients,
		registry.Patient{ID: "walk", Status: registry.StatusArrived, EntryDate: "2024-05-20", Source: "Walk-in"},
		registry.Patient{ID: "booked", Status: registry.StatusScheduled, EntryDate: "2024-05-20"},
		registry.Patient{ID: "nodate", Status: registry.StatusArrived},
	)

	pts := Series(patients, Daily)
	if len(pts) != dailyBuckets {
		t.Fatalf("expected %d buckets, got %d", dailyBuckets, len(pts))
	}
	if pts[0].Key != "2024-05-06" || pts[len(pts)-1].Key != "2024-05-20" {
		t.Errorf("expected window 2024-05-06..2024-05-20, got %s..%s", pts[0].Key, pts[len(pts)-1].Key)
	}
	last := pts[len(pts)-1]
	if last.Total != 2 || last.Online != 1 || last.Offline != 1 {
		t.Errorf("unexpected last bucket %+v", last)
	}
	for _, p := range pts {
		if p.Online+p.Offline != p.Total {
			t.Errorf("bucket %s does not partition: %+v", p.Key, p)
		}
	}
}

func TestSeries_Monthly(t *testing.T) {
	var patients []registry.Patient
	for m := 1; m <= 14; m++ {
		year, month := 2023+(m-1)/12, (m-1)%12+1
		patients = append(patients, registry.Patient{
			ID:           fmt.Sprintf("p%d", m),
			Status:       registry.StatusArrived,
			RegisteredAt: fmt.Sprintf("%d-%02d-10T08:00:00Z", year, month),
		})
	}

	pts := Series(patients, Monthly)
	if len(pts) != monthlyBuckets {
		t.Fatalf("expected %d buckets, got %d", monthlyBuckets, len(pts))
	}
	if pts[0].Key != "2023-03" || pts[len(pts)-1].Key != "2024-02" {
		t.Errorf("unexpected window %s..%s", pts[0].Key, pts[len(pts)-1].Key)
	}
}

func TestSeries_Empty(t *testing.T) {
	if pts := Series(nil, Daily); len(pts) != 0 {
		t.Errorf("expected no points, got %v", pts)
	}
}
