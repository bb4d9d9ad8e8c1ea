package models

import (
	"testing"
	"time"
)

func TestCuttingPlanIsCommitted(t *testing.T) {
	plan := &CuttingPlan{Status: PlanStatusGenerated}
	if plan.IsCommitted() {
		t.Error("план в статусе generated не должен считаться списанным")
	}

	now := time.Now()
	plan.Status = PlanStatusCommitted
	plan.CommittedAt = &now
	if !plan.IsCommitted() {
		t.Error("план в статусе committed должен считаться списанным")
	}
}

func TestMaterialPlanPipesRoundTrip(t *testing.T) {
	mp := &MaterialPlan{}
	pipes := []PipeUsage{
		{
			StandardLength: 12,
			LengthUnit:     "ft",
			Cuts: []CutEntry{
				{Length: 10, Identifier: "W1-track-left"},
			},
			TotalCutLength: 10,
			ScrapLength:    2,
			Weight:         14.4,
		},
	}

	if err := mp.SetPipes(pipes); err != nil {
		t.Fatalf("SetPipes: %v", err)
	}
	got, err := mp.GetPipes()
	if err != nil {
		t.Fatalf("GetPipes: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ожидался 1 хлыст, получено %d", len(got))
	}
	p := got[0]
	if p.StandardLength != 12 || p.ScrapLength != 2 || p.Weight != 14.4 {
		t.Errorf("хлыст после round-trip неверен: %+v", p)
	}
	if len(p.Cuts) != 1 || p.Cuts[0].Identifier != "W1-track-left" {
		t.Errorf("резы после round-trip неверны: %+v", p.Cuts)
	}
}

func TestMaterialPlanEmptyColumns(t *testing.T) {
	mp := &MaterialPlan{}

	pipes, err := mp.GetPipes()
	if err != nil || pipes == nil || len(pipes) != 0 {
		t.Errorf("пустая колонка Pipes должна давать пустой срез: %v, %v", pipes, err)
	}
	summary, err := mp.GetSummary()
	if err != nil || summary == nil || len(summary) != 0 {
		t.Errorf("пустая колонка Summary должна давать пустой срез: %v, %v", summary, err)
	}
	shortfalls, err := mp.GetShortfalls()
	if err != nil || shortfalls == nil || len(shortfalls) != 0 {
		t.Errorf("пустая колонка Shortfalls должна давать пустой срез: %v, %v", shortfalls, err)
	}
}

func TestMaterialPlanShortfallsRoundTrip(t *testing.T) {
	mp := &MaterialPlan{}
	in := []PlanShortfall{
		{StandardLength: 15, LengthUnit: "ft", Gauge: "1.2mm", Quantity: 3},
	}
	if err := mp.SetShortfalls(in); err != nil {
		t.Fatalf("SetShortfalls: %v", err)
	}
	got, err := mp.GetShortfalls()
	if err != nil {
		t.Fatalf("GetShortfalls: %v", err)
	}
	if len(got) != 1 || got[0].Quantity != 3 || got[0].Gauge != "1.2mm" {
		t.Errorf("нехватки после round-trip неверны: %+v", got)
	}
}

func TestMaterialPlanSummaryRoundTrip(t *testing.T) {
	mp := &MaterialPlan{}
	in := []LengthSummary{
		{StandardLength: 12, PipeCount: 4, TotalScrap: 7.5},
	}
	if err := mp.SetSummary(in); err != nil {
		t.Fatalf("SetSummary: %v", err)
	}
	got, err := mp.GetSummary()
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if len(got) != 1 || got[0].PipeCount != 4 || got[0].TotalScrap != 7.5 {
		t.Errorf("сводка после round-trip неверна: %+v", got)
	}
}
