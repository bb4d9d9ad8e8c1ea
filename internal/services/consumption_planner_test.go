package services

import (
	"math"
	"testing"
	"time"

	"alumfab/server/internal/models"
)

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func profileBatch(id string, purchased time.Time, qty, rate float64) models.ProfileBatch {
	return models.ProfileBatch{
		ID:              id,
		MaterialID:      "mat-1",
		Gauge:           "1.2mm",
		StandardLength:  12,
		LengthUnit:      "ft",
		CurrentQuantity: qty,
		RatePerPiece:    rate,
		PurchaseDate:    purchased,
		CreatedAt:       purchased,
	}
}

func TestPlanProfileConsumptionFIFO(t *testing.T) {
	batches := []models.ProfileBatch{
		profileBatch("batch-new", day(10), 2, 750),
		profileBatch("batch-old", day(1), 5, 700),
	}
	demands := []PipeDemand{{StandardLength: 12, LengthUnit: "ft", Count: 6}}

	instructions, shortfalls := PlanProfileConsumption(batches, "1.2mm", demands, MaterialRef{ID: "mat-1", Name: "Профиль"})
	if len(shortfalls) != 0 {
		t.Fatalf("неожиданная нехватка: %+v", shortfalls)
	}
	if len(instructions) != 2 {
		t.Fatalf("ожидалось 2 списания, получено %d", len(instructions))
	}

	// Сначала полностью выбирается старая партия, остаток из новой
	first, second := instructions[0], instructions[1]
	if first.BatchID != "batch-old" || first.Quantity != 5 || first.Rate != 700 {
		t.Errorf("первое списание неверно: %+v", first)
	}
	if second.BatchID != "batch-new" || second.Quantity != 1 || second.Rate != 750 {
		t.Errorf("второе списание неверно: %+v", second)
	}
}

func TestPlanProfileConsumptionShortfall(t *testing.T) {
	batches := []models.ProfileBatch{
		profileBatch("b1", day(1), 3, 700),
	}
	demands := []PipeDemand{{StandardLength: 12, LengthUnit: "ft", Count: 5}}

	instructions, shortfalls := PlanProfileConsumption(batches, "1.2mm", demands, MaterialRef{ID: "mat-1", Name: "Профиль"})
	if len(instructions) != 1 || instructions[0].Quantity != 3 {
		t.Errorf("ожидалось частичное списание 3 хлыстов, получено %+v", instructions)
	}
	if len(shortfalls) != 1 {
		t.Fatalf("ожидалась 1 нехватка, получено %d", len(shortfalls))
	}
	s := shortfalls[0]
	if s.Quantity != 2 || s.StandardLength != 12 || s.Gauge != "1.2mm" {
		t.Errorf("нехватка неверна: %+v", s)
	}
}

func TestPlanProfileConsumptionSkipsWrongGaugeAndLength(t *testing.T) {
	other := profileBatch("wrong-gauge", day(1), 10, 700)
	other.Gauge = "1.5mm"
	longer := profileBatch("wrong-length", day(1), 10, 700)
	longer.StandardLength = 15

	batches := []models.ProfileBatch{other, longer, profileBatch("ok", day(2), 1, 700)}
	demands := []PipeDemand{{StandardLength: 12, LengthUnit: "ft", Count: 1}}

	instructions, shortfalls := PlanProfileConsumption(batches, "1.2mm", demands, MaterialRef{ID: "mat-1"})
	if len(shortfalls) != 0 {
		t.Fatalf("неожиданная нехватка: %+v", shortfalls)
	}
	if len(instructions) != 1 || instructions[0].BatchID != "ok" {
		t.Errorf("списание должно идти только из партии нужного калибра и длины: %+v", instructions)
	}
}

func TestPlanProfileConsumptionSkipsClosedBatches(t *testing.T) {
	closed := profileBatch("closed", day(1), 5, 700)
	closed.IsCompleted = true
	empty := profileBatch("empty", day(2), 0, 700)

	batches := []models.ProfileBatch{closed, empty, profileBatch("live", day(3), 2, 720)}
	demands := []PipeDemand{{StandardLength: 12, LengthUnit: "ft", Count: 2}}

	instructions, shortfalls := PlanProfileConsumption(batches, "1.2mm", demands, MaterialRef{ID: "mat-1"})
	if len(shortfalls) != 0 {
		t.Fatalf("неожиданная нехватка: %+v", shortfalls)
	}
	if len(instructions) != 1 || instructions[0].BatchID != "live" {
		t.Errorf("закрытые и пустые партии не должны участвовать: %+v", instructions)
	}
}

func TestPlanProfileConsumptionConvertsUnits(t *testing.T) {
	// Партия хранит длину в метрах, потребность выражена в мм
	metric := profileBatch("metric", day(1), 3, 500)
	metric.StandardLength = 6
	metric.LengthUnit = "m"

	demands := []PipeDemand{{StandardLength: 6000, LengthUnit: "mm", Count: 2}}
	instructions, shortfalls := PlanProfileConsumption([]models.ProfileBatch{metric}, "1.2mm", demands, MaterialRef{ID: "mat-1"})
	if len(shortfalls) != 0 {
		t.Fatalf("длины 6 m и 6000 mm должны совпадать: %+v", shortfalls)
	}
	if len(instructions) != 1 || instructions[0].Quantity != 2 {
		t.Errorf("списание после конверсии неверно: %+v", instructions)
	}
}

func TestPlanProfileConsumptionTieBreak(t *testing.T) {
	// Одинаковая дата закупки: порядок по дате создания, затем по ID
	a := profileBatch("bbb", day(1), 1, 700)
	b := profileBatch("aaa", day(1), 1, 700)

	demands := []PipeDemand{{StandardLength: 12, LengthUnit: "ft", Count: 1}}
	instructions, _ := PlanProfileConsumption([]models.ProfileBatch{a, b}, "1.2mm", demands, MaterialRef{ID: "mat-1"})
	if len(instructions) != 1 || instructions[0].BatchID != "aaa" {
		t.Errorf("при равных датах порядок должен определяться ID: %+v", instructions)
	}
}

func TestPlanProfileConsumptionDoesNotMutateInput(t *testing.T) {
	batches := []models.ProfileBatch{
		profileBatch("z", day(5), 1, 700),
		profileBatch("a", day(1), 1, 700),
	}
	demands := []PipeDemand{{StandardLength: 12, LengthUnit: "ft", Count: 2}}

	PlanProfileConsumption(batches, "1.2mm", demands, MaterialRef{ID: "mat-1"})
	if batches[0].ID != "z" || batches[0].CurrentQuantity != 1 {
		t.Error("входной срез партий не должен изменяться")
	}
}

func TestPlanSimpleConsumptionFIFO(t *testing.T) {
	batches := []models.SimpleBatch{
		{ID: "new", MaterialID: "mat-2", CurrentQuantity: 40, Unit: "sqft", RatePerUnit: 32, PurchaseDate: day(20), CreatedAt: day(20)},
		{ID: "old", MaterialID: "mat-2", CurrentQuantity: 30, Unit: "sqft", RatePerUnit: 30, PurchaseDate: day(2), CreatedAt: day(2)},
	}

	instructions, shortfalls := PlanSimpleConsumption(batches, 50, "sqft", MaterialRef{ID: "mat-2", Name: "Стекло"})
	if len(shortfalls) != 0 {
		t.Fatalf("неожиданная нехватка: %+v", shortfalls)
	}
	if len(instructions) != 2 {
		t.Fatalf("ожидалось 2 списания, получено %d", len(instructions))
	}
	if instructions[0].BatchID != "old" || instructions[0].Quantity != 30 || instructions[0].Rate != 30 {
		t.Errorf("первое списание неверно: %+v", instructions[0])
	}
	if instructions[1].BatchID != "new" || instructions[1].Quantity != 20 {
		t.Errorf("второе списание неверно: %+v", instructions[1])
	}
}

func TestPlanSimpleConsumptionShortfall(t *testing.T) {
	batches := []models.SimpleBatch{
		{ID: "b", MaterialID: "mat-2", CurrentQuantity: 10, Unit: "pcs", RatePerUnit: 12, PurchaseDate: day(1), CreatedAt: day(1)},
	}

	instructions, shortfalls := PlanSimpleConsumption(batches, 25.5, "pcs", MaterialRef{ID: "mat-2", Name: "Ролик"})
	if len(instructions) != 1 || instructions[0].Quantity != 10 {
		t.Errorf("частичное списание неверно: %+v", instructions)
	}
	if len(shortfalls) != 1 || math.Abs(shortfalls[0].Quantity-15.5) > 1e-9 {
		t.Fatalf("ожидалась нехватка 15.5, получено %+v", shortfalls)
	}
	if shortfalls[0].MaterialName != "Ролик" {
		t.Errorf("в нехватке должно быть имя материала: %+v", shortfalls[0])
	}
}

func TestDemandFromPipes(t *testing.T) {
	pipes := []models.PipeUsage{
		{StandardLength: 15, LengthUnit: "ft"},
		{StandardLength: 12, LengthUnit: "ft"},
		{StandardLength: 12, LengthUnit: "ft"},
		{StandardLength: 12, LengthUnit: "ft"},
	}

	demands := DemandFromPipes(pipes)
	if len(demands) != 2 {
		t.Fatalf("ожидалось 2 потребности, получено %d", len(demands))
	}
	if demands[0].StandardLength != 12 || demands[0].Count != 3 {
		t.Errorf("потребность по 12 ft неверна: %+v", demands[0])
	}
	if demands[1].StandardLength != 15 || demands[1].Count != 1 {
		t.Errorf("потребность по 15 ft неверна: %+v", demands[1])
	}
}
