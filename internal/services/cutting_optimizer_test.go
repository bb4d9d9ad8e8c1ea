package services

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"alumfab/server/internal/models"
)

func ftOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		MaterialID:   "mat-1",
		MaterialName: "Профиль направляющей",
		LengthUnit:   "ft",
		CutTolerance: 0.01,
	}
}

func ftStock() []StandardLengthOption {
	return []StandardLengthOption{
		{Length: 12, LengthUnit: "ft", Rate: 700, Available: 10},
		{Length: 15, LengthUnit: "ft", Rate: 850, Available: 10},
	}
}

func TestOptimizeCutsPrefersSmallestAdequatePipe(t *testing.T) {
	cuts := []RequiredCutInput{
		{Length: 10, LengthUnit: "ft", Identifier: "W1-track-left"},
		{Length: 10, LengthUnit: "ft", Identifier: "W1-track-right"},
		{Length: 6, LengthUnit: "ft", Identifier: "W1-sash"},
	}

	pipes, err := OptimizeCuts(cuts, ftStock(), ftOptimizerConfig())
	if err != nil {
		t.Fatalf("OptimizeCuts: %v", err)
	}

	// Каждый рез 10 ft не помещается в остаток 2 ft, каждый идет в свой
	// 12-футовый хлыст; рез 6 ft тоже не влезает в остатки
	if len(pipes) != 3 {
		t.Fatalf("ожидалось 3 хлыста, получено %d", len(pipes))
	}
	var totalScrap float64
	for _, p := range pipes {
		if p.StandardLength != 12 {
			t.Errorf("ожидался хлыст 12 ft, получен %v", p.StandardLength)
		}
		if p.ScrapLength < 0 {
			t.Errorf("обрезок не может быть отрицательным: %v", p.ScrapLength)
		}
		totalScrap += p.ScrapLength
	}
	if math.Abs(totalScrap-10) > 1e-9 {
		t.Errorf("суммарный обрезок = %v, ожидалось 10", totalScrap)
	}
}

func TestOptimizeCutsAllCutsAssignedExactlyOnce(t *testing.T) {
	cuts := []RequiredCutInput{
		{Length: 7.5, LengthUnit: "ft", Identifier: "a"},
		{Length: 4, LengthUnit: "ft", Identifier: "b"},
		{Length: 4, LengthUnit: "ft", Identifier: "c"},
		{Length: 11, LengthUnit: "ft", Identifier: "d"},
		{Length: 2, LengthUnit: "ft", Identifier: "e"},
	}

	pipes, err := OptimizeCuts(cuts, ftStock(), ftOptimizerConfig())
	if err != nil {
		t.Fatalf("OptimizeCuts: %v", err)
	}

	seen := make(map[string]int)
	for _, p := range pipes {
		var sum float64
		for _, cut := range p.Cuts {
			seen[cut.Identifier]++
			sum += cut.Length
		}
		if math.Abs(sum-p.TotalCutLength) > 1e-9 {
			t.Errorf("TotalCutLength=%v не совпадает с суммой резов %v", p.TotalCutLength, sum)
		}
		if math.Abs(p.StandardLength-p.TotalCutLength-p.ScrapLength) > 1e-9 {
			t.Errorf("инвариант обрезка нарушен: %v - %v != %v", p.StandardLength, p.TotalCutLength, p.ScrapLength)
		}
	}
	for _, c := range cuts {
		if seen[c.Identifier] != 1 {
			t.Errorf("рез %q назначен %d раз", c.Identifier, seen[c.Identifier])
		}
	}
}

func TestOptimizeCutsInfeasibleCut(t *testing.T) {
	cuts := []RequiredCutInput{
		{Length: 20, LengthUnit: "ft", Identifier: "too-long"},
	}

	_, err := OptimizeCuts(cuts, ftStock(), ftOptimizerConfig())
	var infeasible *InfeasibleCutError
	if !errors.As(err, &infeasible) {
		t.Fatalf("ожидалась InfeasibleCutError, получено %v", err)
	}
	if infeasible.Identifier != "too-long" {
		t.Errorf("Identifier = %q, want too-long", infeasible.Identifier)
	}
	if infeasible.MaxStandardLength != 15 {
		t.Errorf("MaxStandardLength = %v, want 15", infeasible.MaxStandardLength)
	}
}

func TestOptimizeCutsRejectsNonPositiveLength(t *testing.T) {
	_, err := OptimizeCuts([]RequiredCutInput{{Length: 0, LengthUnit: "ft", Identifier: "zero"}}, ftStock(), ftOptimizerConfig())
	if err == nil {
		t.Fatal("ожидалась ошибка для реза нулевой длины")
	}
}

func TestOptimizeCutsConvertsUnits(t *testing.T) {
	// 3048 mm = 10 ft
	cuts := []RequiredCutInput{
		{Length: 3048, LengthUnit: "mm", Identifier: "metric"},
	}

	pipes, err := OptimizeCuts(cuts, ftStock(), ftOptimizerConfig())
	if err != nil {
		t.Fatalf("OptimizeCuts: %v", err)
	}
	if len(pipes) != 1 {
		t.Fatalf("ожидался 1 хлыст, получено %d", len(pipes))
	}
	if math.Abs(pipes[0].Cuts[0].Length-10) > 0.02 {
		t.Errorf("длина реза после конверсии = %v, ожидалось ~10 ft", pipes[0].Cuts[0].Length)
	}
}

func TestOptimizeCutsRoundsUpToTolerance(t *testing.T) {
	cfg := ftOptimizerConfig()
	cfg.CutTolerance = 0.25

	pipes, err := OptimizeCuts([]RequiredCutInput{{Length: 10.1, LengthUnit: "ft", Identifier: "r"}}, ftStock(), cfg)
	if err != nil {
		t.Fatalf("OptimizeCuts: %v", err)
	}
	if got := pipes[0].Cuts[0].Length; math.Abs(got-10.25) > 1e-9 {
		t.Errorf("рез округлен до %v, ожидалось 10.25", got)
	}
}

func TestOptimizeCutsDeterministic(t *testing.T) {
	cuts := []RequiredCutInput{
		{Length: 9, LengthUnit: "ft", Identifier: "x"},
		{Length: 5, LengthUnit: "ft", Identifier: "y"},
		{Length: 5, LengthUnit: "ft", Identifier: "z"},
		{Length: 3, LengthUnit: "ft", Identifier: "w"},
	}

	first, err := OptimizeCuts(cuts, ftStock(), ftOptimizerConfig())
	if err != nil {
		t.Fatalf("OptimizeCuts: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := OptimizeCuts(cuts, ftStock(), ftOptimizerConfig())
		if err != nil {
			t.Fatalf("OptimizeCuts: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatal("результат оптимизации недетерминирован")
		}
	}
}

func TestOptimizeCutsUsesWeight(t *testing.T) {
	cfg := ftOptimizerConfig()
	cfg.WeightPerLength = 0.5 // кг на фут

	pipes, err := OptimizeCuts([]RequiredCutInput{{Length: 10, LengthUnit: "ft", Identifier: "h"}}, ftStock(), cfg)
	if err != nil {
		t.Fatalf("OptimizeCuts: %v", err)
	}
	// Вес считается от полного хлыста, не от суммы резов
	if math.Abs(pipes[0].Weight-6) > 1e-9 {
		t.Errorf("вес хлыста = %v, ожидалось 6 (12 ft x 0.5)", pipes[0].Weight)
	}
}

func TestOptimizeCutsTieBreakByRate(t *testing.T) {
	stock := []StandardLengthOption{
		{Length: 12, LengthUnit: "ft", Rate: 900, Available: 5},
		{Length: 12, LengthUnit: "ft", Rate: 700, Available: 2},
	}

	pipes, err := OptimizeCuts([]RequiredCutInput{{Length: 10, LengthUnit: "ft", Identifier: "t"}}, stock, ftOptimizerConfig())
	if err != nil {
		t.Fatalf("OptimizeCuts: %v", err)
	}
	// Одинаковые длины схлопываются, остаток суммируется
	if len(pipes) != 1 || pipes[0].StandardLength != 12 {
		t.Fatalf("ожидался один хлыст 12 ft, получено %+v", pipes)
	}
}

func TestOptimizeCutsEmptyInput(t *testing.T) {
	pipes, err := OptimizeCuts(nil, ftStock(), ftOptimizerConfig())
	if err != nil {
		t.Fatalf("OptimizeCuts: %v", err)
	}
	if len(pipes) != 0 {
		t.Errorf("для пустого входа ожидался пустой раскрой, получено %d хлыстов", len(pipes))
	}
}

func TestSummarizePipes(t *testing.T) {
	pipes := []models.PipeUsage{
		{StandardLength: 12, ScrapLength: 2},
		{StandardLength: 12, ScrapLength: 1},
		{StandardLength: 15, ScrapLength: 0.5},
	}

	summary := SummarizePipes(pipes)
	if len(summary) != 2 {
		t.Fatalf("ожидалось 2 строки сводки, получено %d", len(summary))
	}
	if summary[0].StandardLength != 12 || summary[0].PipeCount != 2 || math.Abs(summary[0].TotalScrap-3) > 1e-9 {
		t.Errorf("сводка по 12 ft неверна: %+v", summary[0])
	}
	if summary[1].StandardLength != 15 || summary[1].PipeCount != 1 {
		t.Errorf("сводка по 15 ft неверна: %+v", summary[1])
	}
}
