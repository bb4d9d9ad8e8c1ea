package services

import (
	"fmt"
	"sort"

	"alumfab/server/internal/models"
)

// Допуск при сравнении длин после конверсии единиц
const lengthEpsilon = 1e-9

// RequiredCutInput — один требуемый рез, единицы могут отличаться от единиц материала
type RequiredCutInput struct {
	Length     float64
	LengthUnit string
	Identifier string
}

// StandardLengthOption — доступная стандартная длина хлыста со стоимостью и остатком.
// Формируется из партий на складе
type StandardLengthOption struct {
	Length     float64
	LengthUnit string
	Rate       float64 // Цена за хлыст, для выбора при равных длинах
	Available  float64 // Остаток в штуках, информационно — оптимизатор складом не ограничен
}

// OptimizerConfig — параметры материала для раскроя
type OptimizerConfig struct {
	MaterialID      string
	MaterialName    string
	LengthUnit      string  // Единица, в которой считается весь раскрой
	CutTolerance    float64 // Шаг округления реза вверх (ширина пропила)
	WeightPerLength float64 // Вес единицы длины по калибру, 0 — вес не считается
}

// OptimizeCuts распределяет резы по хлыстам стандартных длин, минимизируя обрезки.
// Жадный алгоритм: резы по убыванию длины, каждый кладется в открытый хлыст
// с наименьшим достаточным остатком, иначе открывается наименьший достаточный хлыст.
// Результат детерминирован: одинаковый вход дает одинаковый план
func OptimizeCuts(cuts []RequiredCutInput, stocked []StandardLengthOption, cfg OptimizerConfig) ([]models.PipeUsage, error) {
	if len(cuts) == 0 {
		return []models.PipeUsage{}, nil
	}

	options, err := normalizeOptions(stocked, cfg.LengthUnit)
	if err != nil {
		return nil, err
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("для материала %q нет ни одной стандартной длины на складе", cfg.MaterialName)
	}
	maxStandard := options[len(options)-1].Length

	// Конверсия в единицу материала + округление вверх до допуска реза
	type normalizedCut struct {
		length     float64
		identifier string
	}
	normalized := make([]normalizedCut, 0, len(cuts))
	for _, c := range cuts {
		if c.Length <= 0 {
			return nil, fmt.Errorf("рез %q имеет недопустимую длину %v", c.Identifier, c.Length)
		}
		length, err := ConvertLength(c.Length, c.LengthUnit, cfg.LengthUnit)
		if err != nil {
			return nil, fmt.Errorf("рез %q: %w", c.Identifier, err)
		}
		length = RoundUpToTolerance(length, cfg.CutTolerance)
		if length > maxStandard+lengthEpsilon {
			return nil, &InfeasibleCutError{
				MaterialID:        cfg.MaterialID,
				MaterialName:      cfg.MaterialName,
				Identifier:        c.Identifier,
				Length:            length,
				LengthUnit:        cfg.LengthUnit,
				MaxStandardLength: maxStandard,
			}
		}
		normalized = append(normalized, normalizedCut{length: length, identifier: c.Identifier})
	}

	// Длинные резы размещаем первыми — классическая эвристика FFD
	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].length > normalized[j].length
	})

	type openPipe struct {
		standardLength float64
		remaining      float64
		cuts           []models.CutEntry
	}
	var pipes []*openPipe

	for _, c := range normalized {
		// Открытый хлыст с наименьшим достаточным остатком
		var best *openPipe
		for _, p := range pipes {
			if p.remaining+lengthEpsilon >= c.length {
				if best == nil || p.remaining < best.remaining {
					best = p
				}
			}
		}

		if best == nil {
			// Новый хлыст: наименьшая достаточная стандартная длина
			// (options отсортированы по длине, при равенстве — по цене)
			var chosen *StandardLengthOption
			for i := range options {
				if options[i].Length+lengthEpsilon >= c.length {
					chosen = &options[i]
					break
				}
			}
			if chosen == nil {
				// Недостижимо после проверки maxStandard выше
				return nil, fmt.Errorf("не найден хлыст под рез %q (%v %s)", c.identifier, c.length, cfg.LengthUnit)
			}
			best = &openPipe{standardLength: chosen.Length, remaining: chosen.Length}
			pipes = append(pipes, best)
		}

		best.cuts = append(best.cuts, models.CutEntry{Length: c.length, Identifier: c.identifier})
		best.remaining -= c.length
	}

	result := make([]models.PipeUsage, 0, len(pipes))
	for _, p := range pipes {
		var total float64
		for _, cut := range p.cuts {
			total += cut.Length
		}
		scrap := p.standardLength - total
		if scrap < 0 {
			scrap = 0 // Погрешность float, резов больше длины хлыста быть не может
		}
		usage := models.PipeUsage{
			StandardLength: p.standardLength,
			LengthUnit:     cfg.LengthUnit,
			Cuts:           p.cuts,
			TotalCutLength: total,
			ScrapLength:    scrap,
		}
		if cfg.WeightPerLength > 0 {
			usage.Weight = p.standardLength * cfg.WeightPerLength
		}
		result = append(result, usage)
	}
	return result, nil
}

// SummarizePipes агрегирует хлысты по стандартным длинам для сводки плана
func SummarizePipes(pipes []models.PipeUsage) []models.LengthSummary {
	index := make(map[float64]*models.LengthSummary)
	var order []float64
	for _, p := range pipes {
		s, ok := index[p.StandardLength]
		if !ok {
			s = &models.LengthSummary{StandardLength: p.StandardLength}
			index[p.StandardLength] = s
			order = append(order, p.StandardLength)
		}
		s.PipeCount++
		s.TotalScrap += p.ScrapLength
	}
	sort.Float64s(order)
	result := make([]models.LengthSummary, 0, len(order))
	for _, l := range order {
		result = append(result, *index[l])
	}
	return result
}

// normalizeOptions приводит стандартные длины к единой единице, схлопывает дубли
// и сортирует: длина по возрастанию, при равной длине дешевле раньше,
// при равной цене — где остаток больше
func normalizeOptions(stocked []StandardLengthOption, unit string) ([]StandardLengthOption, error) {
	merged := make(map[float64]*StandardLengthOption)
	for _, o := range stocked {
		if o.Length <= 0 {
			continue
		}
		length, err := ConvertLength(o.Length, o.LengthUnit, unit)
		if err != nil {
			return nil, err
		}
		key := roundLengthKey(length)
		if existing, ok := merged[key]; ok {
			existing.Available += o.Available
			if o.Rate > 0 && (existing.Rate == 0 || o.Rate < existing.Rate) {
				existing.Rate = o.Rate
			}
			continue
		}
		merged[key] = &StandardLengthOption{
			Length:     length,
			LengthUnit: unit,
			Rate:       o.Rate,
			Available:  o.Available,
		}
	}

	result := make([]StandardLengthOption, 0, len(merged))
	for _, o := range merged {
		result = append(result, *o)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Length != result[j].Length {
			return result[i].Length < result[j].Length
		}
		if result[i].Rate != result[j].Rate {
			return result[i].Rate < result[j].Rate
		}
		return result[i].Available > result[j].Available
	})
	return result, nil
}

// roundLengthKey схлопывает float-погрешность конверсии при группировке длин
func roundLengthKey(length float64) float64 {
	const scale = 1e6
	return float64(int64(length*scale+0.5)) / scale
}
