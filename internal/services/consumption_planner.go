package services

import (
	"sort"

	"alumfab/server/internal/models"
)

// ConsumptionInstruction — сколько хлыстов списать из конкретной партии.
// Партии упорядочены FIFO по дате закупки, стоимость расхода берется
// из цены каждой партии, а не из средней
type ConsumptionInstruction struct {
	BatchID        string  `json:"batch_id"`
	MaterialID     string  `json:"material_id"`
	Gauge          string  `json:"gauge,omitempty"`
	StandardLength float64 `json:"standard_length,omitempty"`
	LengthUnit     string  `json:"length_unit,omitempty"`
	Quantity       float64 `json:"quantity"`
	Rate           float64 `json:"rate"` // Цена партии за штуку/единицу на момент закупки
}

// PipeDemand — потребность в хлыстах одной стандартной длины
type PipeDemand struct {
	StandardLength float64
	LengthUnit     string
	Count          float64
}

// MaterialRef — минимум сведений о материале для сообщений о нехватке
type MaterialRef struct {
	ID   string
	Name string
}

// DemandFromPipes агрегирует раскрой в потребность по стандартным длинам,
// отсортированную по возрастанию длины
func DemandFromPipes(pipes []models.PipeUsage) []PipeDemand {
	index := make(map[float64]*PipeDemand)
	for _, p := range pipes {
		d, ok := index[p.StandardLength]
		if !ok {
			d = &PipeDemand{StandardLength: p.StandardLength, LengthUnit: p.LengthUnit}
			index[p.StandardLength] = d
		}
		d.Count++
	}
	result := make([]PipeDemand, 0, len(index))
	for _, d := range index {
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StandardLength < result[j].StandardLength
	})
	return result
}

// PlanProfileConsumption распределяет потребность в хлыстах по партиям FIFO.
// Участвуют только открытые партии нужного калибра и точно совпадающей длины
// (с учетом конверсии единиц). Нехватка возвращается отдельно — вызывающий
// решает, ошибка это или частичное списание
func PlanProfileConsumption(batches []models.ProfileBatch, gauge string, demands []PipeDemand, material MaterialRef) ([]ConsumptionInstruction, []Shortfall) {
	sorted := make([]models.ProfileBatch, len(batches))
	copy(sorted, batches)
	sortBatchesFIFO(sorted)

	remaining := make(map[string]float64, len(sorted))
	for _, b := range sorted {
		remaining[b.ID] = b.CurrentQuantity
	}

	var instructions []ConsumptionInstruction
	var shortfalls []Shortfall

	for _, demand := range demands {
		needed := demand.Count
		for i := range sorted {
			if needed <= 0 {
				break
			}
			b := &sorted[i]
			if !b.IsConsumable() || b.Gauge != gauge || remaining[b.ID] <= 0 {
				continue
			}
			batchLength, err := ConvertLength(b.StandardLength, b.LengthUnit, demand.LengthUnit)
			if err != nil || !lengthsEqual(batchLength, demand.StandardLength) {
				continue
			}

			take := remaining[b.ID]
			if take > needed {
				take = needed
			}
			instructions = append(instructions, ConsumptionInstruction{
				BatchID:        b.ID,
				MaterialID:     b.MaterialID,
				Gauge:          b.Gauge,
				StandardLength: demand.StandardLength,
				LengthUnit:     demand.LengthUnit,
				Quantity:       take,
				Rate:           b.RatePerPiece,
			})
			remaining[b.ID] -= take
			needed -= take
		}
		if needed > 0 {
			shortfalls = append(shortfalls, Shortfall{
				MaterialID:     material.ID,
				MaterialName:   material.Name,
				Gauge:          gauge,
				StandardLength: demand.StandardLength,
				LengthUnit:     demand.LengthUnit,
				Quantity:       needed,
			})
		}
	}
	return instructions, shortfalls
}

// PlanSimpleConsumption распределяет количественную потребность по партиям FIFO
// для материалов без раскроя (стекло, фурнитура, сетка)
func PlanSimpleConsumption(batches []models.SimpleBatch, quantity float64, unit string, material MaterialRef) ([]ConsumptionInstruction, []Shortfall) {
	sorted := make([]models.SimpleBatch, len(batches))
	copy(sorted, batches)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].PurchaseDate.Equal(sorted[j].PurchaseDate) {
			return sorted[i].PurchaseDate.Before(sorted[j].PurchaseDate)
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var instructions []ConsumptionInstruction
	needed := quantity
	for i := range sorted {
		if needed <= 0 {
			break
		}
		b := &sorted[i]
		if !b.IsConsumable() {
			continue
		}
		take := b.CurrentQuantity
		if take > needed {
			take = needed
		}
		instructions = append(instructions, ConsumptionInstruction{
			BatchID:    b.ID,
			MaterialID: b.MaterialID,
			Quantity:   take,
			Rate:       b.RatePerUnit,
		})
		needed -= take
	}

	var shortfalls []Shortfall
	if needed > 0 {
		shortfalls = append(shortfalls, Shortfall{
			MaterialID:   material.ID,
			MaterialName: material.Name,
			LengthUnit:   unit,
			Quantity:     needed,
		})
	}
	return instructions, shortfalls
}

// sortBatchesFIFO упорядочивает партии: дата закупки, затем дата создания,
// затем ID — полный порядок без неоднозначностей даже при одинаковых датах
func sortBatchesFIFO(batches []models.ProfileBatch) {
	sort.SliceStable(batches, func(i, j int) bool {
		if !batches[i].PurchaseDate.Equal(batches[j].PurchaseDate) {
			return batches[i].PurchaseDate.Before(batches[j].PurchaseDate)
		}
		if !batches[i].CreatedAt.Equal(batches[j].CreatedAt) {
			return batches[i].CreatedAt.Before(batches[j].CreatedAt)
		}
		return batches[i].ID < batches[j].ID
	})
}

// lengthsEqual сравнивает длины с допуском на float-конверсию единиц
func lengthsEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-6
}
