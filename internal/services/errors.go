package services

import (
	"fmt"
	"strings"
	"time"
)

// InfeasibleCutError — требуемый рез длиннее самого длинного хлыста,
// в котором материал вообще закупается. Фатальная ошибка входных данных,
// план не создается
type InfeasibleCutError struct {
	MaterialID        string  `json:"material_id"`
	MaterialName      string  `json:"material_name"`
	Identifier        string  `json:"identifier"`
	Length            float64 `json:"length"`
	LengthUnit        string  `json:"length_unit"`
	MaxStandardLength float64 `json:"max_standard_length"`
}

func (e *InfeasibleCutError) Error() string {
	return fmt.Sprintf("рез %s (%s) материала %q длиннее самого длинного хлыста (%s)",
		e.Identifier,
		FormatLength(e.Length, e.LengthUnit),
		e.MaterialName,
		FormatLength(e.MaxStandardLength, e.LengthUnit))
}

// Shortfall описывает точную нехватку по одной стандартной длине/калибру,
// чтобы вызывающий мог запустить закупку
type Shortfall struct {
	MaterialID     string  `json:"material_id"`
	MaterialName   string  `json:"material_name"`
	Gauge          string  `json:"gauge,omitempty"`
	StandardLength float64 `json:"standard_length,omitempty"`
	LengthUnit     string  `json:"length_unit,omitempty"`
	Quantity       float64 `json:"quantity"`
}

func (s Shortfall) String() string {
	if s.StandardLength > 0 {
		return fmt.Sprintf("не хватает %.0f шт %s (калибр %s) материала %q",
			s.Quantity, FormatLength(s.StandardLength, s.LengthUnit), s.Gauge, s.MaterialName)
	}
	return fmt.Sprintf("не хватает %.3f %s материала %q", s.Quantity, s.LengthUnit, s.MaterialName)
}

// InsufficientStockError — суммарного остатка партий не хватает под потребность.
// Генерация плана при этом может завершиться успешно (предпросмотр),
// списание — нет (если не разрешено частичное)
type InsufficientStockError struct {
	Shortfalls []Shortfall `json:"shortfalls"`
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, s.String())
	}
	return "недостаточно остатков: " + strings.Join(parts, "; ")
}

// StockContentionError — параллельное списание не успело получить блокировку
// партий за отведенное время. Ошибка повторяемая: повторное списание
// пересчитает потребление по свежему состоянию склада
type StockContentionError struct {
	Scope string
	Err   error
}

func (e *StockContentionError) Error() string {
	return fmt.Sprintf("склад занят параллельным списанием (%s), повторите позже: %v", e.Scope, e.Err)
}

func (e *StockContentionError) Unwrap() error {
	return e.Err
}

// AlreadyCommittedError — попытка повторно списать уже списанный план.
// Защита от двойного расхода склада
type AlreadyCommittedError struct {
	PlanID      string
	CommittedAt time.Time
}

func (e *AlreadyCommittedError) Error() string {
	return fmt.Sprintf("план %s уже списан %s, повторное списание запрещено",
		e.PlanID, e.CommittedAt.Format("2006-01-02 15:04:05"))
}
