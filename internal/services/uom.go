package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Коэффициенты единиц длины относительно миллиметра
var lengthUnitFactors = map[string]float64{
	"mm": 1,
	"cm": 10,
	"m":  1000,
	"in": 25.4,
	"ft": 304.8,
}

// defaultCutTolerances задает минимальный шаг реза по умолчанию для единицы,
// если на материале допуск не указан явно
var defaultCutTolerances = map[string]float64{
	"mm": 1,
	"cm": 0.1,
	"m":  0.001,
	"in": 0.0625, // 1/16 дюйма
	"ft": 0.01,
}

// ConvertLength переводит длину между единицами (mm, cm, m, in, ft)
func ConvertLength(value float64, from, to string) (float64, error) {
	if from == to {
		return value, nil
	}
	fromFactor, ok := lengthUnitFactors[from]
	if !ok {
		return 0, fmt.Errorf("неизвестная единица длины: %s", from)
	}
	toFactor, ok := lengthUnitFactors[to]
	if !ok {
		return 0, fmt.Errorf("неизвестная единица длины: %s", to)
	}
	return value * fromFactor / toFactor, nil
}

// IsValidLengthUnit проверяет, поддерживается ли единица длины
func IsValidLengthUnit(unit string) bool {
	_, ok := lengthUnitFactors[unit]
	return ok
}

// DefaultCutTolerance возвращает шаг реза по умолчанию для единицы длины
func DefaultCutTolerance(unit string) float64 {
	if tol, ok := defaultCutTolerances[unit]; ok {
		return tol
	}
	return 0.01
}

// RoundUpToTolerance округляет длину вверх до кратного шагу реза.
// Округление всегда вверх: короткий рез не соберется в изделие
func RoundUpToTolerance(value, tolerance float64) float64 {
	if tolerance <= 0 {
		return value
	}
	steps := value / tolerance
	// Допуск на плавающую точку, чтобы 10.0/0.01 не превращалось в 1001 шаг
	if math.Abs(steps-math.Round(steps)) < 1e-9 {
		return math.Round(steps) * tolerance
	}
	return math.Ceil(steps) * tolerance
}

// FormatLength форматирует длину для сообщений ("15 ft", "2440 mm")
func FormatLength(value float64, unit string) string {
	s := strconv.FormatFloat(value, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s + " " + unit
}
