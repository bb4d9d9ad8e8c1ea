package services

import (
	"math"
	"testing"
)

func TestConvertLength(t *testing.T) {
	cases := []struct {
		value    float64
		from, to string
		want     float64
	}{
		{1, "m", "mm", 1000},
		{1000, "mm", "m", 1},
		{1, "ft", "in", 12},
		{12, "ft", "ft", 12},
		{2.5, "m", "cm", 250},
		{1, "in", "mm", 25.4},
	}
	for _, tc := range cases {
		got, err := ConvertLength(tc.value, tc.from, tc.to)
		if err != nil {
			t.Fatalf("ConvertLength(%v, %q, %q): %v", tc.value, tc.from, tc.to, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ConvertLength(%v, %q, %q) = %v, want %v", tc.value, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestConvertLengthUnknownUnit(t *testing.T) {
	if _, err := ConvertLength(1, "furlong", "mm"); err == nil {
		t.Error("ожидалась ошибка для неизвестной единицы")
	}
	if _, err := ConvertLength(1, "mm", "parsec"); err == nil {
		t.Error("ожидалась ошибка для неизвестной целевой единицы")
	}
}

func TestRoundUpToTolerance(t *testing.T) {
	cases := []struct {
		value, tolerance, want float64
	}{
		{10.01, 0.0625, 10.0625},
		{10.0625, 0.0625, 10.0625}, // Уже кратно — не увеличиваем
		{99.1, 1, 100},
		{100, 1, 100},
		{5.0, 0, 5.0}, // Нулевой допуск — без округления
	}
	for _, tc := range cases {
		got := RoundUpToTolerance(tc.value, tc.tolerance)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("RoundUpToTolerance(%v, %v) = %v, want %v", tc.value, tc.tolerance, got, tc.want)
		}
	}
}

func TestDefaultCutTolerance(t *testing.T) {
	if got := DefaultCutTolerance("ft"); got != 0.01 {
		t.Errorf("DefaultCutTolerance(ft) = %v, want 0.01", got)
	}
	if got := DefaultCutTolerance("mm"); got != 1 {
		t.Errorf("DefaultCutTolerance(mm) = %v, want 1", got)
	}
}

func TestIsValidLengthUnit(t *testing.T) {
	for _, unit := range []string{"mm", "cm", "m", "in", "ft"} {
		if !IsValidLengthUnit(unit) {
			t.Errorf("единица %q должна быть допустимой", unit)
		}
	}
	if IsValidLengthUnit("yd") {
		t.Error("единица yd не поддерживается")
	}
}
