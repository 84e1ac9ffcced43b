package inventory

import "math"

// Nutrition holds calorie and macro figures
// 栄養値（カロリーと主要栄養素）
type Nutrition struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
}

// TotalNutrition returns the stored totals of a batch; missing values read as 0.
// The stored figures are never recomputed when the quantity changes.
// バッチに保存された合計値をそのまま返す
func TotalNutrition(b Batch) Nutrition {
	return Nutrition{
		Calories: valueOrZero(b.Calories),
		Protein:  valueOrZero(b.Protein),
		Carbs:    valueOrZero(b.Carbs),
		Fats:     valueOrZero(b.Fats),
	}
}

// PerUnitNutrition divides the stored totals by the batch quantity, rounding
// half to even. A batch without a positive quantity yields zeros.
// 単位あたりの栄養値（表示用）
func PerUnitNutrition(b Batch) Nutrition {
	if !b.Quantity.IsPositive() {
		return Nutrition{}
	}
	qty := b.Quantity.Float64()
	total := TotalNutrition(b)
	return Nutrition{
		Calories: math.RoundToEven(total.Calories / qty),
		Protein:  math.RoundToEven(total.Protein / qty),
		Carbs:    math.RoundToEven(total.Carbs / qty),
		Fats:     math.RoundToEven(total.Fats / qty),
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
