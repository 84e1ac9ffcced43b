package inventory

import (
	"time"
)

// ExpiryPriority ranks how urgently a batch should be used
// バッチを使い切る優先度
type ExpiryPriority string

const (
	ExpiryPriorityExpired  ExpiryPriority = "expired"  // 期限切れ
	ExpiryPriorityCritical ExpiryPriority = "critical" // 0-3日
	ExpiryPriorityHigh     ExpiryPriority = "high"     // 4-7日
	ExpiryPriorityMedium   ExpiryPriority = "medium"   // 8日以上
	ExpiryPriorityUnknown  ExpiryPriority = "unknown"  // 日付を解析できない
)

// secondsPerDay 日付はどちらもUTCの0時なので割り切れる
const secondsPerDay = 24 * 60 * 60

// ExpiryEntry is one batch in an expiry report
// 期限レポートの1行
type ExpiryEntry struct {
	Batch           Batch          `json:"batch"`
	DaysUntilExpiry *int           `json:"days_until_expiry"`
	Priority        ExpiryPriority `json:"priority"`
	TotalNutrition  Nutrition      `json:"total_nutrition"`
	PerUnit         Nutrition      `json:"per_unit_nutrition"`
}

// ExpiryReport lists a bin's batches in the order they should be used
// 使用すべき順にバッチを並べた期限レポート
type ExpiryReport struct {
	BinID        string         `json:"bin_id"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Entries      []ExpiryEntry  `json:"entries"`
	TypeCounts   map[string]int `json:"type_counts"`
	Expired      int            `json:"expired"`
	ExpiringSoon int            `json:"expiring_soon"`
}

// BuildExpiryReport sorts batches by expiry and classifies each one relative to now.
// soonDays is the inclusive window counted as ExpiringSoon.
// 有効期限順に並べ、現在日付との差で分類する
func BuildExpiryReport(binID string, batches []Batch, now time.Time, soonDays int) *ExpiryReport {
	report := &ExpiryReport{
		BinID:       binID,
		GeneratedAt: now,
		Entries:     make([]ExpiryEntry, 0, len(batches)),
		TypeCounts:  make(map[string]int),
	}

	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	for _, b := range SortByExpiry(batches) {
		entry := ExpiryEntry{
			Batch:          b,
			Priority:       ExpiryPriorityUnknown,
			TotalNutrition: TotalNutrition(b),
			PerUnit:        PerUnitNutrition(b),
		}

		if exp, ok := ParseExpiryDate(b.ExpectedExpiryDate); ok {
			days := int(exp.Unix()/secondsPerDay - today.Unix()/secondsPerDay)
			entry.DaysUntilExpiry = &days
			entry.Priority = priorityForDays(days)

			if days < 0 {
				report.Expired++
			} else if days <= soonDays {
				report.ExpiringSoon++
			}
		}

		foodType := b.Type
		if foodType == "" {
			foodType = "other"
		}
		report.TypeCounts[foodType]++

		report.Entries = append(report.Entries, entry)
	}

	return report
}

func priorityForDays(days int) ExpiryPriority {
	switch {
	case days < 0:
		return ExpiryPriorityExpired
	case days <= 3:
		return ExpiryPriorityCritical
	case days <= 7:
		return ExpiryPriorityHigh
	default:
		return ExpiryPriorityMedium
	}
}
