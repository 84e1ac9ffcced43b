package inventory

import (
	"slices"
	"time"

	"golang.org/x/text/cases"
)

// ExpiryDateLayout is the day/month/year layout of expected_expiry_date.
// Single-digit day and month are accepted.
const ExpiryDateLayout = "2/1/2006"

// ParseExpiryDate parses a DD/MM/YYYY date
// DD/MM/YYYY 形式の日付を解析
func ParseExpiryDate(s string) (time.Time, bool) {
	t, err := time.Parse(ExpiryDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatExpiryDate formats a date as DD/MM/YYYY
func FormatExpiryDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// compareExpiry orders batches by expiry; unparseable dates sort after every valid date
// 有効期限で比較（解析できない日付は最後）
func compareExpiry(a, b Batch) int {
	ta, okA := ParseExpiryDate(a.ExpectedExpiryDate)
	tb, okB := ParseExpiryDate(b.ExpectedExpiryDate)
	switch {
	case okA && okB:
		return ta.Compare(tb)
	case okA:
		return -1
	case okB:
		return 1
	default:
		return 0
	}
}

// sortIndicesByExpiry stable-sorts batch indices so ties keep document order
func sortIndicesByExpiry(batches []Batch, indices []int) {
	slices.SortStableFunc(indices, func(i, j int) int {
		return compareExpiry(batches[i], batches[j])
	})
}

// SortByExpiry returns a copy of batches sorted by expiry, earliest first
// 有効期限の早い順に並べたコピーを返す
func SortByExpiry(batches []Batch) []Batch {
	out := make([]Batch, len(batches))
	copy(out, batches)
	slices.SortStableFunc(out, compareExpiry)
	return out
}

// MatchKey returns the case-folded form of a name used for matching
// 照合用に大文字小文字を畳み込んだ名前
func MatchKey(name string) string {
	return cases.Fold().String(name)
}
