package inventory

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Supported range of decoded quantities: decimal exponent within
// ±maxQuantityExponent and a coefficient of at most maxQuantityBits bits
const (
	maxQuantityExponent = 32
	maxQuantityBits     = 256
)

// Quantity is an exact numeric amount as it appears on the wire.
// 数量を表現（JSON上の値をそのまま保持）
//
// A Quantity decoded from anything other than a JSON number, or from a number
// outside the supported range, is kept verbatim and reports Valid() == false;
// it is written back unchanged.
type Quantity struct {
	value decimal.Decimal
	valid bool
	raw   json.RawMessage
}

// NewQuantity creates a quantity from a float
// float から数量を作成
func NewQuantity(v float64) Quantity {
	return Quantity{value: decimal.NewFromFloat(v), valid: true}
}

// QuantityFromDecimal creates a quantity from a decimal value
// decimal から数量を作成
func QuantityFromDecimal(d decimal.Decimal) Quantity {
	return Quantity{value: d, valid: true}
}

// Decimal returns the numeric value and whether it is a valid number
// 数値と有効フラグを返す
func (q Quantity) Decimal() (decimal.Decimal, bool) {
	if !q.valid {
		return decimal.Zero, false
	}
	return q.value, true
}

// Valid reports whether the quantity holds a number
func (q Quantity) Valid() bool {
	return q.valid
}

// IsPositive reports whether the quantity is a number greater than zero
// 正の数値かどうか
func (q Quantity) IsPositive() bool {
	return q.valid && q.value.IsPositive()
}

// IsSet reports whether the quantity carries any value, valid or not
func (q Quantity) IsSet() bool {
	return q.valid || len(q.raw) > 0
}

// Float64 returns the value as a float64, or 0 when invalid
func (q Quantity) Float64() float64 {
	if !q.valid {
		return 0
	}
	return q.value.InexactFloat64()
}

// Equal reports whether both quantities are valid and numerically equal
func (q Quantity) Equal(other Quantity) bool {
	return q.valid && other.valid && q.value.Equal(other.value)
}

func (q Quantity) String() string {
	if q.valid {
		return q.value.String()
	}
	return string(q.raw)
}

// MarshalJSON writes valid quantities as JSON numbers and invalid ones verbatim
func (q Quantity) MarshalJSON() ([]byte, error) {
	if q.valid {
		return []byte(q.value.String()), nil
	}
	if len(q.raw) > 0 {
		return q.raw, nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON never fails: non-numeric input is retained as an invalid quantity
// 数値以外の値はエラーにせず、無効な数量として保持する
func (q *Quantity) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9')) {
		if d, err := decimal.NewFromString(string(trimmed)); err == nil && inQuantityRange(d) {
			q.value = d
			q.valid = true
			q.raw = nil
			return nil
		}
	}

	q.value = decimal.Zero
	q.valid = false
	q.raw = append(json.RawMessage(nil), trimmed...)
	return nil
}

// inQuantityRange 極端な指数や桁数の値は計算せず無効として扱う
func inQuantityRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp < -maxQuantityExponent || exp > maxQuantityExponent {
		return false
	}
	return d.Coefficient().BitLen() <= maxQuantityBits
}
