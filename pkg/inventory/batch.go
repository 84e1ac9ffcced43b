package inventory

import (
	"bytes"
	"encoding/json"
)

// Wire keys of a batch record
const (
	fieldName       = "name"
	fieldType       = "type"
	fieldQuantity   = "quantity"
	fieldUnit       = "unit"
	fieldExpiryDate = "expected_expiry_date"
	fieldCalories   = "calories"
	fieldProtein    = "protein"
	fieldCarbs      = "carbs"
	fieldFats       = "fats"
)

// Batch is one line item of inventory with its own quantity and expiry date
// 独自の数量と有効期限を持つ在庫の1行（バッチ）を表現
//
// Decoding is lenient: a known field holding a value of the wrong JSON type is
// left unset and kept verbatim, as are unknown fields. Encoding writes them back.
type Batch struct {
	Name               string   // 名前（大文字小文字を区別せず照合）
	Type               string   // 分類（参考情報のみ）
	Quantity           Quantity // 数量
	Unit               string   // 単位（変換しない）
	ExpectedExpiryDate string   // 有効期限 DD/MM/YYYY
	Calories           *float64 // 栄養値はバッチ全体の合計
	Protein            *float64
	Carbs              *float64
	Fats               *float64

	fields map[string]json.RawMessage
	opaque json.RawMessage
}

// Field returns the raw wire value of any field, known or unknown
// 任意フィールドの生の値を取得
func (b Batch) Field(key string) (json.RawMessage, bool) {
	raw, ok := b.fields[key]
	return raw, ok
}

// UnmarshalJSON decodes a batch without failing on malformed field values
func (b *Batch) UnmarshalJSON(data []byte) error {
	*b = Batch{}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		// オブジェクト以外のエントリはそのまま保持
		b.opaque = append(json.RawMessage(nil), trimmed...)
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return err
	}
	b.fields = fields

	b.Name = decodeString(fields, fieldName)
	b.Type = decodeString(fields, fieldType)
	b.Unit = decodeString(fields, fieldUnit)
	b.ExpectedExpiryDate = decodeString(fields, fieldExpiryDate)

	if raw, ok := fields[fieldQuantity]; ok {
		_ = b.Quantity.UnmarshalJSON(raw)
	}

	b.Calories = decodeNumber(fields, fieldCalories)
	b.Protein = decodeNumber(fields, fieldProtein)
	b.Carbs = decodeNumber(fields, fieldCarbs)
	b.Fats = decodeNumber(fields, fieldFats)

	return nil
}

// MarshalJSON merges typed values over the fields that were originally decoded
func (b Batch) MarshalJSON() ([]byte, error) {
	if b.fields == nil && len(b.opaque) > 0 {
		return b.opaque, nil
	}

	out := make(map[string]json.RawMessage, len(b.fields)+9)
	for k, v := range b.fields {
		out[k] = v
	}

	if err := encodeString(out, fieldName, b.Name); err != nil {
		return nil, err
	}
	if err := encodeString(out, fieldType, b.Type); err != nil {
		return nil, err
	}
	if err := encodeString(out, fieldUnit, b.Unit); err != nil {
		return nil, err
	}
	if err := encodeString(out, fieldExpiryDate, b.ExpectedExpiryDate); err != nil {
		return nil, err
	}

	if b.Quantity.IsSet() {
		raw, err := b.Quantity.MarshalJSON()
		if err != nil {
			return nil, err
		}
		out[fieldQuantity] = raw
	}

	for key, v := range map[string]*float64{
		fieldCalories: b.Calories,
		fieldProtein:  b.Protein,
		fieldCarbs:    b.Carbs,
		fieldFats:     b.Fats,
	} {
		if v == nil {
			continue
		}
		raw, err := json.Marshal(*v)
		if err != nil {
			return nil, err
		}
		out[key] = raw
	}

	return json.Marshal(out)
}

func decodeString(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func decodeNumber(fields map[string]json.RawMessage, key string) *float64 {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

// encodeString 空文字は元の値を上書きしない
func encodeString(out map[string]json.RawMessage, key, value string) error {
	if value == "" {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	out[key] = raw
	return nil
}
