package inventory

import (
	"regexp"
	"strings"
)

var binIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var knownUnits = map[string]bool{
	UnitItems: true, UnitGrams: true, UnitContainers: true, UnitEggs: true,
}

var knownTypes = map[string]bool{
	TypeFruit: true, TypeVegetable: true, TypeProtein: true, TypeGrains: true,
	TypeDairy: true, TypeBeverage: true, TypeSnacks: true, TypeCondiments: true,
}

// ValidateBinID ビンIDの形式をバリデーション
func ValidateBinID(binID string) error {
	if binID == "" {
		return NewValidationError("bin_id", "ビンIDが空です", binID)
	}
	if len(binID) > 255 {
		return NewValidationError("bin_id", "ビンIDが長すぎます", binID)
	}
	// 英数字、ハイフン、アンダースコアのみ許可
	if !binIDPattern.MatchString(binID) {
		return NewValidationError("bin_id", "ビンIDに無効な文字が含まれています", binID)
	}
	return nil
}

// ValidateConsumptionRequest 消費リクエストが空でないことを確認
// 個々の数量の妥当性は消費処理でスキップとして扱う
func ValidateConsumptionRequest(request ConsumptionRequest) error {
	if len(request) == 0 {
		return ErrEmptyConsumption
	}
	return nil
}

// ValidateBatch returns advisory findings for a batch. The engines never
// reject a batch for these; callers log them.
// バッチの注意点を返す（処理は拒否しない）
func ValidateBatch(b Batch) []*ValidationError {
	var findings []*ValidationError

	if strings.TrimSpace(b.Name) == "" {
		findings = append(findings, NewValidationError("name", "品名が空です", b.Name))
	}
	if !b.Quantity.Valid() {
		findings = append(findings, NewValidationError("quantity", "数量が数値ではありません", b.Quantity.String()))
	} else if d, _ := b.Quantity.Decimal(); d.IsNegative() {
		findings = append(findings, NewValidationError("quantity", "数量が負の値です", b.Quantity.String()))
	}
	if b.Unit != "" && !knownUnits[b.Unit] {
		findings = append(findings, NewValidationError("unit", "未知の単位です", b.Unit))
	}
	if b.Type != "" && !knownTypes[b.Type] {
		findings = append(findings, NewValidationError("type", "未知の分類です", b.Type))
	}
	if _, ok := ParseExpiryDate(b.ExpectedExpiryDate); !ok {
		findings = append(findings, NewValidationError("expected_expiry_date", "有効期限を解析できません（最後に消費されます）", b.ExpectedExpiryDate))
	}

	return findings
}
