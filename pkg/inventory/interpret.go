package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
)

// ParseInterpretedInventory decodes interpreter output into batches. Markdown
// code fences around the JSON are stripped. Both {"inventory": [...]} and a
// bare array are accepted.
// インタープリター出力（Markdownフェンス付き可）をバッチに変換
func ParseInterpretedInventory(raw string) ([]Batch, error) {
	text := stripCodeFence(raw)
	if text == "" {
		return nil, NewValidationError("raw_text", "出力が空です", "")
	}

	data := []byte(text)
	if bytes.HasPrefix(data, []byte("[")) {
		var batches []Batch
		if err := json.Unmarshal(data, &batches); err != nil {
			return nil, NewValidationError("raw_text", "インタープリター出力を解析できません", err.Error())
		}
		return batches, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, NewValidationError("raw_text", "インタープリター出力を解析できません", err.Error())
	}
	return doc.Inventory, nil
}

func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// 言語タグ（json など）を除去
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(text[:nl]); tag == "" || !strings.ContainsAny(tag, "{[") {
			text = text[nl+1:]
		}
	} else {
		text = strings.TrimPrefix(text, "json")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// TextInterpreter interprets raw model text that already contains the JSON records
// JSONを含むモデル出力テキストを解釈する
type TextInterpreter struct{}

// Interpret parses input with ParseInterpretedInventory
func (TextInterpreter) Interpret(_ context.Context, input []byte) ([]Batch, error) {
	return ParseInterpretedInventory(string(input))
}
