// Package inventory provides FIFO-by-expiry management of perishable inventory
// stored as whole documents in a remote key-value store.
package inventory

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Unit values produced by the interpreter; quantities are never converted between them
// 単位（相互変換は行わない）
const (
	UnitItems      = "items"
	UnitGrams      = "grams"
	UnitContainers = "containers"
	UnitEggs       = "eggs"
)

// Food types; informational only
// 食品分類（参考情報のみ、照合には使用しない）
const (
	TypeFruit      = "fruit"
	TypeVegetable  = "vegetable"
	TypeProtein    = "protein"
	TypeGrains     = "grains"
	TypeDairy      = "dairy"
	TypeBeverage   = "beverage"
	TypeSnacks     = "snacks"
	TypeCondiments = "condiments"
)

// Document is the full collection of batches stored under one bin id
// 1つのビンIDに保存されるバッチ全体を表現
type Document struct {
	Inventory []Batch `json:"inventory"` // バッチ一覧
	Version   int64   `json:"-"`         // 楽観的ロック用バージョン（対応ストアのみ）
}

// MarshalJSON always writes inventory as an array, never null
func (d Document) MarshalJSON() ([]byte, error) {
	inventory := d.Inventory
	if inventory == nil {
		inventory = []Batch{}
	}
	return json.Marshal(struct {
		Inventory []Batch `json:"inventory"`
	}{Inventory: inventory})
}

// Clone returns a copy whose batch slice can be modified independently
// 独立して変更可能なコピーを返す
func (d *Document) Clone() *Document {
	if d == nil {
		return &Document{}
	}
	out := &Document{Version: d.Version}
	if d.Inventory != nil {
		out.Inventory = make([]Batch, len(d.Inventory))
		copy(out.Inventory, d.Inventory)
	}
	return out
}

// ConsumptionRequest maps an item name to the amount to consume
// 品名から消費量へのマッピング
type ConsumptionRequest map[string]Quantity

// ConsumptionStatus describes how a single requested name was handled
// 品名ごとの消費処理結果
type ConsumptionStatus string

const (
	ConsumptionStatusConsumed ConsumptionStatus = "consumed"  // 全量消費
	ConsumptionStatusPartial  ConsumptionStatus = "partial"   // 在庫不足で一部のみ消費
	ConsumptionStatusNotFound ConsumptionStatus = "not_found" // 一致するバッチなし
	ConsumptionStatusSkipped  ConsumptionStatus = "skipped"   // 無効な数量
)

// ItemConsumption is the per-name breakdown of a consumption
// 品名ごとの消費内訳
type ItemConsumption struct {
	Name           string            `json:"name"`
	Status         ConsumptionStatus `json:"status"`
	Requested      Quantity          `json:"requested"`
	Consumed       Quantity          `json:"consumed"`
	Shortfall      Quantity          `json:"shortfall"`
	MatchedBatches int               `json:"matched_batches"`
	RemovedBatches int               `json:"removed_batches"`
}

// ConsumptionResult reports what a Consume call actually did
// 消費処理の結果を表現
type ConsumptionResult struct {
	OperationID      string              `json:"operation_id"`
	BinID            string              `json:"bin_id"`
	Items            []ItemConsumption   `json:"items"`
	ActuallyConsumed map[string]Quantity `json:"actually_consumed"`
	Shortfalls       map[string]Quantity `json:"shortfalls,omitempty"`
	BatchesRemoved   int                 `json:"batches_removed"`
	BatchesUpdated   int                 `json:"batches_updated"`
	MalformedSkipped int                 `json:"malformed_skipped"`
	Inventory        []Batch             `json:"inventory"`
}

// Item returns the breakdown for a requested name
func (r *ConsumptionResult) Item(name string) (ItemConsumption, bool) {
	for _, item := range r.Items {
		if item.Name == name {
			return item, true
		}
	}
	return ItemConsumption{}, false
}

// HasShortfall reports whether any requested name was not fully satisfied
// 在庫不足があったかどうか
func (r *ConsumptionResult) HasShortfall() bool {
	return len(r.Shortfalls) > 0
}

// MergeResult reports the outcome of a Merge call
// マージ処理の結果を表現
type MergeResult struct {
	OperationID string  `json:"operation_id"`
	BinID       string  `json:"bin_id"`
	Added       int     `json:"added"`
	Total       int     `json:"total"`
	Inventory   []Batch `json:"inventory"`
}

// NewOperationID generates a new operation ID
// 新しい操作IDを生成
func NewOperationID() string {
	return uuid.New().String()
}

// NewBinID generates a new bin ID for stores that assign their own
// 新しいビンIDを生成
func NewBinID() string {
	return uuid.New().String()
}
