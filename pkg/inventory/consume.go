package inventory

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Reconciliation is the outcome of applying a consumption request to a batch list
// 消費リクエストをバッチ一覧に適用した結果
type Reconciliation struct {
	Inventory        []Batch           // 更新後のバッチ一覧
	Items            []ItemConsumption // 品名ごとの内訳（品名順）
	BatchesRemoved   int               // 使い切って削除したバッチ数
	BatchesUpdated   int               // 一部消費したバッチ数
	MalformedSkipped int               // 数量が無効でスキップしたバッチ数
}

// Reconcile depletes batches FIFO-by-expiry for every requested name.
// 品名ごとに有効期限の早いバッチから順に消費する
//
// Names are processed in ascending order. Each name only touches batches whose
// name matches it case-insensitively; every other batch keeps its value and
// position. The input slice is not modified.
func Reconcile(batches []Batch, request ConsumptionRequest) *Reconciliation {
	inventory := make([]Batch, len(batches))
	copy(inventory, batches)

	names := make([]string, 0, len(request))
	for name := range request {
		names = append(names, name)
	}
	slices.Sort(names)

	rec := &Reconciliation{Items: make([]ItemConsumption, 0, len(names))}

	for _, name := range names {
		amount := request[name]
		var item ItemConsumption
		inventory, item = rec.consumeName(inventory, name, amount)
		rec.Items = append(rec.Items, item)
	}

	rec.Inventory = inventory
	return rec
}

func (rec *Reconciliation) consumeName(inventory []Batch, name string, amount Quantity) ([]Batch, ItemConsumption) {
	item := ItemConsumption{Name: name, Requested: amount}

	requested, ok := amount.Decimal()
	if !ok || !requested.IsPositive() {
		item.Status = ConsumptionStatusSkipped
		return inventory, item
	}

	key := MatchKey(name)
	var matches []int
	for i := range inventory {
		if MatchKey(inventory[i].Name) == key {
			matches = append(matches, i)
		}
	}
	item.MatchedBatches = len(matches)

	if len(matches) == 0 {
		item.Status = ConsumptionStatusNotFound
		item.Consumed = QuantityFromDecimal(decimal.Zero)
		item.Shortfall = QuantityFromDecimal(requested)
		return inventory, item
	}

	sortIndicesByExpiry(inventory, matches)

	remaining := requested
	removed := make(map[int]bool)
	for _, i := range matches {
		if !remaining.IsPositive() {
			break
		}

		qty, ok := inventory[i].Quantity.Decimal()
		if !ok || !qty.IsPositive() {
			rec.MalformedSkipped++
			continue
		}

		if qty.GreaterThanOrEqual(remaining) {
			left := qty.Sub(remaining)
			remaining = decimal.Zero
			if left.IsZero() {
				removed[i] = true
			} else {
				inventory[i].Quantity = QuantityFromDecimal(left)
				rec.BatchesUpdated++
			}
		} else {
			remaining = remaining.Sub(qty)
			removed[i] = true
		}
	}

	if len(removed) > 0 {
		kept := make([]Batch, 0, len(inventory)-len(removed))
		for i, b := range inventory {
			if !removed[i] {
				kept = append(kept, b)
			}
		}
		inventory = kept
	}

	item.RemovedBatches = len(removed)
	rec.BatchesRemoved += len(removed)

	item.Consumed = QuantityFromDecimal(requested.Sub(remaining))
	item.Shortfall = QuantityFromDecimal(remaining)
	if remaining.IsPositive() {
		item.Status = ConsumptionStatusPartial
	} else {
		item.Status = ConsumptionStatusConsumed
	}

	return inventory, item
}
