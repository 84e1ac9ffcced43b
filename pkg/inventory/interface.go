package inventory

import (
	"context"
)

// Service defines the operations exposed over the API
// APIで公開する操作のインターフェースを定義
type Service interface {
	// ドキュメント操作 - Document lifecycle
	Create(ctx context.Context, doc *Document) (string, error)
	Get(ctx context.Context, binID string) (*Document, error)
	Replace(ctx context.Context, binID string, doc *Document) error

	// 在庫更新 - Inventory mutations
	Merge(ctx context.Context, binID string, batches []Batch) (*MergeResult, error)
	MergeObserved(ctx context.Context, binID string, interpreter Interpreter, input []byte) (*MergeResult, error)
	Consume(ctx context.Context, binID string, request ConsumptionRequest) (*ConsumptionResult, error)

	// 期限管理 - Expiry tracking
	ExpiryReport(ctx context.Context, binID string) (*ExpiryReport, error)
}

// Store defines the document store the engines read from and write to
// ドキュメントストアのインターフェースを定義
//
// Each call is a single round trip with no retries. Fetch returns
// ErrDocumentNotFound for a missing bin; transport failures are *TransportError.
type Store interface {
	Fetch(ctx context.Context, binID string) (*Document, error)
	Persist(ctx context.Context, binID string, doc *Document) error
	Create(ctx context.Context, doc *Document) (string, error)
}

// VersionedStore is a Store that can make writes conditional on the version
// returned by Fetch
// Fetchで取得したバージョンを条件に書き込めるストア
type VersionedStore interface {
	Store
	PersistIfVersion(ctx context.Context, binID string, doc *Document, expected int64) error
}

// Interpreter turns an observation (photo analysis, prompt output) into batches
// 観測データ（画像解析結果など）をバッチに変換する
type Interpreter interface {
	Interpret(ctx context.Context, input []byte) ([]Batch, error)
}

// InterpreterFunc adapts a function to the Interpreter interface
type InterpreterFunc func(ctx context.Context, input []byte) ([]Batch, error)

// Interpret calls f(ctx, input)
func (f InterpreterFunc) Interpret(ctx context.Context, input []byte) ([]Batch, error) {
	return f(ctx, input)
}
