package inventory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Manager implements the Service interface on top of a Store
// Storeを使用したServiceインターフェースの実装
//
// Every mutation is a full read-modify-write of the bin document. Without
// conditional writes the final write is unconditional, so concurrent calls on
// the same bin are last-write-wins.
type Manager struct {
	store   Store       // ドキュメントストア
	logger  *zap.Logger // ログ
	config  *Config     // 設定
	metrics *Metrics    // メトリクス（nil可）
	now     func() time.Time
}

var _ Service = (*Manager)(nil)

// Config holds configuration for the inventory manager
// 在庫マネージャーの設定を保持
type Config struct {
	ConditionalWrites bool `yaml:"conditional_writes"` // バージョン一致時のみ書き込む
	ExpiringSoonDays  int  `yaml:"expiring_soon_days"` // 期限間近とみなす日数
}

// NewManager creates a new inventory manager
// 新しい在庫マネージャーを作成
func NewManager(store Store, logger *zap.Logger, config *Config, metrics *Metrics) *Manager {
	if config == nil {
		config = &Config{
			ConditionalWrites: false,
			ExpiringSoonDays:  3,
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if config.ConditionalWrites {
		if _, ok := store.(VersionedStore); !ok {
			logger.Warn("ストアが条件付き書き込みに対応していないため、後勝ちで書き込みます")
		}
	}

	return &Manager{
		store:   store,
		logger:  logger,
		config:  config,
		metrics: metrics,
		now:     time.Now,
	}
}

// Create stores a new document and returns its bin ID
// 新しいドキュメントを作成
func (m *Manager) Create(ctx context.Context, doc *Document) (id string, err error) {
	defer func() { m.metrics.observeOperation("create", err) }()

	if doc == nil {
		doc = &Document{}
	}

	start := time.Now()
	id, err = m.store.Create(ctx, doc)
	m.metrics.observeStore("create", start)
	if err != nil {
		m.logger.Error("ドキュメント作成に失敗しました", zap.String("request_id", RequestID(ctx)), zap.Error(err))
		return "", err
	}

	m.logger.Info("ドキュメント作成完了",
		zap.String("bin_id", id),
		zap.Int("batches", len(doc.Inventory)),
		zap.String("request_id", RequestID(ctx)),
	)

	return id, nil
}

// Get reads the current document of a bin
// ビンの現在のドキュメントを取得
func (m *Manager) Get(ctx context.Context, binID string) (doc *Document, err error) {
	defer func() { m.metrics.observeOperation("get", err) }()

	if err = ValidateBinID(binID); err != nil {
		return nil, err
	}
	return m.fetch(ctx, binID)
}

// Replace overwrites a bin with doc
// ビンのドキュメントを丸ごと置き換え
func (m *Manager) Replace(ctx context.Context, binID string, doc *Document) (err error) {
	defer func() { m.metrics.observeOperation("replace", err) }()

	if err = ValidateBinID(binID); err != nil {
		return err
	}
	if doc == nil {
		doc = &Document{}
	}

	start := time.Now()
	err = m.store.Persist(ctx, binID, doc)
	m.metrics.observeStore("persist", start)
	if err != nil {
		m.logger.Error("ドキュメント置き換えに失敗しました", zap.String("bin_id", binID), zap.Error(err))
		return err
	}

	m.logger.Info("ドキュメント置き換え完了",
		zap.String("bin_id", binID),
		zap.Int("batches", len(doc.Inventory)),
		zap.String("request_id", RequestID(ctx)),
	)

	return nil
}

// Merge appends newly observed batches to a bin without consolidation
// 新しく観測したバッチを統合せずに追加
func (m *Manager) Merge(ctx context.Context, binID string, batches []Batch) (result *MergeResult, err error) {
	defer func() { m.metrics.observeOperation("merge", err) }()

	if err = ValidateBinID(binID); err != nil {
		return nil, err
	}

	// 読み込みに失敗した場合は書き込まない
	current, err := m.fetch(ctx, binID)
	if err != nil {
		m.logger.Error("既存データの読み込みに失敗したためマージを中止します",
			zap.String("bin_id", binID),
			zap.Error(err),
		)
		return nil, err
	}

	merged := current.Clone()
	merged.Inventory = append(merged.Inventory, batches...)
	if merged.Inventory == nil {
		merged.Inventory = []Batch{}
	}

	if err = m.persist(ctx, binID, merged); err != nil {
		m.logger.Error("マージ結果の書き込みに失敗しました",
			zap.String("bin_id", binID),
			zap.Int("added", len(batches)),
			zap.Error(err),
		)
		return nil, err
	}

	m.metrics.observeMerge(len(batches))

	result = &MergeResult{
		OperationID: NewOperationID(),
		BinID:       binID,
		Added:       len(batches),
		Total:       len(merged.Inventory),
		Inventory:   merged.Inventory,
	}

	m.logger.Info("マージ完了",
		zap.String("operation_id", result.OperationID),
		zap.String("bin_id", binID),
		zap.Int("added", result.Added),
		zap.Int("total", result.Total),
		zap.String("request_id", RequestID(ctx)),
	)

	return result, nil
}

// MergeObserved interprets input into batches and merges them
// 観測データを解釈してマージ
func (m *Manager) MergeObserved(ctx context.Context, binID string, interpreter Interpreter, input []byte) (*MergeResult, error) {
	if interpreter == nil {
		return nil, ErrNoInterpreter
	}

	batches, err := interpreter.Interpret(ctx, input)
	if err != nil {
		m.logger.Warn("観測データの解釈に失敗しました", zap.String("bin_id", binID), zap.Error(err))
		return nil, err
	}

	for i, b := range batches {
		for _, finding := range ValidateBatch(b) {
			m.logger.Warn("観測バッチの注意点",
				zap.String("bin_id", binID),
				zap.Int("index", i),
				zap.String("field", finding.Field),
				zap.String("message", finding.Message),
				zap.String("value", finding.Value),
			)
		}
	}

	return m.Merge(ctx, binID, batches)
}

// Consume depletes batches FIFO-by-expiry and writes the result back
// 有効期限の早い順に在庫を消費して書き戻す
//
// Names with no matching batch or insufficient supply are reported as
// shortfalls, not errors. A fetch failure aborts before anything is written.
func (m *Manager) Consume(ctx context.Context, binID string, request ConsumptionRequest) (result *ConsumptionResult, err error) {
	defer func() { m.metrics.observeOperation("consume", err) }()

	if err = ValidateBinID(binID); err != nil {
		return nil, err
	}
	if err = ValidateConsumptionRequest(request); err != nil {
		return nil, err
	}

	current, err := m.fetch(ctx, binID)
	if err != nil {
		m.logger.Error("消費前の読み込みに失敗しました",
			zap.String("bin_id", binID),
			zap.Error(err),
		)
		return nil, err
	}

	m.logger.Debug("消費処理開始",
		zap.String("bin_id", binID),
		zap.Int("batches", len(current.Inventory)),
		zap.Int("requested_names", len(request)),
	)

	rec := Reconcile(current.Inventory, request)
	for _, item := range rec.Items {
		m.logItem(binID, item)
	}

	updated := &Document{Inventory: rec.Inventory, Version: current.Version}
	if updated.Inventory == nil {
		updated.Inventory = []Batch{}
	}

	if err = m.persist(ctx, binID, updated); err != nil {
		m.logger.Error("消費結果の書き込みに失敗しました",
			zap.String("bin_id", binID),
			zap.Error(err),
		)
		return nil, err
	}

	m.metrics.observeReconciliation(rec)

	result = &ConsumptionResult{
		OperationID:      NewOperationID(),
		BinID:            binID,
		Items:            rec.Items,
		ActuallyConsumed: make(map[string]Quantity),
		Shortfalls:       make(map[string]Quantity),
		BatchesRemoved:   rec.BatchesRemoved,
		BatchesUpdated:   rec.BatchesUpdated,
		MalformedSkipped: rec.MalformedSkipped,
		Inventory:        updated.Inventory,
	}
	for _, item := range rec.Items {
		if item.Status == ConsumptionStatusSkipped {
			continue
		}
		result.ActuallyConsumed[item.Name] = item.Consumed
		if item.Shortfall.IsPositive() {
			result.Shortfalls[item.Name] = item.Shortfall
		}
	}

	m.logger.Info("消費完了",
		zap.String("operation_id", result.OperationID),
		zap.String("bin_id", binID),
		zap.Int("initial_batches", len(current.Inventory)),
		zap.Int("final_batches", len(updated.Inventory)),
		zap.Int("removed", rec.BatchesRemoved),
		zap.Int("updated", rec.BatchesUpdated),
		zap.Int("shortfalls", len(result.Shortfalls)),
		zap.String("request_id", RequestID(ctx)),
	)

	return result, nil
}

// ExpiryReport builds an expiry report for a bin
// ビンの期限レポートを作成
func (m *Manager) ExpiryReport(ctx context.Context, binID string) (report *ExpiryReport, err error) {
	defer func() { m.metrics.observeOperation("expiry_report", err) }()

	if err = ValidateBinID(binID); err != nil {
		return nil, err
	}

	doc, err := m.fetch(ctx, binID)
	if err != nil {
		return nil, err
	}

	report = BuildExpiryReport(binID, doc.Inventory, m.now(), m.config.ExpiringSoonDays)

	m.logger.Info("期限レポート作成完了",
		zap.String("bin_id", binID),
		zap.Int("entries", len(report.Entries)),
		zap.Int("expired", report.Expired),
		zap.Int("expiring_soon", report.ExpiringSoon),
	)

	return report, nil
}

// ヘルパーメソッド

func (m *Manager) fetch(ctx context.Context, binID string) (*Document, error) {
	start := time.Now()
	doc, err := m.store.Fetch(ctx, binID)
	m.metrics.observeStore("fetch", start)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &Document{}
	}
	return doc, nil
}

// persist 条件付き書き込みが有効で対応ストアの場合のみバージョンを検証する
func (m *Manager) persist(ctx context.Context, binID string, doc *Document) error {
	start := time.Now()
	defer m.metrics.observeStore("persist", start)

	if m.config.ConditionalWrites {
		if vs, ok := m.store.(VersionedStore); ok {
			return vs.PersistIfVersion(ctx, binID, doc, doc.Version)
		}
	}
	return m.store.Persist(ctx, binID, doc)
}

func (m *Manager) logItem(binID string, item ItemConsumption) {
	fields := []zap.Field{
		zap.String("bin_id", binID),
		zap.String("name", item.Name),
		zap.String("requested", item.Requested.String()),
		zap.String("consumed", item.Consumed.String()),
		zap.Int("matched_batches", item.MatchedBatches),
		zap.Int("removed_batches", item.RemovedBatches),
	}

	switch item.Status {
	case ConsumptionStatusSkipped:
		m.logger.Warn("無効な数量のため消費をスキップしました", fields...)
	case ConsumptionStatusNotFound:
		m.logger.Warn("一致する在庫が見つかりません", fields...)
	case ConsumptionStatusPartial:
		m.logger.Warn("在庫が不足しています", append(fields, zap.String("shortfall", item.Shortfall.String()))...)
	default:
		m.logger.Debug("品目の消費完了", fields...)
	}
}

type requestIDKey struct{}

// WithRequestID returns a context carrying a request ID for log correlation
// ログ相関用のリクエストIDをコンテキストに設定
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID extracts the request ID from context
// コンテキストからリクエストIDを取得
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
