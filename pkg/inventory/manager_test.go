package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockStore はテスト用のStoreモック
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Fetch(ctx context.Context, binID string) (*Document, error) {
	args := m.Called(ctx, binID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *MockStore) Persist(ctx context.Context, binID string, doc *Document) error {
	args := m.Called(ctx, binID, doc)
	return args.Error(0)
}

func (m *MockStore) Create(ctx context.Context, doc *Document) (string, error) {
	args := m.Called(ctx, doc)
	return args.String(0), args.Error(1)
}

// MockVersionedStore はバージョン付き書き込みに対応したモック
type MockVersionedStore struct {
	MockStore
}

func (m *MockVersionedStore) PersistIfVersion(ctx context.Context, binID string, doc *Document, expected int64) error {
	args := m.Called(ctx, binID, doc, expected)
	return args.Error(0)
}

const testBinID = "bin-0001"

func newTestManager(store Store, config *Config) *Manager {
	return NewManager(store, zap.NewNop(), config, nil)
}

func demoDocument(t testing.TB) *Document {
	t.Helper()
	return &Document{Inventory: decodeBatches(t, demoInventory)}
}

func documentJSON(t *testing.T, doc *Document) string {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(data)
}

// TestManager_Merge はバッチ追加のテスト
func TestManager_Merge(t *testing.T) {
	store := new(MockStore)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	var persisted *Document
	store.On("Fetch", ctx, testBinID).Return(demoDocument(t), nil)
	store.On("Persist", ctx, testBinID, mock.AnythingOfType("*inventory.Document")).
		Run(func(args mock.Arguments) { persisted = args.Get(2).(*Document) }).
		Return(nil)

	// 既存と同じ品名・期限でも統合しない
	observed := decodeBatches(t, `{"inventory": [
		{"name": "apple", "quantity": 3, "unit": "items", "expected_expiry_date": "15/11/2025"},
		{"name": "milk", "quantity": 1, "unit": "containers", "expected_expiry_date": "20/11/2025"}
	]}`)

	result, err := manager.Merge(ctx, testBinID, observed)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 5, result.Total)
	assert.NotEmpty(t, result.OperationID)
	require.NotNil(t, persisted)
	require.Len(t, persisted.Inventory, 5)
	assert.Equal(t, "apple", persisted.Inventory[3].Name)
	assert.Equal(t, "milk", persisted.Inventory[4].Name)
	store.AssertExpectations(t)
}

func TestManager_Merge_EmptyLeavesDocumentUnchanged(t *testing.T) {
	store := new(MockStore)
	manager := newTestManager(store, nil)
	ctx := context.Background()
	original := demoDocument(t)
	want := documentJSON(t, original)

	var persisted *Document
	store.On("Fetch", ctx, testBinID).Return(original, nil)
	store.On("Persist", ctx, testBinID, mock.AnythingOfType("*inventory.Document")).
		Run(func(args mock.Arguments) { persisted = args.Get(2).(*Document) }).
		Return(nil)

	result, err := manager.Merge(ctx, testBinID, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)
	assert.JSONEq(t, want, documentJSON(t, persisted))
}

// 読み込み失敗時は書き込みを行わない
func TestManager_Merge_FetchFailure(t *testing.T) {
	tests := []struct {
		name     string
		fetchErr error
		check    func(t *testing.T, err error)
	}{
		{
			name:     "not found",
			fetchErr: ErrDocumentNotFound,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrDocumentNotFound)
			},
		},
		{
			name:     "transport",
			fetchErr: NewTransportError("fetch", 503, "unavailable", nil),
			check: func(t *testing.T, err error) {
				var transportErr *TransportError
				require.ErrorAs(t, err, &transportErr)
				assert.Equal(t, 503, transportErr.StatusCode)
				assert.Equal(t, "unavailable", transportErr.Body)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			manager := newTestManager(store, nil)
			ctx := context.Background()

			store.On("Fetch", ctx, testBinID).Return(nil, tt.fetchErr)

			result, err := manager.Merge(ctx, testBinID, decodeBatches(t, demoInventory))

			assert.Nil(t, result)
			tt.check(t, err)
			store.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestManager_Merge_InvalidBinID(t *testing.T) {
	store := new(MockStore)
	manager := newTestManager(store, nil)

	_, err := manager.Merge(context.Background(), "../etc", nil)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "bin_id", validationErr.Field)
	store.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

// マージ結果の書き込み失敗は再試行せずに返す
func TestManager_Merge_PersistFailure(t *testing.T) {
	store := new(MockStore)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	persistErr := NewTransportError("persist", 503, "service unavailable", nil)
	store.On("Fetch", ctx, testBinID).Return(demoDocument(t), nil)
	store.On("Persist", ctx, testBinID, mock.AnythingOfType("*inventory.Document")).Return(persistErr)

	result, err := manager.Merge(ctx, testBinID, decodeBatches(t, `{"inventory": [{"name": "milk", "quantity": 1, "unit": "containers", "expected_expiry_date": "20/11/2025"}]}`))

	assert.Nil(t, result)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Same(t, persistErr, transportErr)
	store.AssertNumberOfCalls(t, "Persist", 1)
}

// TestManager_Consume は消費処理と書き戻しのテスト
func TestManager_Consume(t *testing.T) {
	store := new(MockStore)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	var persisted *Document
	store.On("Fetch", ctx, testBinID).Return(demoDocument(t), nil)
	store.On("Persist", ctx, testBinID, mock.AnythingOfType("*inventory.Document")).
		Run(func(args mock.Arguments) { persisted = args.Get(2).(*Document) }).
		Return(nil)

	result, err := manager.Consume(ctx, testBinID, ConsumptionRequest{
		"Apple":   qty(t, "5"),
		"lettuce": qty(t, "0.5"),
		"tofu":    qty(t, "1"),
	})

	require.NoError(t, err)
	assertQty(t, "5", result.ActuallyConsumed["Apple"])
	assertQty(t, "0.5", result.ActuallyConsumed["lettuce"])
	assertQty(t, "0", result.ActuallyConsumed["tofu"])
	assert.True(t, result.HasShortfall())
	assertQty(t, "1", result.Shortfalls["tofu"])
	assert.NotContains(t, result.Shortfalls, "Apple")

	require.NotNil(t, persisted)
	require.Len(t, persisted.Inventory, 2)
	assert.Equal(t, "lettuce", persisted.Inventory[0].Name)
	assertQty(t, "0.5", persisted.Inventory[0].Quantity)
	assert.Equal(t, "apple", persisted.Inventory[1].Name)
	assertQty(t, "2", persisted.Inventory[1].Quantity)
	assert.Equal(t, "01/12/2025", persisted.Inventory[1].ExpectedExpiryDate)
	assert.Equal(t, persisted.Inventory, result.Inventory)
	store.AssertExpectations(t)
}

func TestManager_Consume_SkippedExcludedFromResult(t *testing.T) {
	store := new(MockStore)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	store.On("Fetch", ctx, testBinID).Return(demoDocument(t), nil)
	store.On("Persist", ctx, testBinID, mock.AnythingOfType("*inventory.Document")).Return(nil)

	result, err := manager.Consume(ctx, testBinID, ConsumptionRequest{"apple": NewQuantity(-2)})

	require.NoError(t, err)
	assert.Empty(t, result.ActuallyConsumed)
	assert.False(t, result.HasShortfall())
	item, ok := result.Item("apple")
	require.True(t, ok)
	assert.Equal(t, ConsumptionStatusSkipped, item.Status)
	store.AssertExpectations(t)
}

func TestManager_Consume_EmptyRequest(t *testing.T) {
	store := new(MockStore)
	manager := newTestManager(store, nil)

	_, err := manager.Consume(context.Background(), testBinID, ConsumptionRequest{})

	assert.ErrorIs(t, err, ErrEmptyConsumption)
	store.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestManager_Consume_FetchFailure(t *testing.T) {
	store := new(MockStore)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	store.On("Fetch", ctx, testBinID).Return(nil, ErrDocumentNotFound)

	result, err := manager.Consume(ctx, testBinID, ConsumptionRequest{"apple": qty(t, "1")})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	store.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything, mock.Anything)
}

// 書き込み失敗はそのまま呼び出し元に返す
func TestManager_Consume_PersistFailure(t *testing.T) {
	store := new(MockStore)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	persistErr := NewTransportError("persist", 500, "internal error", nil)
	store.On("Fetch", ctx, testBinID).Return(demoDocument(t), nil)
	store.On("Persist", ctx, testBinID, mock.AnythingOfType("*inventory.Document")).Return(persistErr)

	result, err := manager.Consume(ctx, testBinID, ConsumptionRequest{"apple": qty(t, "1")})

	assert.Nil(t, result)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 500, transportErr.StatusCode)
}

// TestManager_ConditionalWrites は条件付き書き込みのテスト
func TestManager_ConditionalWrites(t *testing.T) {
	store := new(MockVersionedStore)
	manager := newTestManager(store, &Config{ConditionalWrites: true, ExpiringSoonDays: 3})
	ctx := context.Background()

	doc := demoDocument(t)
	doc.Version = 7
	store.On("Fetch", ctx, testBinID).Return(doc, nil)
	store.On("PersistIfVersion", ctx, testBinID, mock.AnythingOfType("*inventory.Document"), int64(7)).
		Return(ErrVersionMismatch)

	_, err := manager.Consume(ctx, testBinID, ConsumptionRequest{"apple": qty(t, "1")})

	assert.ErrorIs(t, err, ErrVersionMismatch)
	store.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestManager_ConditionalWritesDisabled(t *testing.T) {
	store := new(MockVersionedStore)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	store.On("Fetch", ctx, testBinID).Return(demoDocument(t), nil)
	store.On("Persist", ctx, testBinID, mock.AnythingOfType("*inventory.Document")).Return(nil)

	_, err := manager.Merge(ctx, testBinID, nil)

	require.NoError(t, err)
	store.AssertNotCalled(t, "PersistIfVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_MergeObserved(t *testing.T) {
	store := new(MockStore)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	var persisted *Document
	store.On("Fetch", ctx, testBinID).Return(&Document{}, nil)
	store.On("Persist", ctx, testBinID, mock.AnythingOfType("*inventory.Document")).
		Run(func(args mock.Arguments) { persisted = args.Get(2).(*Document) }).
		Return(nil)

	raw := "```json\n{\"inventory\": [{\"name\": \"carrot\", \"type\": \"vegetable\", \"quantity\": 4, \"unit\": \"items\", \"expected_expiry_date\": \"10/11/2025\"}]}\n```"

	result, err := manager.MergeObserved(ctx, testBinID, TextInterpreter{}, []byte(raw))

	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	require.Len(t, persisted.Inventory, 1)
	assert.Equal(t, "carrot", persisted.Inventory[0].Name)
}

func TestManager_MergeObserved_Errors(t *testing.T) {
	store := new(MockStore)
	manager := newTestManager(store, nil)
	ctx := context.Background()

	_, err := manager.MergeObserved(ctx, testBinID, nil, []byte("[]"))
	assert.ErrorIs(t, err, ErrNoInterpreter)

	failing := InterpreterFunc(func(context.Context, []byte) ([]Batch, error) {
		return nil, errors.New("画像を解析できません")
	})
	_, err = manager.MergeObserved(ctx, testBinID, failing, []byte("..."))
	assert.EqualError(t, err, "画像を解析できません")

	store.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestManager_CreateGetReplace(t *testing.T) {
	store := new(MockStore)
	manager := newTestManager(store, nil)
	ctx := context.Background()
	doc := demoDocument(t)

	store.On("Create", ctx, doc).Return(testBinID, nil)
	store.On("Fetch", ctx, testBinID).Return(doc, nil)
	store.On("Persist", ctx, testBinID, doc).Return(nil)

	id, err := manager.Create(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, testBinID, id)

	got, err := manager.Get(ctx, testBinID)
	require.NoError(t, err)
	assert.Len(t, got.Inventory, 3)

	require.NoError(t, manager.Replace(ctx, testBinID, doc))
	store.AssertExpectations(t)
}

func TestManager_ExpiryReport(t *testing.T) {
	store := new(MockStore)
	manager := newTestManager(store, nil)
	manager.now = func() time.Time { return time.Date(2025, 11, 12, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	store.On("Fetch", ctx, testBinID).Return(demoDocument(t), nil)

	report, err := manager.ExpiryReport(ctx, testBinID)

	require.NoError(t, err)
	require.Len(t, report.Entries, 3)
	assert.Equal(t, "lettuce", report.Entries[0].Batch.Name)
	assert.Equal(t, ExpiryPriorityExpired, report.Entries[0].Priority)
	assert.Equal(t, ExpiryPriorityCritical, report.Entries[1].Priority)
	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, 1, report.ExpiringSoon)
}

func TestManager_Metrics(t *testing.T) {
	store := new(MockStore)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	manager := NewManager(store, zap.NewNop(), nil, metrics)
	ctx := context.Background()

	store.On("Fetch", ctx, testBinID).Return(demoDocument(t), nil)
	store.On("Persist", ctx, testBinID, mock.AnythingOfType("*inventory.Document")).Return(nil)

	_, err := manager.Consume(ctx, testBinID, ConsumptionRequest{"apple": qty(t, "10"), "tofu": qty(t, "1")})
	require.NoError(t, err)
	_, err = manager.Consume(ctx, "", ConsumptionRequest{"apple": qty(t, "1")})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("consume", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("consume", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.batchesRemoved))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.shortfalls))
}

// BenchmarkManager_Consume は消費処理のベンチマーク
func BenchmarkManager_Consume(b *testing.B) {
	store := new(MockStore)
	manager := NewManager(store, zap.NewNop(), nil, nil)
	ctx := context.Background()

	store.On("Fetch", ctx, testBinID).Return(demoDocument(b), nil)
	store.On("Persist", ctx, testBinID, mock.AnythingOfType("*inventory.Document")).Return(nil)

	request := ConsumptionRequest{"apple": qty(b, "5"), "lettuce": qty(b, "0.5")}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		manager.Consume(ctx, testBinID, request)
	}
}
