package storage

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/nemonet1337/zaiPantry/pkg/inventory"
)

type memoryBin struct {
	data    []byte
	version int64
}

// MemoryStorage is a process-local VersionedStore. Documents are held as
// encoded JSON so callers never share batch values with the store.
// プロセス内で完結するVersionedStoreの実装
type MemoryStorage struct {
	mu     sync.Mutex
	bins   map[string]memoryBin
	logger *zap.Logger
}

var _ inventory.VersionedStore = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store
// 空のインメモリストアを作成
func NewMemoryStorage(logger *zap.Logger) *MemoryStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStorage{
		bins:   make(map[string]memoryBin),
		logger: logger,
	}
}

// Fetch returns a decoded copy of the stored document
func (s *MemoryStorage) Fetch(ctx context.Context, binID string) (*inventory.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	bin, ok := s.bins[binID]
	s.mu.Unlock()
	if !ok {
		return nil, inventory.ErrDocumentNotFound
	}

	var doc inventory.Document
	if err := json.Unmarshal(bin.data, &doc); err != nil {
		return nil, inventory.NewStorageError("fetch", "保存されたドキュメントを解析できません", err)
	}
	doc.Version = bin.version
	return &doc, nil
}

// Persist replaces a stored document unconditionally
func (s *MemoryStorage) Persist(ctx context.Context, binID string, doc *inventory.Document) error {
	return s.write(ctx, binID, doc, nil)
}

// PersistIfVersion replaces a stored document only at the expected version
func (s *MemoryStorage) PersistIfVersion(ctx context.Context, binID string, doc *inventory.Document, expected int64) error {
	return s.write(ctx, binID, doc, &expected)
}

// Create stores a document under a newly generated ID
func (s *MemoryStorage) Create(ctx context.Context, doc *inventory.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", inventory.NewStorageError("create", "ドキュメントのエンコードに失敗しました", err)
	}

	binID := inventory.NewBinID()

	s.mu.Lock()
	s.bins[binID] = memoryBin{data: data, version: 1}
	s.mu.Unlock()

	s.logger.Debug("ビン作成完了", zap.String("bin_id", binID))
	return binID, nil
}

func (s *MemoryStorage) write(ctx context.Context, binID string, doc *inventory.Document, expected *int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return inventory.NewStorageError("persist", "ドキュメントのエンコードに失敗しました", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bin, ok := s.bins[binID]
	if !ok {
		return inventory.ErrDocumentNotFound
	}
	if expected != nil && bin.version != *expected {
		return inventory.ErrVersionMismatch
	}

	s.bins[binID] = memoryBin{data: data, version: bin.version + 1}
	return nil
}
