package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiPantry/pkg/inventory"
)

// schema ビン1件につき1行、ドキュメントはJSON文字列で保存
const schema = `
CREATE TABLE IF NOT EXISTS pantry_bins (
	id         VARCHAR(255) PRIMARY KEY,
	document   TEXT         NOT NULL,
	version    BIGINT       NOT NULL DEFAULT 1,
	created_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

type binRow struct {
	Document string `db:"document"`
	Version  int64  `db:"version"`
}

// SQLStorage implements inventory.VersionedStore on a SQL database
// SQLデータベースを使用したVersionedStoreの実装
type SQLStorage struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ inventory.VersionedStore = (*SQLStorage)(nil)

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
// 新しいPostgreSQLストレージインスタンスを作成
func NewPostgreSQLStorage(dsn string, logger *zap.Logger) (*SQLStorage, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}

	// 接続テスト
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースpingに失敗しました: %w", err)
	}

	// 接続プール設定
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewSQLStorage(db, logger), nil
}

// NewSQLStorage wraps an open database handle
// 接続済みのデータベースからストレージを作成
func NewSQLStorage(db *sqlx.DB, logger *zap.Logger) *SQLStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStorage{db: db, logger: logger}
}

// EnsureSchema creates the pantry_bins table if it does not exist
// pantry_bins テーブルを作成（存在しない場合のみ）
func (s *SQLStorage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return inventory.NewStorageError("ensure_schema", "テーブル作成に失敗しました", err)
	}
	return nil
}

// Fetch reads a bin document together with its version
// ビンのドキュメントとバージョンを取得
func (s *SQLStorage) Fetch(ctx context.Context, binID string) (*inventory.Document, error) {
	query := s.db.Rebind(`SELECT document, version FROM pantry_bins WHERE id = ?`)

	var row binRow
	if err := s.db.GetContext(ctx, &row, query, binID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrDocumentNotFound
		}
		return nil, inventory.NewStorageError("fetch", "ドキュメント取得に失敗しました", err)
	}

	var doc inventory.Document
	if err := json.Unmarshal([]byte(row.Document), &doc); err != nil {
		return nil, inventory.NewStorageError("fetch", "保存されたドキュメントを解析できません", err)
	}
	doc.Version = row.Version

	s.logger.Debug("ドキュメント取得",
		zap.String("bin_id", binID),
		zap.Int64("version", row.Version),
		zap.Int("batches", len(doc.Inventory)),
	)

	return &doc, nil
}

// Persist replaces a bin document unconditionally
// ビンのドキュメントを無条件に置き換え
func (s *SQLStorage) Persist(ctx context.Context, binID string, doc *inventory.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return inventory.NewStorageError("persist", "ドキュメントのエンコードに失敗しました", err)
	}

	query := s.db.Rebind(`
		UPDATE pantry_bins
		SET document = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`)

	result, err := s.db.ExecContext(ctx, query, string(data), binID)
	if err != nil {
		return inventory.NewStorageError("persist", "ドキュメント更新に失敗しました", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return inventory.NewStorageError("persist", "更新行数の取得に失敗しました", err)
	}
	if rowsAffected == 0 {
		return inventory.ErrDocumentNotFound
	}

	return nil
}

// PersistIfVersion replaces a bin document only if its version is still expected
// バージョンが一致する場合のみドキュメントを置き換え（楽観的ロック）
func (s *SQLStorage) PersistIfVersion(ctx context.Context, binID string, doc *inventory.Document, expected int64) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return inventory.NewStorageError("persist", "ドキュメントのエンコードに失敗しました", err)
	}

	query := s.db.Rebind(`
		UPDATE pantry_bins
		SET document = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`)

	result, err := s.db.ExecContext(ctx, query, string(data), binID, expected)
	if err != nil {
		return inventory.NewStorageError("persist", "ドキュメント更新に失敗しました", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return inventory.NewStorageError("persist", "更新行数の取得に失敗しました", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	// 行が存在しないのか、バージョンが異なるのかを判別
	var exists int
	err = s.db.GetContext(ctx, &exists, s.db.Rebind(`SELECT COUNT(*) FROM pantry_bins WHERE id = ?`), binID)
	if err != nil {
		return inventory.NewStorageError("persist", "ドキュメント存在確認に失敗しました", err)
	}
	if exists == 0 {
		return inventory.ErrDocumentNotFound
	}

	s.logger.Warn("バージョン不一致のため書き込みを拒否しました",
		zap.String("bin_id", binID),
		zap.Int64("expected_version", expected),
	)
	return inventory.ErrVersionMismatch
}

// Create inserts a new bin with a generated ID
// 新しいビンをIDを採番して作成
func (s *SQLStorage) Create(ctx context.Context, doc *inventory.Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", inventory.NewStorageError("create", "ドキュメントのエンコードに失敗しました", err)
	}

	binID := inventory.NewBinID()
	query := s.db.Rebind(`INSERT INTO pantry_bins (id, document, version) VALUES (?, ?, 1)`)

	if _, err := s.db.ExecContext(ctx, query, binID, string(data)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", inventory.NewStorageError("create", "ビンは既に存在します", err)
		}
		return "", inventory.NewStorageError("create", "ドキュメント作成に失敗しました", err)
	}

	s.logger.Info("ビン作成完了", zap.String("bin_id", binID))

	return binID, nil
}

// Ping checks database connectivity
// データベース接続をチェック
func (s *SQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
// データベース接続を閉じる
func (s *SQLStorage) Close() error {
	return s.db.Close()
}
