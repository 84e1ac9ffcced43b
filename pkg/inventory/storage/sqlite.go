package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc のドライバ名 "sqlite" を ? プレースホルダとして登録
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// NewSQLiteStorage opens a SQLite database file, or ":memory:" for a
// process-local database
// SQLiteストレージを作成（":memory:" でインメモリ）
func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLStorage, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("SQLiteデータベースのオープンに失敗しました: %w", err)
	}

	// SQLiteは単一接続で書き込みを直列化
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("SQLiteデータベースpingに失敗しました: %w", err)
	}

	return NewSQLStorage(db, logger), nil
}
