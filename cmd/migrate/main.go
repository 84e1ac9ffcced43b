package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiPantry/internal/config"
	"github.com/nemonet1337/zaiPantry/pkg/inventory/storage"
)

func main() {
	log.Println("zaiPantry マイグレーション実行ツール")

	_ = godotenv.Load()

	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	logger, err := cfg.Logging.Build()
	if err != nil {
		log.Fatal("ログ初期化に失敗しました:", err)
	}
	defer logger.Sync()

	var store *storage.SQLStorage
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		logger.Info("データベースに接続中",
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
			zap.String("dbname", cfg.Database.DBName),
		)
		store, err = storage.NewPostgreSQLStorage(cfg.DSN(), logger)
	case config.DriverSQLite:
		logger.Info("SQLiteデータベースを開いています", zap.String("path", cfg.Store.SQLitePath))
		store, err = storage.NewSQLiteStorage(cfg.Store.SQLitePath, logger)
	default:
		logger.Fatal("このストアドライバにはマイグレーションは不要です", zap.String("driver", cfg.Store.Driver))
	}
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer store.Close()

	logger.Info("データベース接続が確立されました")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("マイグレーション実行に失敗しました", zap.Error(err))
	}

	logger.Info("すべてのマイグレーションが完了しました")
}
