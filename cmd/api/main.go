package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiPantry/internal/config"
	"github.com/nemonet1337/zaiPantry/pkg/inventory"
	"github.com/nemonet1337/zaiPantry/pkg/inventory/storage"
)

func main() {
	// .env があれば読み込む
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatal(".envの読み込みに失敗しました:", err)
	}

	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	// ログ設定
	logger, err := cfg.Logging.Build()
	if err != nil {
		log.Fatal("ログ初期化に失敗しました:", err)
	}
	defer logger.Sync()

	// ドキュメントストア接続
	store, closeStore, err := openStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("ドキュメントストアの初期化に失敗しました", zap.Error(err), zap.String("driver", cfg.Store.Driver))
	}
	defer closeStore()

	// 在庫マネージャー初期化
	metrics := inventory.NewMetrics(prometheus.DefaultRegisterer)
	manager := inventory.NewManager(store, logger, cfg.ManagerConfig(), metrics)

	// HTTPハンドラー設定
	var health pinger
	if p, ok := store.(pinger); ok {
		health = p
	}
	handlers := NewHandlers(manager, inventory.TextInterpreter{}, health, logger)
	router := setupRouter(handlers, cfg.API, prometheus.DefaultGatherer)

	// HTTPサーバー設定
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	// グレースフルシャットダウン設定
	go func() {
		logger.Info("パントリーAPIサーバーを開始します",
			zap.Int("port", cfg.API.Port),
			zap.String("store", cfg.Store.Driver),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー開始に失敗しました", zap.Error(err))
		}
	}()

	// シャットダウンシグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	// グレースフルシャットダウン
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンに失敗しました", zap.Error(err))
	}

	logger.Info("サーバーが正常に停止しました")
}

// openStore creates the store selected by cfg.Store.Driver
// 設定されたドライバのストアを作成
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (inventory.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Driver {
	case config.DriverJSONBin:
		return storage.NewJSONBinStorage(cfg.Store.JSONBin, nil, logger), noop, nil

	case config.DriverPostgres:
		s, err := storage.NewPostgreSQLStorage(cfg.DSN(), logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.DriverSQLite:
		s, err := storage.NewSQLiteStorage(cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.DriverMemory:
		logger.Warn("インメモリストアを使用します。再起動するとデータは失われます")
		return storage.NewMemoryStorage(logger), noop, nil

	default:
		return nil, nil, fmt.Errorf("無効なストアドライバ: %s", cfg.Store.Driver)
	}
}

// setupRouter sets up HTTP routes
// HTTPルートを設定
func setupRouter(handlers *Handlers, apiCfg config.APIConfig, gatherer prometheus.Gatherer) http.Handler {
	router := mux.NewRouter()

	// ヘルスチェック
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	if apiCfg.EnableMetrics {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	// API v1ルート
	api := router.PathPrefix("/api/v1").Subrouter()

	// ドキュメント操作
	api.HandleFunc("/bins", handlers.CreateBin).Methods("POST")
	api.HandleFunc("/bins/{binId}", handlers.GetBin).Methods("GET")
	api.HandleFunc("/bins/{binId}", handlers.ReplaceBin).Methods("PUT")

	// 在庫更新
	api.HandleFunc("/bins/{binId}/merge", handlers.MergeBatches).Methods("POST")
	api.HandleFunc("/bins/{binId}/observe", handlers.ObserveBatches).Methods("POST")
	api.HandleFunc("/bins/{binId}/consume", handlers.Consume).Methods("POST")

	// 期限管理
	api.HandleFunc("/bins/{binId}/expiry-report", handlers.ExpiryReport).Methods("GET")

	// リクエストIDとログ
	router.Use(requestIDMiddleware)
	router.Use(loggingMiddleware(handlers.logger))

	// CORS設定（muxはOPTIONSをルート照合前に405で返すため外側で処理）
	if apiCfg.EnableCORS {
		return corsMiddleware(router)
	}

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware propagates or assigns X-Request-ID
// リクエストIDを引き継ぐか採番する
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)

		next.ServeHTTP(w, r.WithContext(inventory.WithRequestID(r.Context(), id)))
	})
}

// statusRecorder ステータスコードを記録するResponseWriter
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs HTTP requests
// HTTPリクエストをログ出力するミドルウェア
func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			// リクエスト処理
			next.ServeHTTP(rec, r)

			// ログ出力
			logger.Info("HTTPリクエスト",
				zap.String("method", r.Method),
				zap.String("url", r.URL.Path),
				zap.Int("status", rec.status),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("request_id", inventory.RequestID(r.Context())),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
