package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nemonet1337/zaiPantry/pkg/inventory"
)

// DefaultJSONBinURL is the JSONBin v3 bins endpoint
const DefaultJSONBinURL = "https://api.jsonbin.io/v3/b"

// maxResponseBody レスポンス本文の読み込み上限
const maxResponseBody = 8 << 20

// JSONBinConfig holds connection settings for a JSONBin-compatible service
// JSONBin互換サービスへの接続設定
type JSONBinConfig struct {
	BaseURL   string        `yaml:"base_url"`
	MasterKey string        `yaml:"master_key"`
	Private   bool          `yaml:"private"`
	Timeout   time.Duration `yaml:"timeout"`
}

// JSONBinStorage implements inventory.Store against a remote JSON document
// service. Every call is one HTTP round trip with no retry or caching.
// リモートのJSONドキュメントサービスを使用したStoreの実装
type JSONBinStorage struct {
	client    *http.Client
	baseURL   string
	masterKey string
	private   bool
	logger    *zap.Logger
}

var _ inventory.Store = (*JSONBinStorage)(nil)

// NewJSONBinStorage creates a client; a nil http.Client gets one with cfg.Timeout
// 新しいJSONBinクライアントを作成
func NewJSONBinStorage(cfg JSONBinConfig, client *http.Client, logger *zap.Logger) *JSONBinStorage {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultJSONBinURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &JSONBinStorage{
		client:    client,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		masterKey: cfg.MasterKey,
		private:   cfg.Private,
		logger:    logger,
	}
}

type fetchEnvelope struct {
	Record json.RawMessage `json:"record"`
}

type createEnvelope struct {
	Metadata struct {
		ID string `json:"id"`
	} `json:"metadata"`
}

// Fetch reads the record of a bin
// ビンのレコードを取得
func (s *JSONBinStorage) Fetch(ctx context.Context, binID string) (*inventory.Document, error) {
	status, body, err := s.do(ctx, "fetch", http.MethodGet, s.binURL(binID), nil, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, inventory.ErrDocumentNotFound
	}
	if !isSuccess(status) {
		return nil, inventory.NewTransportError("fetch", status, string(body), nil)
	}

	var envelope fetchEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, inventory.NewTransportError("fetch", status, string(body), err)
	}
	if len(envelope.Record) == 0 || string(envelope.Record) == "null" {
		return nil, inventory.NewTransportError("fetch", status, "レスポンスに record が含まれていません", nil)
	}

	var doc inventory.Document
	if err := json.Unmarshal(envelope.Record, &doc); err != nil {
		return nil, inventory.NewTransportError("fetch", status, string(envelope.Record), err)
	}

	s.logger.Debug("ビン取得完了",
		zap.String("bin_id", binID),
		zap.Int("batches", len(doc.Inventory)),
	)

	return &doc, nil
}

// Persist replaces the whole bin with doc
// ビン全体を置き換え
func (s *JSONBinStorage) Persist(ctx context.Context, binID string, doc *inventory.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return inventory.NewStorageError("persist", "ドキュメントのエンコードに失敗しました", err)
	}

	status, body, err := s.do(ctx, "persist", http.MethodPut, s.binURL(binID), payload, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return inventory.ErrDocumentNotFound
	}
	if !isSuccess(status) {
		return inventory.NewTransportError("persist", status, string(body), nil)
	}

	s.logger.Debug("ビン更新完了",
		zap.String("bin_id", binID),
		zap.Int("batches", len(doc.Inventory)),
	)

	return nil
}

// Create posts doc as a new bin and returns the assigned ID
// 新しいビンを作成し、採番されたIDを返す
func (s *JSONBinStorage) Create(ctx context.Context, doc *inventory.Document) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", inventory.NewStorageError("create", "ドキュメントのエンコードに失敗しました", err)
	}

	headers := map[string]string{"X-Bin-Private": strconv.FormatBool(s.private)}
	status, body, err := s.do(ctx, "create", http.MethodPost, s.baseURL, payload, headers)
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", inventory.NewTransportError("create", status, string(body), nil)
	}

	var envelope createEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", inventory.NewTransportError("create", status, string(body), err)
	}
	if envelope.Metadata.ID == "" {
		return "", inventory.NewTransportError("create", status, "レスポンスに metadata.id が含まれていません", nil)
	}

	s.logger.Info("ビン作成完了", zap.String("bin_id", envelope.Metadata.ID))

	return envelope.Metadata.ID, nil
}

func (s *JSONBinStorage) binURL(binID string) string {
	return s.baseURL + "/" + binID
}

func (s *JSONBinStorage) do(ctx context.Context, op, method, url string, payload []byte, headers map[string]string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, inventory.NewTransportError(op, 0, "", fmt.Errorf("リクエスト作成に失敗しました: %w", err))
	}
	req.Header.Set("X-Master-Key", s.masterKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("ドキュメントストアに接続できません",
			zap.String("operation", op),
			zap.String("method", method),
			zap.Error(err),
		)
		return 0, nil, inventory.NewTransportError(op, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, inventory.NewTransportError(op, resp.StatusCode, "", err)
	}

	if !isSuccess(resp.StatusCode) {
		s.logger.Warn("ドキュメントストアがエラーを返しました",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
	}

	return resp.StatusCode, body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
