package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiPantry/pkg/inventory"
)

// maxBodyBytes リクエスト本文の上限
const maxBodyBytes = 10 << 20

// pinger is implemented by stores that can report connectivity
type pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handlers for the pantry API
// パントリーAPI用のHTTPハンドラーを保持
type Handlers struct {
	service     inventory.Service
	interpreter inventory.Interpreter
	health      pinger
	logger      *zap.Logger
}

// NewHandlers creates new HTTP handlers; health may be nil
// 新しいHTTPハンドラーを作成
func NewHandlers(service inventory.Service, interpreter inventory.Interpreter, health pinger, logger *zap.Logger) *Handlers {
	return &Handlers{
		service:     service,
		interpreter: interpreter,
		health:      health,
		logger:      logger,
	}
}

// APIResponse represents standard API response format
// 標準的なAPIレスポンス形式を表現
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// MergeRequest represents request to merge observed batches
// バッチ追加リクエストを表現
type MergeRequest struct {
	Inventory []inventory.Batch `json:"inventory"`
}

// ObserveRequest carries raw interpreter output
// インタープリター出力を含むリクエストを表現
type ObserveRequest struct {
	RawText string `json:"raw_text"`
}

// ConsumeRequest represents request to consume items
// 消費リクエストを表現
type ConsumeRequest struct {
	Consumed inventory.ConsumptionRequest `json:"consumed"`
}

// HealthCheck handles health check requests
// ヘルスチェックリクエストを処理
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			h.logger.Warn("ストアのヘルスチェックに失敗しました", zap.Error(err))
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	h.sendJSON(w, code, APIResponse{
		Success: code == http.StatusOK,
		Data: map[string]interface{}{
			"status":    status,
			"timestamp": time.Now(),
			"service":   "zaiPantry",
		},
	})
}

// CreateBin handles bin creation requests; an empty body creates an empty bin
// ビン作成リクエストを処理
func (h *Handlers) CreateBin(w http.ResponseWriter, r *http.Request) {
	var doc inventory.Document
	if err := h.decode(w, r, &doc); err != nil && !errors.Is(err, io.EOF) {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	id, err := h.service.Create(r.Context(), &doc)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    map[string]string{"bin_id": id},
	})
}

// GetBin handles document read requests
// ドキュメント取得リクエストを処理
func (h *Handlers) GetBin(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), mux.Vars(r)["binId"])
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendSuccess(w, doc)
}

// ReplaceBin handles full document replacement requests
// ドキュメント置き換えリクエストを処理
func (h *Handlers) ReplaceBin(w http.ResponseWriter, r *http.Request) {
	var doc inventory.Document
	if err := h.decode(w, r, &doc); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	binID := mux.Vars(r)["binId"]
	if err := h.service.Replace(r.Context(), binID, &doc); err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendSuccess(w, map[string]string{
		"message": "ドキュメントを置き換えました",
		"bin_id":  binID,
	})
}

// MergeBatches handles merge requests
// バッチ追加リクエストを処理
func (h *Handlers) MergeBatches(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	result, err := h.service.Merge(r.Context(), mux.Vars(r)["binId"], req.Inventory)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendSuccess(w, result)
}

// ObserveBatches interprets raw model output and merges the result
// モデル出力を解釈してバッチを追加
func (h *Handlers) ObserveBatches(w http.ResponseWriter, r *http.Request) {
	var req ObserveRequest
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}

	result, err := h.service.MergeObserved(r.Context(), mux.Vars(r)["binId"], h.interpreter, []byte(req.RawText))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendSuccess(w, result)
}

// Consume handles consumption requests
// 消費リクエストを処理
func (h *Handlers) Consume(w http.ResponseWriter, r *http.Request) {
	var req ConsumeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}
	if len(req.Consumed) == 0 {
		h.sendError(w, http.StatusBadRequest, "消費データがありません")
		return
	}

	result, err := h.service.Consume(r.Context(), mux.Vars(r)["binId"], req.Consumed)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendSuccess(w, result)
}

// ExpiryReport handles expiry report requests
// 期限レポートリクエストを処理
func (h *Handlers) ExpiryReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ExpiryReport(r.Context(), mux.Vars(r)["binId"])
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendSuccess(w, report)
}

// ヘルパーメソッド

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// statusForError maps service errors to HTTP status codes
// サービスエラーをHTTPステータスに変換
func statusForError(err error) int {
	var validationErr *inventory.ValidationError
	var transportErr *inventory.TransportError

	switch {
	case errors.As(err, &validationErr),
		errors.Is(err, inventory.ErrEmptyConsumption),
		errors.Is(err, inventory.ErrNoInterpreter):
		return http.StatusBadRequest
	case errors.Is(err, inventory.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrVersionMismatch):
		return http.StatusConflict
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) sendServiceError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("リクエスト処理に失敗しました", zap.Int("status", status), zap.Error(err))
	}
	h.sendError(w, status, err.Error())
}

// sendSuccess sends a successful API response
// 成功APIレスポンスを送信
func (h *Handlers) sendSuccess(w http.ResponseWriter, data interface{}) {
	h.sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error API response
// エラーAPIレスポンスを送信
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

func (h *Handlers) sendJSON(w http.ResponseWriter, statusCode int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("レスポンス送信に失敗しました", zap.Error(err))
	}
}
