package inventory

import (
	"errors"
	"fmt"
)

// Common inventory errors
// 共通の在庫エラー定義

var (
	// ErrDocumentNotFound is returned when a bin doesn't exist
	// ビンが存在しない場合のエラー
	ErrDocumentNotFound = errors.New("在庫ドキュメントが見つかりません")

	// ErrVersionMismatch is returned when a conditional write loses a race
	// 条件付き書き込みで競合した場合のエラー
	ErrVersionMismatch = errors.New("バージョンが一致しません。他のリクエストによって更新されています")

	// ErrEmptyConsumption is returned when a consumption request has no entries
	// 消費リクエストが空の場合のエラー
	ErrEmptyConsumption = errors.New("消費リクエストが空です")

	// ErrNoInterpreter is returned when MergeObserved is called without an interpreter
	ErrNoInterpreter = errors.New("インタープリターが指定されていません")
)

// ValidationError represents a validation error with details
// 詳細付きバリデーションエラーを表現
type ValidationError struct {
	Field   string `json:"field"`   // エラーフィールド
	Message string `json:"message"` // エラーメッセージ
	Value   string `json:"value"`   // 無効な値
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("バリデーションエラー [%s]: %s (値: %s)", e.Field, e.Message, e.Value)
}

// TransportError represents a failed round trip to the document store
// ドキュメントストアとの通信失敗を表現
type TransportError struct {
	Operation  string `json:"operation"`   // 操作名
	StatusCode int    `json:"status_code"` // HTTPステータス（到達不能の場合は0）
	Body       string `json:"body"`        // レスポンス本文
	Cause      error  `json:"-"`           // 原因エラー
}

func (e TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("通信エラー [%s]: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("通信エラー [%s]: ステータス %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (e TransportError) Unwrap() error {
	return e.Cause
}

// StorageError represents a storage layer error
// ストレージ層のエラーを表現
type StorageError struct {
	Operation string `json:"operation"` // 操作名
	Message   string `json:"message"`   // エラーメッセージ
	Cause     error  `json:"cause"`     // 原因エラー
}

func (e StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ストレージエラー [%s]: %s (原因: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("ストレージエラー [%s]: %s", e.Operation, e.Message)
}

func (e StorageError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
// 新しいバリデーションエラーを作成
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewTransportError creates a new transport error
// 新しい通信エラーを作成
func NewTransportError(operation string, statusCode int, body string, cause error) *TransportError {
	return &TransportError{
		Operation:  operation,
		StatusCode: statusCode,
		Body:       body,
		Cause:      cause,
	}
}

// NewStorageError creates a new storage error
// 新しいストレージエラーを作成
func NewStorageError(operation, message string, cause error) *StorageError {
	return &StorageError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}
