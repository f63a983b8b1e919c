package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Retryable lets domain errors declare whether a redelivery could succeed.
type Retryable interface {
	Retryable() bool
}

// IsRetryableError determines if an error is retryable
// Returns: (isRetryable, errorType)
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	var r Retryable
	if errors.As(err, &r) {
		if r.Retryable() {
			return true, "domain_retryable"
		}
		return false, "domain_rejected"
	}

	// JSON decode errors - 不可重试（数据格式错误）
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false, "json_decode_error"
	}

	errStr := err.Error()

	if errors.Is(err, pgx.ErrNoRows) {
		return false, "not_found"
	}
	if strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "UNIQUE constraint") {
		// 唯一约束冲突 - 不可重试（幂等性）
		return false, "duplicate_key"
	}

	// Context timeout - 可重试
	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}

	// Network errors - 可重试
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "timeout") {
		// DB 连接问题 - 可重试
		return true, "db_connection_error"
	}

	// 默认：未知错误，保守处理 - 不重试
	return false, "unknown_error"
}
