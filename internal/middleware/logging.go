// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// AuditLog は監査ログの構造体。
type AuditLog struct {
	Operation string `json:"operation"`
	Decision  string `json:"decision,omitempty"`
	State     string `json:"state,omitempty"`
	Result    string `json:"result"`
	Timestamp string `json:"timestamp"`
}

// WriteAuditLog は錠操作の監査ログを構造化ログとして出力する。
// 錠の監査ログ（logs.txt）とは別に、運用向けの記録として残す。
func WriteAuditLog(ctx context.Context, entry AuditLog) {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	slog.InfoContext(ctx, "lock operation completed",
		"operation", entry.Operation,
		"decision", entry.Decision,
		"state", entry.State,
		"result", entry.Result,
		"timestamp", entry.Timestamp,
	)
}
