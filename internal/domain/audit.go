package domain

import (
	"fmt"
	"strings"
	"time"
)

// AuditTimeLayout は監査ログのタイムスタンプ形式（MM/DD/YY HH:MM:SS）。
const AuditTimeLayout = "01/02/06 15:04:05"

// AuditLogEntry は監査ログの1行を表す。
type AuditLogEntry struct {
	Timestamp time.Time
	Message   string
}

// String は "[MM/DD/YY HH:MM:SS] message" 形式の行を返す。
func (e AuditLogEntry) String() string {
	return "[" + e.Timestamp.Format(AuditTimeLayout) + "] " + e.Message
}

// ParseAuditLogLine は監査ログの1行をエントリに変換する。タイムスタンプはlocで解釈する。
func ParseAuditLogLine(line string, loc *time.Location) (AuditLogEntry, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < len(AuditTimeLayout)+2 || line[0] != '[' || line[len(AuditTimeLayout)+1] != ']' {
		return AuditLogEntry{}, fmt.Errorf("malformed audit log line: %q", line)
	}
	ts, err := time.ParseInLocation(AuditTimeLayout, line[1:len(AuditTimeLayout)+1], loc)
	if err != nil {
		return AuditLogEntry{}, fmt.Errorf("parsing audit log timestamp: %w", err)
	}
	return AuditLogEntry{
		Timestamp: ts,
		Message:   strings.TrimPrefix(line[len(AuditTimeLayout)+2:], " "),
	}, nil
}
