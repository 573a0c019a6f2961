// Package handler はHTTPハンドラを提供する。
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"smartlock-service/internal/domain"
	"smartlock-service/internal/middleware"
	"smartlock-service/pkg/httputil"
)

// maxPayloadSize はキャラクタリスティックに書き込める最大バイト数。
const maxPayloadSize = 512

// Executor は関数を錠のイベントキュー上で実行する。
type Executor interface {
	Call(ctx context.Context, fn func()) error
}

// Dispatcher は受信ペイロードを判定する。
type Dispatcher interface {
	Dispatch(ctx context.Context, payload []byte) (domain.Decision, error)
}

// LockStatus は錠の状態を返す。
type LockStatus interface {
	State() domain.LockState
	RelockPending() bool
}

// AuditLogReader は錠の監査ログを読み出す。
type AuditLogReader interface {
	ReadLogs(ctx context.Context) ([]domain.AuditLogEntry, error)
}

// LockHandler はHTTPハンドラを提供する。
// 無線の書き込みキャラクタリスティックの代わりにHTTPでコードを受け付ける。
type LockHandler struct {
	queue      Executor
	dispatcher Dispatcher
	status     LockStatus
	logs       AuditLogReader
	deviceName string
}

// NewLockHandler は新しいLockHandlerを生成する。
func NewLockHandler(queue Executor, dispatcher Dispatcher, status LockStatus, logs AuditLogReader, deviceName string) *LockHandler {
	return &LockHandler{
		queue:      queue,
		dispatcher: dispatcher,
		status:     status,
		logs:       logs,
		deviceName: deviceName,
	}
}

// DecisionResponse は判定結果のレスポンス形式。
type DecisionResponse struct {
	Decision string `json:"decision"`
	State    string `json:"state"`
}

// LockStatusResponse は錠の状態のレスポンス形式。
type LockStatusResponse struct {
	DeviceName    string `json:"device_name"`
	State         string `json:"state"`
	RelockPending bool   `json:"relock_pending"`
}

// WriteInput はリクエストボディをそのままキャラクタリスティックの値として判定する。
func (h *LockHandler) WriteInput(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadSize+1))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_BODY", "failed to read request body")
		return
	}
	if len(payload) > maxPayloadSize {
		httputil.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "payload too large")
		return
	}

	var (
		decision    domain.Decision
		dispatchErr error
		state       domain.LockState
		abandoned   bool
	)
	// キューに入った処理は必ず完了まで待つ。実行前に切断されたリクエストは判定しない
	dispatchCtx := context.WithoutCancel(r.Context())
	err = h.queue.Call(dispatchCtx, func() {
		if r.Context().Err() != nil {
			abandoned = true
			return
		}
		decision, dispatchErr = h.dispatcher.Dispatch(dispatchCtx, payload)
		state = h.status.State()
	})
	if err != nil {
		middleware.WriteAuditLog(r.Context(), middleware.AuditLog{Operation: "WRITE_INPUT", Result: "UNAVAILABLE"})
		httputil.Error(w, http.StatusServiceUnavailable, "LOCK_UNAVAILABLE", "lock is not accepting input")
		return
	}
	if abandoned {
		middleware.WriteAuditLog(r.Context(), middleware.AuditLog{Operation: "WRITE_INPUT", Result: "ABANDONED"})
		httputil.Error(w, http.StatusServiceUnavailable, "REQUEST_ABANDONED", "request was cancelled before the code was checked")
		return
	}

	audit := middleware.AuditLog{
		Operation: "WRITE_INPUT",
		Decision:  decision.String(),
		State:     state.String(),
	}
	if dispatchErr != nil {
		audit.Result = "FAILED"
		middleware.WriteAuditLog(r.Context(), audit)
		if errors.Is(dispatchErr, domain.ErrIncorrectLength) {
			httputil.Error(w, http.StatusBadRequest, "INCORRECT_LENGTH", "payload must be 3 or 6 bytes")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	status := http.StatusOK
	audit.Result = "SUCCESS"
	if decision == domain.DecisionDenied {
		status = http.StatusForbidden
		audit.Result = "DENIED"
	}
	middleware.WriteAuditLog(r.Context(), audit)
	httputil.JSON(w, status, DecisionResponse{
		Decision: decision.String(),
		State:    state.String(),
	})
}

// GetLock は錠の現在の状態を返す。
func (h *LockHandler) GetLock(w http.ResponseWriter, r *http.Request) {
	var resp LockStatusResponse
	err := h.queue.Call(r.Context(), func() {
		resp = LockStatusResponse{
			DeviceName:    h.deviceName,
			State:         h.status.State().String(),
			RelockPending: h.status.RelockPending(),
		}
	})
	if err != nil {
		httputil.Error(w, http.StatusServiceUnavailable, "LOCK_UNAVAILABLE", "lock is not accepting requests")
		return
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// GetLogs は錠の監査ログを1行1件のテキストで返す。
func (h *LockHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	var (
		entries []domain.AuditLogEntry
		readErr error
	)
	err := h.queue.Call(r.Context(), func() {
		entries, readErr = h.logs.ReadLogs(r.Context())
	})
	if err == nil {
		err = readErr
	}
	if err != nil {
		middleware.WriteAuditLog(r.Context(), middleware.AuditLog{Operation: "READ_LOGS", Result: "FAILED"})
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read logs")
		return
	}

	middleware.WriteAuditLog(r.Context(), middleware.AuditLog{Operation: "READ_LOGS", Result: "SUCCESS"})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	for _, entry := range entries {
		fmt.Fprintln(w, entry.String())
	}
}
