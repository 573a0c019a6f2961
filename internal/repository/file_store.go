// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"smartlock-service/internal/domain"
)

// 永続化ファイル名（データディレクトリからの相対パス）。1ファイル1レコード。
const (
	SecretFile   = "/private_key.txt"
	RecoveryFile = "/recovery_key.txt"
	LogsFile     = "/logs.txt"

	mountProbeFile = "/.mounted"
)

// FileStore はフラットファイルに資格情報と監査ログを保存するストア。
type FileStore struct {
	fs      afero.Fs
	clock   clockwork.Clock
	loc     *time.Location
	mounted bool
}

// NewFileStore は新しいFileStoreを生成する。fsはデータディレクトリをルートとするファイルシステム。
func NewFileStore(fsys afero.Fs, clock clockwork.Clock, loc *time.Location) *FileStore {
	if loc == nil {
		loc = time.Local
	}
	return &FileStore{fs: fsys, clock: clock, loc: loc}
}

// Mount はデータディレクトリを初期化する。書き込みできない場合は一度だけ再フォーマットして再試行する。
func (s *FileStore) Mount(ctx context.Context) error {
	err := s.probe()
	if err == nil {
		s.mounted = true
		return nil
	}
	slog.WarnContext(ctx, "no usable file system found, reformatting",
		"operation", "mount",
		"error", err,
	)

	if err := s.fs.RemoveAll("/"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.ErrorContext(ctx, "failed to reformat data directory",
			"operation", "mount",
			"error", err,
		)
		return fmt.Errorf("reformatting data directory: %w", err)
	}
	if err := s.probe(); err != nil {
		slog.ErrorContext(ctx, "reformat failed",
			"operation", "mount",
			"error", err,
		)
		return fmt.Errorf("mounting data directory: %w", err)
	}
	s.mounted = true
	return nil
}

func (s *FileStore) probe() error {
	if err := s.fs.MkdirAll("/", 0o700); err != nil {
		return err
	}
	if err := afero.WriteFile(s.fs, mountProbeFile, []byte("ok"), 0o600); err != nil {
		return err
	}
	return s.fs.Remove(mountProbeFile)
}

// GetSecret は保存された秘密鍵文字列を返す。
func (s *FileStore) GetSecret(ctx context.Context) (string, error) {
	return s.readRecord(ctx, SecretFile)
}

// SetSecret は秘密鍵文字列を保存する。
func (s *FileStore) SetSecret(ctx context.Context, value string) error {
	return s.writeRecord(ctx, SecretFile, value)
}

// GetRecoveryCodes は保存されたリカバリーコード文字列を返す。
func (s *FileStore) GetRecoveryCodes(ctx context.Context) (string, error) {
	return s.readRecord(ctx, RecoveryFile)
}

// SetRecoveryCodes はリカバリーコード文字列を保存する。
func (s *FileStore) SetRecoveryCodes(ctx context.Context, value string) error {
	return s.writeRecord(ctx, RecoveryFile, value)
}

// AppendLog はタイムスタンプ付きの1行を監査ログに追記する。
func (s *FileStore) AppendLog(ctx context.Context, message string) error {
	if !s.mounted {
		return domain.ErrStoreNotMounted
	}
	entry := domain.AuditLogEntry{Timestamp: s.clock.Now().In(s.loc), Message: message}

	f, err := s.fs.OpenFile(LogsFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open log for append",
			"operation", "append_log",
			"path", LogsFile,
			"error", err,
		)
		return fmt.Errorf("opening %s: %w", LogsFile, err)
	}
	defer f.Close()

	if _, err := f.WriteString(entry.String() + "\n"); err != nil {
		slog.ErrorContext(ctx, "failed to append log",
			"operation", "append_log",
			"path", LogsFile,
			"error", err,
		)
		return fmt.Errorf("appending to %s: %w", LogsFile, err)
	}
	return nil
}

// ReadLogs は監査ログ全体を古い順に返す。解析できない行は読み飛ばす。
func (s *FileStore) ReadLogs(ctx context.Context) ([]domain.AuditLogEntry, error) {
	if !s.mounted {
		return nil, domain.ErrStoreNotMounted
	}
	data, err := afero.ReadFile(s.fs, LogsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to read log",
			"operation", "read_logs",
			"path", LogsFile,
			"error", err,
		)
		return nil, fmt.Errorf("reading %s: %w", LogsFile, err)
	}

	var entries []domain.AuditLogEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		entry, err := domain.ParseAuditLogLine(line, s.loc)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed log line",
				"operation", "read_logs",
				"error", err,
			)
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", LogsFile, err)
	}
	return entries, nil
}

// Erase は全レコードを削除する。次回起動時に再プロビジョニングされる。
func (s *FileStore) Erase(ctx context.Context) error {
	for _, name := range []string{SecretFile, RecoveryFile, LogsFile} {
		if err := s.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.ErrorContext(ctx, "failed to erase record",
				"operation", "erase",
				"path", name,
				"error", err,
			)
			return fmt.Errorf("removing %s: %w", name, err)
		}
	}
	return nil
}

// readRecord はファイルの先頭行を返す。
func (s *FileStore) readRecord(ctx context.Context, name string) (string, error) {
	if !s.mounted {
		return "", domain.ErrStoreNotMounted
	}
	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.ErrCredentialNotFound
		}
		slog.ErrorContext(ctx, "failed to read record",
			"operation", "read_record",
			"path", name,
			"error", err,
		)
		return "", fmt.Errorf("reading %s: %w", name, err)
	}

	value := strings.TrimSpace(string(data))
	if i := strings.IndexByte(value, '\n'); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	if value == "" {
		return "", domain.ErrCredentialNotFound
	}
	return value, nil
}

// writeRecord は一時ファイルに書いてから置き換える。
func (s *FileStore) writeRecord(ctx context.Context, name, value string) error {
	if !s.mounted {
		return domain.ErrStoreNotMounted
	}
	tmp := name + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, []byte(value+"\n"), 0o600); err != nil {
		slog.ErrorContext(ctx, "failed to write record",
			"operation", "write_record",
			"path", name,
			"error", err,
		)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		slog.ErrorContext(ctx, "failed to replace record",
			"operation", "write_record",
			"path", name,
			"error", err,
		)
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}
