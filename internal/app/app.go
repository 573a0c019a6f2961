// Package app はサーバーとCLIで共有する依存関係の組み立てを提供する。
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"smartlock-service/config"
	"smartlock-service/internal/domain"
	"smartlock-service/internal/infra"
	"smartlock-service/internal/repository"
	"smartlock-service/internal/usecase"
)

// OpenCredentials は設定に従ってストアを開き、CredentialServiceを返す。
// 戻り値のclose関数で接続を閉じる。
// マウントに失敗した場合もCredentialServiceを返し、エラーはdomain.ErrStoreNotMountedを含む。
// その場合すべての読み書きが失敗し、照合は常に否認になる。
func OpenCredentials(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (*usecase.CredentialService, func(), error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	var (
		store    usecase.CredentialStore
		closers  []func() error
		mountErr error
	)
	switch cfg.StoreDriver {
	case config.StoreDriverFile:
		fsys, err := infra.NewDataFs(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		fileStore := repository.NewFileStore(fsys, clock, loc)
		if err := fileStore.Mount(ctx); err != nil {
			mountErr = fmt.Errorf("%w: %w", domain.ErrStoreNotMounted, err)
		}
		store = fileStore
	default:
		db, err := infra.NewDB(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, sqlDB.Close)
		}
		store = repository.NewDBStore(db, clock, loc)
	}

	var kmsClient usecase.KMSClient
	if cfg.KMSKeyName != "" {
		client, err := infra.NewKMSClient(ctx, cfg.KMSKeyName)
		if err != nil {
			closeAll(closers)
			return nil, nil, err
		}
		closers = append(closers, client.Close)
		kmsClient = client
	}

	return usecase.NewCredentialService(store, kmsClient), func() { closeAll(closers) }, mountErr
}

// NewActuator はACTUATOR_PATHが設定されていればGPIO、なければログ出力のアクチュエータを返す。
func NewActuator(cfg *config.Config) usecase.Actuator {
	if cfg.ActuatorPath == "" {
		return infra.NewLogActuator()
	}
	return infra.NewGPIOActuator(afero.NewOsFs(), cfg.ActuatorPath)
}

func closeAll(closers []func() error) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			slog.Error("failed to close resource", "error", err)
		}
	}
}
