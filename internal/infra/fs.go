package infra

import (
	"fmt"

	"github.com/spf13/afero"
)

// NewDataFs はデータディレクトリをルートとするファイルシステムを返す。
func NewDataFs(dir string) (afero.Fs, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	return afero.NewBasePathFs(osFs, dir), nil
}
