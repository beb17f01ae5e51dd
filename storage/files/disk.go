// Package files stores generated files, such as reports, and returns the URL they can be downloaded from.
package files

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/report"
)

// DiskStore saves files under a local directory, served by the API under conf.Storage.BaseURL.
type DiskStore struct {
	dir     string
	baseURL string
}

var _ report.FileStore = (*DiskStore)(nil) // interface compliance check

func NewDiskStore(conf *core.Config) *DiskStore {
	dir := conf.Storage.Dir
	if dir != "" && !filepath.IsAbs(dir) && conf.WorkDir != "" {
		dir = filepath.Join(conf.WorkDir, dir)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(conf.Storage.BaseURL, "/")}
}

// Dir is the root directory of the stored files.
func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) Save(_ context.Context, filePath string, r io.Reader, _ string) (string, error) {
	filePath = path.Clean("/" + filePath)[1:] // no escaping the root dir
	dest := filepath.Join(s.dir, filepath.FromSlash(filePath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errors.Wrap(err, "creating directory")
	}

	file, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrap(err, "creating file")
	}
	if _, err = io.Copy(file, r); err != nil {
		_ = file.Close()
		return "", errors.Wrap(err, "writing file")
	}
	if err = file.Close(); err != nil {
		return "", errors.Wrap(err, "closing file")
	}
	return s.baseURL + "/" + filePath, nil
}
