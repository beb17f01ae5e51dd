package files

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

func TestDiskStore_Save(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Storage.Dir = t.TempDir()
	conf.Storage.BaseURL = "http://localhost:8000/media/"
	store := NewDiskStore(conf)

	tests := []struct {
		name     string
		filePath string
		wantPath string
	}{
		{name: "nested", filePath: "reports/cls1/attendance.xlsx", wantPath: "reports/cls1/attendance.xlsx"},
		{name: "leading slash", filePath: "/reports/results.xlsx", wantPath: "reports/results.xlsx"},
		{name: "no escaping the root", filePath: "../../etc/passwd", wantPath: "etc/passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := store.Save(context.Background(), tt.filePath, strings.NewReader(tt.name), "text/plain")
			require.NoError(t, err)
			assert.Equal(t, "http://localhost:8000/media/"+tt.wantPath, url)

			content, err := os.ReadFile(filepath.Join(store.Dir(), filepath.FromSlash(tt.wantPath)))
			require.NoError(t, err)
			assert.Equal(t, tt.name, string(content))
		})
	}
}

func TestNewDiskStore_relativeDir(t *testing.T) {
	conf := core.NewTestConfig()
	conf.WorkDir = "/srv/shule"
	conf.Storage.Dir = "media"
	assert.Equal(t, filepath.Join("/srv/shule", "media"), NewDiskStore(conf).Dir())
}
