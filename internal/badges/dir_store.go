package badges

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

// DirStore writes badges into a local directory. It backs the offline
// workbook mode.
type DirStore struct {
	dir string
}

var _ Store = (*DirStore)(nil)

func NewDirStore(dir string) (*DirStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("badge directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating badge directory: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

// Save writes file and returns a file:// reference.
func (s *DirStore) Save(_ context.Context, file File) (string, error) {
	name := filepath.Base(filepath.Clean("/" + file.Name))
	if name == "/" || name == "." {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "badge file name required")
	}
	target := filepath.Join(s.dir, name)
	if err := os.WriteFile(target, file.Data, 0o644); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "write badge")
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	return "file://" + abs, nil
}
