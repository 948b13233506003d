// Package drive stores badge PDFs in a Google Drive folder.
package drive

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/labaccess-backend/internal/badges"
	"github.com/angelmondragon/labaccess-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/google"
)

const refScheme = "drive://"

// Store uploads badges into a single folder.
type Store struct {
	svc      *driveapi.Service
	folderID string
}

var _ badges.Store = (*Store)(nil)

func New(ctx context.Context, gcp config.GCPConfig, gcfg config.GoogleConfig, cfg config.BadgesConfig) (*Store, error) {
	opts, err := google.ClientOptions(ctx, gcp, gcfg.ImpersonateSubject, google.ScopeDrive)
	if err != nil {
		return nil, err
	}
	svc, err := driveapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}
	return NewWithService(svc, cfg.DriveFolderID)
}

func NewWithService(svc *driveapi.Service, folderID string) (*Store, error) {
	if svc == nil {
		return nil, fmt.Errorf("drive service required")
	}
	if strings.TrimSpace(folderID) == "" {
		return nil, fmt.Errorf("drive folder id required")
	}
	return &Store{svc: svc, folderID: folderID}, nil
}

// Save creates the file in the folder and returns a drive:// reference.
func (s *Store) Save(ctx context.Context, file badges.File) (string, error) {
	meta := &driveapi.File{
		Name:        file.Name,
		MimeType:    file.ContentType,
		Description: file.Description,
		Parents:     []string{s.folderID},
	}
	created, err := s.svc.Files.Create(meta).
		Media(bytes.NewReader(file.Data), googleapi.ContentType(file.ContentType)).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "drive create file")
	}
	return refScheme + created.Id, nil
}
