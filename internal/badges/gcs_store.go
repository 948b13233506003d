package badges

import (
	"context"
	"fmt"
	"path"
	"strings"

	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/storage/gcs"
)

// ObjectUploader is the bucket surface the GCS store needs.
type ObjectUploader interface {
	Name() string
	Upload(ctx context.Context, name, contentType string, data []byte, metadata map[string]string) (*gcs.Object, error)
}

// GCSStore writes badges under prefix in a bucket.
type GCSStore struct {
	bucket ObjectUploader
	prefix string
}

var _ Store = (*GCSStore)(nil)

func NewGCSStore(bucket ObjectUploader, prefix string) (*GCSStore, error) {
	if bucket == nil {
		return nil, fmt.Errorf("bucket required")
	}
	return &GCSStore{bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Save uploads file and returns a gs:// reference. The QR payload is kept as
// object metadata.
func (s *GCSStore) Save(ctx context.Context, file File) (string, error) {
	name := file.Name
	if s.prefix != "" {
		name = path.Join(s.prefix, file.Name)
	}
	meta := map[string]string{}
	if file.Description != "" {
		meta["payload"] = file.Description
	}
	obj, err := s.bucket.Upload(ctx, name, file.ContentType, file.Data, meta)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "upload badge")
	}
	bucket := obj.Bucket
	if bucket == "" {
		bucket = s.bucket.Name()
	}
	objName := obj.Name
	if objName == "" {
		objName = name
	}
	return "gs://" + bucket + "/" + objName, nil
}
