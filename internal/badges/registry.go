package badges

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/labaccess-backend/internal/records"
	"github.com/angelmondragon/labaccess-backend/internal/repo"
	"github.com/angelmondragon/labaccess-backend/pkg/db"
	"github.com/angelmondragon/labaccess-backend/pkg/db/models"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

// Registry persists issued badges keyed by hash.
type Registry interface {
	Recorder
	FindByHash(ctx context.Context, hash string) (*models.Badge, error)
}

type registryImpl struct {
	repo.Base
}

// NewRegistry returns a badge registry bound to the provided database.
func NewRegistry(conn *gorm.DB) Registry {
	return &registryImpl{Base: repo.NewBase(conn)}
}

// Record stores the badge. Re-issuing identical badge data is a no-op.
func (r *registryImpl) Record(ctx context.Context, data records.BadgeData, file File, ref string) error {
	badge := &models.Badge{
		ID:         uuid.New(),
		Hash:       data.Hash,
		EID:        data.EID,
		Basket:     data.Basket,
		Status:     enums.BasketStatusAssign,
		Payload:    file.Description,
		FileName:   file.Name,
		StorageRef: ref,
	}
	err := r.DB(ctx).Create(badge).Error
	if err != nil && db.IsUniqueViolation(err, "") {
		return nil
	}
	return err
}

func (r *registryImpl) FindByHash(ctx context.Context, hash string) (*models.Badge, error) {
	var badge models.Badge
	err := r.DB(ctx).
		Where("hash = ?", strings.ToUpper(strings.TrimSpace(hash))).
		First(&badge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "badge not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup badge")
	}
	return &badge, nil
}
