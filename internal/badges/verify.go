package badges

import (
	"context"

	"github.com/angelmondragon/labaccess-backend/internal/records"
	"github.com/angelmondragon/labaccess-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

// Verification is the outcome of checking a scanned QR payload.
type Verification struct {
	Data         records.BadgeData `json:"data"`
	ComputedHash string            `json:"computedHash"`
	HashMatches  bool              `json:"hashMatches"`
	Registered   bool              `json:"registered"`
	Badge        *models.Badge     `json:"-"`
}

// Valid reports whether the payload is intact and was issued by this service.
func (v *Verification) Valid() bool {
	return v != nil && v.HashMatches && v.Registered
}

// Verifier checks scanned badge payloads.
type Verifier struct {
	registry Registry
}

// NewVerifier builds a verifier. A nil registry only checks hash integrity.
func NewVerifier(registry Registry) *Verifier {
	return &Verifier{registry: registry}
}

// Verify recomputes the payload hash and looks it up in the registry.
func (v *Verifier) Verify(ctx context.Context, payload []byte) (*Verification, error) {
	data, err := records.ParsePayload(payload)
	if err != nil {
		return nil, err
	}
	computed, err := Hash(data)
	if err != nil {
		return nil, err
	}

	result := &Verification{
		Data:         data,
		ComputedHash: computed,
		HashMatches:  data.Hash == computed,
	}
	if !result.HashMatches || v.registry == nil {
		return result, nil
	}

	badge, err := v.registry.FindByHash(ctx, computed)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return result, nil
		}
		return nil, err
	}
	result.Registered = true
	result.Badge = badge
	return result, nil
}
