package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/labaccess-backend/api/responses"
	"github.com/angelmondragon/labaccess-backend/api/validators"
	"github.com/angelmondragon/labaccess-backend/internal/badges"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
)

const maxPayloadLength = 4096

type badgeVerifier interface {
	Verify(ctx context.Context, payload []byte) (*badges.Verification, error)
}

type verifyBadgeRequest struct {
	Payload string `json:"payload" validate:"required,max=4096"`
}

type verifyBadgeResponse struct {
	Valid        bool   `json:"valid"`
	HashMatches  bool   `json:"hashMatches"`
	Registered   bool   `json:"registered"`
	ComputedHash string `json:"computedHash"`
	EID          string `json:"eid"`
	Name         string `json:"name"`
	Basket       string `json:"basket"`
	Assigned     string `json:"assigned"`
	StorageRef   string `json:"storageRef,omitempty"`
}

// BadgeVerify checks a scanned QR payload against its hash and the badge registry.
func BadgeVerify(verifier badgeVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "badge verifier unavailable"))
			return
		}

		var req verifyBadgeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		payload := validators.SanitizeString(req.Payload, maxPayloadLength)
		if payload == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payload is required"))
			return
		}

		result, err := verifier.Verify(ctx, []byte(payload))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := verifyBadgeResponse{
			Valid:        result.Valid(),
			HashMatches:  result.HashMatches,
			Registered:   result.Registered,
			ComputedHash: result.ComputedHash,
			EID:          result.Data.EID,
			Name:         strings.TrimSpace(result.Data.Name),
			Basket:       result.Data.Basket,
			Assigned:     result.Data.Assigned,
		}
		if result.Badge != nil {
			resp.StorageRef = result.Badge.StorageRef
		}
		responses.WriteSuccess(w, resp)
	}
}
