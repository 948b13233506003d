// Package forms acknowledges submissions by clearing Google Form responses.
// The Forms REST API cannot delete responses, so the call goes through an
// Apps Script deployment (deploy/apps-script) via the Execution API.
package forms

import (
	"context"
	"fmt"
	"strings"

	scriptapi "google.golang.org/api/script/v1"

	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
	"github.com/angelmondragon/labaccess-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/google"
)

// ClearFunction is the Apps Script function that deletes every response of a form.
const ClearFunction = "clearFormResponses"

type Client struct {
	svc      *scriptapi.Service
	scriptID string
}

var _ pipeline.FormStore = (*Client)(nil)

func New(ctx context.Context, gcp config.GCPConfig, gcfg config.GoogleConfig) (*Client, error) {
	opts, err := google.ClientOptions(ctx, gcp, gcfg.ImpersonateSubject, google.ScopeForms)
	if err != nil {
		return nil, err
	}
	svc, err := scriptapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating script service: %w", err)
	}
	return NewWithService(svc, gcfg.ScriptID)
}

func NewWithService(svc *scriptapi.Service, scriptID string) (*Client, error) {
	if svc == nil {
		return nil, fmt.Errorf("script service required")
	}
	if strings.TrimSpace(scriptID) == "" {
		return nil, fmt.Errorf("apps script id required")
	}
	return &Client{svc: svc, scriptID: scriptID}, nil
}

func (c *Client) ClearResponses(ctx context.Context, formID string) error {
	op, err := c.svc.Scripts.Run(c.scriptID, &scriptapi.ExecutionRequest{
		Function:   ClearFunction,
		Parameters: []any{formID},
	}).Context(ctx).Do()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "run clear responses script")
	}
	if op.Error != nil {
		return pkgerrors.New(pkgerrors.CodeExternalService, "clear responses script failed").
			WithDetails(map[string]any{"form_id": formID, "message": op.Error.Message})
	}
	return nil
}
