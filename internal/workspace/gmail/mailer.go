// Package gmail delivers pipeline notifications through the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/angelmondragon/labaccess-backend/internal/messages"
	"github.com/angelmondragon/labaccess-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/google"
)

const me = "me"

// Mailer sends messages as the impersonated Workspace user.
type Mailer struct {
	svc *gmailapi.Service
}

var _ messages.Mailer = (*Mailer)(nil)

// New builds a Gmail mailer. The impersonated subject defaults to the
// configured sender so the From header matches the authenticated mailbox.
func New(ctx context.Context, gcp config.GCPConfig, gcfg config.GoogleConfig, mail config.MailConfig) (*Mailer, error) {
	subject := strings.TrimSpace(gcfg.ImpersonateSubject)
	if subject == "" {
		subject = mail.Sender
	}
	opts, err := google.ClientOptions(ctx, gcp, subject, google.ScopeGmailSend)
	if err != nil {
		return nil, err
	}
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return NewWithService(svc)
}

func NewWithService(svc *gmailapi.Service) (*Mailer, error) {
	if svc == nil {
		return nil, fmt.Errorf("gmail service required")
	}
	return &Mailer{svc: svc}, nil
}

func (m *Mailer) Send(ctx context.Context, email messages.Email) error {
	raw, err := BuildMIME(email)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeFormat) {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build mime message")
	}
	msg := &gmailapi.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if _, err := m.svc.Users.Messages.Send(me, msg).Context(ctx).Do(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "gmail send")
	}
	return nil
}
