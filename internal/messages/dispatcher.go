package messages

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/labaccess-backend/internal/records"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

// Attachment is a file sent alongside an email.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Email is an outbound HTML message. The plain-text body is always empty.
type Email struct {
	To          string
	Subject     string
	From        string
	Name        string
	HTMLBody    string
	Attachments []Attachment
}

// Mailer delivers a single email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// Dispatcher renders and sends the pipeline's three notifications.
type Dispatcher struct {
	mailer     Mailer
	renderer   *Renderer
	sender     string
	smsGateway string
}

type Option func(*Dispatcher)

// WithSender overrides the address every message is sent as.
func WithSender(address string) Option {
	return func(d *Dispatcher) {
		d.sender = strings.TrimSpace(address)
	}
}

// WithSMSGateway overrides the carrier gateway address used for texts.
func WithSMSGateway(address string) Option {
	return func(d *Dispatcher) {
		d.smsGateway = strings.TrimSpace(address)
	}
}

func NewDispatcher(mailer Mailer, renderer *Renderer, opts ...Option) (*Dispatcher, error) {
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer required")
	}
	d := &Dispatcher{mailer: mailer, renderer: renderer}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// basketEmailData is the view the basket template renders.
type basketEmailData struct {
	Basket  string
	Status  string
	Name    string
	Message string
}

// TextBody renders the SMS body for user. The calendar event reuses it as its description.
func (d *Dispatcher) TextBody(user *records.UserRecord) (string, error) {
	return d.renderer.Render(TemplateTextMessage, user)
}

// SendText notifies the lab manager through the SMS gateway.
func (d *Dispatcher) SendText(ctx context.Context, user *records.UserRecord) error {
	cfg := d.resolve(enums.MessageKindLabAccessText)
	body, err := d.renderer.Render(cfg.BodyTemplate, user)
	if err != nil {
		return err
	}
	return d.send(ctx, "send text message", Email{
		To:       cfg.SendTo,
		Subject:  cfg.Subject,
		From:     cfg.SendAs,
		Name:     cfg.DisplayName,
		HTMLBody: body,
	})
}

// SendConfirmationEmail acknowledges the registration to the user.
func (d *Dispatcher) SendConfirmationEmail(ctx context.Context, user *records.UserRecord) error {
	cfg := d.resolve(enums.MessageKindLabAccessEmail)
	body, err := d.renderer.Render(cfg.BodyTemplate, user)
	if err != nil {
		return err
	}
	return d.send(ctx, "send confirmation email", Email{
		To:       user.Email,
		Subject:  cfg.Subject,
		From:     cfg.SendAs,
		Name:     cfg.DisplayName,
		HTMLBody: body,
	})
}

// SendBasketAssignmentEmail tells the assignee a basket was assigned or returned.
// The badge is attached only when provided.
func (d *Dispatcher) SendBasketAssignmentEmail(ctx context.Context, basket *records.BasketRecord, badge *Attachment) error {
	cfg := d.resolve(enums.MessageKindBasketEmail)
	data := basketEmailData{
		Basket:  basket.Basket,
		Name:    basket.FullName(),
		Status:  "Returned",
		Message: fmt.Sprintf("The cleanroom basket you were assigned, %s, has been returned.", basket.Basket),
	}
	if basket.Status == enums.BasketStatusAssign {
		data.Status = "Assigned To You"
		data.Message = fmt.Sprintf("You have been assigned cleanroom basket %s. The QR code for your basket is attached below. Print it and place it inside the basket tag holder", basket.Basket)
	}

	body, err := d.renderer.Render(cfg.BodyTemplate, data)
	if err != nil {
		return err
	}
	email := Email{
		To:       basket.Email,
		Subject:  BasketSubject(basket.Status),
		From:     cfg.SendAs,
		Name:     cfg.DisplayName,
		HTMLBody: body,
	}
	if badge != nil {
		email.Attachments = []Attachment{*badge}
	}
	return d.send(ctx, "send basket email", email)
}

// BasketSubject builds "Cleanroom Basket Assigned" or "Cleanroom Basket Returned".
func BasketSubject(status enums.BasketStatus) string {
	return "Cleanroom Basket " + string(status) + "ed"
}

func (d *Dispatcher) resolve(kind enums.MessageKind) Config {
	cfg, _ := Lookup(kind)
	if d.sender != "" {
		cfg.SendAs = d.sender
	}
	if cfg.SendTo != "" && d.smsGateway != "" {
		cfg.SendTo = d.smsGateway
	}
	return cfg
}

func (d *Dispatcher) send(ctx context.Context, action string, email Email) error {
	if err := d.mailer.Send(ctx, email); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeExternalService, err, action)
	}
	return nil
}
