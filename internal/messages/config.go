// Package messages renders and sends the pipeline's notifications.
package messages

import "github.com/angelmondragon/labaccess-backend/pkg/enums"

const (
	TemplateTextMessage     = "text message template"
	TemplateAccountCreation = "email account creation"
	TemplateBasketAssigned  = "email basket assignment"

	defaultSender     = "williamveith@utexas.edu"
	defaultSMSGateway = "9787980710@mms.att.net"
)

// Config describes how one kind of message is addressed and rendered.
// An empty SendTo means the recipient comes from the record.
type Config struct {
	DisplayName  string
	SendAs       string
	SendTo       string
	Subject      string
	BodyTemplate string
}

var configs = map[enums.MessageKind]Config{
	enums.MessageKindLabAccessText: {
		DisplayName:  "New User Setup",
		SendAs:       defaultSender,
		SendTo:       defaultSMSGateway,
		Subject:      "New User Setup",
		BodyTemplate: TemplateTextMessage,
	},
	enums.MessageKindLabAccessEmail: {
		DisplayName:  "Lab Access Automated Message",
		SendAs:       defaultSender,
		Subject:      "Confirmation: UT MRC Equipment Access User Authorization Form Received",
		BodyTemplate: TemplateAccountCreation,
	},
	enums.MessageKindBasketEmail: {
		DisplayName:  "Automated Basket Assignment",
		SendAs:       defaultSender,
		BodyTemplate: TemplateBasketAssigned,
	},
}

// Lookup returns a copy of the configuration for kind.
func Lookup(kind enums.MessageKind) (Config, bool) {
	cfg, ok := configs[kind]
	return cfg, ok
}
