package enums

// MessageKind names an outbound notification configuration.
type MessageKind string

const (
	MessageKindLabAccessText  MessageKind = "Lab Access Account Text"
	MessageKindLabAccessEmail MessageKind = "Lab Access Account Email"
	MessageKindBasketEmail    MessageKind = "Basket Assignment Email"
)
