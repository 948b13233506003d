package enums

// TriggerSource records what started a submission run.
type TriggerSource string

const (
	TriggerSourcePubSub  TriggerSource = "pubsub"
	TriggerSourceWebhook TriggerSource = "webhook"
	TriggerSourcePoller  TriggerSource = "poller"
	TriggerSourceManual  TriggerSource = "manual"
)
