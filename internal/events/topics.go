package events

// Topics emitted by the commission engines.
const (
	TopicDealPaid             = "deal.paid"
	TopicCommissionCalculated = "commission.calculated"
)
