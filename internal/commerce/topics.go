package commerce

const (
	TopicOrderCreated    = "order.created"
	TopicOrderCancelled  = "order.cancelled"
	TopicPaymentVerified = "payment.verified"
)

// Partition key = order_id so every event for one order keeps its ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
