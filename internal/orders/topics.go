package orders

const TopicOrderStatusChanged = "order.status.changed"

// Partition key = order_id so every status change of one order stays ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
