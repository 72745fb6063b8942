package orders

import "strconv"

const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderStatusChanged = "order.status.changed"
)

// Partition key = order id, so all events of one order stay ordered.
func PartitionKey(orderID int64) []byte { return []byte(PartitionKeyString(orderID)) }

func PartitionKeyString(orderID int64) string { return strconv.FormatInt(orderID, 10) }
