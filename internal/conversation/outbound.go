package conversation

import "context"

// ReplyMessenger delivers assistant replies to the customer's channel.
type ReplyMessenger interface {
	SendReply(ctx context.Context, reply OutboundReply) error
}

// OutboundReply is one message going back to a customer.
type OutboundReply struct {
	CustomerID string
	To         string
	Body       string
	Channel    string
	Metadata   map[string]string
}
