package changewatcher

import "github.com/c360studio/semstreams/payloadregistry"

// RegisterPayloads registers the NotificationEvent payload type with the
// supplied registry.
func RegisterPayloads(reg *payloadregistry.Registry) error {
	return reg.Register(&payloadregistry.Registration{
		Domain:      "watch",
		Category:    "notification",
		Version:     "v1",
		Description: "One-time notification for a watched board state transition",
		Factory:     func() any { return &NotificationEvent{} },
	})
}
