package domain

import "fmt"

// EventDeliveryType selects the wire strategy used to obtain build
// events. Chosen per attempt, never persisted.
type EventDeliveryType string

const (
	// DeliveryDirect posts to the build endpoint and reads the event
	// stream straight from the response body. No job id involved.
	DeliveryDirect EventDeliveryType = "direct"
	// DeliveryStreaming posts to the build endpoint for a job id, then
	// streams events live from the events endpoint.
	DeliveryStreaming EventDeliveryType = "streaming"
	// DeliveryPolling performs the same job-id handshake as streaming
	// but polls the events endpoint on a fixed interval. This is the
	// universal fallback.
	DeliveryPolling EventDeliveryType = "polling"
)

// ParseDeliveryType converts a configuration string into a delivery
// type.
func ParseDeliveryType(s string) (EventDeliveryType, error) {
	switch EventDeliveryType(s) {
	case DeliveryDirect, DeliveryStreaming, DeliveryPolling:
		return EventDeliveryType(s), nil
	case "":
		return DeliveryStreaming, nil
	default:
		return "", fmt.Errorf("unknown event delivery type %q", s)
	}
}
