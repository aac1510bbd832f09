package cmd

import (
	"fmt"
	"log/slog"

	"github.com/intelogroup/clixen/pkg/eventbus"
)

// NewEventBus creates an event bus for the given provider. The gochannel bus
// is in-process only and suits single-binary deployments and tests.
func NewEventBus(provider string, logger *slog.Logger, serviceName string) eventbus.EventBus {
	switch provider {
	case "kafka":
		bus, err := eventbus.NewKafkaEventBus(logger, serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka event bus: %w", err))
		}

		return bus
	case "gochannel", "":
		return eventbus.NewGoChannelEventBus()
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
