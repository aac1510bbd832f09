package eventbus

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/intelogroup/clixen/pkg/channels/kafka"
)

// NewKafkaEventBus creates an event bus backed by Kafka through watermill.
// Broker addresses come from the KAFKA_BROKERS environment variable.
func NewKafkaEventBus(logger *slog.Logger, serviceName string) (*WatermillEventBus, error) {
	pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka channel: %w", err)
	}

	return NewWatermillEventBus(pub, sub), nil
}
