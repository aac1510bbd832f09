package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/intelogroup/clixen/pkg/autoheal"
)

// NewQueue creates the auto-heal queue. An empty redis URL falls back to the
// in-memory queue, which only serves single-process setups since jobs are
// lost on restart.
func NewQueue(ctx context.Context, logger *slog.Logger, redisURL string) autoheal.Queue {
	if redisURL == "" {
		logger.WarnContext(ctx, "no redis url configured, using in-memory autoheal queue")

		return autoheal.NewMemoryQueue()
	}

	queue, err := autoheal.NewRedisQueue(ctx, redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to create redis autoheal queue: %w", err))
	}

	return queue
}
