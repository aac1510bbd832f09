package autoheal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/intelogroup/clixen/pkg/log"
	"github.com/intelogroup/clixen/pkg/models"
)

const (
	streamName    = "clixen.autoheal"
	consumerGroup = "healers"

	jobField = "job"

	dequeueBlock = 5 * time.Second
)

// RedisQueue is a Redis-streams queue shared across healer processes. The
// consumer group gives each job to exactly one consumer; unacked jobs stay in
// the pending list for inspection.
type RedisQueue struct {
	client   *redis.Client
	consumer string
	logger   *slog.Logger
}

// NewRedisQueue connects to Redis and ensures the stream and consumer group
// exist.
func NewRedisQueue(ctx context.Context, redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	err = client.XGroupCreateMkStream(ctx, streamName, consumerGroup, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &RedisQueue{
		client:   client,
		consumer: "healer-" + uuid.NewString()[:8],
		logger:   log.WithModule("autoheal"),
	}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *models.AutoHealJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode autoheal job: %w", err)
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		Values: map[string]any{jobField: string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue autoheal job: %w", err)
	}

	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: q.consumer,
			Streams:  []string{streamName, ">"},
			Count:    1,
			Block:    dequeueBlock,
		}).Result()

		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read autoheal stream: %w", err)
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				raw, ok := message.Values[jobField].(string)
				if !ok {
					q.logger.WarnContext(ctx, "discarding malformed autoheal message", "message_id", message.ID)
					_ = q.client.XAck(ctx, streamName, consumerGroup, message.ID).Err()

					continue
				}

				job := &models.AutoHealJob{}
				if err := json.Unmarshal([]byte(raw), job); err != nil {
					q.logger.WarnContext(ctx, "discarding undecodable autoheal job", "message_id", message.ID, "error", err)
					_ = q.client.XAck(ctx, streamName, consumerGroup, message.ID).Err()

					continue
				}

				return &Delivery{Job: job, Token: message.ID}, nil
			}
		}
	}
}

func (q *RedisQueue) Ack(ctx context.Context, delivery *Delivery) error {
	if err := q.client.XAck(ctx, streamName, consumerGroup, delivery.Token).Err(); err != nil {
		return fmt.Errorf("failed to ack autoheal job: %w", err)
	}

	return nil
}

// Depth returns the number of entries currently in the stream.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	depth, err := q.client.XLen(ctx, streamName).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read autoheal stream length: %w", err)
	}

	return depth, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func isBusyGroup(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
