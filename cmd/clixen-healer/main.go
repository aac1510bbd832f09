// Package main provides the auto-heal worker binary. It consumes fixable
// validation failures from the queue, repairs the stored definitions and
// re-validates them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/intelogroup/clixen/pkg/autoheal"
	"github.com/intelogroup/clixen/pkg/cmd"
	"github.com/intelogroup/clixen/pkg/log"
	"github.com/intelogroup/clixen/pkg/nodetypes"
	"github.com/intelogroup/clixen/pkg/otelhelper"
	"github.com/intelogroup/clixen/pkg/validation"
)

func main() {
	logger := log.WithModule("healer")

	command := &cli.Command{
		Name:                  "clixen-healer",
		Usage:                 "Repair workflows that failed validation with fixable errors",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "redis-url",
				Usage:    "Redis URL for the auto-heal queue",
				Required: true,
				Sources:  cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Number of concurrent heal workers",
				Value:   autoheal.DefaultWorkerCount,
				Sources: cli.EnvVars("HEAL_WORKERS"),
			},
			&cli.IntFlag{
				Name:    "max-retries",
				Usage:   "Repair attempts per workflow before permanent failure",
				Value:   autoheal.DefaultMaxRetries,
				Sources: cli.EnvVars("HEAL_MAX_RETRIES"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Clixen healer")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger, "clixen-healer")
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			queue := cmd.NewQueue(ctx, logger, command.String("redis-url"))
			defer func() {
				if err := queue.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close autoheal queue", "error", err)
				}
			}()

			chain, err := validation.NewChain(nodetypes.NewRegistry(), logger)
			if err != nil {
				return err
			}

			tracer, err := otelhelper.NewTracer(ctx, "clixen-healer")
			if err != nil {
				return err
			}

			worker := autoheal.NewWorker(autoheal.WorkerConfig{
				Queue:       queue,
				Persistence: persistence,
				Chain:       chain,
				Publisher:   eventBus,
				Tracer:      tracer,
				Logger:      logger,
				Workers:     command.Int("workers"),
				MaxRetries:  command.Int("max-retries"),
			})

			worker.Start(ctx)

			<-ctx.Done()
			logger.Info("Shutting down Clixen healer")
			worker.Wait()

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
