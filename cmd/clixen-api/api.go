// Package main provides the Clixen API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/intelogroup/clixen/pkg/autoheal"
	"github.com/intelogroup/clixen/pkg/deployment"
	"github.com/intelogroup/clixen/pkg/engine"
	"github.com/intelogroup/clixen/pkg/eventbus"
	"github.com/intelogroup/clixen/pkg/metrics"
	"github.com/intelogroup/clixen/pkg/nodetypes"
	"github.com/intelogroup/clixen/pkg/otelhelper"
	"github.com/intelogroup/clixen/pkg/persistence"
	"github.com/intelogroup/clixen/pkg/quality"
	"github.com/intelogroup/clixen/pkg/validation"
	"github.com/intelogroup/clixen/pkg/web"
)

type API struct {
	logger       *slog.Logger
	persistence  persistence.Persistence
	orchestrator *deployment.Orchestrator
	monitor      *deployment.Monitor
	chain        *validation.Chain
	quality      *quality.Validator
	validate     *validator.Validate
}

func NewAPI(
	ctx context.Context,
	logger *slog.Logger,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	queue autoheal.Queue,
	engineURL string,
	engineAPIKey string,
) (*API, error) {
	registry := nodetypes.NewRegistry()

	chain, err := validation.NewChain(registry, logger)
	if err != nil {
		return nil, err
	}

	tracer, err := otelhelper.NewTracer(ctx, "clixen-api")
	if err != nil {
		return nil, err
	}

	serviceMetrics := metrics.New(prometheus.DefaultRegisterer)

	orchestrator := deployment.NewOrchestrator(deployment.Config{
		Persistence: store,
		Chain:       chain,
		Engine:      engine.NewClient(engineURL, engineAPIKey, logger),
		Publisher:   eventBus,
		Queue:       queue,
		Metrics:     serviceMetrics,
		Tracer:      tracer,
		Logger:      logger,
	})

	return &API{
		logger:       logger,
		persistence:  store,
		orchestrator: orchestrator,
		monitor:      deployment.NewMonitor(orchestrator, logger),
		chain:        chain,
		quality:      quality.NewValidator(registry, logger),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		a.persistence,
		a.chain,
		a.quality,
		a.orchestrator,
		a.monitor,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Clixen API")
	})

	w := app.Group("/workflows")
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/validate", handlers.ValidateWorkflow)
	w.Post("/assess", handlers.AssessWorkflow)
	w.Post("/autofix", handlers.AutoFixWorkflow)

	d := app.Group("/deployments")
	d.Post("/", handlers.Deploy)
	d.Get("/:id", handlers.GetDeployment)
	d.Post("/:id/rollback", handlers.Rollback)

	app.Get("/health", handlers.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	if err := a.monitor.Start(ctx); err != nil {
		return err
	}

	defer a.monitor.Stop()

	return a.App().Listen(":" + strconv.Itoa(port))
}
