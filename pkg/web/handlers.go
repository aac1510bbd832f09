package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/intelogroup/clixen/pkg/deployment"
	"github.com/intelogroup/clixen/pkg/models"
	"github.com/intelogroup/clixen/pkg/persistence"
	"github.com/intelogroup/clixen/pkg/quality"
	"github.com/intelogroup/clixen/pkg/validation"
)

// userIDHeader carries the verified caller identity. Authentication happens
// upstream; the API trusts this id and only performs ownership checks.
const userIDHeader = "X-User-ID"

type APIHandlers struct {
	store        persistence.Persistence
	chain        *validation.Chain
	quality      *quality.Validator
	orchestrator *deployment.Orchestrator
	monitor      *deployment.Monitor
	validator    *validator.Validate
}

func NewAPIHandlers(
	store persistence.Persistence,
	chain *validation.Chain,
	qualityValidator *quality.Validator,
	orchestrator *deployment.Orchestrator,
	monitor *deployment.Monitor,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		store:        store,
		chain:        chain,
		quality:      qualityValidator,
		orchestrator: orchestrator,
		monitor:      monitor,
		validator:    validate,
	}
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       req.Name,
		Status:     models.WorkflowStatusDraft,
		Definition: req.Definition,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.store.WorkflowRepository().Save(c.Context(), workflow); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.store.WorkflowRepository().GetByIDForUser(c.Context(), id, userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

// ValidateWorkflow runs the structural, business and compatibility chain and
// returns the aggregated result. Invalid definitions are a 200 with
// valid=false; only malformed requests are client errors.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	var req ValidateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	return c.JSON(h.chain.Validate(c.Context(), req.Definition))
}

func (h *APIHandlers) AssessWorkflow(c fiber.Ctx) error {
	var req AssessRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	opts, err := stageOptions(req.Stages)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return c.JSON(h.quality.Assess(c.Context(), req.Definition, opts))
}

func (h *APIHandlers) AutoFixWorkflow(c fiber.Ctx) error {
	var req AutoFixRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	fixed, fixes, err := quality.AutoFix(req.Definition)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(AutoFixResponse{
		Definition: fixed,
		Fixes:      fixes,
	})
}

// Deploy starts a deployment. A failed validation comes back as 422 with the
// full record; system failures map through handleServiceError.
func (h *APIHandlers) Deploy(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	var req DeployRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.orchestrator.Deploy(c.Context(), userID, req.WorkflowID, deployment.Options{
		Activate:          req.Activate,
		TestMode:          req.TestMode,
		RollbackOnFailure: req.RollbackOnFailure,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	if result.Status == models.DeploymentStatusFailed {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *APIHandlers) Rollback(c fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Deployment ID is required")
	}

	var req RollbackRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result, err := h.orchestrator.Rollback(c.Context(), userID, id, req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetDeployment(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Deployment ID is required")
	}

	result, err := h.orchestrator.GetStatus(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// HealthCheck serves the monitor's cached snapshot when available, falling
// back to a live probe before the first schedule tick.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	var result *deployment.HealthCheckResult
	if h.monitor != nil {
		result = h.monitor.Snapshot()
	}

	if result == nil {
		result = h.orchestrator.Health(c.Context())
	}

	status := "healthy"
	httpStatus := http.StatusOK

	if !result.Healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"engine": result.EngineHealthy,
			"store":  result.StoreHealthy,
		},
		"active_workflows":   result.ActiveWorkflows,
		"recent_deployments": result.RecentDeployments,
		"timestamp":          result.CheckedAt,
	})
}

// stageOptions maps requested stage names onto quality options. Empty means
// a full seven-stage pass.
func stageOptions(stages []string) (quality.Options, error) {
	if len(stages) == 0 {
		return quality.DefaultOptions(), nil
	}

	opts := quality.Options{}

	for _, stage := range stages {
		switch stage {
		case quality.StageStructure:
			opts.Structure = true
		case quality.StageNodes:
			opts.Nodes = true
		case quality.StageConnections:
			opts.Connections = true
		case quality.StageLogic:
			opts.Logic = true
		case quality.StagePerformance:
			opts.Performance = true
		case quality.StageSecurity:
			opts.Security = true
		case quality.StageBestPractices:
			opts.BestPractices = true
		default:
			return quality.Options{}, fmt.Errorf("unknown quality stage: %s", stage)
		}
	}

	return opts, nil
}
