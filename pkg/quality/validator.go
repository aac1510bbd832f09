// Package quality implements the seven-stage quality assessment pipeline that
// grades a workflow definition and can propose automatic repairs.
package quality

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/intelogroup/clixen/pkg/models"
	"github.com/intelogroup/clixen/pkg/nodetypes"
)

// Stage names, in fixed execution order.
const (
	StageStructure     = "structure"
	StageNodes         = "nodes"
	StageConnections   = "connections"
	StageLogic         = "logic"
	StagePerformance   = "performance"
	StageSecurity      = "security"
	StageBestPractices = "best_practices"
)

// stageOrder fixes the merge order of stage results so output is
// deterministic regardless of goroutine scheduling.
var stageOrder = []string{
	StageStructure,
	StageNodes,
	StageConnections,
	StageLogic,
	StagePerformance,
	StageSecurity,
	StageBestPractices,
}

// requiredStages are the stages whose failure makes the overall result
// invalid. Performance and best-practices findings are advisory only.
var requiredStages = map[string]bool{
	StageStructure:   true,
	StageNodes:       true,
	StageConnections: true,
	StageLogic:       true,
	StageSecurity:    true,
}

// Options selects which stages an assessment runs. The zero value runs
// nothing; use DefaultOptions for a full pass.
type Options struct {
	Structure     bool `json:"structure"`
	Nodes         bool `json:"nodes"`
	Connections   bool `json:"connections"`
	Logic         bool `json:"logic"`
	Performance   bool `json:"performance"`
	Security      bool `json:"security"`
	BestPractices bool `json:"best_practices"`
}

// DefaultOptions enables all seven stages.
func DefaultOptions() Options {
	return Options{
		Structure:     true,
		Nodes:         true,
		Connections:   true,
		Logic:         true,
		Performance:   true,
		Security:      true,
		BestPractices: true,
	}
}

func (o Options) enabled(stage string) bool {
	switch stage {
	case StageStructure:
		return o.Structure
	case StageNodes:
		return o.Nodes
	case StageConnections:
		return o.Connections
	case StageLogic:
		return o.Logic
	case StagePerformance:
		return o.Performance
	case StageSecurity:
		return o.Security
	case StageBestPractices:
		return o.BestPractices
	default:
		return false
	}
}

type stageFunc func(def *models.WorkflowDefinition) []models.ValidationError

type stageOutcome struct {
	stage    string
	issues   []models.ValidationError
	duration time.Duration
}

// Validator runs the quality assessment pipeline.
type Validator struct {
	registry *nodetypes.Registry
	logger   *slog.Logger
}

// NewValidator creates a quality validator backed by the node type registry.
func NewValidator(registry *nodetypes.Registry, logger *slog.Logger) *Validator {
	return &Validator{
		registry: registry,
		logger:   logger.With("module", "quality"),
	}
}

// Assess runs the enabled stages concurrently and merges their findings in
// declared stage order. Stages are mutually independent, so the merge is a
// deterministic join rather than a scheduling-dependent append.
func (v *Validator) Assess(ctx context.Context, def *models.WorkflowDefinition, opts Options) *models.ValidationResult {
	stages := map[string]stageFunc{
		StageStructure:     v.checkStructure,
		StageNodes:         v.checkNodes,
		StageConnections:   v.checkConnections,
		StageLogic:         v.checkLogic,
		StagePerformance:   v.checkPerformance,
		StageSecurity:      v.checkSecurity,
		StageBestPractices: v.checkBestPractices,
	}

	outcomes := make(map[string]stageOutcome, len(stageOrder))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, stage := range stageOrder {
		if !opts.enabled(stage) {
			continue
		}

		wg.Add(1)

		go func(stage string, run stageFunc) {
			defer wg.Done()

			started := time.Now()
			issues := run(def)

			mu.Lock()
			outcomes[stage] = stageOutcome{
				stage:    stage,
				issues:   issues,
				duration: time.Since(started),
			}
			mu.Unlock()
		}(stage, stages[stage])
	}

	wg.Wait()

	result := v.merge(def, outcomes)

	v.logger.DebugContext(ctx, "quality assessment completed",
		"score", result.Score,
		"confidence", result.Confidence,
		"complexity", result.Complexity,
		"valid", result.Valid,
	)

	return result
}

func (v *Validator) merge(def *models.WorkflowDefinition, outcomes map[string]stageOutcome) *models.ValidationResult {
	result := models.NewValidationResult()
	stagesRun := 0

	for _, stage := range stageOrder {
		outcome, ran := outcomes[stage]
		if !ran {
			continue
		}

		stagesRun++
		stageErrors := 0
		stageWarnings := 0
		passed := true

		for _, issue := range outcome.issues {
			result.Add(issue)

			switch issue.Severity {
			case models.SeverityCritical:
				stageErrors++
				passed = false
			case models.SeverityHigh:
				stageErrors++
			case models.SeverityMedium:
				stageWarnings++
			}
		}

		result.Stages = append(result.Stages, models.StageResult{
			Stage:    stage,
			Passed:   passed,
			Duration: outcome.duration,
			Errors:   stageErrors,
			Warnings: stageWarnings,
		})
	}

	result.Valid = true

	for _, stage := range result.Stages {
		if requiredStages[stage.Stage] && !stage.Passed {
			result.Valid = false

			break
		}
	}

	result.Score = score(result)
	result.Confidence = confidence(result, stagesRun)
	result.Complexity = complexity(def)

	return result
}

// score grades a result on a 0-100 scale, subtracting 25 per critical issue,
// 10 per error and 2 per warning.
func score(result *models.ValidationResult) int {
	criticals := 0
	errors := 0

	for _, issue := range result.Errors {
		if issue.Severity == models.SeverityCritical {
			criticals++
		} else {
			errors++
		}
	}

	value := 100 - 25*criticals - 10*errors - 2*len(result.Warnings)
	if value < 0 {
		value = 0
	}

	return value
}

// confidence estimates how trustworthy the assessment is given the issue
// density across the stages that actually ran.
func confidence(result *models.ValidationResult, stagesRun int) int {
	if stagesRun == 0 {
		return 0
	}

	density := (float64(len(result.Errors)) + 0.5*float64(len(result.Warnings))) / float64(10*stagesRun) * 100
	if density > 100 {
		density = 100
	}

	return 100 - int(density)
}

func complexity(def *models.WorkflowDefinition) models.Complexity {
	nodes := len(def.Nodes)
	connections := def.ConnectionCount()

	switch {
	case nodes <= 3 && connections <= 2:
		return models.ComplexitySimple
	case nodes <= 10 && connections <= 8:
		return models.ComplexityMedium
	default:
		return models.ComplexityComplex
	}
}
