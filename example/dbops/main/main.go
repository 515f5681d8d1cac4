package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	flowengine "github.com/queryflow/flowengine"
	"github.com/queryflow/flowengine/engine"
	"github.com/queryflow/flowengine/example/dbops"
	"github.com/queryflow/flowengine/store"
)

// Shared state used by the HTTP handlers
var (
	wfEngine *engine.Engine
	workflow *flowengine.WorkflowDefinition
)

// StartRequest is the body accepted by the execute endpoint
type StartRequest struct {
	UserID    string            `json:"userId"`
	Variables map[string]string `json:"variables,omitempty"`
}

func initializeApp() {
	var err error

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	registry, err := dbops.NewRegistry()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register step handlers")
	}

	workflow, err = dbops.NewMaintenanceWorkflow()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build maintenance workflow")
	}

	wfEngine = engine.NewEngine(
		store.NewMemoryStore(),
		registry,
		engine.WithLogger(log.Logger),
	)

	wfEngine.Bus().On(flowengine.EventStepCompleted, func(event flowengine.Event) {
		log.Info().
			Str("execution_id", event.ExecutionID).
			Str("step_id", event.StepID).
			Str("status", string(event.Result.Status)).
			Msg("Step completed")
	})

	log.Info().Msg("Workflow engine initialized successfully")
}

func registerRoutes(app *fiber.App) {
	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "queryflow-dbops",
		})
	})

	v1 := app.Group("/api/v1")
	executions := v1.Group("/executions")

	executions.Post("/maintenance", handleStartExecution)
	executions.Get("/", handleListExecutions)
	executions.Get("/:executionId", handleGetExecution)
	executions.Post("/:executionId/cancel", handleCancelExecution)
}

// handleStartExecution launches a maintenance run and returns immediately.
// Progress is available through the status endpoint.
func handleStartExecution(c fiber.Ctx) error {
	var req StartRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	caller := &flowengine.Caller{
		UserID: req.UserID,
		Source: "http",
	}

	opts := []flowengine.RunOption{}
	for key, value := range req.Variables {
		opts = append(opts, flowengine.WithVariable(key, value))
	}

	done := make(chan *flowengine.ExecutionResult, 1)
	go func() {
		done <- wfEngine.ExecuteWorkflow(context.Background(), workflow, caller, opts...)
	}()

	// The engine persists the execution record before running the first
	// step, so a short wait is enough to hand back a pollable ID. Fast
	// workflows may already be finished.
	select {
	case result := <-done:
		return c.JSON(result)
	case <-time.After(100 * time.Millisecond):
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"workflowId": workflow.ID,
			"message":    "Execution started",
			"active":     wfEngine.ActiveExecutions(),
		})
	}
}

func handleGetExecution(c fiber.Ctx) error {
	executionID := c.Params("executionId")

	record, err := wfEngine.GetExecution(c.Context(), executionID)
	if err != nil {
		if flowengine.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Execution not found",
			})
		}
		log.Error().Err(err).Str("execution_id", executionID).Msg("Failed to get execution")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get execution",
		})
	}

	return c.JSON(record)
}

func handleListExecutions(c fiber.Ctx) error {
	records, err := wfEngine.ListExecutions(c.Context(), flowengine.ExecutionFilter{
		WorkflowID: workflow.ID,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list executions")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list executions",
		})
	}

	return c.JSON(fiber.Map{
		"executions": records,
		"count":      len(records),
	})
}

func handleCancelExecution(c fiber.Ctx) error {
	executionID := c.Params("executionId")

	if err := wfEngine.CancelExecution(c.Context(), executionID); err != nil {
		if flowengine.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Execution not found or already finished",
			})
		}
		log.Error().Err(err).Str("execution_id", executionID).Msg("Failed to cancel execution")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to cancel execution",
		})
	}

	return c.JSON(fiber.Map{
		"executionId": executionID,
		"status":      "CANCELLED",
		"message":     "Cancellation requested",
	})
}

func main() {
	initializeApp()

	app := fiber.New()
	registerRoutes(app)

	go func() {
		addr := ":3000"
		log.Info().Str("address", addr).Msg("Starting HTTP server")
		if err := app.Listen(addr); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
