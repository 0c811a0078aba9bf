package executioncontext

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ExecutionContext carries the per-run state handed to the pipeline and the
// projection commands instead of process wide globals.
//
// The ExecutionContext contains:
//   - Logger: the console and file logger built from the configuration
//   - RunID: a random identifier attached to spans and the run summary
type ExecutionContext struct {
	Ctx       context.Context
	RunID     string
	Logger    *slog.Logger
	StartedAt time.Time
}

func NewExecutionContext(ctx context.Context, logger *slog.Logger) *ExecutionContext {
	return &ExecutionContext{
		Ctx:       ctx,
		RunID:     uuid.NewString(),
		Logger:    logger,
		StartedAt: time.Now(),
	}
}

func (e *ExecutionContext) WithContext(ctx context.Context) *ExecutionContext {
	return &ExecutionContext{
		Ctx:       ctx,
		RunID:     e.RunID,
		Logger:    e.Logger,
		StartedAt: e.StartedAt,
	}
}
