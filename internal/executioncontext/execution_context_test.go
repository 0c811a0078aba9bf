package executioncontext

import (
	"context"
	"log/slog"
	"testing"
)

func TestWithContext(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	ec := NewExecutionContext(context.Background(), logger)
	if ec.RunID == "" {
		t.Fatalf("Expected a run id")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	derived := ec.WithContext(ctx)

	if derived.Ctx.Err() == nil {
		t.Fatalf("Expected the new context to be used")
	}
	if ec.Ctx.Err() != nil {
		t.Fatalf("Expected the original context to be unchanged")
	}
	if derived.RunID != ec.RunID || derived.Logger != ec.Logger || !derived.StartedAt.Equal(ec.StartedAt) {
		t.Fatalf("Expected run id, logger and start time to be kept")
	}
}
