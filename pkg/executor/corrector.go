package executor

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxCorrectionAttempts bounds LLM-assisted regeneration after a database
// error. This is execution-error correction only; the row-count contract
// retry lives in the Presenter path.
const maxCorrectionAttempts = 2

// Regenerator produces a corrected statement from a failed one. The
// returned SQL must already have passed the full safety invariants.
type Regenerator interface {
	RepairSQL(ctx context.Context, badSQL, dbError string, tenantID uuid.UUID) (string, error)
}

// Corrector wraps a QueryExecutor with bounded self-correcting retries:
// a database error (unknown column, syntax slip) feeds the error text back
// into generation and the corrected statement is re-executed.
type Corrector struct {
	exec   QueryExecutor
	regen  Regenerator
	logger *zap.Logger
}

// NewCorrector creates a self-correcting executor. regen may be nil, which
// disables correction.
func NewCorrector(exec QueryExecutor, regen Regenerator, logger *zap.Logger) *Corrector {
	return &Corrector{
		exec:   exec,
		regen:  regen,
		logger: logger.Named("corrector"),
	}
}

// Execute runs the statement, regenerating on database errors up to the
// attempt cap. It returns the result and the SQL that finally executed.
func (c *Corrector) Execute(ctx context.Context, sqlQuery string, tenantID uuid.UUID) (*ExecResult, string, error) {
	current := sqlQuery

	result, err := c.exec.Execute(ctx, current, tenantID)
	if err == nil {
		return result, current, nil
	}

	if c.regen == nil {
		return nil, current, err
	}

	for attempt := 1; attempt <= maxCorrectionAttempts; attempt++ {
		c.logger.Info("execution failed, regenerating",
			zap.Int("attempt", attempt),
			zap.Error(err))

		repaired, regenErr := c.regen.RepairSQL(ctx, current, err.Error(), tenantID)
		if regenErr != nil {
			c.logger.Warn("regeneration failed", zap.Error(regenErr))
			return nil, current, err
		}

		current = repaired
		result, err = c.exec.Execute(ctx, current, tenantID)
		if err == nil {
			return result, current, nil
		}
	}

	return nil, current, err
}
