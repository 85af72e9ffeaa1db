// Package executor runs validated SQL against the tenant datasource and
// retries failed statements through LLM-assisted correction.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/models"
)

// ExecResult holds the rows from one executed statement.
type ExecResult struct {
	Rows     []models.Row
	RowCount int
	Elapsed  time.Duration
}

// QueryExecutor executes a single validated statement. The statement must
// already carry the tenant filter; execution does not re-check it.
type QueryExecutor interface {
	Execute(ctx context.Context, sqlQuery string, tenantID uuid.UUID) (*ExecResult, error)
}

// PostgresExecutor runs statements on a pgx pool.
type PostgresExecutor struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresExecutor creates an executor over the given pool.
func NewPostgresExecutor(pool *pgxpool.Pool, logger *zap.Logger) *PostgresExecutor {
	return &PostgresExecutor{
		pool:   pool,
		logger: logger.Named("executor"),
	}
}

// Execute implements QueryExecutor. Column order from the statement is
// preserved in the returned rows.
func (e *PostgresExecutor) Execute(ctx context.Context, sqlQuery string, tenantID uuid.UUID) (*ExecResult, error) {
	start := time.Now()

	rows, err := e.pool.Query(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	var resultRows []models.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}

		row := make(models.Row, 0, len(columns))
		for i, col := range columns {
			row = append(row, models.Field{Name: col, Value: models.FromAny(values[i])})
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	elapsed := time.Since(start)
	e.logger.Debug("query executed",
		zap.String("tenant", tenantID.String()),
		zap.Int("rows", len(resultRows)),
		zap.Duration("elapsed", elapsed))

	return &ExecResult{
		Rows:     resultRows,
		RowCount: len(resultRows),
		Elapsed:  elapsed,
	}, nil
}
