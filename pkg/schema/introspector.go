// Package schema reads live database metadata for tenant datasources and
// caches it with a short TTL.
package schema

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/models"
)

// Introspector provides cached schema snapshots for a tenant.
type Introspector interface {
	// GetSchemaMap returns the tenant's schema snapshot, re-introspecting
	// past the TTL. A stale snapshot is never served silently.
	GetSchemaMap(ctx context.Context, tenantID uuid.UUID) (*models.SchemaMap, error)
	// Invalidate drops the cached snapshot for a tenant.
	Invalidate(tenantID uuid.UUID)
}

// jsonbSampleRows bounds how many rows the JSONB key probe scans.
const jsonbSampleRows = 50

// PostgresIntrospector discovers tables, columns, foreign keys, and sampled
// JSONB key shapes from a live PostgreSQL datasource.
type PostgresIntrospector struct {
	pool   *pgxpool.Pool
	cache  *Cache
	logger *zap.Logger
}

// NewPostgresIntrospector creates an introspector over the given pool.
func NewPostgresIntrospector(pool *pgxpool.Pool, cache *Cache, logger *zap.Logger) *PostgresIntrospector {
	return &PostgresIntrospector{
		pool:   pool,
		cache:  cache,
		logger: logger.Named("schema"),
	}
}

// GetSchemaMap implements Introspector.
func (p *PostgresIntrospector) GetSchemaMap(ctx context.Context, tenantID uuid.UUID) (*models.SchemaMap, error) {
	if snapshot, ok := p.cache.Get(ctx, tenantID); ok {
		return snapshot, nil
	}

	start := time.Now()
	snapshot, err := p.introspect(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect schema: %w", err)
	}

	p.logger.Info("schema introspected",
		zap.String("tenant", tenantID.String()),
		zap.Int("tables", len(snapshot.Tables)),
		zap.Duration("elapsed", time.Since(start)))

	p.cache.Put(ctx, tenantID, snapshot)
	return snapshot, nil
}

// Invalidate implements Introspector.
func (p *PostgresIntrospector) Invalidate(tenantID uuid.UUID) {
	p.cache.Invalidate(tenantID)
}

func (p *PostgresIntrospector) introspect(ctx context.Context) (*models.SchemaMap, error) {
	tables, err := p.discoverTables(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &models.SchemaMap{
		Tables:    make(map[string]*models.TableSchema, len(tables)),
		IndexedAt: time.Now(),
	}

	for _, name := range tables {
		table := &models.TableSchema{
			Name:   name,
			Domain: ClassifyDomain(name),
		}

		if table.Columns, err = p.discoverColumns(ctx, name); err != nil {
			return nil, err
		}
		if table.Relationships, err = p.discoverForeignKeys(ctx, name); err != nil {
			return nil, err
		}

		// Sample JSONB key shapes; failures degrade to no keys.
		for i := range table.Columns {
			col := &table.Columns[i]
			if col.DataType != "jsonb" && col.DataType != "json" {
				continue
			}
			keys, err := p.sampleJSONBKeys(ctx, name, col.Name)
			if err != nil {
				p.logger.Debug("jsonb key sampling failed",
					zap.String("table", name),
					zap.String("column", col.Name),
					zap.Error(err))
				continue
			}
			col.JSONBKeys = keys
		}

		table.Description = describeTable(table)
		snapshot.Tables[name] = table
	}

	return snapshot, nil
}

func (p *PostgresIntrospector) discoverTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY table_name
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (p *PostgresIntrospector) discoverColumns(ctx context.Context, table string) ([]models.Column, error) {
	const query = `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_name = $1
		  AND table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY ordinal_position
	`

	rows, err := p.pool.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s: %w", table, err)
	}
	defer rows.Close()

	var cols []models.Column
	for rows.Next() {
		var c models.Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.Nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (p *PostgresIntrospector) discoverForeignKeys(ctx context.Context, table string) ([]models.ForeignKey, error) {
	const query = `
		SELECT
			kcu.column_name,
			ccu.table_name AS target_table,
			ccu.column_name AS target_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_name = $1
	`

	rows, err := p.pool.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys for %s: %w", table, err)
	}
	defer rows.Close()

	var fks []models.ForeignKey
	for rows.Next() {
		var fk models.ForeignKey
		if err := rows.Scan(&fk.SourceColumn, &fk.TargetTable, &fk.TargetColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// sampleJSONBKeys probes top-level keys of a jsonb column over a bounded
// row sample. JSONB is untyped, so sampled keys are the only shape signal
// available to generation.
func (p *PostgresIntrospector) sampleJSONBKeys(ctx context.Context, table, column string) ([]string, error) {
	quotedTable := pgx.Identifier{table}.Sanitize()
	quotedColumn := pgx.Identifier{column}.Sanitize()

	query := fmt.Sprintf(`
		SELECT DISTINCT jsonb_object_keys(%s)
		FROM (SELECT %s FROM %s WHERE %s IS NOT NULL AND jsonb_typeof(%s) = 'object' LIMIT %d) sample
	`, quotedColumn, quotedColumn, quotedTable, quotedColumn, quotedColumn, jsonbSampleRows)

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// describeTable builds the one-line description attached to a table schema.
func describeTable(t *models.TableSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): %d columns", t.Name, t.Domain, len(t.Columns))
	if len(t.Relationships) > 0 {
		targets := make([]string, 0, len(t.Relationships))
		for _, fk := range t.Relationships {
			targets = append(targets, fk.TargetTable)
		}
		fmt.Fprintf(&b, ", references %s", strings.Join(targets, ", "))
	}
	return b.String()
}
