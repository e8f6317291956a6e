package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/formats"
)

// insertBatchSize bounds multi-row VALUES statements.
const insertBatchSize = 500

// SnowflakeConfig identifies the warehouse target.
type SnowflakeConfig struct {
	Account   string
	User      string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
}

// SnowflakeSink writes materialized tables into warehouse tables for
// report kinds that target Snowflake instead of object storage.
type SnowflakeSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSnowflakeSink opens a connection pool to Snowflake.
func NewSnowflakeSink(cfg SnowflakeConfig, logger *zap.Logger) (*SnowflakeSink, error) {
	dsn, err := sf.DSN(&sf.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "build snowflake dsn")
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "open snowflake connection")
	}

	return &SnowflakeSink{
		db:     db,
		logger: logger.With(zap.String("component", "snowflake_sink")),
	}, nil
}

// WriteTable bulk-inserts a materialized table. The target table must
// already exist with matching column names.
func (s *SnowflakeSink) WriteTable(ctx context.Context, tableName string, t *formats.Table) error {
	if len(t.Rows) == 0 {
		s.logger.Warn("empty table, nothing to write", zap.String("table", tableName))
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransient, "begin transaction")
	}

	for start := 0; start < len(t.Rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		batch := t.Rows[start:end]

		stmt := buildInsertStatement(tableName, t.Columns, len(batch))
		args := make([]interface{}, 0, len(batch)*len(t.Columns))
		for _, row := range batch {
			for _, cell := range row {
				args = append(args, cell)
			}
		}

		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, errors.ErrorTypeData, "insert batch").
				WithDetail("table", tableName).
				WithDetail("rows", len(batch))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransient, "commit transaction")
	}

	s.logger.Info("table written",
		zap.String("table", tableName),
		zap.Int("rows", len(t.Rows)))
	return nil
}

// Close releases the connection pool.
func (s *SnowflakeSink) Close() error {
	return s.db.Close()
}

func buildInsertStatement(tableName string, columns []string, rowCount int) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
	}

	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	rows := make([]string, rowCount)
	for i := range rows {
		rows[i] = placeholders
	}

	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s`,
		tableName, strings.Join(quoted, ","), strings.Join(rows, ","))
}
