// Package postgresql provides PostgreSQL persistence for workflows, events, syncs and webhooks.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magicians360/pinkflow/pkg/persistence"
	"github.com/magicians360/pinkflow/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:     database,
		logger: logger,
	}, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return &WorkflowRepository{db: p.db, logger: p.logger}
}

func (p *Persistence) EventRepository() persistence.EventRepository {
	return &EventRepository{db: p.db, logger: p.logger}
}

func (p *Persistence) SyncRepository() persistence.SyncRepository {
	return &SyncRepository{db: p.db, logger: p.logger}
}

func (p *Persistence) WebhookRepository() persistence.WebhookRepository {
	return &WebhookRepository{db: p.db, logger: p.logger}
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func getDocument[T any](ctx context.Context, db *sql.DB, kind, query, id string) (*T, error) {
	var document []byte

	err := db.QueryRowContext(ctx, query, id).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRecordError("GetByID", kind, id, persistence.NotFoundFor(kind))
		}

		return nil, fmt.Errorf("failed to query %s %s: %w", kind, id, err)
	}

	var record T

	err = json.Unmarshal(document, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return &record, nil
}

func listDocuments[T any](ctx context.Context, db *sql.DB, logger *slog.Logger, kind, query string, args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", kind, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*T, 0)

	for rows.Next() {
		var document []byte

		err := rows.Scan(&document)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}

		var record T

		err = json.Unmarshal(document, &record)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", kind, err)
		}

		records = append(records, &record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating %s records: %w", kind, err)
	}

	return records, nil
}
