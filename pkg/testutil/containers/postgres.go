//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema is the full database schema. Kept in one place so every
// integration suite starts from the same shape.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            UUID PRIMARY KEY,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    donor_id      UUID,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS donors (
    id               UUID PRIMARY KEY,
    owner_id         UUID NOT NULL UNIQUE,
    name             TEXT NOT NULL,
    email            TEXT NOT NULL,
    blood_type       TEXT NOT NULL,
    available        BOOLEAN NOT NULL DEFAULT TRUE,
    city             TEXT NOT NULL DEFAULT '',
    region           TEXT NOT NULL DEFAULT '',
    country          TEXT NOT NULL DEFAULT '',
    location_display TEXT NOT NULL,
    latitude         DOUBLE PRECISION NOT NULL DEFAULT 0,
    longitude        DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS donors_blood_type_idx ON donors (blood_type);

CREATE TABLE IF NOT EXISTS donation_requests (
    id                UUID PRIMARY KEY,
    requester_id      UUID NOT NULL,
    recipient_id      UUID NOT NULL,
    blood_type_needed TEXT NOT NULL,
    location          TEXT NOT NULL DEFAULT '',
    city              TEXT NOT NULL DEFAULT '',
    region            TEXT NOT NULL DEFAULT '',
    country           TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL,
    accepted          BOOLEAN NOT NULL DEFAULT FALSE,
    candidates        UUID[] NOT NULL DEFAULT '{}',
    accepted_donors   UUID[] NOT NULL DEFAULT '{}',
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS donation_requests_recipient_idx ON donation_requests (recipient_id);
CREATE INDEX IF NOT EXISTS donation_requests_requester_idx ON donation_requests (requester_id);
CREATE UNIQUE INDEX IF NOT EXISTS donation_requests_pending_pair_idx
    ON donation_requests (recipient_id, requester_id)
    WHERE status = 'Pending';

CREATE TABLE IF NOT EXISTS blood_match_history (
    id                   UUID PRIMARY KEY,
    donor_id             UUID,
    recipient_id         UUID,
    request_id           UUID,
    donor_blood_type     TEXT NOT NULL,
    recipient_blood_type TEXT NOT NULL,
    compatible           BOOLEAN NOT NULL,
    checked_at           TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS blood_match_history_donor_idx ON blood_match_history (donor_id);
CREATE INDEX IF NOT EXISTS blood_match_history_recipient_idx ON blood_match_history (recipient_id);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// schema already applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new PostgreSQL container and applies the
// schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("bloodlink"),
		tcpostgres.WithUsername("bloodlink"),
		tcpostgres.WithPassword("bloodlink"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	pc := &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}

	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})

	return pc
}

// Truncate empties all tables. Use between tests to ensure isolation.
func (p *PostgresContainer) Truncate(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `TRUNCATE users, donors, donation_requests, blood_match_history`)
	return err
}
