package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"bloodlink/internal/request/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// Postgres persists donation requests in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE donation_requests (
//	    id                UUID PRIMARY KEY,
//	    requester_id      UUID NOT NULL,
//	    recipient_id      UUID NOT NULL,
//	    blood_type_needed TEXT NOT NULL,
//	    location          TEXT NOT NULL DEFAULT '',
//	    city              TEXT NOT NULL DEFAULT '',
//	    region            TEXT NOT NULL DEFAULT '',
//	    country           TEXT NOT NULL DEFAULT '',
//	    status            TEXT NOT NULL,
//	    accepted          BOOLEAN NOT NULL DEFAULT FALSE,
//	    candidates        UUID[] NOT NULL DEFAULT '{}',
//	    accepted_donors   UUID[] NOT NULL DEFAULT '{}',
//	    created_at        TIMESTAMPTZ NOT NULL,
//	    updated_at        TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX donation_requests_recipient_idx ON donation_requests (recipient_id);
//	CREATE INDEX donation_requests_requester_idx ON donation_requests (requester_id);
//
// The partial unique index resolves duplicate-create races: two concurrent
// creates for the same pending (recipient, requester) pair commit at most
// one row.
//
//	CREATE UNIQUE INDEX donation_requests_pending_pair_idx
//	    ON donation_requests (recipient_id, requester_id)
//	    WHERE status = 'Pending';
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed request store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const requestColumns = `id, requester_id, recipient_id, blood_type_needed, location, city, region, country, status, accepted, candidates, accepted_donors, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, r *models.DonationRequest) error {
	query := `
		INSERT INTO donation_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID.String(), r.RequesterID.String(), r.RecipientID.String(), string(r.BloodTypeNeeded),
		r.Location, r.City, r.Region, r.Country,
		string(r.Status), r.Accepted,
		pq.Array(donorIDStrings(r.Candidates)), pq.Array(donorIDStrings(r.AcceptedDonors)),
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, requestID id.RequestID) (*models.DonationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM donation_requests WHERE id = $1`
	return scanRequestRow(s.db.QueryRowContext(ctx, query, requestID.String()))
}

// Mutate runs fn against the row under SELECT ... FOR UPDATE, so concurrent
// transitions on the same request serialize per row.
func (s *Postgres) Mutate(ctx context.Context, requestID id.RequestID, fn func(r *models.DonationRequest) error) (*models.DonationRequest, error) {
	var out *models.DonationRequest
	err := s.withLockedRow(ctx, requestID, func(tx *sql.Tx, r *models.DonationRequest) error {
		if err := fn(r); err != nil {
			return err
		}
		query := `
			UPDATE donation_requests
			SET blood_type_needed = $2, location = $3, city = $4, region = $5, country = $6,
			    status = $7, accepted = $8, candidates = $9, accepted_donors = $10, updated_at = $11
			WHERE id = $1
		`
		_, err := tx.ExecContext(ctx, query,
			r.ID.String(), string(r.BloodTypeNeeded),
			r.Location, r.City, r.Region, r.Country,
			string(r.Status), r.Accepted,
			pq.Array(donorIDStrings(r.Candidates)), pq.Array(donorIDStrings(r.AcceptedDonors)),
			r.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update request: %w", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteIf deletes the row under SELECT ... FOR UPDATE once fn approves the
// transition, so a concurrent accept cannot land in a request being removed.
func (s *Postgres) DeleteIf(ctx context.Context, requestID id.RequestID, fn func(r *models.DonationRequest) error) error {
	return s.withLockedRow(ctx, requestID, func(tx *sql.Tx, r *models.DonationRequest) error {
		if err := fn(r); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM donation_requests WHERE id = $1`, r.ID.String()); err != nil {
			return fmt.Errorf("delete request: %w", err)
		}
		return nil
	})
}

func (s *Postgres) withLockedRow(ctx context.Context, requestID id.RequestID, fn func(tx *sql.Tx, r *models.DonationRequest) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + requestColumns + ` FROM donation_requests WHERE id = $1 FOR UPDATE`
	r, err := scanRequestRow(tx.QueryRowContext(ctx, query, requestID.String()))
	if err != nil {
		return err
	}
	if err := fn(tx, r); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Postgres) HasPendingWithCandidate(ctx context.Context, recipientID id.UserID, donorID id.DonorID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM donation_requests
			WHERE recipient_id = $1 AND status = $2 AND $3 = ANY(candidates)
		)
	`
	var exists bool
	err := s.db.QueryRowContext(ctx, query,
		recipientID.String(), string(models.StatusPending), donorID.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe pending request: %w", err)
	}
	return exists, nil
}

func (s *Postgres) ListIncoming(ctx context.Context, recipientID id.UserID) ([]*models.DonationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM donation_requests
		WHERE recipient_id = $1 AND status = $2
		ORDER BY created_at, id
	`
	return s.query(ctx, query, recipientID.String(), string(models.StatusPending))
}

func (s *Postgres) ListOutgoing(ctx context.Context, requesterID id.UserID) ([]*models.DonationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM donation_requests
		WHERE requester_id = $1 AND status = $2
		ORDER BY created_at, id
	`
	return s.query(ctx, query, requesterID.String(), string(models.StatusPending))
}

func (s *Postgres) ListByRecipient(ctx context.Context, recipientID id.UserID) ([]*models.DonationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM donation_requests
		WHERE recipient_id = $1
		ORDER BY created_at, id
	`
	return s.query(ctx, query, recipientID.String())
}

func (s *Postgres) ListByParticipant(ctx context.Context, userID id.UserID) ([]*models.DonationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM donation_requests
		WHERE recipient_id = $1 OR requester_id = $1
		ORDER BY created_at, id
	`
	return s.query(ctx, query, userID.String())
}

func (s *Postgres) ListActive(ctx context.Context, filter ActiveFilter) ([]*models.DonationRequest, error) {
	args := []any{string(models.StatusPending), string(models.StatusMatched)}
	conds := []string{"status = ANY(ARRAY[$1, $2])"}
	if filter.BloodType != "" {
		args = append(args, string(filter.BloodType))
		conds = append(conds, fmt.Sprintf("blood_type_needed = $%d", len(args)))
	}
	if country := strings.TrimSpace(filter.Country); country != "" {
		args = append(args, country)
		conds = append(conds, fmt.Sprintf("LOWER(country) = LOWER($%d)", len(args)))
	}

	query := `SELECT ` + requestColumns + ` FROM donation_requests WHERE ` +
		strings.Join(conds, " AND ") + " ORDER BY created_at, id"
	return s.query(ctx, query, args...)
}

func (s *Postgres) ListHistory(ctx context.Context, filter HistoryFilter) ([]*models.DonationRequest, error) {
	var (
		conds []string
		args  []any
	)
	if filter.BloodType != "" {
		args = append(args, string(filter.BloodType))
		conds = append(conds, fmt.Sprintf("blood_type_needed = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if city := strings.TrimSpace(filter.City); city != "" {
		args = append(args, city)
		conds = append(conds, fmt.Sprintf("LOWER(city) = LOWER($%d)", len(args)))
	}
	if country := strings.TrimSpace(filter.Country); country != "" {
		args = append(args, country)
		conds = append(conds, fmt.Sprintf("LOWER(country) = LOWER($%d)", len(args)))
	}

	query := `SELECT ` + requestColumns + ` FROM donation_requests`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return s.query(ctx, query, args...)
}

func (s *Postgres) query(ctx context.Context, query string, args ...any) ([]*models.DonationRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []*models.DonationRequest
	for rows.Next() {
		r, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRequestRow(row *sql.Row) (*models.DonationRequest, error) {
	r, err := scanRequest(row.Scan)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return r, err
}

func scanRequest(scan func(dest ...any) error) (*models.DonationRequest, error) {
	var (
		r             models.DonationRequest
		rawID         string
		rawRequester  string
		rawRecipient  string
		rawBlood      string
		rawStatus     string
		rawCandidates []string
		rawAccepted   []string
	)
	err := scan(&rawID, &rawRequester, &rawRecipient, &rawBlood,
		&r.Location, &r.City, &r.Region, &r.Country,
		&rawStatus, &r.Accepted,
		pq.Array(&rawCandidates), pq.Array(&rawAccepted),
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan request: %w", err)
	}

	requestID, err := id.ParseRequestID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	requesterID, err := id.ParseUserID(rawRequester)
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	recipientID, err := id.ParseUserID(rawRecipient)
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	candidates, err := parseDonorIDs(rawCandidates)
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	accepted, err := parseDonorIDs(rawAccepted)
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}

	r.ID = requestID
	r.RequesterID = requesterID
	r.RecipientID = recipientID
	r.BloodTypeNeeded = id.BloodType(rawBlood)
	r.Status = models.Status(rawStatus)
	r.Candidates = candidates
	r.AcceptedDonors = accepted
	return &r, nil
}

func donorIDStrings(ids []id.DonorID) []string {
	out := make([]string, len(ids))
	for i, donorID := range ids {
		out[i] = donorID.String()
	}
	return out
}

func parseDonorIDs(raw []string) ([]id.DonorID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]id.DonorID, len(raw))
	for i, v := range raw {
		donorID, err := id.ParseDonorID(v)
		if err != nil {
			return nil, err
		}
		out[i] = donorID
	}
	return out, nil
}
