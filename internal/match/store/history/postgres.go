package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"bloodlink/internal/match/models"
	id "bloodlink/pkg/domain"
)

// Postgres persists match history in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE blood_match_history (
//	    id                   UUID PRIMARY KEY,
//	    donor_id             UUID,
//	    recipient_id         UUID,
//	    request_id           UUID,
//	    donor_blood_type     TEXT NOT NULL,
//	    recipient_blood_type TEXT NOT NULL,
//	    compatible           BOOLEAN NOT NULL,
//	    checked_at           TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX blood_match_history_donor_idx ON blood_match_history (donor_id);
//	CREATE INDEX blood_match_history_recipient_idx ON blood_match_history (recipient_id);
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed history store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const historyColumns = `id, donor_id, recipient_id, request_id, donor_blood_type, recipient_blood_type, compatible, checked_at`

func (s *Postgres) Append(ctx context.Context, h *models.BloodMatchHistory) error {
	query := `
		INSERT INTO blood_match_history (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		h.ID.String(), nullID(h.DonorID.IsNil(), h.DonorID.String()),
		nullID(h.RecipientID.IsNil(), h.RecipientID.String()),
		nullID(h.RequestID.IsNil(), h.RequestID.String()),
		string(h.DonorBloodType), string(h.RecipientBloodType),
		h.Compatible, h.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("append match history: %w", err)
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, filter Filter) ([]*models.BloodMatchHistory, error) {
	var (
		conds []string
		args  []any
	)
	if !filter.DonorID.IsNil() {
		args = append(args, filter.DonorID.String())
		conds = append(conds, fmt.Sprintf("donor_id = $%d", len(args)))
	}
	if !filter.RecipientID.IsNil() {
		args = append(args, filter.RecipientID.String())
		conds = append(conds, fmt.Sprintf("recipient_id = $%d", len(args)))
	}

	query := `SELECT ` + historyColumns + ` FROM blood_match_history`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY checked_at, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list match history: %w", err)
	}
	defer rows.Close()

	var out []*models.BloodMatchHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ClearRequestLinks blanks the request reference on entries pointing at a
// deleted request.
func (s *Postgres) ClearRequestLinks(ctx context.Context, requestID id.RequestID) error {
	query := `UPDATE blood_match_history SET request_id = NULL WHERE request_id = $1`
	if _, err := s.db.ExecContext(ctx, query, requestID.String()); err != nil {
		return fmt.Errorf("clear request links: %w", err)
	}
	return nil
}

func scanHistory(rows *sql.Rows) (*models.BloodMatchHistory, error) {
	var (
		h            models.BloodMatchHistory
		rawID        string
		rawDonor     sql.NullString
		rawRecipient sql.NullString
		rawRequest   sql.NullString
		rawDonorBT   string
		rawRecipBT   string
	)
	err := rows.Scan(&rawID, &rawDonor, &rawRecipient, &rawRequest,
		&rawDonorBT, &rawRecipBT, &h.Compatible, &h.CheckedAt)
	if err != nil {
		return nil, fmt.Errorf("scan match history: %w", err)
	}

	historyID, err := id.ParseHistoryID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan match history: %w", err)
	}
	h.ID = historyID
	h.DonorBloodType = id.BloodType(rawDonorBT)
	h.RecipientBloodType = id.BloodType(rawRecipBT)

	if rawDonor.Valid {
		donorID, err := id.ParseDonorID(rawDonor.String)
		if err != nil {
			return nil, fmt.Errorf("scan match history: %w", err)
		}
		h.DonorID = donorID
	}
	if rawRecipient.Valid {
		recipientID, err := id.ParseUserID(rawRecipient.String)
		if err != nil {
			return nil, fmt.Errorf("scan match history: %w", err)
		}
		h.RecipientID = recipientID
	}
	if rawRequest.Valid {
		requestID, err := id.ParseRequestID(rawRequest.String)
		if err != nil {
			return nil, fmt.Errorf("scan match history: %w", err)
		}
		h.RequestID = requestID
	}
	return &h, nil
}

func nullID(isNil bool, value string) any {
	if isNil {
		return nil
	}
	return value
}
