package donor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"bloodlink/internal/donor/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// Postgres persists donor profiles in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE donors (
//	    id               UUID PRIMARY KEY,
//	    owner_id         UUID NOT NULL UNIQUE,
//	    name             TEXT NOT NULL,
//	    email            TEXT NOT NULL,
//	    blood_type       TEXT NOT NULL,
//	    available        BOOLEAN NOT NULL DEFAULT TRUE,
//	    city             TEXT NOT NULL DEFAULT '',
//	    region           TEXT NOT NULL DEFAULT '',
//	    country          TEXT NOT NULL DEFAULT '',
//	    location_display TEXT NOT NULL,
//	    latitude         DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    longitude        DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    created_at       TIMESTAMPTZ NOT NULL,
//	    updated_at       TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX donors_blood_type_idx ON donors (blood_type);
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed donor store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const donorColumns = `id, owner_id, name, email, blood_type, available, city, region, country, location_display, latitude, longitude, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, d *models.Donor) error {
	query := `
		INSERT INTO donors (` + donorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID.String(), d.OwnerID.String(), d.Name, d.Email, string(d.BloodType),
		d.Available, d.City, d.Region, d.Country, d.LocationDisplay,
		d.Latitude, d.Longitude, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create donor: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, donorID id.DonorID) (*models.Donor, error) {
	query := `SELECT ` + donorColumns + ` FROM donors WHERE id = $1`
	return scanDonor(s.db.QueryRowContext(ctx, query, donorID.String()))
}

func (s *Postgres) FindByOwner(ctx context.Context, ownerID id.UserID) (*models.Donor, error) {
	query := `SELECT ` + donorColumns + ` FROM donors WHERE owner_id = $1`
	return scanDonor(s.db.QueryRowContext(ctx, query, ownerID.String()))
}

func (s *Postgres) Update(ctx context.Context, d *models.Donor) error {
	query := `
		UPDATE donors
		SET name = $2, email = $3, blood_type = $4, available = $5,
		    city = $6, region = $7, country = $8, location_display = $9,
		    latitude = $10, longitude = $11, updated_at = $12
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		d.ID.String(), d.Name, d.Email, string(d.BloodType), d.Available,
		d.City, d.Region, d.Country, d.LocationDisplay,
		d.Latitude, d.Longitude, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update donor: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) DeleteByOwner(ctx context.Context, ownerID id.UserID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM donors WHERE owner_id = $1`, ownerID.String())
	if err != nil {
		return fmt.Errorf("delete donor: %w", err)
	}
	return requireRow(res)
}

func (s *Postgres) ListByBloodTypes(ctx context.Context, types []id.BloodType, excludeOwner id.UserID) ([]*models.Donor, error) {
	if len(types) == 0 {
		return nil, nil
	}
	raw := make([]string, len(types))
	for i, bt := range types {
		raw[i] = string(bt)
	}
	query := `
		SELECT ` + donorColumns + `
		FROM donors
		WHERE blood_type = ANY($1) AND owner_id <> $2 AND available
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(raw), excludeOwner.String())
	if err != nil {
		return nil, fmt.Errorf("list donors by blood type: %w", err)
	}
	defer rows.Close()
	return scanDonors(rows)
}

func (s *Postgres) Search(ctx context.Context, filter Filter) ([]*models.Donor, error) {
	var (
		conds []string
		args  []any
	)
	if filter.BloodType != "" {
		args = append(args, string(filter.BloodType))
		conds = append(conds, fmt.Sprintf("blood_type = $%d", len(args)))
	}
	if loc := strings.TrimSpace(filter.Location); loc != "" {
		args = append(args, "%"+loc+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(location_display ILIKE $%d OR city ILIKE $%d OR region ILIKE $%d OR country ILIKE $%d)",
			n, n, n, n))
	}

	query := `SELECT ` + donorColumns + ` FROM donors`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search donors: %w", err)
	}
	defer rows.Close()
	return scanDonors(rows)
}

func (s *Postgres) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM donors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count donors: %w", err)
	}
	return n, nil
}

func (s *Postgres) CountByRegion(ctx context.Context) ([]RegionCount, error) {
	query := `
		SELECT COALESCE(NULLIF(region, ''), 'Unknown') AS region, blood_type, COUNT(*)
		FROM donors
		GROUP BY 1, 2
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count donors by region: %w", err)
	}
	defer rows.Close()

	byRegion := make(map[string]*RegionCount)
	for rows.Next() {
		var (
			region string
			blood  string
			n      int
		)
		if err := rows.Scan(&region, &blood, &n); err != nil {
			return nil, fmt.Errorf("scan region count: %w", err)
		}
		rc, ok := byRegion[region]
		if !ok {
			rc = &RegionCount{Region: region, ByBloodType: make(map[id.BloodType]int)}
			byRegion[region] = rc
		}
		rc.Count += n
		rc.ByBloodType[id.BloodType(blood)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]RegionCount, 0, len(byRegion))
	for _, rc := range byRegion {
		out = append(out, *rc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Region < out[j].Region
	})
	return out, nil
}

func (s *Postgres) CountByBloodType(ctx context.Context) ([]BloodTypeCount, error) {
	query := `SELECT blood_type, COUNT(*) FROM donors GROUP BY blood_type`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count donors by blood type: %w", err)
	}
	defer rows.Close()

	counts := make(map[id.BloodType]int)
	for rows.Next() {
		var (
			raw string
			n   int
		)
		if err := rows.Scan(&raw, &n); err != nil {
			return nil, fmt.Errorf("scan blood type count: %w", err)
		}
		counts[id.BloodType(raw)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []BloodTypeCount
	for _, bt := range id.BloodTypes() {
		if counts[bt] > 0 {
			out = append(out, BloodTypeCount{BloodType: bt, Count: counts[bt]})
		}
	}
	return out, nil
}

func scanDonor(row *sql.Row) (*models.Donor, error) {
	var (
		d          models.Donor
		rawID      string
		rawOwnerID string
		rawBlood   string
	)
	err := row.Scan(&rawID, &rawOwnerID, &d.Name, &d.Email, &rawBlood, &d.Available,
		&d.City, &d.Region, &d.Country, &d.LocationDisplay,
		&d.Latitude, &d.Longitude, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan donor: %w", err)
	}
	return hydrateDonor(&d, rawID, rawOwnerID, rawBlood)
}

func scanDonors(rows *sql.Rows) ([]*models.Donor, error) {
	var out []*models.Donor
	for rows.Next() {
		var (
			d          models.Donor
			rawID      string
			rawOwnerID string
			rawBlood   string
		)
		err := rows.Scan(&rawID, &rawOwnerID, &d.Name, &d.Email, &rawBlood, &d.Available,
			&d.City, &d.Region, &d.Country, &d.LocationDisplay,
			&d.Latitude, &d.Longitude, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan donor: %w", err)
		}
		donor, err := hydrateDonor(&d, rawID, rawOwnerID, rawBlood)
		if err != nil {
			return nil, err
		}
		out = append(out, donor)
	}
	return out, rows.Err()
}

func hydrateDonor(d *models.Donor, rawID, rawOwnerID, rawBlood string) (*models.Donor, error) {
	donorID, err := id.ParseDonorID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan donor: %w", err)
	}
	ownerID, err := id.ParseUserID(rawOwnerID)
	if err != nil {
		return nil, fmt.Errorf("scan donor: %w", err)
	}
	d.ID = donorID
	d.OwnerID = ownerID
	d.BloodType = id.BloodType(rawBlood)
	return d, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
