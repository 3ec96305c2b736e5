package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

var _ domain.RemoteCheckinStore = (*PostgresCheckinRepository)(nil)

// PostgresCheckinRepository is the durable remote tier. Rows are keyed by
// (user_id, checkin_date) and every write is last-write-wins.
type PostgresCheckinRepository struct {
	db *sqlx.DB
}

func NewPostgresCheckinRepository(db *sqlx.DB) *PostgresCheckinRepository {
	return &PostgresCheckinRepository{db: db}
}

func (r *PostgresCheckinRepository) GetRemoteRecords(ctx context.Context, userID string, rng domain.DateRange) ([]domain.CheckinRecord, error) {
	records := []domain.CheckinRecord{}

	query := `
		SELECT user_id, checkin_date, target_cigarettes, actual_cigarettes, notes,
		       origin, state, version, created_at, updated_at
		FROM checkins
		WHERE user_id = $1
		  AND checkin_date >= $2
		  AND checkin_date <= $3
		ORDER BY checkin_date ASC`

	if err := r.db.SelectContext(ctx, &records, query, userID, rng.From, rng.To); err != nil {
		return nil, fmt.Errorf("failed to query checkins: %w", err)
	}
	return validRemoteRecords(userID, records), nil
}

// validRemoteRecords skips rows that would not survive the local tiers'
// validation. The remote tier is authoritative, so nothing is deleted.
func validRemoteRecords(userID string, records []domain.CheckinRecord) []domain.CheckinRecord {
	valid := make([]domain.CheckinRecord, 0, len(records))
	for _, rec := range records {
		rec.Origin = domain.OriginRemote
		checked, err := newStoredRecord(rec).toDomain()
		if err != nil {
			dropCorrupt("POSTGRES", userID+"/"+rec.Date.String(), err)
			continue
		}
		valid = append(valid, checked)
	}
	return valid
}

func (r *PostgresCheckinRepository) UpsertRecord(ctx context.Context, record domain.CheckinRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	record.Origin = domain.OriginRemote

	query := `
		INSERT INTO checkins (
			user_id, checkin_date, target_cigarettes, actual_cigarettes, notes,
			origin, state, version, created_at, updated_at
		) VALUES (
			:user_id, :checkin_date, :target_cigarettes, :actual_cigarettes, :notes,
			:origin, :state, 1, :created_at, :updated_at
		)
		ON CONFLICT (user_id, checkin_date) DO UPDATE SET
			target_cigarettes = EXCLUDED.target_cigarettes,
			actual_cigarettes = EXCLUDED.actual_cigarettes,
			notes             = EXCLUDED.notes,
			state             = EXCLUDED.state,
			updated_at        = EXCLUDED.updated_at,
			version           = checkins.version + 1`

	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return mapPostgresError(err)
	}
	return nil
}

// mapPostgresError turns constraint violations into domain errors. Both
// drivers are handled: lib/pq in integration tests, pgx in the server.
func mapPostgresError(err error) error {
	var code, constraint string

	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr):
		code, constraint = string(pqErr.Code), pqErr.Constraint
	case errors.As(err, &pgErr):
		code, constraint = pgErr.Code, pgErr.ConstraintName
	}

	switch {
	case code == "23514" && strings.HasSuffix(constraint, "_cigarettes_check"):
		return fmt.Errorf("%w: %s", domain.ErrNegativeCount, constraint)
	case code == "23505":
		return domain.ErrCheckinConflict
	}
	return fmt.Errorf("failed to upsert checkin: %w", err)
}
