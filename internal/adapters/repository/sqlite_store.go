package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"

	_ "modernc.org/sqlite" // register sqlite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkins (
    user_id           TEXT NOT NULL,
    checkin_date      TEXT NOT NULL,
    target_cigarettes INTEGER NOT NULL,
    actual_cigarettes INTEGER NOT NULL,
    notes             TEXT NOT NULL DEFAULT '',
    origin            TEXT NOT NULL,
    state             TEXT NOT NULL,
    version           INTEGER NOT NULL DEFAULT 1,
    created_at_ns     INTEGER NOT NULL,
    updated_at_ns     INTEGER NOT NULL,
    PRIMARY KEY (user_id, checkin_date)
);

CREATE TABLE IF NOT EXISTS plans (
    user_id                  TEXT PRIMARY KEY,
    id                       TEXT NOT NULL,
    start_date               TEXT NOT NULL,
    initial_daily_cigarettes INTEGER NOT NULL,
    phases                   TEXT NOT NULL,
    pack_price               REAL NOT NULL DEFAULT 0,
    currency                 TEXT NOT NULL,
    version                  INTEGER NOT NULL DEFAULT 1,
    created_at_ns            INTEGER NOT NULL,
    updated_at_ns            INTEGER NOT NULL
);
`

// SQLiteStore is the offline local tier for quitctl. It also keeps the
// user's plan so the CLI works without any network.
type SQLiteStore struct {
	db *sqlx.DB
}

var (
	_ domain.LocalCheckinStore = (*SQLiteStore)(nil)
	_ domain.PlanRepository    = (*SQLiteStore)(nil)
)

// OpenSQLite opens or creates the database at path. ":memory:" is accepted for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteCheckinRow struct {
	UserID           string `db:"user_id"`
	Date             string `db:"checkin_date"`
	TargetCigarettes int    `db:"target_cigarettes"`
	ActualCigarettes int    `db:"actual_cigarettes"`
	Notes            string `db:"notes"`
	Origin           string `db:"origin"`
	State            string `db:"state"`
	Version          int    `db:"version"`
	CreatedAtNs      int64  `db:"created_at_ns"`
	UpdatedAtNs      int64  `db:"updated_at_ns"`
}

func (row sqliteCheckinRow) toDomain() (domain.CheckinRecord, error) {
	return storedRecord{
		UserID:           row.UserID,
		Date:             row.Date,
		TargetCigarettes: row.TargetCigarettes,
		ActualCigarettes: row.ActualCigarettes,
		Notes:            row.Notes,
		Origin:           row.Origin,
		State:            row.State,
		Version:          row.Version,
		CreatedAt:        time.Unix(0, row.CreatedAtNs).UTC(),
		UpdatedAt:        time.Unix(0, row.UpdatedAtNs).UTC(),
	}.toDomain()
}

const sqliteCheckinColumns = `user_id, checkin_date, target_cigarettes, actual_cigarettes, notes,
	origin, state, version, created_at_ns, updated_at_ns`

func (s *SQLiteStore) GetLocalRecords(ctx context.Context, userID string, r domain.DateRange) []domain.CheckinRecord {
	records := []domain.CheckinRecord{}

	var rows []sqliteCheckinRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+sqliteCheckinColumns+` FROM checkins
		WHERE user_id = ? AND checkin_date >= ? AND checkin_date <= ?
		ORDER BY checkin_date ASC`, userID, r.From.String(), r.To.String())
	if err != nil {
		localStoreErrors.WithLabelValues("sqlite").Inc()
		log.Printf("[SQLITE] read error for user %s: %v", userID, err)
		return records
	}

	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			dropCorrupt("SQLITE", userID+"/"+row.Date, err)
			s.deleteRow(ctx, row.UserID, row.Date)
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (s *SQLiteStore) GetLocalRecord(ctx context.Context, userID string, date domain.CalendarDate) (*domain.CheckinRecord, error) {
	var row sqliteCheckinRow
	err := s.db.GetContext(ctx, &row, `SELECT `+sqliteCheckinColumns+` FROM checkins
		WHERE user_id = ? AND checkin_date = ?`, userID, date.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCheckinNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite read error: %w", err)
	}

	rec, err := row.toDomain()
	if err != nil {
		dropCorrupt("SQLITE", userID+"/"+row.Date, err)
		s.deleteRow(ctx, row.UserID, row.Date)
		return nil, domain.ErrCheckinNotFound
	}
	return &rec, nil
}

func newSQLiteCheckinRow(record domain.CheckinRecord) sqliteCheckinRow {
	return sqliteCheckinRow{
		UserID:           record.UserID,
		Date:             record.Date.String(),
		TargetCigarettes: record.TargetCigarettes,
		ActualCigarettes: record.ActualCigarettes,
		Notes:            record.Notes,
		Origin:           string(record.Origin),
		State:            string(record.State),
		Version:          record.Version,
		CreatedAtNs:      record.CreatedAt.UnixNano(),
		UpdatedAtNs:      record.UpdatedAt.UnixNano(),
	}
}

const sqliteCheckinValues = `(:user_id, :checkin_date, :target_cigarettes, :actual_cigarettes, :notes,
	:origin, :state, :version, :created_at_ns, :updated_at_ns)`

func (s *SQLiteStore) PutLocalRecord(ctx context.Context, record domain.CheckinRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	_, err := s.db.NamedExecContext(ctx, `INSERT OR REPLACE INTO checkins (`+sqliteCheckinColumns+`)
		VALUES `+sqliteCheckinValues, newSQLiteCheckinRow(record))
	if err != nil {
		return fmt.Errorf("failed to store checkin: %w", err)
	}
	return nil
}

// RefreshLocalRecord lets the upsert's WHERE clause decide, so a draft
// written after the caller's read is still protected.
func (s *SQLiteStore) RefreshLocalRecord(ctx context.Context, record domain.CheckinRecord) (bool, error) {
	if !record.IsCommitted() {
		return false, nil
	}
	if err := record.Validate(); err != nil {
		return false, err
	}

	res, err := s.db.NamedExecContext(ctx, `INSERT INTO checkins (`+sqliteCheckinColumns+`)
		VALUES `+sqliteCheckinValues+`
		ON CONFLICT (user_id, checkin_date) DO UPDATE SET
			target_cigarettes = excluded.target_cigarettes,
			actual_cigarettes = excluded.actual_cigarettes,
			notes             = excluded.notes,
			origin            = excluded.origin,
			state             = excluded.state,
			version           = excluded.version,
			created_at_ns     = excluded.created_at_ns,
			updated_at_ns     = excluded.updated_at_ns
		WHERE checkins.state = 'committed' AND checkins.updated_at_ns < excluded.updated_at_ns`,
		newSQLiteCheckinRow(record))
	if err != nil {
		return false, fmt.Errorf("failed to refresh checkin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to refresh checkin: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) deleteRow(ctx context.Context, userID, date string) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkins WHERE user_id = ? AND checkin_date = ?`, userID, date); err != nil {
		log.Printf("[SQLITE] Failed to delete corrupt row %s/%s: %v", userID, date, err)
	}
}

type sqlitePlanRow struct {
	UserID                 string  `db:"user_id"`
	ID                     string  `db:"id"`
	StartDate              string  `db:"start_date"`
	InitialDailyCigarettes int     `db:"initial_daily_cigarettes"`
	Phases                 string  `db:"phases"`
	PackPrice              float64 `db:"pack_price"`
	Currency               string  `db:"currency"`
	Version                int     `db:"version"`
	CreatedAtNs            int64   `db:"created_at_ns"`
	UpdatedAtNs            int64   `db:"updated_at_ns"`
}

func (s *SQLiteStore) GetActivePlan(ctx context.Context, userID string) (*domain.Plan, error) {
	var row sqlitePlanRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM plans WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite read error: %w", err)
	}

	start, err := domain.ParseCalendarDate(row.StartDate)
	if err != nil {
		return nil, fmt.Errorf("stored plan has bad start date: %w", err)
	}
	p := &domain.Plan{
		ID:                     row.ID,
		UserID:                 row.UserID,
		StartDate:              start,
		InitialDailyCigarettes: row.InitialDailyCigarettes,
		PackPrice:              row.PackPrice,
		Currency:               row.Currency,
		Version:                row.Version,
		CreatedAt:              time.Unix(0, row.CreatedAtNs).UTC(),
		UpdatedAt:              time.Unix(0, row.UpdatedAtNs).UTC(),
	}
	if err := json.Unmarshal([]byte(row.Phases), &p.Phases); err != nil {
		return nil, fmt.Errorf("failed to unmarshal phases: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) SavePlan(ctx context.Context, p *domain.Plan) error {
	phases, err := json.Marshal(p.Phases)
	if err != nil {
		return fmt.Errorf("failed to marshal phases: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	version, updatedAt := 1, p.UpdatedAt

	var current int
	err = tx.GetContext(ctx, &current, `SELECT version FROM plans WHERE user_id = ?`, p.UserID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	case current != p.Version:
		return domain.ErrPlanConflict
	default:
		version = current + 1
		updatedAt = time.Now().UTC()
	}

	_, err = tx.NamedExecContext(ctx, `INSERT OR REPLACE INTO plans
		(user_id, id, start_date, initial_daily_cigarettes, phases, pack_price, currency, version, created_at_ns, updated_at_ns)
		VALUES (:user_id, :id, :start_date, :initial_daily_cigarettes, :phases, :pack_price, :currency, :version, :created_at_ns, :updated_at_ns)`,
		sqlitePlanRow{
			UserID:                 p.UserID,
			ID:                     p.ID,
			StartDate:              p.StartDate.String(),
			InitialDailyCigarettes: p.InitialDailyCigarettes,
			Phases:                 string(phases),
			PackPrice:              p.PackPrice,
			Currency:               p.Currency,
			Version:                version,
			CreatedAtNs:            p.CreatedAt.UnixNano(),
			UpdatedAtNs:            updatedAt.UnixNano(),
		})
	if err != nil {
		return fmt.Errorf("failed to store plan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	p.Version, p.UpdatedAt = version, updatedAt
	return nil
}
