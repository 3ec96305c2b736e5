package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS quit_plans (
    id                       UUID PRIMARY KEY,
    user_id                  TEXT NOT NULL UNIQUE,
    start_date               DATE NOT NULL,
    initial_daily_cigarettes INTEGER NOT NULL CHECK (initial_daily_cigarettes >= 0),
    phases                   JSONB NOT NULL DEFAULT '[]',
    pack_price               NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (pack_price >= 0),
    currency                 TEXT NOT NULL DEFAULT 'KRW',
    version                  INTEGER NOT NULL DEFAULT 1,
    created_at               TIMESTAMPTZ NOT NULL,
    updated_at               TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS checkins (
    user_id           TEXT NOT NULL,
    checkin_date      DATE NOT NULL,
    target_cigarettes INTEGER NOT NULL CHECK (target_cigarettes >= 0),
    actual_cigarettes INTEGER NOT NULL CHECK (actual_cigarettes >= 0),
    notes             TEXT NOT NULL DEFAULT '',
    origin            TEXT NOT NULL DEFAULT 'remote',
    state             TEXT NOT NULL DEFAULT 'committed',
    version           INTEGER NOT NULL DEFAULT 1,
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (user_id, checkin_date)
);

DO $$ BEGIN
    ALTER TABLE checkins ADD CONSTRAINT checkins_state_check CHECK (state IN ('draft', 'committed'));
EXCEPTION WHEN duplicate_object THEN NULL;
END $$;

DO $$ BEGIN
    ALTER TABLE checkins ADD CONSTRAINT checkins_origin_check CHECK (origin IN ('local', 'remote'));
EXCEPTION WHEN duplicate_object THEN NULL;
END $$;
`

// MigratePostgres creates the tables used by the remote tier and the plan repository.
func MigratePostgres(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("creating postgres schema: %w", err)
	}
	return nil
}
