package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var _ domain.PlanRepository = (*PostgresPlanRepository)(nil)

type PostgresPlanRepository struct {
	db *sqlx.DB
}

func NewPostgresPlanRepository(db *sqlx.DB) *PostgresPlanRepository {
	return &PostgresPlanRepository{db: db}
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresPlanRepository) scanRow(row scannable) (*domain.Plan, error) {
	var p domain.Plan
	var phasesJSON []byte

	err := row.Scan(
		&p.ID, &p.UserID, &p.StartDate, &p.InitialDailyCigarettes, &phasesJSON,
		&p.PackPrice, &p.Currency, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(phasesJSON) > 0 {
		if err := json.Unmarshal(phasesJSON, &p.Phases); err != nil {
			return nil, fmt.Errorf("failed to unmarshal phases: %w", err)
		}
	}

	return &p, nil
}

func (r *PostgresPlanRepository) GetActivePlan(ctx context.Context, userID string) (*domain.Plan, error) {
	query := `
        SELECT id, user_id, start_date, initial_daily_cigarettes, phases,
               pack_price, currency, version, created_at, updated_at
        FROM quit_plans
        WHERE user_id = $1`

	p, err := r.scanRow(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return p, nil
}

// SavePlan inserts a plan the user does not have yet, or updates the stored
// one when plan.Version still matches.
func (r *PostgresPlanRepository) SavePlan(ctx context.Context, p *domain.Plan) error {
	phasesJSON, err := json.Marshal(p.Phases)
	if err != nil {
		return fmt.Errorf("failed to marshal phases: %w", err)
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM quit_plans WHERE user_id = $1)`, p.UserID); err != nil {
		return fmt.Errorf("existence check failed: %w", err)
	}

	if !exists {
		query := `
        INSERT INTO quit_plans (
            id, user_id, start_date, initial_daily_cigarettes, phases,
            pack_price, currency, version, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)`

		_, err := r.db.ExecContext(ctx, query,
			p.ID, p.UserID, p.StartDate, p.InitialDailyCigarettes, phasesJSON,
			p.PackPrice, p.Currency, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			if mapped := mapPostgresError(err); errors.Is(mapped, domain.ErrCheckinConflict) {
				return domain.ErrPlanConflict
			}
			return fmt.Errorf("failed to insert plan: %w", err)
		}
		p.Version = 1
		return nil
	}

	query := `
        UPDATE quit_plans SET
            start_date=$1, initial_daily_cigarettes=$2, phases=$3,
            pack_price=$4, currency=$5,
            updated_at=NOW(), version = version + 1
        WHERE user_id=$6 AND version=$7
        RETURNING version, updated_at`

	row := r.db.QueryRowContext(ctx, query,
		p.StartDate, p.InitialDailyCigarettes, phasesJSON,
		p.PackPrice, p.Currency,
		p.UserID, p.Version,
	)

	var newVersion int
	var newUpdatedAt time.Time
	if err := row.Scan(&newVersion, &newUpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPlanConflict
		}
		return fmt.Errorf("update query failed: %w", err)
	}

	p.Version = newVersion
	p.UpdatedAt = newUpdatedAt
	return nil
}
