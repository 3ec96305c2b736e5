package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

var _ domain.PlanRepository = (*CachedPlanRepository)(nil)

const planCacheTTL = 30 * time.Minute

// noPlanMarker caches "user has no plan" so dashboards of new users skip the database.
const noPlanMarker = "none"

// CachedPlanRepository wraps another PlanRepository with a Redis read-through cache.
type CachedPlanRepository struct {
	next  domain.PlanRepository
	cache *redis.Client
}

func NewCachedPlanRepository(next domain.PlanRepository, cache *redis.Client) *CachedPlanRepository {
	return &CachedPlanRepository{
		next:  next,
		cache: cache,
	}
}

func (r *CachedPlanRepository) cacheKey(userID string) string {
	return fmt.Sprintf("plan:%s", userID)
}

func (r *CachedPlanRepository) invalidate(ctx context.Context, userID string) {
	if err := r.cache.Del(ctx, r.cacheKey(userID)).Err(); err != nil {
		log.Printf("[CACHE] Failed to invalidate plan for user %s: %v", userID, err)
	}
}

func (r *CachedPlanRepository) GetActivePlan(ctx context.Context, userID string) (*domain.Plan, error) {
	key := r.cacheKey(userID)

	val, err := r.cache.Get(ctx, key).Result()
	if err == nil {
		if val == noPlanMarker {
			planCacheTotal.WithLabelValues("hit").Inc()
			return nil, nil
		}

		var plan domain.Plan
		if err := json.Unmarshal([]byte(val), &plan); err == nil {
			planCacheTotal.WithLabelValues("hit").Inc()
			return &plan, nil
		}

		planCacheTotal.WithLabelValues("corrupt").Inc()
		log.Printf("[CACHE] Corrupted plan for user %s, cleaning up key", userID)
		r.cache.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("[CACHE] Redis read error: %v", err)
	}
	planCacheTotal.WithLabelValues("miss").Inc()

	plan, err := r.next.GetActivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	var data []byte
	if plan == nil {
		data = []byte(noPlanMarker)
	} else if data, err = json.Marshal(plan); err != nil {
		return plan, nil
	}

	if setErr := r.cache.Set(ctx, key, data, planCacheTTL).Err(); setErr != nil {
		log.Printf("[CACHE] Redis set error: %v", setErr)
	}
	return plan, nil
}

func (r *CachedPlanRepository) SavePlan(ctx context.Context, plan *domain.Plan) error {
	if err := r.next.SavePlan(ctx, plan); err != nil {
		return err
	}
	r.invalidate(ctx, plan.UserID)
	return nil
}
