package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/adapters/cache"
	adapterHTTP "github.com/comitanigiacomo/kanso-quit-engine/internal/adapters/handler/http"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/config"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/progress"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/services"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/workers"
)

type app struct {
	router *gin.Engine
	worker *workers.CommitWorker
	tokens *services.TokenService
}

// wire assembles the server. db and rdb are both optional: without a
// database the remote tier lives in memory, without Redis so does the local one.
func wire(cfg *config.Config, db *sqlx.DB, rdb *redis.Client) *app {
	var (
		plans  domain.PlanRepository
		remote domain.RemoteCheckinStore
		local  domain.LocalCheckinStore
		pinger adapterHTTP.Pinger
	)

	if db != nil {
		plans = repository.NewPostgresPlanRepository(db)
		remote = repository.NewPostgresCheckinRepository(db)
		pinger = db
	} else {
		log.Println("No database configured: remote tier is in-memory and will not survive a restart.")
		plans = repository.NewInMemoryPlanRepository()
		remote = repository.NewInMemoryCheckinStore()
	}

	if rdb != nil {
		plans = repository.NewCachedPlanRepository(plans, rdb)
		local = repository.NewRedisCheckinCache(rdb)
	} else {
		local = repository.NewInMemoryCheckinStore()
	}

	aggregator := progress.NewAggregator(cfg.DefaultPackPrice, cfg.Currency)

	planService := services.NewPlanService(plans)
	checkinService := services.NewCheckinService(local, remote, plans, cfg.RemoteTimeout)
	progressService := services.NewProgressService(plans, local, remote, aggregator, cfg.RemoteTimeout)
	tokenService := services.NewTokenService(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	worker := workers.NewCommitWorker(checkinService, cfg.QueueSize)
	checkinService.SetQueue(worker)

	days := adapterHTTP.NewDayResolver(cfg.Location())

	router := adapterHTTP.NewRouter(adapterHTTP.RouterDependencies{
		PlanHandler:     adapterHTTP.NewPlanHandler(planService, days),
		CheckinHandler:  adapterHTTP.NewCheckinHandler(checkinService, days),
		ProgressHandler: adapterHTTP.NewProgressHandler(progressService, days),
		Tokens:          tokenService,
		DB:              pinger,
		Redis:           rdb,
		RateLimit:       cfg.RateLimit,
		StartTime:       time.Now(),
	})

	return &app{router: router, worker: worker, tokens: tokenService}
}

func connectDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	log.Println("Connecting to database...")

	db, err := sqlx.Connect("pgx", cfg.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repository.MigratePostgres(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	log.Println("Database connected successfully.")
	return db, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Critical: %v", err)
	}
	if cfg.Auth.Secret == "" {
		log.Fatal("Critical: JWT_SECRET is required")
	}

	var db *sqlx.DB
	if cfg.Database.Enabled() {
		db, err = connectDatabase(cfg.Database)
		if err != nil {
			log.Fatalf("Critical: Failed to connect to database: %v", err)
		}
		defer db.Close()
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Printf("Redis unavailable, continuing without cache and rate limiting: %v", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	a := wire(cfg, db, rdb)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	a.worker.Start(workerCtx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      adapterHTTP.WithCORS(a.router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Kanso Quit Engine running on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Critical server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Stop signal received. Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Forced shutdown error:", err)
	}
	stopWorker()

	log.Println("Server stopped gracefully.")
}
