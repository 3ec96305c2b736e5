package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/config"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/progress"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/services"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/workers"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	userID     string
	driver     string
	path       string
	timezone   string
	offline    bool
	jsonOut    bool
}

// localStore is what both embedded drivers provide: the local check-in tier
// and the plan repository in one file or directory.
type localStore interface {
	domain.LocalCheckinStore
	domain.PlanRepository
	io.Closer
}

type runtime struct {
	cfg      *config.Config
	userID   string
	loc      *time.Location
	store    localStore
	db       *sqlx.DB
	plans    *services.PlanService
	checkins *services.CheckinService
	progress *services.ProgressService
	worker   *workers.CommitWorker
}

func loadConfig(opts *globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if opts.driver != "" {
		cfg.Local.Driver = opts.driver
	}
	if opts.path != "" {
		cfg.Local.Path = opts.path
	}
	if opts.timezone != "" {
		cfg.Timezone = opts.timezone
	}
	return cfg, nil
}

func openStore(cfg config.LocalConfig) (localStore, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return repository.OpenSQLite(cfg.Path)
	case config.DriverBadger:
		return repository.OpenBadger(repository.BadgerConfig{Path: cfg.Path, SyncWrites: true})
	default:
		return nil, fmt.Errorf("unknown local driver %q", cfg.Driver)
	}
}

func openRuntime(opts *globalOptions) (*runtime, error) {
	if opts.userID == "" {
		return nil, errors.New("a user is required (--user or QUITCTL_USER)")
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	store, err := openStore(cfg.Local)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, userID: opts.userID, loc: loc, store: store}

	var remote domain.RemoteCheckinStore = repository.OfflineRemote{}
	if !opts.offline && cfg.Database.Enabled() {
		db, err := sqlx.Connect("pgx", cfg.Database.DSN())
		if err != nil {
			log.Printf("[QUITCTL] Remote database unreachable, working offline: %v", err)
		} else {
			db.SetMaxOpenConns(4)
			ctx, cancel := context.WithTimeout(context.Background(), cfg.RemoteTimeout)
			err = repository.MigratePostgres(ctx, db)
			cancel()
			if err != nil {
				db.Close()
				log.Printf("[QUITCTL] Remote schema unavailable, working offline: %v", err)
			} else {
				rt.db = db
				remote = repository.NewPostgresCheckinRepository(db)
			}
		}
	}

	aggregator := progress.NewAggregator(cfg.DefaultPackPrice, cfg.Currency)
	rt.plans = services.NewPlanService(store)
	rt.checkins = services.NewCheckinService(store, remote, store, cfg.RemoteTimeout)
	rt.progress = services.NewProgressService(store, store, remote, aggregator, cfg.RemoteTimeout)
	rt.worker = workers.NewCommitWorker(rt.checkins, cfg.QueueSize)
	rt.checkins.SetQueue(rt.worker)

	return rt, nil
}

func (rt *runtime) Close() error {
	if rt.db != nil {
		rt.db.Close()
	}
	return rt.store.Close()
}

func (rt *runtime) today() domain.CalendarDate {
	return domain.DateOf(time.Now(), rt.loc)
}

// parseDay accepts YYYY-MM-DD, "today" and "yesterday".
func (rt *runtime) parseDay(s string) (domain.CalendarDate, error) {
	switch s {
	case "", "today":
		return rt.today(), nil
	case "yesterday":
		return rt.today().AddDays(-1), nil
	}
	return domain.ParseCalendarDate(s)
}

func defaultUser() string {
	if u := os.Getenv("QUITCTL_USER"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
