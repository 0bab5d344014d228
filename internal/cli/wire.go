package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/config"
	"lesson-quiz-service/internal/domain"
	"lesson-quiz-service/internal/infra/bundb"
	"lesson-quiz-service/internal/infra/memory"
	pgcatalog "lesson-quiz-service/internal/infra/postgres"
	redisinfra "lesson-quiz-service/internal/infra/redis"
	"lesson-quiz-service/internal/logger"
	"lesson-quiz-service/internal/notify"
)

// invalidator drops cached quizzes after the catalog changes.
type invalidator interface {
	Invalidate(ctx context.Context, quizIDs ...string) error
}

// services is the assembled application graph shared by every subcommand.
type services struct {
	cfg config.Config
	log *zap.Logger

	db    *bun.DB
	store *bundb.Store
	pool  *pgxpool.Pool
	redis *redis.Client

	catalog app.Catalog
	cache   invalidator
	feed    *app.Feed

	notifier   app.Notifier
	engine     *app.Engine
	ledger     *app.Ledger
	videos     *app.Videos
	scheduler  app.Scheduler
	redisJobs  *redisinfra.Scheduler
	memoryJobs *memory.Scheduler
	dispatcher *app.Dispatcher
	router     *app.Router
}

func loadConfig(path string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config %s: %w", path, err)
	}
	log, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, log, nil
}

func databaseDriver(cfg config.Config) (string, string) {
	driver, dsn := cfg.Database.Driver, cfg.Database.DSN
	if driver == "" {
		driver = bundb.DriverSQLite
	}
	if dsn == "" && driver == bundb.DriverSQLite {
		dsn = "file:lesson-quiz.db?_pragma=busy_timeout(5000)"
	}
	return driver, dsn
}

// openDatabase connects and applies pending migrations.
func openDatabase(ctx context.Context, cfg config.Config, log *zap.Logger) (*bun.DB, error) {
	driver, dsn := databaseDriver(cfg)
	db, err := bundb.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	group, err := bundb.Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if group.IsZero() {
		log.Info("database schema up to date", zap.String("driver", driver))
	} else {
		log.Info("migrations applied", zap.String("driver", driver), zap.String("group", group.String()))
	}
	return db, nil
}

// buildServices wires storage, caches, notifier, engine, scheduler, dispatcher and router.
// The engine is built before the scheduler because the scheduler calls back into it.
func buildServices(ctx context.Context, cfg config.Config, log *zap.Logger) (*services, error) {
	s := &services{cfg: cfg, log: log, feed: app.NewFeed()}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	s.db = db
	s.store = bundb.NewStore(db)

	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var source app.Catalog = s.store
	if cfg.Database.PgxCatalog {
		driver, dsn := databaseDriver(cfg)
		if driver != bundb.DriverPostgres {
			s.close()
			return nil, errors.New("pgx catalog requires the postgres driver")
		}
		s.pool, err = pgcatalog.Connect(ctx, dsn)
		if err != nil {
			s.close()
			return nil, err
		}
		source = pgcatalog.NewCatalog(s.pool)
	}

	ttl := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if s.redis != nil {
		c := redisinfra.NewCatalogCache(s.redis, source, ttl, cfg.Redis.Prefix, log)
		s.catalog, s.cache = c, c
	} else {
		c := memory.NewCatalogCache(source, ttl)
		s.catalog, s.cache = c, c
	}

	s.notifier, err = notify.New(notify.Config{
		Provider:          cfg.Notifier.Provider,
		TwilioAccountSID:  cfg.Notifier.Twilio.AccountSID,
		TwilioAuthToken:   cfg.Notifier.Twilio.AuthToken,
		TwilioFrom:        cfg.Notifier.Twilio.From,
		MetaToken:         cfg.Notifier.Meta.Token,
		MetaPhoneNumberID: cfg.Notifier.Meta.PhoneNumberID,
		MetaAPIVersion:    cfg.Notifier.Meta.APIVersion,
		MetaBaseURL:       cfg.Notifier.Meta.BaseURL,
		RatePerSecond:     cfg.Notifier.RatePerSecond,
		Burst:             cfg.Notifier.Burst,
		MaxRetries:        cfg.Notifier.MaxRetries,
		RetryBase:         config.TTLDuration(cfg.Notifier.RetryBase, 200*time.Millisecond),
		Timeout:           config.TTLDuration(cfg.Notifier.Timeout, 10*time.Second),
	}, s.feed, log)
	if err != nil {
		s.close()
		return nil, err
	}

	s.engine = app.NewEngine(s.store, s.catalog, s.notifier, app.WithLogger(log), app.WithFeed(s.feed))
	s.ledger = app.NewLedger(s.store, log)
	s.videos = app.NewVideos(s.store, log)

	if s.redis != nil {
		jobs := redisinfra.NewScheduler(s.redis, cfg.Redis.Prefix, s.engine.HandleStartJob, log)
		jobs.PollInterval = config.TTLDuration(cfg.Scheduler.PollInterval, time.Second)
		jobs.RetryBase = config.TTLDuration(cfg.Scheduler.RetryBase, 5*time.Second)
		if cfg.Scheduler.MaxAttempts > 0 {
			jobs.MaxAttempts = cfg.Scheduler.MaxAttempts
		}
		s.redisJobs, s.scheduler = jobs, jobs
	} else {
		jobs := memory.NewScheduler(s.engine.HandleStartJob, log)
		s.memoryJobs, s.scheduler = jobs, jobs
	}

	s.dispatcher = app.NewDispatcher(app.DispatcherConfig{
		Contents:  s.store,
		Catalog:   s.catalog,
		Videos:    s.videos,
		Notifier:  s.notifier,
		Scheduler: s.scheduler,
		Delay:     config.TTLDuration(cfg.Quiz.StartDelay, app.DefaultQuizDelay),
		Feed:      s.feed,
		Logger:    log,
	})
	s.router = app.NewRouter(s.store, s.engine, s.store, s.notifier, s.feed, log)
	return s, nil
}

// seed writes data and drops the cached copies of the quizzes it touched.
func (s *services) seed(ctx context.Context, data domain.Dataset) (bundb.SeedResult, error) {
	res, err := s.store.Seed(ctx, data)
	if err != nil {
		return bundb.SeedResult{}, err
	}
	ids := make([]string, 0, len(data.Quizzes))
	for _, q := range data.Quizzes {
		ids = append(ids, q.ID)
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.log.Warn("catalog cache invalidation failed", zap.Error(err))
	}
	return res, nil
}

func (s *services) close() {
	if s.memoryJobs != nil {
		s.memoryJobs.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	_ = s.log.Sync()
}
