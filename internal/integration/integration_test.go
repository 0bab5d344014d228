package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"lesson-quiz-service/internal/app"
	"lesson-quiz-service/internal/fixtures"
	"lesson-quiz-service/internal/infra/bundb"
	pgcatalog "lesson-quiz-service/internal/infra/postgres"
	infraredis "lesson-quiz-service/internal/infra/redis"
	"lesson-quiz-service/internal/notify/notifytest"
)

const contact = "+5215550003"

func TestLessonQuizOnPostgresAndRedis(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db, err := bundb.Open(bundb.DriverPostgres, pgURL)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if _, err := bundb.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := bundb.NewStore(db)
	if _, err := store.Seed(ctx, fixtures.Demo()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	pool, err := pgcatalog.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	catalog := infraredis.NewCatalogCache(redisClient, pgcatalog.NewCatalog(pool), 5*time.Minute, "it:", nil)
	quiz, err := catalog.GetQuizWithQuestions(ctx, fixtures.DemoQuizID)
	if err != nil {
		t.Fatalf("load quiz through pgx: %v", err)
	}
	if len(quiz.Questions) != 5 || quiz.Questions[2].Options[2] != "6g" {
		t.Fatalf("pgx catalog lost detail: %+v", quiz.Questions)
	}

	rec := notifytest.NewRecorder()
	engine := app.NewEngine(store, catalog, rec)
	ledger := app.NewLedger(store, nil)
	jobs := infraredis.NewScheduler(redisClient, "it:", engine.HandleStartJob, nil)
	dispatcher := app.NewDispatcher(app.DispatcherConfig{
		Contents:  store,
		Catalog:   catalog,
		Videos:    app.NewVideos(store, nil),
		Notifier:  rec,
		Scheduler: jobs,
		Delay:     time.Millisecond,
	})

	if _, err := dispatcher.Dispatch(ctx, contact, fixtures.DemoContentID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	ran, err := jobs.RunDue(ctx)
	if err != nil || ran != 1 {
		t.Fatalf("expected one due job, ran=%d err=%v", ran, err)
	}

	for _, reply := range []string{"2", "3", "3", "2", "2"} {
		if _, err := engine.Answer(ctx, contact, reply); err != nil {
			t.Fatalf("answer %s: %v", reply, err)
		}
	}

	wallet, err := ledger.Wallet(ctx, contact)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if wallet.User.Balance != 50 || wallet.LedgerSum != 50 || len(wallet.Transactions) != 1 {
		t.Fatalf("unexpected wallet %+v", wallet)
	}
	if err := ledger.Verify(ctx, wallet.User.ID); err != nil {
		t.Fatalf("verify ledger: %v", err)
	}
	if rec.Count(contact, "You earned 50") != 1 {
		t.Fatalf("expected one completion message with the reward")
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	return fmt.Sprintf("redis://%s:%s", host, port.Port()), func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
