package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"truth-or-dare-service/internal/app"
	"truth-or-dare-service/internal/content"
	"truth-or-dare-service/internal/domain"
	"truth-or-dare-service/internal/infra/memory"
	"truth-or-dare-service/internal/infra/postgres"
	pgmigrations "truth-or-dare-service/internal/infra/postgres/migrations"
	infraredis "truth-or-dare-service/internal/infra/redis"
)

func TestGameEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	library, err := content.Embedded()
	require.NoError(t, err)
	seedContent(t, ctx, pgURL, library)

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()
	loader := postgres.NewContentLoader(pool)

	key := domain.ContentKey{Category: domain.CategoryParty, Language: domain.LanguageFrench}
	stored, err := loader.LoadContent(ctx, key.Category, key.Language)
	require.NoError(t, err)
	assert.Equal(t, library[key], stored)

	redisClient, err := redisClientFromURL(redisURL)
	require.NoError(t, err)
	defer redisClient.Close()

	newService := func() *app.GameService {
		return app.NewGameService(
			memory.NewSessionStore(),
			infraredis.NewContentRepository(redisClient, loader, 5*time.Minute),
			infraredis.NewSnapshotStore(redisClient, 5*time.Minute),
			app.Rules{TotalRounds: 2},
			app.WithRandomSource(app.NewSeededSource(11)),
		)
	}
	service := newService()

	state, err := service.NewGame(ctx)
	require.NoError(t, err)
	id := state.ID
	_, err = service.SetCategory(ctx, id, domain.CategoryParty)
	require.NoError(t, err)
	_, err = service.SetLanguage(ctx, id, domain.LanguageFrench)
	require.NoError(t, err)
	for _, name := range []string{"Ann", "Bo"} {
		_, err = service.AddPlayer(ctx, id, name)
		require.NoError(t, err)
	}
	_, err = service.StartGame(ctx, id)
	require.NoError(t, err)

	truth, _, err := service.GetChallenge(ctx, id, domain.KindTruth)
	require.NoError(t, err)
	assert.Contains(t, library[key].Truths, truth)
	_, err = service.CompleteChallenge(ctx, id, true)
	require.NoError(t, err)
	_, err = service.NextPlayer(ctx, id)
	require.NoError(t, err)
	service.Release(ctx, id)

	// A second process picks the game up from Redis.
	resumed := newService()
	state, err = resumed.State(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseInProgress, state.Phase())
	assert.Equal(t, domain.LanguageFrench, state.Language)
	assert.Equal(t, 1, state.CurrentPlayerIndex)
	assert.Equal(t, []string{truth}, state.Used.Truths)

	for i := 0; i < 3; i++ {
		state, err = resumed.NextPlayer(ctx, id)
		require.NoError(t, err)
	}
	require.True(t, state.Completed)
	require.NotNil(t, state.Winner)
	assert.Equal(t, "Ann", state.Winner.Name)
	assert.Equal(t, "Bo", state.Loser.Name)

	pledge, _, err := resumed.GetPledge(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, library[key].Pledges, pledge)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "tod", "POSTGRES_PASSWORD": "todpass", "POSTGRES_DB": "toddb"},
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
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://tod:todpass@%s:%s/toddb?sslmode=disable", host, port.Port())
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
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedContent(t *testing.T, ctx context.Context, dsn string, library content.Library) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)

	n, err := postgres.ImportContent(ctx, db, library)
	require.NoError(t, err)
	require.Positive(t, n)

	// Importing twice replaces rather than duplicates.
	again, err := postgres.ImportContent(ctx, db, library)
	require.NoError(t, err)
	assert.Equal(t, n, again)
	count, err := db.NewSelect().Table("challenge_content").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, count)
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
